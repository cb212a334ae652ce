package pass

import (
	"fmt"

	"github.com/solder-lang/mcbackend/mcir"
)

// runEmit walks the final, legalized Micro-IR exactly once and appends its
// machine code to ctx.Enc (§4.11). It never rewrites the IR — by this
// point every instruction has already probed EncodeOK. Two opcode shapes
// carry a symbolic PatchSite the encoder itself cannot resolve (a direct
// call's target name, a data-segment address load's symbol name), since
// only builder.Function's side tables know what a PatchSite actually
// names; this pass resolves both before ever calling Enc.Emit so the
// encoder's dispatch never has to reach into pass-layer bookkeeping.
func runEmit(ctx *Context) error {
	storage := ctx.Fn.Storage
	enc := ctx.Enc

	enc.BeginFunction(ctx.Fn.Name)

	for ref := storage.Begin(); ref != storage.End(); ref = ref.Next() {
		if emitDirectCallSite(ctx, ref) {
			continue
		}
		if emitDataAddressSite(ctx, ref) {
			continue
		}
		enc.Emit(ref)
	}

	if err := enc.PatchJumps(); err != nil {
		ctx.Diag.ReportInternalError("emit", err.Error())
		return fmt.Errorf("emit: %w", err)
	}
	return nil
}

// emitDirectCallSite handles CallLocal/CallExtern instructions: a JumpReg
// call marker whose target register is InvalidReg and whose third operand
// is a PatchSite naming the call in ctx.Fn.CallSites. Reports true if it
// consumed ref.
func emitDirectCallSite(ctx *Context, ref mcir.Ref) bool {
	if ref.Opcode != mcir.OpcodeJumpReg || !ref.IsCall() || ref.NumOperands() <= 2 {
		return false
	}
	site := ref.Ops()[2].Patch
	info, ok := ctx.Fn.CallSites[site]
	if !ok {
		panic("BUG: call instruction carries a PatchSite with no CallSiteInfo entry")
	}
	if info.Extern {
		ctx.Enc.EncodeCallExtern(info.Name)
	} else {
		ctx.Enc.EncodeCallLocal(info.Name)
	}
	return true
}

// emitDataAddressSite handles the data-symbol form of LoadAddrRegMem: dst
// plus an InvalidReg base plus a PatchSite naming the symbol in
// ctx.Fn.DataRefs. Reports true if it consumed ref.
func emitDataAddressSite(ctx *Context, ref mcir.Ref) bool {
	if ref.Opcode != mcir.OpcodeLoadAddrRegMem || ref.Ops()[2].Kind != mcir.OperandKindPatch {
		return false
	}
	site := ref.Ops()[2].Patch
	info, ok := ctx.Fn.DataRefs[site]
	if !ok {
		panic("BUG: data-address instruction carries a PatchSite with no DataRefInfo entry")
	}
	ctx.Enc.AddrOfData(ref.Reg(0), info.Name)
	return true
}
