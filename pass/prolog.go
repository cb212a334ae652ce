package pass

import (
	"github.com/solder-lang/mcbackend/abi"
	"github.com/solder-lang/mcbackend/mcir"
)

// runPrologEpilog inserts the function entry/exit sequence (§4.9): save
// the frame pointer, allocate the convention's shadow space, save every
// callee-saved (persistent) physical register the function body actually
// writes, and mirror the restores before every Ret. This runs after
// register allocation, since it needs to know which physical persistent
// registers ended up live, and only once per function — a second run
// would double the saves, which is why the pass manager never repeats
// it.
func runPrologEpilog(ctx *Context) {
	storage := ctx.Fn.Storage
	cc := ctx.CC

	used := usedPersistentRegs(storage, cc.IntPersistentRegs)

	insertProlog(storage, cc, used)
	insertEpilogsBeforeReturns(storage, used)
}

// usedPersistentRegs returns the subset of candidates that the function
// body defines anywhere, in candidate order (so save/restore order is
// deterministic run to run).
func usedPersistentRegs(storage *mcir.Storage, candidates []mcir.MicroReg) []mcir.MicroReg {
	writtenSet := make(map[mcir.MicroReg]bool)
	for ref := storage.Begin(); ref != storage.End(); ref = ref.Next() {
		_, defs := mcir.CollectUseDef(ref)
		for _, idx := range defs {
			if ref.Ops()[idx].Kind == mcir.OperandKindReg {
				writtenSet[ref.Reg(idx)] = true
			}
		}
	}
	var out []mcir.MicroReg
	for _, r := range candidates {
		if writtenSet[r] {
			out = append(out, r)
		}
	}
	return out
}

// insertProlog pushes rbp, establishes the frame pointer, reserves the
// convention's shadow space, and pushes every used persistent register,
// all immediately before the first instruction.
func insertProlog(storage *mcir.Storage, cc *abi.CallConv, used []mcir.MicroReg) {
	head := storage.Begin()
	emitPush(storage, head, cc.FramePointer, mcir.Bits64)
	storage.InsertBefore(head, mcir.OpcodeLoadRegReg, []mcir.Operand{
		mcir.RegOperand(cc.FramePointer), mcir.RegOperand(cc.StackPointer), mcir.BitsOperand(mcir.Bits64),
	})
	if cc.StackShadowSpace > 0 {
		storage.InsertBefore(head, mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
			mcir.RegOperand(cc.StackPointer), mcir.ImmOperand(uint64(cc.StackShadowSpace)),
			mcir.OpOperand(mcir.OpSubtract), mcir.BitsOperand(mcir.Bits64),
		})
	}
	for _, r := range used {
		emitPush(storage, head, r, mcir.Bits64)
	}
}

// insertEpilogsBeforeReturns pops every saved persistent register (in
// reverse save order) and restores the stack/frame pointer immediately
// before every Ret instruction in the function.
func insertEpilogsBeforeReturns(storage *mcir.Storage, used []mcir.MicroReg) {
	var rets []mcir.Ref
	for ref := storage.Begin(); ref != storage.End(); ref = ref.Next() {
		if ref.Opcode == mcir.OpcodeRet {
			rets = append(rets, ref)
		}
	}
	for _, ret := range rets {
		for i := len(used) - 1; i >= 0; i-- {
			emitPop(storage, ret, used[i], mcir.Bits64)
		}
		// `leave`: collapse the shadow-space allocation by snapping rsp
		// back to the saved-rbp slot, then pop it.
		storage.InsertBefore(ret, mcir.OpcodeLoadRegReg, []mcir.Operand{
			mcir.RegOperand(mcir.RSP), mcir.RegOperand(mcir.RBP), mcir.BitsOperand(mcir.Bits64),
		})
		emitPop(storage, ret, mcir.RBP, mcir.Bits64)
	}
}

// emitPush models `push reg` as the micro-IR idiom `sub rsp, 8; mov
// [rsp], reg`, inserted immediately before ref.
func emitPush(storage *mcir.Storage, ref mcir.Ref, reg mcir.MicroReg, bits mcir.OpBits) {
	storage.InsertBefore(ref, mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
		mcir.RegOperand(mcir.RSP), mcir.ImmOperand(8), mcir.OpOperand(mcir.OpSubtract), mcir.BitsOperand(mcir.Bits64),
	})
	storage.InsertBefore(ref, mcir.OpcodeLoadMemReg, []mcir.Operand{
		mcir.RegOperand(mcir.RSP), mcir.ImmOperand(0), mcir.RegOperand(reg), mcir.BitsOperand(bits),
	})
}

// emitPop models `pop reg` as `mov reg, [rsp]; add rsp, 8`, inserted
// immediately before ref.
func emitPop(storage *mcir.Storage, ref mcir.Ref, reg mcir.MicroReg, bits mcir.OpBits) {
	storage.InsertBefore(ref, mcir.OpcodeLoadRegMem, []mcir.Operand{
		mcir.RegOperand(reg), mcir.RegOperand(mcir.RSP), mcir.ImmOperand(0), mcir.BitsOperand(bits),
	})
	storage.InsertBefore(ref, mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
		mcir.RegOperand(mcir.RSP), mcir.ImmOperand(8), mcir.OpOperand(mcir.OpAdd), mcir.BitsOperand(mcir.Bits64),
	})
}
