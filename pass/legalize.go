package pass

import (
	"fmt"

	"github.com/solder-lang/mcbackend/encoder"
	"github.com/solder-lang/mcbackend/mcir"
)

// runLegalize repeatedly probes every instruction against the encoder
// and applies the rewrite the returned hint names, until every
// instruction probes EncodeOK or the encoder reports EncodeNotSupported
// (§4.10). Each hint's rewrite can only ever need a small, fixed set of
// scratch registers, picked via CallConv.TryPickIntScratchRegs excluding
// whatever the instruction itself already reads or writes.
func runLegalize(ctx *Context) error {
	storage := ctx.Fn.Storage
	enc := ctx.Enc

	for ref := storage.Begin(); ref != storage.End(); ref = ref.Next() {
		for iterations := 0; ; iterations++ {
			if iterations > 8 {
				return fmt.Errorf("legalize: instruction did not converge after repeated rewrites")
			}
			hint := enc.Probe(ref)
			if hint == encoder.EncodeOK {
				break
			}
			if hint == encoder.EncodeNotSupported {
				ctx.Diag.ReportInternalError("legalize", fmt.Sprintf("no legalization exists for opcode %v", ref.Opcode))
				return fmt.Errorf("legalize: opcode %v not supported by the encoder", ref.Opcode)
			}
			if err := applyLegalizationHint(ctx, ref, hint); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyLegalizationHint(ctx *Context, ref mcir.Ref, hint encoder.CpuEncodeResult) error {
	storage := ctx.Fn.Storage
	switch hint {
	case encoder.EncodeZero:
		bits := ref.Ops()[len(ref.Ops())-1]
		storage.Rewrite(ref, mcir.OpcodeClearReg, []mcir.Operand{ref.Ops()[0]})
		_ = bits
		return nil

	case encoder.EncodeLeft2Rax:
		return moveOperandToReg(ctx, ref, 0, mcir.RAX)

	case encoder.EncodeLeft2Reg:
		scratch, _, ok := ctx.CC.TryPickIntScratchRegs(liveRegsOf(ref))
		if !ok {
			return fmt.Errorf("legalize: no scratch register available for left-operand materialization")
		}
		return moveOperandToReg(ctx, ref, 0, scratch)

	case encoder.EncodeRight2Reg:
		idx := len(ref.Ops()) - 3
		scratch, _, ok := ctx.CC.TryPickIntScratchRegs(liveRegsOf(ref))
		if !ok {
			return fmt.Errorf("legalize: no scratch register available for right-operand materialization")
		}
		return moveOperandToReg(ctx, ref, idx, scratch)

	case encoder.EncodeRight2Rcx:
		idx := len(ref.Ops()) - 3
		return moveOperandToReg(ctx, ref, idx, mcir.RCX)

	case encoder.EncodeRight2Cst:
		return fmt.Errorf("legalize: EncodeRight2Cst requested for an instruction whose right operand isn't already an immediate-eligible shape")

	case encoder.EncodeForceZero32:
		last := len(ref.Ops()) - 1
		ref.SetOperand(last, mcir.BitsOperand(mcir.Bits32))
		return nil

	default:
		return fmt.Errorf("legalize: unknown CpuEncodeResult %v", hint)
	}
}

// immToRegOpcode maps an opcode whose shape includes an immediate operand
// to the sibling opcode that expects a register in that same slot, for
// use when moveOperandToReg materializes that immediate into dst. An
// instruction's Opcode must always match its operands' actual kinds (I1);
// leaving it as the Imm variant once the slot holds a Reg would make
// every later Imm(idx) call on it panic.
func immToRegOpcode(op mcir.Opcode) (mcir.Opcode, bool) {
	switch op {
	case mcir.OpcodeOpBinaryRegImm:
		return mcir.OpcodeOpBinaryRegReg, true
	case mcir.OpcodeOpBinaryMemImm:
		return mcir.OpcodeOpBinaryMemReg, true
	case mcir.OpcodeCmpRegImm:
		return mcir.OpcodeCmpRegReg, true
	case mcir.OpcodeCmpMemImm:
		return mcir.OpcodeCmpMemReg, true
	case mcir.OpcodeLoadMemImm:
		return mcir.OpcodeLoadMemReg, true
	default:
		return op, false
	}
}

// moveOperandToReg inserts a LoadRegReg (or LoadRegImm, if the operand at
// idx is an immediate) ahead of ref that materializes that operand into
// dst, then rewrites ref's own operand to read dst instead. If idx held an
// immediate, ref's Opcode is also switched to the matching Reg-shaped
// sibling, since the operand's Kind no longer matches the Imm shape.
func moveOperandToReg(ctx *Context, ref mcir.Ref, idx int, dst mcir.MicroReg) error {
	storage := ctx.Fn.Storage
	op := ref.Ops()[idx]
	bits := ref.Ops()[len(ref.Ops())-1]
	switch op.Kind {
	case mcir.OperandKindReg:
		storage.InsertBefore(ref, mcir.OpcodeLoadRegReg, []mcir.Operand{
			mcir.RegOperand(dst), op, bits,
		})
		ref.SetOperand(idx, mcir.RegOperand(dst))
		return nil
	case mcir.OperandKindImm:
		storage.InsertBefore(ref, mcir.OpcodeLoadRegImm, []mcir.Operand{
			mcir.RegOperand(dst), op, bits,
		})
		if newOpcode, ok := immToRegOpcode(ref.Opcode); ok {
			newOps := append([]mcir.Operand(nil), ref.Ops()...)
			newOps[idx] = mcir.RegOperand(dst)
			storage.Rewrite(ref, newOpcode, newOps)
			return nil
		}
		ref.SetOperand(idx, mcir.RegOperand(dst))
		return nil
	default:
		return fmt.Errorf("legalize: cannot materialize operand kind %v into a register", op.Kind)
	}
}

// liveRegsOf returns every physical register ref already mentions, so a
// scratch-pick call never hands back a register the instruction itself
// is about to read or write.
func liveRegsOf(ref mcir.Ref) []mcir.MicroReg {
	var out []mcir.MicroReg
	for _, idx := range mcir.CollectRegOperands(ref) {
		out = append(out, ref.Reg(idx))
	}
	return out
}
