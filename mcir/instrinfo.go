package mcir

// MemShape describes the memory-addressing operand indices of an
// instruction, as returned by GetMemBaseOffsetOperandIndices. IndexIdx and
// ScaleIdx are -1 when the instruction addresses [base+disp] rather than
// a scaled-indexed (AMC) form.
type MemShape struct {
	BaseIdx  int
	DispIdx  int
	IndexIdx int
	ScaleIdx int
}

const noIdx = -1

// CollectUseDef returns the operand indices that are register uses and
// the operand indices that are register defines for inst, dispatching
// purely on Opcode. This is the single place that knows each opcode's
// operand layout; no pass should hard-code an index of its own.
func CollectUseDef(inst *MicroInstr) (uses, defs []int) {
	switch inst.Opcode {
	case OpcodeLoadRegImm:
		return nil, []int{0}
	case OpcodeLoadRegReg:
		return []int{1}, []int{0}
	case OpcodeLoadRegMem:
		return []int{1}, []int{0} // 1: base
	case OpcodeLoadMemReg:
		return []int{0, 2}, nil // base, src; memory is not a register def
	case OpcodeLoadMemImm:
		return []int{0}, nil
	case OpcodeLoadZeroExtRegReg, OpcodeLoadSignedExtRegReg:
		return []int{1}, []int{0}
	case OpcodeLoadZeroExtRegMem, OpcodeLoadSignedExtRegMem:
		return []int{1}, []int{0} // 1: base
	case OpcodeLoadAddrRegMem:
		return []int{1}, []int{0}
	case OpcodeLoadAddrAmcRegMem:
		return []int{1, 2}, []int{0} // base, index
	case OpcodeLoadAmcRegMem:
		return []int{1, 2}, []int{0} // base, index
	case OpcodeLoadAmcMemReg:
		return []int{0, 1, 4}, nil // base, index, src
	case OpcodeLoadAmcMemImm:
		return []int{0, 1}, nil // base, index
	case OpcodeOpUnaryReg:
		return []int{0}, []int{0}
	case OpcodeOpUnaryMem:
		return []int{0}, nil // base; RMW on memory, no register def
	case OpcodeOpBinaryRegReg:
		return []int{0, 1}, []int{0}
	case OpcodeOpBinaryRegImm:
		return []int{0}, []int{0}
	case OpcodeOpBinaryRegMem:
		return []int{0, 1}, []int{0} // dst (also a use, RMW), base
	case OpcodeOpBinaryMemReg:
		return []int{0, 2}, nil // base, src
	case OpcodeOpBinaryMemImm:
		return []int{0}, nil // base
	case OpcodeOpTernaryRegRegReg:
		return []int{1, 2}, []int{0}
	case OpcodeCmpRegReg:
		return []int{0, 1}, nil
	case OpcodeCmpRegImm:
		return []int{0}, nil
	case OpcodeCmpRegZero:
		return []int{0}, nil
	case OpcodeCmpMemReg:
		return []int{0, 2}, nil // base, src
	case OpcodeCmpMemImm:
		return []int{0}, nil // base
	case OpcodeSetCondReg:
		return nil, []int{0}
	case OpcodeLoadCondRegReg:
		return []int{1}, []int{0}
	case OpcodeClearReg:
		return nil, []int{0}
	case OpcodeJumpReg:
		return []int{0}, nil
	case OpcodeJumpTable:
		return []int{0}, nil
	case OpcodeJumpCond, OpcodeJumpCondImm, OpcodeRet, OpcodeLabel, OpcodeDebug:
		return nil, nil
	default:
		panic("BUG: unhandled opcode in CollectUseDef")
	}
}

// CollectRegOperands returns every operand index that holds a register,
// regardless of whether it is a use or a define. Register allocation uses
// this to rewrite every virtual-register occurrence without needing to
// separately reason about use/def for the rewrite itself.
func CollectRegOperands(inst *MicroInstr) []int {
	var out []int
	ops := inst.Ops()
	for idx, op := range ops {
		if op.Kind == OperandKindReg && op.Reg.IsValid() {
			out = append(out, idx)
		}
	}
	return out
}

// GetMemBaseOffsetOperandIndices returns the memory-addressing operand
// layout for inst, and ok=false if inst does not address memory at all.
func GetMemBaseOffsetOperandIndices(inst *MicroInstr) (shape MemShape, ok bool) {
	switch inst.Opcode {
	case OpcodeLoadRegMem, OpcodeLoadZeroExtRegMem, OpcodeLoadSignedExtRegMem:
		return MemShape{BaseIdx: 1, DispIdx: 2, IndexIdx: noIdx, ScaleIdx: noIdx}, true
	case OpcodeLoadMemReg:
		return MemShape{BaseIdx: 0, DispIdx: 1, IndexIdx: noIdx, ScaleIdx: noIdx}, true
	case OpcodeLoadMemImm:
		return MemShape{BaseIdx: 0, DispIdx: 1, IndexIdx: noIdx, ScaleIdx: noIdx}, true
	case OpcodeLoadAddrRegMem:
		return MemShape{BaseIdx: 1, DispIdx: 2, IndexIdx: noIdx, ScaleIdx: noIdx}, true
	case OpcodeLoadAddrAmcRegMem:
		return MemShape{BaseIdx: 1, DispIdx: 4, IndexIdx: 2, ScaleIdx: 3}, true
	case OpcodeLoadAmcRegMem:
		return MemShape{BaseIdx: 1, DispIdx: 4, IndexIdx: 2, ScaleIdx: 3}, true
	case OpcodeLoadAmcMemReg:
		return MemShape{BaseIdx: 0, DispIdx: 3, IndexIdx: 1, ScaleIdx: 2}, true
	case OpcodeLoadAmcMemImm:
		return MemShape{BaseIdx: 0, DispIdx: 3, IndexIdx: 1, ScaleIdx: 2}, true
	case OpcodeOpUnaryMem:
		return MemShape{BaseIdx: 0, DispIdx: 1, IndexIdx: noIdx, ScaleIdx: noIdx}, true
	case OpcodeOpBinaryRegMem:
		return MemShape{BaseIdx: 1, DispIdx: 2, IndexIdx: noIdx, ScaleIdx: noIdx}, true
	case OpcodeOpBinaryMemReg:
		return MemShape{BaseIdx: 0, DispIdx: 1, IndexIdx: noIdx, ScaleIdx: noIdx}, true
	case OpcodeOpBinaryMemImm:
		return MemShape{BaseIdx: 0, DispIdx: 1, IndexIdx: noIdx, ScaleIdx: noIdx}, true
	case OpcodeCmpMemReg:
		return MemShape{BaseIdx: 0, DispIdx: 1, IndexIdx: noIdx, ScaleIdx: noIdx}, true
	case OpcodeCmpMemImm:
		return MemShape{BaseIdx: 0, DispIdx: 1, IndexIdx: noIdx, ScaleIdx: noIdx}, true
	default:
		return MemShape{}, false
	}
}

// DefinesCpuFlags reports whether inst defines (overwrites) the processor
// condition flags. Compares, clears, and arithmetic/shift ops (except the
// flag-transparent Not/Bswap forms) all define flags.
func DefinesCpuFlags(inst *MicroInstr) bool {
	switch inst.Opcode {
	case OpcodeCmpRegReg, OpcodeCmpRegImm, OpcodeCmpRegZero, OpcodeCmpMemReg, OpcodeCmpMemImm:
		return true
	case OpcodeClearReg:
		return true
	case OpcodeOpUnaryReg, OpcodeOpUnaryMem:
		op := inst.MicroOp(len(inst.Ops()) - 2)
		return op != OpNot && op != OpBswap
	case OpcodeOpBinaryRegReg, OpcodeOpBinaryRegImm, OpcodeOpBinaryRegMem, OpcodeOpBinaryMemReg, OpcodeOpBinaryMemImm:
		op := inst.MicroOp(len(inst.Ops()) - 2)
		return !op.IsFloat()
	case OpcodeOpTernaryRegRegReg:
		return false
	default:
		return false
	}
}

// UsesCpuFlags reports whether inst reads the processor condition flags
// set by a preceding instruction: conditional jumps, setcc, and the
// cmov-like conditional-load form.
func UsesCpuFlags(inst *MicroInstr) bool {
	switch inst.Opcode {
	case OpcodeJumpCond, OpcodeJumpCondImm:
		return inst.Cond(0) != CondUnconditional
	case OpcodeSetCondReg:
		return true
	case OpcodeLoadCondRegReg:
		return true
	default:
		return false
	}
}
