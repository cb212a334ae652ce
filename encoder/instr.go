package encoder

import "github.com/solder-lang/mcbackend/mcir"

// Probe reports whether inst can be encoded as-is, without committing any
// bytes. The legalize pass calls this before Emit on every instruction,
// and again after applying the returned hint's rewrite, until it sees
// EncodeOK or EncodeNotSupported (§4.10).
func (e *Encoder) Probe(inst *mcir.MicroInstr) CpuEncodeResult {
	switch inst.Opcode {
	case mcir.OpcodeOpBinaryRegImm, mcir.OpcodeOpBinaryMemImm:
		return probeOpBinaryRegImm(inst)
	case mcir.OpcodeOpBinaryRegReg, mcir.OpcodeOpBinaryRegMem, mcir.OpcodeOpBinaryMemReg:
		return probeOpBinaryFamily(inst)
	case mcir.OpcodeCmpRegImm, mcir.OpcodeCmpMemImm:
		return probeCmpImm(inst)
	case mcir.OpcodeLoadMemImm:
		return probeLoadMemImm(inst)
	default:
		return EncodeOK
	}
}

// probeOpBinaryRegImm enforces the shift/rotate-uses-RCX and
// mul-div-uses-RAX:RDX ABI constraints, and checks that non-shift
// immediates fit a signed 32-bit encoding. Shared between
// OpcodeOpBinaryRegImm ([dst, imm, op, bits]) and OpcodeOpBinaryMemImm
// ([base, disp, imm, op, bits]); the immediate always sits 3 slots before
// the end in both shapes, matching the index moveOperandToReg/
// EncodeRight2Reg already assume generically.
func probeOpBinaryRegImm(inst *mcir.MicroInstr) CpuEncodeResult {
	n := len(inst.Ops())
	op := inst.MicroOp(n - 2)
	bits := inst.Bits(n - 1)
	if op.IsDivMulFamily() {
		return EncodeLeft2Rax
	}
	if op.IsShiftFamily() {
		return EncodeRight2Rcx
	}
	imm := inst.Imm(n - 3)
	if !mcir.CanEncode8(imm, bits) && bits != mcir.Bits8 && bits != mcir.Bits16 {
		if !fitsSigned32(imm, bits) {
			return EncodeRight2Reg
		}
	}
	return EncodeOK
}

func probeOpBinaryFamily(inst *mcir.MicroInstr) CpuEncodeResult {
	op := inst.MicroOp(len(inst.Ops()) - 2)
	if op.IsDivMulFamily() {
		return EncodeLeft2Rax
	}
	if op.IsShiftFamily() {
		return EncodeRight2Rcx
	}
	return EncodeOK
}

func probeCmpImm(inst *mcir.MicroInstr) CpuEncodeResult {
	bits := inst.Bits(inst.NumOperands() - 1)
	imm := inst.Imm(inst.NumOperands() - 2)
	if !fitsSigned32(imm, bits) {
		return EncodeRight2Reg
	}
	return EncodeOK
}

func probeLoadMemImm(inst *mcir.MicroInstr) CpuEncodeResult {
	bits := inst.Bits(inst.NumOperands() - 1)
	imm := inst.Imm(inst.NumOperands() - 2)
	if bits == mcir.Bits64 && !fitsSigned32(imm, bits) {
		return EncodeRight2Reg
	}
	return EncodeOK
}

// fitsSigned32 reports whether value, interpreted at the given width,
// fits the signed 32-bit immediate form x86-64 sign-extends into 64 bits.
func fitsSigned32(value uint64, bits mcir.OpBits) bool {
	if bits != mcir.Bits64 {
		return true
	}
	s := mcir.ToSigned(value, bits)
	return s >= -(1<<31) && s <= (1<<31)-1
}

// getReadRegisters returns the implicit physical registers an instruction
// reads beyond its explicit operands: the shift family reads CL from RCX,
// and the mul/div/mod family reads both RAX and RDX (§4.9, §8).
func getReadRegisters(inst *mcir.MicroInstr) []mcir.MicroReg {
	op, ok := instrMicroOp(inst)
	if !ok {
		return nil
	}
	switch {
	case op.IsShiftFamily():
		return []mcir.MicroReg{mcir.RCX}
	case op.IsDivMulFamily():
		return []mcir.MicroReg{mcir.RAX, mcir.RDX}
	default:
		return nil
	}
}

// getWriteRegisters returns the implicit physical registers an
// instruction writes beyond its explicit operands.
func getWriteRegisters(inst *mcir.MicroInstr) []mcir.MicroReg {
	op, ok := instrMicroOp(inst)
	if !ok {
		return nil
	}
	switch {
	case op.IsDivMulFamily():
		return []mcir.MicroReg{mcir.RAX, mcir.RDX}
	default:
		return nil
	}
}

func instrMicroOp(inst *mcir.MicroInstr) (mcir.MicroOp, bool) {
	switch inst.Opcode {
	case mcir.OpcodeOpUnaryReg, mcir.OpcodeOpUnaryMem,
		mcir.OpcodeOpBinaryRegReg, mcir.OpcodeOpBinaryRegImm, mcir.OpcodeOpBinaryRegMem,
		mcir.OpcodeOpBinaryMemReg, mcir.OpcodeOpBinaryMemImm:
		return inst.MicroOp(len(inst.Ops()) - 2), true
	default:
		return 0, false
	}
}
