package encoder

import "github.com/solder-lang/mcbackend/mcir"

// emitDisp writes the displacement bytes a chooseDispMode call already
// decided on: nothing for modMemNoDisp, one byte for modDisp8 (or when
// force is set), four for modDisp32.
func (e *Encoder) emitDisp(mod byte, disp int32, force bool) {
	if force || mod == modDisp8 {
		e.emitByte(byte(int8(disp)))
		return
	}
	if mod == modDisp32 {
		e.emitU32(uint32(disp))
	}
}

// emitModRMMem writes the ModR/M (and SIB, if base demands one) plus
// displacement bytes for a plain [base+disp] memory operand whose
// register field (the other operand, or an opcode-group digit) is
// rfield.
func (e *Encoder) emitModRMMem(rfield byte, base mcir.MicroReg, disp int32) {
	mod, force := chooseDispMode(base, disp)
	if needsSIB(base) {
		e.emitByte(modRMMem(mod, rfield, modrmRMSIB))
		e.emitByte(sibByte(0, sibIndexNone, regField(base)))
		e.emitDisp(mod, disp, force)
		return
	}
	e.emitByte(modRMMem(mod, rfield, regField(base)))
	e.emitDisp(mod, disp, force)
}

// hasAmcComponent reports whether r names a real base/index register, as
// opposed to the NoBaseReg/InvalidReg sentinels AMC operands use to mark
// an absent component.
func hasAmcComponent(r mcir.MicroReg) bool {
	return r.IsValid() && r.Class() != mcir.RegClassNoBase
}

// emitModRMAmc writes the ModR/M+SIB+displacement bytes for a
// [base + index*scale + disp] addressing-mode-computation (AMC) operand.
// scale must be one of {1,2,4,8}; the legalizer/builder are responsible
// for never producing anything else.
func (e *Encoder) emitModRMAmc(rfield byte, base, index mcir.MicroReg, scale int, disp int32) {
	scaleField, ok := scaleLog2(scale)
	if !ok {
		panic("BUG: AMC scale must be 1, 2, 4, or 8")
	}
	indexField := byte(sibIndexNone)
	hasIndex := hasAmcComponent(index)
	if hasIndex {
		indexField = regField(index)
	}
	if !hasAmcComponent(base) {
		// No base register: mod=00, SIB base field forced to
		// SIB_NO_BASE, and the displacement is always a full disp32
		// regardless of its value (there is no "no displacement" form
		// here, since the address would otherwise be unspecified).
		e.emitByte(modRMMem(modMemNoDisp, rfield, modrmRMSIB))
		e.emitByte(sibByte(scaleField, indexField, sibNoBase))
		e.emitU32(uint32(disp))
		return
	}
	mod, force := chooseDispMode(base, disp)
	e.emitByte(modRMMem(mod, rfield, modrmRMSIB))
	e.emitByte(sibByte(scaleField, indexField, regField(base)))
	e.emitDisp(mod, disp, force)
}

func (e *Encoder) emitLoadRegMem(inst *mcir.MicroInstr) {
	dst, base := inst.Reg(0), inst.Reg(1)
	disp := int32(inst.Imm(2))
	bits := inst.Bits(3)
	rex, present := rexByte(bits, dst, base, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x8B)
	e.emitModRMMem(regField(dst), base, disp)
}

func (e *Encoder) emitLoadMemReg(inst *mcir.MicroInstr) {
	base := inst.Reg(0)
	disp := int32(inst.Imm(1))
	src := inst.Reg(2)
	bits := inst.Bits(3)
	rex, present := rexByte(bits, src, base, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x89)
	e.emitModRMMem(regField(src), base, disp)
}

func (e *Encoder) emitLoadMemImm(inst *mcir.MicroInstr) {
	base := inst.Reg(0)
	disp := int32(inst.Imm(1))
	imm := inst.Imm(2)
	bits := inst.Bits(3)
	rex, present := rexByte(bits, mcir.InvalidReg, base, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0xC7)
	e.emitModRMMem(0, base, disp)
	switch bits {
	case mcir.Bits8:
		e.emitByte(byte(imm))
	case mcir.Bits16:
		e.emitByte(byte(imm))
		e.emitByte(byte(imm >> 8))
	default:
		e.emitU32(uint32(imm))
	}
}

// emitLoadZeroExtRegReg/emitLoadSignedExtRegReg implement the
// LoadZeroExtRegReg/LoadSignedExtRegReg opcode family: movzx/movsx from
// an 8- or 16-bit source into a wider destination. A 32-bit source
// zero-extending into a 64-bit destination needs no movzx at all — any
// 32-bit write already clears the upper 32 bits on amd64 — so it is
// encoded as a plain 32-bit register move.
func (e *Encoder) emitLoadZeroExtRegReg(inst *mcir.MicroInstr) {
	dst, src := inst.Reg(0), inst.Reg(1)
	dstBits, srcBits := inst.Bits(2), inst.Bits(3)
	if srcBits == mcir.Bits32 {
		e.emitMoveRegRegBits(dst, src, mcir.Bits32)
		return
	}
	rex, present := rexByte(dstBits, dst, src, true, srcBits == mcir.Bits8 && mcir.IsByteRegNeedingRex(src))
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x0F)
	if srcBits == mcir.Bits8 {
		e.emitByte(0xB6)
	} else {
		e.emitByte(0xB7)
	}
	e.emitByte(modRMRegister(regField(dst), regField(src)))
}

func (e *Encoder) emitLoadSignedExtRegReg(inst *mcir.MicroInstr) {
	dst, src := inst.Reg(0), inst.Reg(1)
	dstBits, srcBits := inst.Bits(2), inst.Bits(3)
	rex, present := rexByte(dstBits, dst, src, true, srcBits == mcir.Bits8 && mcir.IsByteRegNeedingRex(src))
	if present {
		e.emitByte(rex)
	}
	if srcBits == mcir.Bits32 {
		e.emitByte(0x63) // movsxd
		e.emitByte(modRMRegister(regField(dst), regField(src)))
		return
	}
	e.emitByte(0x0F)
	if srcBits == mcir.Bits8 {
		e.emitByte(0xBE)
	} else {
		e.emitByte(0xBF)
	}
	e.emitByte(modRMRegister(regField(dst), regField(src)))
}

func (e *Encoder) emitLoadZeroExtRegMem(inst *mcir.MicroInstr) {
	dst, base := inst.Reg(0), inst.Reg(1)
	disp := int32(inst.Imm(2))
	dstBits, srcBits := inst.Bits(3), inst.Bits(4)
	if srcBits == mcir.Bits32 {
		rex, present := rexByte(mcir.Bits32, dst, base, true, false)
		if present {
			e.emitByte(rex)
		}
		e.emitByte(0x8B)
		e.emitModRMMem(regField(dst), base, disp)
		return
	}
	rex, present := rexByte(dstBits, dst, base, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x0F)
	if srcBits == mcir.Bits8 {
		e.emitByte(0xB6)
	} else {
		e.emitByte(0xB7)
	}
	e.emitModRMMem(regField(dst), base, disp)
}

func (e *Encoder) emitLoadSignedExtRegMem(inst *mcir.MicroInstr) {
	dst, base := inst.Reg(0), inst.Reg(1)
	disp := int32(inst.Imm(2))
	dstBits, srcBits := inst.Bits(3), inst.Bits(4)
	rex, present := rexByte(dstBits, dst, base, true, false)
	if present {
		e.emitByte(rex)
	}
	if srcBits == mcir.Bits32 {
		e.emitByte(0x63)
		e.emitModRMMem(regField(dst), base, disp)
		return
	}
	e.emitByte(0x0F)
	if srcBits == mcir.Bits8 {
		e.emitByte(0xBE)
	} else {
		e.emitByte(0xBF)
	}
	e.emitModRMMem(regField(dst), base, disp)
}

// emitMoveRegRegBits is emitLoadRegReg's byte-width-parameterized core,
// reused by the implicit-zero-extend case above.
func (e *Encoder) emitMoveRegRegBits(dst, src mcir.MicroReg, bits mcir.OpBits) {
	rex, present := rexByte(bits, src, dst, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x89)
	e.emitByte(modRMRegister(regField(src), regField(dst)))
}

// emitLoadAddrRegMem implements the register-relative lea form of
// LoadAddrRegMem (operand 2 is a literal displacement immediate). The
// builder's other use of this opcode — a data-segment address load,
// where operand 2 is a PatchSite — is resolved by the emit pass directly
// against AddrOfData before Emit is ever called, since only the pass
// layer holds the PatchSite-to-symbol-name mapping; reaching this
// function with a patch operand is a pass-layer bug.
func (e *Encoder) emitLoadAddrRegMem(inst *mcir.MicroInstr) {
	if inst.Ops()[2].Kind == mcir.OperandKindPatch {
		panic("BUG: emitLoadAddrRegMem given a data-symbol form; the emit pass must resolve this via AddrOfData instead")
	}
	dst := inst.Reg(0)
	base := inst.Reg(1)
	disp := int32(inst.Imm(2))
	rex, present := rexByte(mcir.Bits64, dst, base, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x8D)
	e.emitModRMMem(regField(dst), base, disp)
}

func (e *Encoder) emitLoadAddrAmcRegMem(inst *mcir.MicroInstr) {
	dst := inst.Reg(0)
	base := inst.Reg(1)
	index := inst.Reg(2)
	scale := int(inst.Imm(3))
	disp := int32(inst.Imm(4))
	rex, present := rexByteAmc(mcir.Bits64, dst, base, index, hasAmcComponent(base), hasAmcComponent(index))
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x8D)
	e.emitModRMAmc(regField(dst), base, index, scale, disp)
}

func (e *Encoder) emitLoadAmcRegMem(inst *mcir.MicroInstr) {
	dst := inst.Reg(0)
	base := inst.Reg(1)
	index := inst.Reg(2)
	scale := int(inst.Imm(3))
	disp := int32(inst.Imm(4))
	bits := inst.Bits(5)
	rex, present := rexByteAmc(bits, dst, base, index, hasAmcComponent(base), hasAmcComponent(index))
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x8B)
	e.emitModRMAmc(regField(dst), base, index, scale, disp)
}

func (e *Encoder) emitLoadAmcMemReg(inst *mcir.MicroInstr) {
	base := inst.Reg(0)
	index := inst.Reg(1)
	scale := int(inst.Imm(2))
	disp := int32(inst.Imm(3))
	src := inst.Reg(4)
	bits := inst.Bits(5)
	rex, present := rexByteAmc(bits, src, base, index, hasAmcComponent(base), hasAmcComponent(index))
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x89)
	e.emitModRMAmc(regField(src), base, index, scale, disp)
}

func (e *Encoder) emitLoadAmcMemImm(inst *mcir.MicroInstr) {
	base := inst.Reg(0)
	index := inst.Reg(1)
	scale := int(inst.Imm(2))
	disp := int32(inst.Imm(3))
	imm := inst.Imm(4)
	bits := inst.Bits(5)
	rex, present := rexByteAmc(bits, mcir.InvalidReg, base, index, hasAmcComponent(base), hasAmcComponent(index))
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0xC7)
	e.emitModRMAmc(0, base, index, scale, disp)
	switch bits {
	case mcir.Bits8:
		e.emitByte(byte(imm))
	case mcir.Bits16:
		e.emitByte(byte(imm))
		e.emitByte(byte(imm >> 8))
	default:
		e.emitU32(uint32(imm))
	}
}

func (e *Encoder) emitOpUnaryMem(inst *mcir.MicroInstr) {
	base := inst.Reg(0)
	disp := int32(inst.Imm(1))
	op := inst.MicroOp(2)
	bits := inst.Bits(3)
	var digit byte
	switch op {
	case mcir.OpNot:
		digit = 2
	case mcir.OpNeg:
		digit = 3
	default:
		panic("BUG: emitOpUnaryMem given an unsupported MicroOp")
	}
	rex, present := rexByte(bits, mcir.InvalidReg, base, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0xF7)
	e.emitModRMMem(digit, base, disp)
}

func (e *Encoder) emitOpBinaryRegMem(inst *mcir.MicroInstr) {
	dst, base := inst.Reg(0), inst.Reg(1)
	disp := int32(inst.Imm(2))
	op := inst.MicroOp(3)
	bits := inst.Bits(4)
	primary, ok := arithRegRegOpcode(op)
	if !ok {
		panic("BUG: emitOpBinaryRegMem given an op the legalizer should have rejected")
	}
	rex, present := rexByte(bits, dst, base, true, false)
	if present {
		e.emitByte(rex)
	}
	// The arithmetic group's "load" form (reg <- reg op mem) uses the
	// opcode two higher than the r/m,reg "store" form arithRegRegOpcode
	// returns: ADD r, r/m is 0x03, two more than ADD r/m, r's 0x01.
	e.emitByte(primary + 2)
	e.emitModRMMem(regField(dst), base, disp)
}

func (e *Encoder) emitOpBinaryMemReg(inst *mcir.MicroInstr) {
	base := inst.Reg(0)
	disp := int32(inst.Imm(1))
	src := inst.Reg(2)
	op := inst.MicroOp(3)
	bits := inst.Bits(4)
	primary, ok := arithRegRegOpcode(op)
	if !ok {
		panic("BUG: emitOpBinaryMemReg given an op the legalizer should have rejected")
	}
	rex, present := rexByte(bits, src, base, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(primary)
	e.emitModRMMem(regField(src), base, disp)
}

func (e *Encoder) emitOpBinaryMemImm(inst *mcir.MicroInstr) {
	base := inst.Reg(0)
	disp := int32(inst.Imm(1))
	imm := inst.Imm(2)
	op := inst.MicroOp(3)
	bits := inst.Bits(4)
	digit := arithImmDigit(op)
	rex, present := rexByte(bits, mcir.InvalidReg, base, true, false)
	if present {
		e.emitByte(rex)
	}
	if mcir.CanEncode8(imm, bits) && bits != mcir.Bits8 {
		e.emitByte(0x83)
		e.emitModRMMem(digit, base, disp)
		e.emitByte(byte(imm))
		return
	}
	e.emitByte(0x81)
	e.emitModRMMem(digit, base, disp)
	switch bits {
	case mcir.Bits8:
		e.emitByte(byte(imm))
	case mcir.Bits16:
		e.emitByte(byte(imm))
		e.emitByte(byte(imm >> 8))
	default:
		e.emitU32(uint32(imm))
	}
}

func (e *Encoder) emitCmpMemReg(inst *mcir.MicroInstr) {
	base := inst.Reg(0)
	disp := int32(inst.Imm(1))
	src := inst.Reg(2)
	bits := inst.Bits(3)
	rex, present := rexByte(bits, src, base, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x39)
	e.emitModRMMem(regField(src), base, disp)
}

func (e *Encoder) emitCmpMemImm(inst *mcir.MicroInstr) {
	base := inst.Reg(0)
	disp := int32(inst.Imm(1))
	imm := inst.Imm(2)
	bits := inst.Bits(3)
	rex, present := rexByte(bits, mcir.InvalidReg, base, true, false)
	if present {
		e.emitByte(rex)
	}
	if mcir.CanEncode8(imm, bits) && bits != mcir.Bits8 {
		e.emitByte(0x83)
		e.emitModRMMem(7, base, disp)
		e.emitByte(byte(imm))
		return
	}
	e.emitByte(0x81)
	e.emitModRMMem(7, base, disp)
	switch bits {
	case mcir.Bits8:
		e.emitByte(byte(imm))
	case mcir.Bits16:
		e.emitByte(byte(imm))
		e.emitByte(byte(imm >> 8))
	default:
		e.emitU32(uint32(imm))
	}
}

// emitLoadCondRegReg implements the cmov-like conditional-load form:
// `dst := cond ? src : dst`.
func (e *Encoder) emitLoadCondRegReg(inst *mcir.MicroInstr) {
	dst, src := inst.Reg(0), inst.Reg(1)
	cond := inst.Cond(2)
	bits := inst.Bits(3)
	rex, present := rexByte(bits, dst, src, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x0F)
	e.emitByte(0x40 | condCC(cond))
	e.emitByte(modRMRegister(regField(dst), regField(src)))
}

// emitOpTernaryRegRegReg implements the non-destructive 3-address form
// `dst := lhs op rhs` as a two-instruction lowering (move the left
// operand into dst if it isn't already there, then apply the destructive
// binary op against rhs) — x86-64 has no true 3-address ALU form outside
// LEA's restricted add shape, so this is the general path every other
// micro-pass's output funnels through once the ternary has survived to
// emission.
func (e *Encoder) emitOpTernaryRegRegReg(inst *mcir.MicroInstr) {
	dst, lhs, rhs := inst.Reg(0), inst.Reg(1), inst.Reg(2)
	op := inst.MicroOp(3)
	bits := inst.Bits(4)
	if dst != lhs {
		e.emitMoveRegRegBits(dst, lhs, bits)
	}
	if primary, ok := arithRegRegOpcode(op); ok {
		rex, present := rexByte(bits, rhs, dst, true, false)
		if present {
			e.emitByte(rex)
		}
		e.emitByte(primary)
		e.emitByte(modRMRegister(regField(rhs), regField(dst)))
		return
	}
	panic("BUG: emitOpTernaryRegRegReg given an op the legalizer should have rejected")
}
