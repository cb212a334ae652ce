package encoder

import "github.com/solder-lang/mcbackend/mcir"

// arithRegRegOpcode returns the primary byte of the r/m,reg form of the
// /r arithmetic group for a MicroOp (ADD=0x01, OR=0x09, AND=0x21,
// SUB=0x29, XOR=0x31); any other MicroOp reports ok=false.
func arithRegRegOpcode(op mcir.MicroOp) (primary byte, ok bool) {
	switch op {
	case mcir.OpAdd:
		return 0x01, true
	case mcir.OpOr:
		return 0x09, true
	case mcir.OpAnd:
		return 0x21, true
	case mcir.OpSubtract:
		return 0x29, true
	case mcir.OpXor:
		return 0x31, true
	default:
		return 0, false
	}
}

// shiftGroupReg returns the /digit sub-opcode of the 0xD3 shift group for
// a shift/rotate MicroOp.
func shiftGroupReg(op mcir.MicroOp) (digit byte, ok bool) {
	switch op {
	case mcir.OpRol:
		return 0, true
	case mcir.OpRor:
		return 1, true
	case mcir.OpShl, mcir.OpSal:
		return 4, true
	case mcir.OpShr:
		return 5, true
	case mcir.OpSar:
		return 7, true
	default:
		return 0, false
	}
}

// condCC maps a MicroCond to the 4-bit Jcc/SETcc condition code.
func condCC(c mcir.MicroCond) byte {
	switch c {
	case mcir.CondEqual, mcir.CondZero:
		return 0x4
	case mcir.CondNotEqual, mcir.CondNotZero:
		return 0x5
	case mcir.CondAbove:
		return 0x7
	case mcir.CondAboveOrEqual:
		return 0x3
	case mcir.CondBelow:
		return 0x2
	case mcir.CondBelowOrEqual:
		return 0x6
	case mcir.CondNotAbove:
		return 0x6
	case mcir.CondGreater:
		return 0xF
	case mcir.CondGreaterOrEqual:
		return 0xD
	case mcir.CondLess:
		return 0xC
	case mcir.CondLessOrEqual:
		return 0xE
	default:
		panic("BUG: condCC given CondUnconditional")
	}
}

// Emit appends the machine code for inst, which Probe must already have
// reported EncodeOK for. It returns the number of bytes written.
func (e *Encoder) Emit(inst *mcir.MicroInstr) int {
	start := e.Offset()
	switch inst.Opcode {
	case mcir.OpcodeLoadRegImm:
		e.emitLoadRegImm(inst)
	case mcir.OpcodeLoadRegReg:
		e.emitLoadRegReg(inst)
	case mcir.OpcodeLoadRegMem:
		e.emitLoadRegMem(inst)
	case mcir.OpcodeLoadMemReg:
		e.emitLoadMemReg(inst)
	case mcir.OpcodeLoadMemImm:
		e.emitLoadMemImm(inst)
	case mcir.OpcodeLoadZeroExtRegReg:
		e.emitLoadZeroExtRegReg(inst)
	case mcir.OpcodeLoadSignedExtRegReg:
		e.emitLoadSignedExtRegReg(inst)
	case mcir.OpcodeLoadZeroExtRegMem:
		e.emitLoadZeroExtRegMem(inst)
	case mcir.OpcodeLoadSignedExtRegMem:
		e.emitLoadSignedExtRegMem(inst)
	case mcir.OpcodeLoadAddrRegMem:
		e.emitLoadAddrRegMem(inst)
	case mcir.OpcodeLoadAddrAmcRegMem:
		e.emitLoadAddrAmcRegMem(inst)
	case mcir.OpcodeLoadAmcRegMem:
		e.emitLoadAmcRegMem(inst)
	case mcir.OpcodeLoadAmcMemReg:
		e.emitLoadAmcMemReg(inst)
	case mcir.OpcodeLoadAmcMemImm:
		e.emitLoadAmcMemImm(inst)
	case mcir.OpcodeClearReg:
		e.emitClearReg(inst)
	case mcir.OpcodeOpUnaryMem:
		e.emitOpUnaryMem(inst)
	case mcir.OpcodeOpBinaryRegReg:
		e.emitOpBinaryRegReg(inst)
	case mcir.OpcodeOpBinaryRegImm:
		e.emitOpBinaryRegImm(inst)
	case mcir.OpcodeOpBinaryRegMem:
		e.emitOpBinaryRegMem(inst)
	case mcir.OpcodeOpBinaryMemReg:
		e.emitOpBinaryMemReg(inst)
	case mcir.OpcodeOpBinaryMemImm:
		e.emitOpBinaryMemImm(inst)
	case mcir.OpcodeOpTernaryRegRegReg:
		e.emitOpTernaryRegRegReg(inst)
	case mcir.OpcodeOpUnaryReg:
		e.emitOpUnaryReg(inst)
	case mcir.OpcodeCmpRegReg:
		e.emitCmpRegReg(inst)
	case mcir.OpcodeCmpRegImm:
		e.emitCmpRegImm(inst)
	case mcir.OpcodeCmpRegZero:
		e.emitCmpRegZero(inst)
	case mcir.OpcodeCmpMemReg:
		e.emitCmpMemReg(inst)
	case mcir.OpcodeCmpMemImm:
		e.emitCmpMemImm(inst)
	case mcir.OpcodeSetCondReg:
		e.emitSetCondReg(inst)
	case mcir.OpcodeLoadCondRegReg:
		e.emitLoadCondRegReg(inst)
	case mcir.OpcodeJumpCond:
		e.emitJumpCond(inst)
	case mcir.OpcodeJumpCondImm:
		e.emitJumpCond(inst)
	case mcir.OpcodeJumpReg:
		e.emitJumpOrCall(inst)
	case mcir.OpcodeRet:
		e.emitByte(0xC3)
	case mcir.OpcodeLabel:
		if inst.NumOperands() > 0 && inst.Ops()[0].Kind == mcir.OperandKindPatch {
			e.DefineLabel(inst.Ops()[0].Patch)
		}
	case mcir.OpcodeDebug:
		// No machine code; the marker leaves no trace in the text buffer.
	default:
		panic("BUG: Emit called on an opcode Probe never cleared")
	}
	return int(e.Offset() - start)
}

func (e *Encoder) emitLoadRegImm(inst *mcir.MicroInstr) {
	dst := inst.Reg(0)
	imm := inst.Imm(1)
	bits := inst.Bits(2)
	e.emitRexIfNeeded(bits, mcir.InvalidReg, dst, false)
	if bits == mcir.Bits64 {
		e.emitByte(0xB8 + regField(dst))
		e.emitU64(imm)
		return
	}
	e.emitByte(0xB8 + regField(dst))
	e.emitU32(uint32(imm))
}

func (e *Encoder) emitLoadRegReg(inst *mcir.MicroInstr) {
	dst, src := inst.Reg(0), inst.Reg(1)
	bits := inst.Bits(2)
	rex, present := rexByte(bits, src, dst, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x89)
	e.emitByte(modRMRegister(regField(src), regField(dst)))
}

func (e *Encoder) emitClearReg(inst *mcir.MicroInstr) {
	dst := inst.Reg(0)
	rex, present := rexByte(mcir.Bits32, dst, dst, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x31)
	e.emitByte(modRMRegister(regField(dst), regField(dst)))
}

func (e *Encoder) emitOpBinaryRegReg(inst *mcir.MicroInstr) {
	dst, src := inst.Reg(0), inst.Reg(1)
	op := inst.MicroOp(2)
	bits := inst.Bits(3)
	if primary, ok := arithRegRegOpcode(op); ok {
		rex, present := rexByte(bits, src, dst, true, false)
		if present {
			e.emitByte(rex)
		}
		e.emitByte(primary)
		e.emitByte(modRMRegister(regField(src), regField(dst)))
		return
	}
	if digit, ok := shiftGroupReg(op); ok {
		rex, present := rexByte(bits, mcir.InvalidReg, dst, true, false)
		if present {
			e.emitByte(rex)
		}
		e.emitByte(0xD3)
		e.emitByte(modRMRegister(digit, regField(dst)))
		return
	}
	panic("BUG: emitOpBinaryRegReg given an op Probe should have legalized")
}

func (e *Encoder) emitOpBinaryRegImm(inst *mcir.MicroInstr) {
	dst := inst.Reg(0)
	imm := inst.Imm(1)
	op := inst.MicroOp(2)
	bits := inst.Bits(3)
	if digit, ok := shiftGroupReg(op); ok {
		rex, present := rexByte(bits, mcir.InvalidReg, dst, true, false)
		if present {
			e.emitByte(rex)
		}
		e.emitByte(0xC1)
		e.emitByte(modRMRegister(digit, regField(dst)))
		e.emitByte(byte(imm))
		return
	}
	digit := arithImmDigit(op)
	rex, present := rexByte(bits, mcir.InvalidReg, dst, true, false)
	if present {
		e.emitByte(rex)
	}
	if mcir.CanEncode8(imm, bits) {
		e.emitByte(0x83)
		e.emitByte(modRMRegister(digit, regField(dst)))
		e.emitByte(byte(imm))
		return
	}
	e.emitByte(0x81)
	e.emitByte(modRMRegister(digit, regField(dst)))
	e.emitU32(uint32(imm))
}

func arithImmDigit(op mcir.MicroOp) byte {
	switch op {
	case mcir.OpAdd:
		return 0
	case mcir.OpOr:
		return 1
	case mcir.OpAnd:
		return 4
	case mcir.OpSubtract:
		return 5
	case mcir.OpXor:
		return 6
	default:
		panic("BUG: arithImmDigit given an unsupported MicroOp")
	}
}

func (e *Encoder) emitOpUnaryReg(inst *mcir.MicroInstr) {
	dst := inst.Reg(0)
	op := inst.MicroOp(1)
	bits := inst.Bits(2)
	rex, present := rexByte(bits, mcir.InvalidReg, dst, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0xF7)
	var digit byte
	switch op {
	case mcir.OpNot:
		digit = 2
	case mcir.OpNeg:
		digit = 3
	default:
		panic("BUG: emitOpUnaryReg given an unsupported MicroOp")
	}
	e.emitByte(modRMRegister(digit, regField(dst)))
}

func (e *Encoder) emitCmpRegReg(inst *mcir.MicroInstr) {
	a, b := inst.Reg(0), inst.Reg(1)
	bits := inst.Bits(2)
	rex, present := rexByte(bits, b, a, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x39)
	e.emitByte(modRMRegister(regField(b), regField(a)))
}

func (e *Encoder) emitCmpRegImm(inst *mcir.MicroInstr) {
	a := inst.Reg(0)
	imm := inst.Imm(1)
	bits := inst.Bits(2)
	rex, present := rexByte(bits, mcir.InvalidReg, a, true, false)
	if present {
		e.emitByte(rex)
	}
	if mcir.CanEncode8(imm, bits) {
		e.emitByte(0x83)
		e.emitByte(modRMRegister(7, regField(a)))
		e.emitByte(byte(imm))
		return
	}
	e.emitByte(0x81)
	e.emitByte(modRMRegister(7, regField(a)))
	e.emitU32(uint32(imm))
}

func (e *Encoder) emitCmpRegZero(inst *mcir.MicroInstr) {
	a := inst.Reg(0)
	bits := inst.Bits(1)
	rex, present := rexByte(bits, a, a, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x85)
	e.emitByte(modRMRegister(regField(a), regField(a)))
}

func (e *Encoder) emitSetCondReg(inst *mcir.MicroInstr) {
	dst := inst.Reg(0)
	cond := inst.Cond(1)
	rex, present := rexByte(mcir.Bits8, mcir.InvalidReg, dst, true, mcir.IsExtendedGPR(dst))
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0x0F)
	e.emitByte(0x90 | condCC(cond))
	e.emitByte(modRMRegister(0, regField(dst)))
}

// emitJumpCond emits a near (rel32) Jcc, or a JMP when the condition is
// CondUnconditional, recording a deferred patch against the target's
// PatchSite operand.
func (e *Encoder) emitJumpCond(inst *mcir.MicroInstr) {
	cond := inst.Cond(0)
	target := inst.Ops()[len(inst.Ops())-1].Patch
	if cond == mcir.CondUnconditional {
		e.emitByte(0xE9)
		site := e.Offset()
		e.emitU32(0)
		e.recordJumpPatch(site, 4, target)
		return
	}
	e.emitByte(0x0F)
	e.emitByte(0x80 | condCC(cond))
	site := e.Offset()
	e.emitU32(0)
	e.recordJumpPatch(site, 4, target)
}

// emitJumpOrCall emits either an indirect call through a register
// (IsCall with a real register target) or an indirect jump through a
// register. A call carrying a PatchSite (CallLocal/CallExtern) names a
// direct call the emit pass must resolve via EncodeCallLocal/
// EncodeCallExtern before Emit is reached at all — this function only
// ever sees the register-indirect forms.
func (e *Encoder) emitJumpOrCall(inst *mcir.MicroInstr) {
	if inst.NumOperands() > 2 {
		panic("BUG: emitJumpOrCall given a direct call site; the emit pass must resolve this via EncodeCallLocal/EncodeCallExtern instead")
	}
	target := inst.Reg(0)
	rex, present := rexByte(mcir.Bits64, mcir.InvalidReg, target, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0xFF)
	if inst.IsCall() {
		e.emitByte(modRMRegister(2, regField(target)))
		return
	}
	e.emitByte(modRMRegister(4, regField(target)))
}

func (e *Encoder) emitRexIfNeeded(bits mcir.OpBits, reg, rm mcir.MicroReg, hasRM bool) {
	rex, present := rexByte(bits, reg, rm, hasRM, false)
	if present {
		e.emitByte(rex)
	}
}

// regField extracts the 3-bit ModR/M field from a physical register
// (REX.R/B supplies the 4th bit separately).
func regField(r mcir.MicroReg) byte {
	return byte(r.Index() & 7)
}
