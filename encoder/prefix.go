package encoder

import "github.com/solder-lang/mcbackend/mcir"

// ModRM addressing modes (§4.12).
const (
	modRegister     = 0b11
	modDisp8        = 0b01
	modDisp32       = 0b10
	modMemNoDisp    = 0b00
	modrmRMSIB      = 0b100 // r/m field value that signals SIB-byte addressing
	sibNoBase       = 0b101 // SIB base field value meaning "no base, disp32"
	sibIndexNone    = 0b100 // SIB index field value meaning "no index"
)

// rexByte computes the REX prefix for an instruction whose operand width
// is opBits, whose reg-field register is regField, and whose rm-field
// register (if any) is rmField. w/r/x/b are combined per the x86-64
// manual; hasRM is false for register-direct reg-only forms that don't
// consult an rm register class.
func rexByte(opBits mcir.OpBits, regField mcir.MicroReg, rmField mcir.MicroReg, hasRM bool, forceByteReg bool) (b byte, present bool) {
	var w, r, x, base byte
	if opBits == mcir.Bits64 {
		w = 1
	}
	if regField.IsValid() && mcir.IsExtendedGPR(regField) {
		r = 1
	}
	if hasRM && rmField.IsValid() && mcir.IsExtendedGPR(rmField) {
		base = 1
	}
	rex := byte(0x40) | w<<3 | r<<2 | x<<1 | base
	needed := w == 1 || r == 1 || base == 1 || forceByteReg
	return rex, needed
}

// modRMRegister builds the ModR/M byte for a register-direct operand pair.
func modRMRegister(regField, rmField byte) byte {
	return byte(modRegister<<6) | (regField&7)<<3 | (rmField & 7)
}

// modRMMem builds the ModR/M byte for a [base+disp] memory operand, given
// the chosen displacement mode.
func modRMMem(mod byte, regField byte, rmField byte) byte {
	return mod<<6 | (regField&7)<<3 | (rmField & 7)
}

// sibByte builds a SIB byte from an encoded scale (0=1,1=2,2=4,3=8), an
// index register field (sibIndexNone if absent), and a base register
// field (sibNoBase if absent).
func sibByte(scaleLog2 byte, indexField byte, baseField byte) byte {
	return scaleLog2<<6 | (indexField&7)<<3 | (baseField & 7)
}

// scaleLog2 converts a {1,2,4,8} scale factor to the 2-bit SIB encoding.
func scaleLog2(scale int) (byte, bool) {
	switch scale {
	case 1:
		return 0, true
	case 2:
		return 1, true
	case 4:
		return 2, true
	case 8:
		return 3, true
	default:
		return 0, false
	}
}

// chooseDispMode decides which of the three ModR/M memory modes a
// [base+disp] access needs: Register is never applicable here; no
// displacement (mod=00) when disp is zero and base is neither RBP nor
// R13; Displacement8 when disp fits signed 8 bits; Displacement32
// otherwise. RBP or R13 with zero displacement still needs a forced
// disp8=0 byte (§4.12, §8 boundary behavior), which this reports via
// forceDisp8.
func chooseDispMode(base mcir.MicroReg, disp int32) (mod byte, forceDisp8 bool) {
	// RBP and R13 both encode to field value 5 in ModR/M.rm (and in
	// SIB.base); mod=00 with that field value means RIP-relative, not
	// "no displacement", so either register needs a forced disp8=0.
	needsForce := base.Class() == mcir.RegClassPhysInt && base.Index()&7 == 5
	if disp == 0 && !needsForce {
		return modMemNoDisp, false
	}
	if disp == 0 && needsForce {
		return modDisp8, true
	}
	if disp >= -128 && disp <= 127 {
		return modDisp8, false
	}
	return modDisp32, false
}

// needsSIB reports whether addressing through base requires a SIB byte:
// RSP and R12 always do (§4.12, §8 boundary behavior), since their
// encoding in the r/m field would otherwise collide with SIB/RIP-relative
// escapes.
func needsSIB(base mcir.MicroReg) bool {
	if base.Class() != mcir.RegClassPhysInt {
		return false
	}
	idx := base.Index()
	return idx == 4 || idx == 12 // rsp, r12
}

const (
	prefixOperandSize16 = 0x66
	prefixAddressSize32 = 0x67
	prefixRepSSE        = 0xF3
	prefixRepNESSE      = 0xF2
	prefixLock          = 0xF0
)

// rexByteAmc computes the REX prefix for a scaled-indexed ([base +
// index*scale + disp]) memory access, which rexByte can't express since
// it only accounts for a single rm-field register: REX.X must be set
// independently of REX.B whenever the index register is extended.
func rexByteAmc(opBits mcir.OpBits, regField mcir.MicroReg, base mcir.MicroReg, index mcir.MicroReg, hasBase bool, hasIndex bool) (b byte, present bool) {
	var w, r, x, base4 byte
	if opBits == mcir.Bits64 {
		w = 1
	}
	if regField.IsValid() && mcir.IsExtendedGPR(regField) {
		r = 1
	}
	if hasIndex && mcir.IsExtendedGPR(index) {
		x = 1
	}
	if hasBase && mcir.IsExtendedGPR(base) {
		base4 = 1
	}
	rex := byte(0x40) | w<<3 | r<<2 | x<<1 | base4
	needed := w == 1 || r == 1 || x == 1 || base4 == 1
	return rex, needed
}
