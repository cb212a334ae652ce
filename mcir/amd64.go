package mcir

import "strconv"

// Named physical integer and float registers for the x86-64 target. The
// index matches the architectural register number used by ModRM/SIB/REX
// (§4.12), so these constants double as the encoder's register-number
// table — there is exactly one amd64 target in scope, so the Micro-IR's
// target-independence above the encoder layer doesn't require abstracting
// this away.
var (
	RAX = NewMicroReg(RegClassPhysInt, 0)
	RCX = NewMicroReg(RegClassPhysInt, 1)
	RDX = NewMicroReg(RegClassPhysInt, 2)
	RBX = NewMicroReg(RegClassPhysInt, 3)
	RSP = NewMicroReg(RegClassPhysInt, 4)
	RBP = NewMicroReg(RegClassPhysInt, 5)
	RSI = NewMicroReg(RegClassPhysInt, 6)
	RDI = NewMicroReg(RegClassPhysInt, 7)
	R8  = NewMicroReg(RegClassPhysInt, 8)
	R9  = NewMicroReg(RegClassPhysInt, 9)
	R10 = NewMicroReg(RegClassPhysInt, 10)
	R11 = NewMicroReg(RegClassPhysInt, 11)
	R12 = NewMicroReg(RegClassPhysInt, 12)
	R13 = NewMicroReg(RegClassPhysInt, 13)
	R14 = NewMicroReg(RegClassPhysInt, 14)
	R15 = NewMicroReg(RegClassPhysInt, 15)

	XMM0  = NewMicroReg(RegClassPhysFloat, 0)
	XMM1  = NewMicroReg(RegClassPhysFloat, 1)
	XMM2  = NewMicroReg(RegClassPhysFloat, 2)
	XMM3  = NewMicroReg(RegClassPhysFloat, 3)
	XMM4  = NewMicroReg(RegClassPhysFloat, 4)
	XMM5  = NewMicroReg(RegClassPhysFloat, 5)
	XMM6  = NewMicroReg(RegClassPhysFloat, 6)
	XMM7  = NewMicroReg(RegClassPhysFloat, 7)
	XMM8  = NewMicroReg(RegClassPhysFloat, 8)
	XMM9  = NewMicroReg(RegClassPhysFloat, 9)
	XMM10 = NewMicroReg(RegClassPhysFloat, 10)
	XMM11 = NewMicroReg(RegClassPhysFloat, 11)
	XMM12 = NewMicroReg(RegClassPhysFloat, 12)
	XMM13 = NewMicroReg(RegClassPhysFloat, 13)
	XMM14 = NewMicroReg(RegClassPhysFloat, 14)
	XMM15 = NewMicroReg(RegClassPhysFloat, 15)
)

var physIntRegNames = [16]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

// RegName returns the canonical lower-case assembly name of a physical
// register, or "?" for a virtual or invalid register (callers needing to
// print a virtual register should format its class+index directly).
func RegName(r MicroReg) string {
	switch r.Class() {
	case RegClassPhysInt:
		if idx := r.Index(); idx < 16 {
			return physIntRegNames[idx]
		}
	case RegClassPhysFloat:
		if idx := r.Index(); idx < 16 {
			return "xmm" + strconv.Itoa(int(idx))
		}
	}
	return "?"
}

// IsExtendedGPR reports whether r is one of R8-R15, which requires a REX
// prefix to address (§4.12).
func IsExtendedGPR(r MicroReg) bool {
	return r.Class() == RegClassPhysInt && r.Index() >= 8 && r.Index() <= 15
}

// IsExtendedXMM reports whether r is one of XMM8-XMM15.
func IsExtendedXMM(r MicroReg) bool {
	return r.Class() == RegClassPhysFloat && r.Index() >= 8 && r.Index() <= 15
}

// IsByteRegNeedingRex reports whether addressing r's low byte requires a
// REX prefix to be present (even one that sets none of W/R/X/B) in order
// to select SPL/BPL/SIL/DIL rather than the legacy AH/CH/DH/BH encoding
// that indices 4-7 mean in a byte-operand ModR/M without any REX byte.
func IsByteRegNeedingRex(r MicroReg) bool {
	return r.Class() == RegClassPhysInt && r.Index() >= 4 && r.Index() <= 7
}
