// Package abi models the Windows x64 calling convention, the struct
// by-value classifier, and the ABI type normalizer used to turn
// frontend-level types into ABI-level passing shapes (spec §4.1, §3.4).
package abi

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/solder-lang/mcbackend/mcir"
)

// Kind names one of the predefined calling conventions.
type Kind uint8

const (
	WindowsX64 Kind = iota
	Host
	C
)

// StructByValueKind is the result of classifying a struct argument or
// return value.
type StructByValueKind uint8

const (
	ByReference StructByValueKind = iota
	ByValue
)

// StructPassing holds the legal by-value struct sizes for either argument
// or return position: bit n set means an n-byte struct may be passed by
// value.
type StructPassing struct {
	passByValueSizeMask uint64
}

// NewStructPassing builds a StructPassing record from the set of legal
// by-value sizes, in bytes.
func NewStructPassing(sizesInBytes ...int) StructPassing {
	var mask uint64
	for _, n := range sizesInBytes {
		mask |= 1 << uint(n)
	}
	return StructPassing{passByValueSizeMask: mask}
}

// Classify returns ByValue if sizeInBytes is a legal by-value size under
// this record, else ByReference.
func (s StructPassing) Classify(sizeInBytes int) StructByValueKind {
	if sizeInBytes < 0 || sizeInBytes >= 64 {
		return ByReference
	}
	if s.passByValueSizeMask&(1<<uint(sizeInBytes)) != 0 {
		return ByValue
	}
	return ByReference
}

// CallConv is the immutable per-convention record described in §3.4.
type CallConv struct {
	Name string

	StackPointer mcir.MicroReg
	FramePointer mcir.MicroReg

	IntReturnReg   mcir.MicroReg
	FloatReturnReg mcir.MicroReg

	IntRegs   []mcir.MicroReg
	FloatRegs []mcir.MicroReg

	IntArgRegs   []mcir.MicroReg
	FloatArgRegs []mcir.MicroReg

	IntTransientRegs   []mcir.MicroReg
	IntPersistentRegs  []mcir.MicroReg
	FloatTransientRegs []mcir.MicroReg
	FloatPersistentRegs []mcir.MicroReg

	StackAlignment      int
	StackParamAlignment int
	StackParamSlotSize  int
	StackShadowSpace    int
	ArgRegisterSlotCount int
	RedZone             bool

	ArgStructPassing    StructPassing
	ReturnStructPassing StructPassing

	// CallerCopiesIndirectArgs is true when the convention requires the
	// caller, not the callee, to materialize a hidden copy of an
	// indirectly-passed struct argument (used by NormalizedType's
	// needsIndirectCopy rule, §3.5).
	CallerCopiesIndirectArgs bool
}

var (
	callConvs      [3]CallConv
	callConvsReady bool
)

// Setup populates the global call-convention table exactly once.
// Double-initialization is a no-op, per §5's idempotence guarantee.
func Setup() {
	if callConvsReady {
		return
	}

	intRegs := []mcir.MicroReg{
		mcir.RAX, mcir.RCX, mcir.RDX, mcir.RBX, mcir.RSI, mcir.RDI,
		mcir.R8, mcir.R9, mcir.R10, mcir.R11, mcir.R12, mcir.R13, mcir.R14, mcir.R15,
	}
	floatRegs := []mcir.MicroReg{
		mcir.XMM0, mcir.XMM1, mcir.XMM2, mcir.XMM3, mcir.XMM4, mcir.XMM5, mcir.XMM6, mcir.XMM7,
		mcir.XMM8, mcir.XMM9, mcir.XMM10, mcir.XMM11, mcir.XMM12, mcir.XMM13, mcir.XMM14, mcir.XMM15,
	}

	winIntArgs := []mcir.MicroReg{mcir.RCX, mcir.RDX, mcir.R8, mcir.R9}
	winFloatArgs := []mcir.MicroReg{mcir.XMM0, mcir.XMM1, mcir.XMM2, mcir.XMM3}

	winIntPersistent := []mcir.MicroReg{mcir.RBX, mcir.RSI, mcir.RDI, mcir.R12, mcir.R13, mcir.R14, mcir.R15}
	winIntTransient := lo.Filter(intRegs, func(r mcir.MicroReg, _ int) bool {
		return !lo.Contains(winIntPersistent, r)
	})

	winFloatPersistent := []mcir.MicroReg{mcir.XMM6, mcir.XMM7, mcir.XMM8, mcir.XMM9, mcir.XMM10, mcir.XMM11, mcir.XMM12, mcir.XMM13, mcir.XMM14, mcir.XMM15}
	winFloatTransient := lo.Filter(floatRegs, func(r mcir.MicroReg, _ int) bool {
		return !lo.Contains(winFloatPersistent, r)
	})

	windows := CallConv{
		Name:                 "windows-x64",
		StackPointer:         mcir.RSP,
		FramePointer:         mcir.RBP,
		IntReturnReg:         mcir.RAX,
		FloatReturnReg:       mcir.XMM0,
		IntRegs:              intRegs,
		FloatRegs:            floatRegs,
		IntArgRegs:           winIntArgs,
		FloatArgRegs:         winFloatArgs,
		IntTransientRegs:     winIntTransient,
		IntPersistentRegs:    winIntPersistent,
		FloatTransientRegs:   winFloatTransient,
		FloatPersistentRegs:  winFloatPersistent,
		StackAlignment:       16,
		StackParamAlignment:  8,
		StackParamSlotSize:   8,
		StackShadowSpace:     32,
		ArgRegisterSlotCount: 4,
		RedZone:              false,
		ArgStructPassing:     NewStructPassing(1, 2, 4, 8),
		ReturnStructPassing:  NewStructPassing(1, 2, 4, 8),
		CallerCopiesIndirectArgs: true,
	}

	callConvs[WindowsX64] = windows
	// This module only targets Windows x64; Host and C both alias it at
	// startup, as §3.4 specifies for the platform-appropriate concrete
	// convention.
	host := windows
	host.Name = "host"
	callConvs[Host] = host

	c := windows
	c.Name = "c"
	callConvs[C] = c

	validate(windows)
	callConvsReady = true
}

// validate checks the invariants §3.4 places on a convention record.
// A violation here means Setup itself is wrong — a programmer error.
func validate(cc CallConv) {
	if cc.StackAlignment <= 0 || cc.StackAlignment&(cc.StackAlignment-1) != 0 {
		panic("BUG: CallConv.StackAlignment must be a positive power of two")
	}
	regSet := make(map[mcir.MicroReg]bool, len(cc.IntRegs))
	for _, r := range cc.IntRegs {
		regSet[r] = true
	}
	for _, r := range cc.IntArgRegs {
		if !regSet[r] {
			panic("BUG: intArgRegs entry missing from intRegs")
		}
	}
	floatSet := make(map[mcir.MicroReg]bool, len(cc.FloatRegs))
	for _, r := range cc.FloatRegs {
		floatSet[r] = true
	}
	for _, r := range cc.FloatArgRegs {
		if !floatSet[r] {
			panic("BUG: floatArgRegs entry missing from floatRegs")
		}
	}
	partition := make(map[mcir.MicroReg]int, len(cc.IntRegs))
	for _, r := range cc.IntPersistentRegs {
		partition[r]++
	}
	for _, r := range cc.IntTransientRegs {
		partition[r]++
	}
	if len(partition) != len(cc.IntRegs) {
		panic("BUG: intPersistentRegs/intTransientRegs do not partition intRegs")
	}
	for r, n := range partition {
		if n != 1 {
			panic(fmt.Sprintf("BUG: register %s appears in both persistent and transient sets", mcir.RegName(r)))
		}
	}
}

// Get returns the immutable record for kind. Must be called after Setup;
// calling before Setup, or with an out-of-range kind, is a programmer
// error.
func Get(kind Kind) *CallConv {
	if !callConvsReady {
		panic("BUG: abi.Get called before abi.Setup")
	}
	if int(kind) >= len(callConvs) {
		panic("BUG: unknown CallConvKind")
	}
	return &callConvs[kind]
}

// HostConv returns the Host convention record.
func HostConv() *CallConv { return Get(Host) }

// ClassifyStructArgPassing classifies a struct argument of the given size.
func (cc *CallConv) ClassifyStructArgPassing(sizeInBytes int) StructByValueKind {
	return cc.ArgStructPassing.Classify(sizeInBytes)
}

// ClassifyStructReturnPassing classifies a struct return value of the
// given size.
func (cc *CallConv) ClassifyStructReturnPassing(sizeInBytes int) StructByValueKind {
	return cc.ReturnStructPassing.Classify(sizeInBytes)
}

// NumArgRegisterSlots returns ArgRegisterSlotCount when non-zero, else
// min(len(IntArgRegs), len(FloatArgRegs)).
func (cc *CallConv) NumArgRegisterSlots() int {
	if cc.ArgRegisterSlotCount != 0 {
		return cc.ArgRegisterSlotCount
	}
	if len(cc.IntArgRegs) < len(cc.FloatArgRegs) {
		return len(cc.IntArgRegs)
	}
	return len(cc.FloatArgRegs)
}

// StackSlotSize returns StackParamSlotSize, else StackParamAlignment,
// else 8.
func (cc *CallConv) StackSlotSize() int {
	if cc.StackParamSlotSize != 0 {
		return cc.StackParamSlotSize
	}
	if cc.StackParamAlignment != 0 {
		return cc.StackParamAlignment
	}
	return 8
}
