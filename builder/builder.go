// Package builder is the Micro-IR construction front door: a typed set
// of encodeX methods that append instructions to a Function's storage,
// allocate fresh virtual registers, and track the symbolic call/data
// references a later pass resolves against the encoder's symbol table
// (spec §4.2-§4.3).
package builder

import (
	"github.com/solder-lang/mcbackend/abi"
	"github.com/solder-lang/mcbackend/mcir"
)

// CallSiteInfo records what a call instruction's opaque PatchSite
// actually names, since the Micro-IR operand model has no string slot.
type CallSiteInfo struct {
	Name   string
	Extern bool
}

// DataRefInfo records what a data-address instruction's opaque PatchSite
// names in the data segment.
type DataRefInfo struct {
	Name string
}

// Function is one compiled function's Micro-IR: its instruction storage
// plus the side tables the emit pass consults to resolve symbolic
// references, and the virtual-register counters fresh allocations draw
// from.
type Function struct {
	Name     string
	CallConv abi.Kind

	Storage *mcir.Storage

	CallSites map[*mcir.PatchSite]CallSiteInfo
	DataRefs  map[*mcir.PatchSite]DataRefInfo

	nextVirtInt   uint32
	nextVirtFloat uint32
}

// NewFunction returns an empty function ready for building.
func NewFunction(name string, cc abi.Kind) *Function {
	return &Function{
		Name:      name,
		CallConv:  cc,
		Storage:   mcir.NewStorage(),
		CallSites: make(map[*mcir.PatchSite]CallSiteInfo),
		DataRefs:  make(map[*mcir.PatchSite]DataRefInfo),
	}
}

// NewVirtualInt returns a fresh virtual integer register, never reused
// within this function.
func (f *Function) NewVirtualInt() mcir.MicroReg {
	r := mcir.NewMicroReg(mcir.RegClassVirtInt, f.nextVirtInt)
	f.nextVirtInt++
	return r
}

// NewVirtualFloat returns a fresh virtual float register.
func (f *Function) NewVirtualFloat() mcir.MicroReg {
	r := mcir.NewMicroReg(mcir.RegClassVirtFloat, f.nextVirtFloat)
	f.nextVirtFloat++
	return r
}

// NewLabel returns a fresh, unbound jump target. Bind it to a program
// point with Label; reference it from a branch with JumpCond/Jump.
func (f *Function) NewLabel() *mcir.PatchSite {
	return &mcir.PatchSite{}
}

func (f *Function) append(opcode mcir.Opcode, ops []mcir.Operand) mcir.Ref {
	return f.Storage.Append(opcode, ops)
}

// LoadRegImm appends `dst := imm` at the given width.
func (f *Function) LoadRegImm(dst mcir.MicroReg, imm uint64, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadRegImm, []mcir.Operand{
		mcir.RegOperand(dst), mcir.ImmOperand(imm), mcir.BitsOperand(bits),
	})
}

// LoadRegReg appends `dst := src`.
func (f *Function) LoadRegReg(dst, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadRegReg, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(src), mcir.BitsOperand(bits),
	})
}

// LoadRegMem appends `dst := [base+disp]`.
func (f *Function) LoadRegMem(dst, base mcir.MicroReg, disp int32, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadRegMem, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))), mcir.BitsOperand(bits),
	})
}

// LoadMemReg appends `[base+disp] := src`.
func (f *Function) LoadMemReg(base mcir.MicroReg, disp int32, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadMemReg, []mcir.Operand{
		mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))), mcir.RegOperand(src), mcir.BitsOperand(bits),
	})
}

// LoadMemImm appends `[base+disp] := imm`.
func (f *Function) LoadMemImm(base mcir.MicroReg, disp int32, imm uint64, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadMemImm, []mcir.Operand{
		mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))), mcir.ImmOperand(imm), mcir.BitsOperand(bits),
	})
}

// LoadZeroExtRegReg appends `dst := zeroext(src)`, widening src from
// srcBits to dstBits.
func (f *Function) LoadZeroExtRegReg(dst, src mcir.MicroReg, dstBits, srcBits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadZeroExtRegReg, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(src), mcir.BitsOperand(dstBits), mcir.BitsOperand(srcBits),
	})
}

// LoadSignedExtRegReg appends `dst := signext(src)`, widening src from
// srcBits to dstBits.
func (f *Function) LoadSignedExtRegReg(dst, src mcir.MicroReg, dstBits, srcBits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadSignedExtRegReg, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(src), mcir.BitsOperand(dstBits), mcir.BitsOperand(srcBits),
	})
}

// LoadZeroExtRegMem appends `dst := zeroext([base+disp])`.
func (f *Function) LoadZeroExtRegMem(dst, base mcir.MicroReg, disp int32, dstBits, srcBits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadZeroExtRegMem, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))),
		mcir.BitsOperand(dstBits), mcir.BitsOperand(srcBits),
	})
}

// LoadSignedExtRegMem appends `dst := signext([base+disp])`.
func (f *Function) LoadSignedExtRegMem(dst, base mcir.MicroReg, disp int32, dstBits, srcBits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadSignedExtRegMem, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))),
		mcir.BitsOperand(dstBits), mcir.BitsOperand(srcBits),
	})
}

// LoadAddrRegMem appends `dst := &[base+disp]` (a register-relative lea),
// distinct from LoadAddrDataReg's data-symbol form.
func (f *Function) LoadAddrRegMem(dst, base mcir.MicroReg, disp int32) mcir.Ref {
	return f.append(mcir.OpcodeLoadAddrRegMem, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))),
	})
}

// LoadAddrAmcRegMem appends `dst := &[base+index*scale+disp]`. Either base
// or index (not both) may be mcir.NoBaseReg when absent.
func (f *Function) LoadAddrAmcRegMem(dst, base, index mcir.MicroReg, scale int, disp int32) mcir.Ref {
	return f.append(mcir.OpcodeLoadAddrAmcRegMem, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(base), mcir.RegOperand(index),
		mcir.ImmOperand(uint64(int64(scale))), mcir.ImmOperand(uint64(uint32(disp))),
	})
}

// LoadAmcRegMem appends `dst := [base+index*scale+disp]`.
func (f *Function) LoadAmcRegMem(dst, base, index mcir.MicroReg, scale int, disp int32, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadAmcRegMem, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(base), mcir.RegOperand(index),
		mcir.ImmOperand(uint64(int64(scale))), mcir.ImmOperand(uint64(uint32(disp))), mcir.BitsOperand(bits),
	})
}

// LoadAmcMemReg appends `[base+index*scale+disp] := src`.
func (f *Function) LoadAmcMemReg(base, index mcir.MicroReg, scale int, disp int32, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadAmcMemReg, []mcir.Operand{
		mcir.RegOperand(base), mcir.RegOperand(index), mcir.ImmOperand(uint64(int64(scale))),
		mcir.ImmOperand(uint64(uint32(disp))), mcir.RegOperand(src), mcir.BitsOperand(bits),
	})
}

// LoadAmcMemImm appends `[base+index*scale+disp] := imm`.
func (f *Function) LoadAmcMemImm(base, index mcir.MicroReg, scale int, disp int32, imm uint64, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadAmcMemImm, []mcir.Operand{
		mcir.RegOperand(base), mcir.RegOperand(index), mcir.ImmOperand(uint64(int64(scale))),
		mcir.ImmOperand(uint64(uint32(disp))), mcir.ImmOperand(imm), mcir.BitsOperand(bits),
	})
}

// OpUnaryMem appends `[base+disp] := op [base+disp]`.
func (f *Function) OpUnaryMem(base mcir.MicroReg, disp int32, op mcir.MicroOp, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeOpUnaryMem, []mcir.Operand{
		mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))), mcir.OpOperand(op), mcir.BitsOperand(bits),
	})
}

// OpBinaryRegMem appends `dst := dst op [base+disp]`.
func (f *Function) OpBinaryRegMem(dst, base mcir.MicroReg, disp int32, op mcir.MicroOp, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeOpBinaryRegMem, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))),
		mcir.OpOperand(op), mcir.BitsOperand(bits),
	})
}

// OpBinaryMemReg appends `[base+disp] := [base+disp] op src`.
func (f *Function) OpBinaryMemReg(base mcir.MicroReg, disp int32, src mcir.MicroReg, op mcir.MicroOp, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeOpBinaryMemReg, []mcir.Operand{
		mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))), mcir.RegOperand(src),
		mcir.OpOperand(op), mcir.BitsOperand(bits),
	})
}

// OpBinaryMemImm appends `[base+disp] := [base+disp] op imm`.
func (f *Function) OpBinaryMemImm(base mcir.MicroReg, disp int32, imm uint64, op mcir.MicroOp, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeOpBinaryMemImm, []mcir.Operand{
		mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))), mcir.ImmOperand(imm),
		mcir.OpOperand(op), mcir.BitsOperand(bits),
	})
}

// OpTernaryRegRegReg appends `dst := lhs op rhs`, a non-destructive
// 3-address form the emit pass lowers to a copy-then-destructive-op pair.
func (f *Function) OpTernaryRegRegReg(dst, lhs, rhs mcir.MicroReg, op mcir.MicroOp, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeOpTernaryRegRegReg, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(lhs), mcir.RegOperand(rhs), mcir.OpOperand(op), mcir.BitsOperand(bits),
	})
}

// CmpRegZero appends a flag-setting test of a register against zero.
func (f *Function) CmpRegZero(a mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeCmpRegZero, []mcir.Operand{
		mcir.RegOperand(a), mcir.BitsOperand(bits),
	})
}

// CmpMemReg appends a flag-setting compare of a memory operand against a
// register.
func (f *Function) CmpMemReg(base mcir.MicroReg, disp int32, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeCmpMemReg, []mcir.Operand{
		mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))), mcir.RegOperand(src), mcir.BitsOperand(bits),
	})
}

// CmpMemImm appends a flag-setting compare of a memory operand against an
// immediate.
func (f *Function) CmpMemImm(base mcir.MicroReg, disp int32, imm uint64, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeCmpMemImm, []mcir.Operand{
		mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))), mcir.ImmOperand(imm), mcir.BitsOperand(bits),
	})
}

// LoadCondRegReg appends `dst := cond ? src : dst` (a conditional move),
// reading the flags set by the nearest preceding compare.
func (f *Function) LoadCondRegReg(dst, src mcir.MicroReg, cond mcir.MicroCond, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeLoadCondRegReg, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(src), mcir.CondOperand(cond), mcir.BitsOperand(bits),
	})
}

// JumpCondImm appends a conditional branch to a PatchSite label under its
// own opcode. No immediate program offset is carried: the encoder emits
// and resolves it exactly like JumpCond, against the Label with a
// matching site.
func (f *Function) JumpCondImm(cond mcir.MicroCond, target *mcir.PatchSite) mcir.Ref {
	return f.append(mcir.OpcodeJumpCondImm, []mcir.Operand{
		mcir.CondOperand(cond), mcir.PatchOperand(target),
	})
}

// JumpTable appends a multi-way dispatch: index selects among targets via
// a base-relative jump table the emit pass materializes with
// encoder.EncodeJumpTable, then an indirect jump through a scratch
// register computed from the table entry.
func (f *Function) JumpTable(index mcir.MicroReg, targets []*mcir.PatchSite) mcir.Ref {
	ops := make([]mcir.Operand, 0, len(targets)+1)
	ops = append(ops, mcir.RegOperand(index))
	for _, t := range targets {
		ops = append(ops, mcir.PatchOperand(t))
	}
	return f.append(mcir.OpcodeJumpTable, ops)
}

// Debug appends a no-op marker instruction that emits no machine code
// (e.g. annotating which source construct a block lowers from).
func (f *Function) Debug(note *mcir.PatchSite) mcir.Ref {
	return f.append(mcir.OpcodeDebug, []mcir.Operand{mcir.PatchOperand(note)})
}

// OpBinaryRegReg appends `dst := dst op src`.
func (f *Function) OpBinaryRegReg(dst, src mcir.MicroReg, op mcir.MicroOp, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeOpBinaryRegReg, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(src), mcir.OpOperand(op), mcir.BitsOperand(bits),
	})
}

// OpBinaryRegImm appends `dst := dst op imm`.
func (f *Function) OpBinaryRegImm(dst mcir.MicroReg, imm uint64, op mcir.MicroOp, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
		mcir.RegOperand(dst), mcir.ImmOperand(imm), mcir.OpOperand(op), mcir.BitsOperand(bits),
	})
}

// OpUnaryReg appends `dst := op dst`.
func (f *Function) OpUnaryReg(dst mcir.MicroReg, op mcir.MicroOp, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeOpUnaryReg, []mcir.Operand{
		mcir.RegOperand(dst), mcir.OpOperand(op), mcir.BitsOperand(bits),
	})
}

// CmpRegReg appends a flag-setting compare of two registers.
func (f *Function) CmpRegReg(a, b mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeCmpRegReg, []mcir.Operand{
		mcir.RegOperand(a), mcir.RegOperand(b), mcir.BitsOperand(bits),
	})
}

// CmpRegImm appends a flag-setting compare of a register against an
// immediate.
func (f *Function) CmpRegImm(a mcir.MicroReg, imm uint64, bits mcir.OpBits) mcir.Ref {
	return f.append(mcir.OpcodeCmpRegImm, []mcir.Operand{
		mcir.RegOperand(a), mcir.ImmOperand(imm), mcir.BitsOperand(bits),
	})
}

// SetCondReg appends `dst := cond ? 1 : 0`, reading the flags set by the
// nearest preceding compare.
func (f *Function) SetCondReg(dst mcir.MicroReg, cond mcir.MicroCond) mcir.Ref {
	return f.append(mcir.OpcodeSetCondReg, []mcir.Operand{
		mcir.RegOperand(dst), mcir.CondOperand(cond),
	})
}

// ClearReg appends `dst := 0`, also clobbering the flags (§4.6: the
// zeroing idiom xor reg,reg).
func (f *Function) ClearReg(dst mcir.MicroReg) mcir.Ref {
	return f.append(mcir.OpcodeClearReg, []mcir.Operand{mcir.RegOperand(dst)})
}

// Jump appends an unconditional branch to target.
func (f *Function) Jump(target *mcir.PatchSite) mcir.Ref {
	return f.append(mcir.OpcodeJumpCond, []mcir.Operand{
		mcir.CondOperand(mcir.CondUnconditional), mcir.PatchOperand(target),
	})
}

// JumpCond appends a conditional branch to target, reading the flags set
// by the nearest preceding compare.
func (f *Function) JumpCond(cond mcir.MicroCond, target *mcir.PatchSite) mcir.Ref {
	return f.append(mcir.OpcodeJumpCond, []mcir.Operand{
		mcir.CondOperand(cond), mcir.PatchOperand(target),
	})
}

// Label binds site to this program point.
func (f *Function) Label(site *mcir.PatchSite) mcir.Ref {
	return f.append(mcir.OpcodeLabel, []mcir.Operand{mcir.PatchOperand(site)})
}

// Ret appends a function return.
func (f *Function) Ret() mcir.Ref {
	return f.append(mcir.OpcodeRet, nil)
}

// callMarker is the sentinel Bits128 operand mcir.MicroInstr.IsCall looks
// for at index 1 of a JumpReg instruction.
var callMarker = mcir.BitsOperand(mcir.Bits128)

// CallReg appends an indirect call through a register holding a function
// pointer.
func (f *Function) CallReg(target mcir.MicroReg) mcir.Ref {
	return f.append(mcir.OpcodeJumpReg, []mcir.Operand{mcir.RegOperand(target), callMarker})
}

// CallLocal appends a direct call to a function defined in this
// compilation unit, to be resolved to a rel32 (or a relocation, if the
// target hasn't been emitted yet) by the emit pass.
func (f *Function) CallLocal(name string) mcir.Ref {
	site := f.NewLabel()
	f.CallSites[site] = CallSiteInfo{Name: name, Extern: false}
	return f.append(mcir.OpcodeJumpReg, []mcir.Operand{
		mcir.RegOperand(mcir.InvalidReg), callMarker, mcir.PatchOperand(site),
	})
}

// CallExtern appends a direct call to a symbol defined outside this
// compilation unit.
func (f *Function) CallExtern(name string) mcir.Ref {
	site := f.NewLabel()
	f.CallSites[site] = CallSiteInfo{Name: name, Extern: true}
	return f.append(mcir.OpcodeJumpReg, []mcir.Operand{
		mcir.RegOperand(mcir.InvalidReg), callMarker, mcir.PatchOperand(site),
	})
}

// Jmp appends an unconditional indirect jump through a register (used by
// jump-table dispatch and tail calls).
func (f *Function) Jmp(target mcir.MicroReg) mcir.Ref {
	return f.append(mcir.OpcodeJumpReg, []mcir.Operand{mcir.RegOperand(target)})
}

// LoadAddrDataReg appends `dst := &dataSymbol`, to be resolved against the
// data segment by the emit pass.
func (f *Function) LoadAddrDataReg(dst mcir.MicroReg, dataSymbol string) mcir.Ref {
	site := f.NewLabel()
	f.DataRefs[site] = DataRefInfo{Name: dataSymbol}
	return f.append(mcir.OpcodeLoadAddrRegMem, []mcir.Operand{
		mcir.RegOperand(dst), mcir.RegOperand(mcir.InvalidReg), mcir.PatchOperand(site),
	})
}
