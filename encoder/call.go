package encoder

import "github.com/solder-lang/mcbackend/mcir"

// EncodeCallLocal emits a direct near call to a function defined within
// this compilation unit (or deferred via relocation if it hasn't been
// emitted yet in program order).
func (e *Encoder) EncodeCallLocal(name string) {
	e.emitRelocatedCall(name, SymbolFunction)
}

// EncodeCallExtern emits a direct near call to a symbol resolved outside
// this compilation unit (always deferred to a REL32 relocation, since an
// extern's address is never known at encode time).
func (e *Encoder) EncodeCallExtern(name string) {
	e.emitByte(0xE8)
	siteOffset := e.Offset()
	idx := e.syms.internSymbol(name, SymbolExtern)
	e.emitU32(0)
	e.relocs = append(e.relocs, Relocation{OffsetInText: siteOffset, SymbolIndex: idx, Kind: RelocAMD64REL32})
}

// EncodeCallReg emits an indirect call through a register holding a
// function pointer (a vtable dispatch or function-value call).
func (e *Encoder) EncodeCallReg(target mcir.MicroReg) {
	rex, present := rexByte(mcir.Bits64, mcir.InvalidReg, target, true, false)
	if present {
		e.emitByte(rex)
	}
	e.emitByte(0xFF)
	e.emitByte(modRMRegister(2, regField(target)))
}

// EncodeJumpTable emits a rip-relative 8-byte-per-entry jump table whose
// entries are offsets-from-function-start (matching the function
// prolog's table dispatch idiom: add rax, [rip+table]; jmp rax), and
// defers resolving every entry until PatchJumps runs.
func (e *Encoder) EncodeJumpTable(targets []*mcir.PatchSite) (tableOffset uint32) {
	tableOffset = e.Offset()
	for range targets {
		e.emitU64(0)
	}
	e.jumpTabs = append(e.jumpTabs, jumpTableFixup{tableOffset: tableOffset, entries: targets})
	return tableOffset
}

// AddrOfData emits a RIP-relative lea of a data-segment symbol into dst,
// deferring resolution to a REL32 relocation on the instruction's 4-byte
// disp32 field that the linker fills in (the data segment is assembled and linked separately from the text
// produced here; see the datasegment package).
func (e *Encoder) AddrOfData(dst mcir.MicroReg, symbolName string) {
	rex, _ := rexByte(mcir.Bits64, dst, mcir.InvalidReg, false, false)
	e.emitByte(rex | 0x08) // force REX.W regardless of dst extension, lea always 64-bit here
	e.emitByte(0x8D)
	e.emitByte(modRMMem(modMemNoDisp, regField(dst), 0b101)) // rip-relative disp32 form
	siteOffset := e.Offset()
	idx := e.syms.internSymbol(symbolName, SymbolData)
	e.emitU32(0)
	e.relocs = append(e.relocs, Relocation{OffsetInText: siteOffset, SymbolIndex: idx, Kind: RelocAMD64REL32})
}
