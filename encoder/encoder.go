// Package encoder lowers legalized Micro-IR instructions to x86-64 machine
// code for the Windows x64 target (spec §4.11-§4.13). It is consulted in
// two modes: probing, where the legalizer asks "can you encode this
// operand combination as-is" without committing any bytes, and emitting,
// where the final pass appends real bytes to the growing text buffer.
package encoder

import (
	"fmt"

	"github.com/solder-lang/mcbackend/mcir"
)

// CpuEncodeResult is the legalization-hint channel between the encoder and
// the legalize pass (§4.10, §4.13). Probing an instruction that the
// encoder's instruction selection cannot serve directly returns a hint
// describing the minimal rewrite the legalizer should apply before
// re-probing; ForceZero32/NotSupported are terminal.
type CpuEncodeResult uint8

const (
	// EncodeOK means the instruction encodes as-is; no legalization needed.
	EncodeOK CpuEncodeResult = iota
	// EncodeZero means the result is a compile-time zero and the whole
	// instruction can be replaced with a register clear.
	EncodeZero
	// EncodeLeft2Rax means the left operand must be moved into RAX first
	// (mul/div family).
	EncodeLeft2Rax
	// EncodeLeft2Reg means the left operand must be materialized into a
	// scratch register first.
	EncodeLeft2Reg
	// EncodeRight2Reg means the right operand must be materialized into a
	// scratch register first.
	EncodeRight2Reg
	// EncodeRight2Rcx means the right (shift-count) operand must be moved
	// into RCX first.
	EncodeRight2Rcx
	// EncodeRight2Cst means the right operand must be replaced by an
	// encodable immediate.
	EncodeRight2Cst
	// EncodeForceZero32 means the operand must be narrowed to a 32-bit
	// zero-extending form (x86-64's implicit upper-32 zero on 32-bit ops).
	EncodeForceZero32
	// EncodeNotSupported means no legalization can make this instruction
	// encodable; the caller must report a diag error and abandon the
	// function.
	EncodeNotSupported
)

func (r CpuEncodeResult) String() string {
	switch r {
	case EncodeOK:
		return "ok"
	case EncodeZero:
		return "zero"
	case EncodeLeft2Rax:
		return "left->rax"
	case EncodeLeft2Reg:
		return "left->reg"
	case EncodeRight2Reg:
		return "right->reg"
	case EncodeRight2Rcx:
		return "right->rcx"
	case EncodeRight2Cst:
		return "right->imm"
	case EncodeForceZero32:
		return "force-zero32"
	case EncodeNotSupported:
		return "not-supported"
	default:
		return "unknown"
	}
}

// jumpPatch records a not-yet-resolved branch displacement: a byte offset
// in text where a rel8/rel32 operand needs to be back-patched once the
// target instruction's offset is known.
type jumpPatch struct {
	siteOffset uint32 // offset of the first displacement byte
	width      int    // 1 or 4
	target     *mcir.PatchSite
	instrEnd   uint32 // offset of the byte following the full instruction
}

// jumpTarget records where a PatchSite (a Label instruction, in practice)
// resolved to in the text buffer.
type jumpTarget struct {
	offset uint32
	known  bool
}

// Encoder accumulates machine code for one compilation unit (one or more
// functions sharing a symbol table and relocation list), per §4.11.
type Encoder struct {
	text   []byte
	syms   *symbolTable
	relocs []Relocation

	funcStart uint32 // text offset where the current function began

	patches  []jumpPatch
	targets  map[*mcir.PatchSite]*jumpTarget
	jumpTabs []jumpTableFixup
}

// jumpTableFixup records a jump-table base needing its entries filled in
// once every case target is known.
type jumpTableFixup struct {
	tableOffset uint32
	entries     []*mcir.PatchSite
}

// NewEncoder returns an empty Encoder ready to accept one or more
// functions.
func NewEncoder() *Encoder {
	return &Encoder{
		syms:    newSymbolTable(),
		targets: make(map[*mcir.PatchSite]*jumpTarget),
	}
}

// Bytes returns the accumulated text section.
func (e *Encoder) Bytes() []byte { return e.text }

// Relocations returns the accumulated relocation list, ready for a COFF
// object writer.
func (e *Encoder) Relocations() []Relocation { return e.relocs }

// Offset returns the current write position in the text buffer.
func (e *Encoder) Offset() uint32 { return uint32(len(e.text)) }

// BeginFunction records name as a resolved local symbol at the current
// offset and starts a new prolog/epilog frame for jump-patch bookkeeping.
func (e *Encoder) BeginFunction(name string) {
	e.funcStart = e.Offset()
	e.syms.defineFunction(name, e.funcStart)
}

// DefineLabel binds site to the current text offset. Any earlier forward
// references recorded via recordJumpPatch are resolved when PatchJumps
// runs.
func (e *Encoder) DefineLabel(site *mcir.PatchSite) {
	e.targets[site] = &jumpTarget{offset: e.Offset(), known: true}
}

func (e *Encoder) emitByte(b byte)     { e.text = append(e.text, b) }
func (e *Encoder) emitBytes(bs ...byte) { e.text = append(e.text, bs...) }

func (e *Encoder) emitU32(v uint32) {
	e.emitBytes(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (e *Encoder) emitU64(v uint64) {
	e.emitU32(uint32(v))
	e.emitU32(uint32(v >> 32))
}

// emitRelocatedCall emits a near-call E8 opcode targeting symbolName. If
// the symbol already resolved as a local function, it emits a direct
// rel32; otherwise it emits a zero placeholder and records a REL32
// relocation against the symbol for the linker.
func (e *Encoder) emitRelocatedCall(symbolName string, kind CpuSymbolKind) {
	e.emitByte(0xE8)
	siteOffset := e.Offset()
	if target, ok := e.syms.lookupResolvedFunction(symbolName); ok {
		disp := int32(target) - int32(siteOffset+4)
		e.emitU32(uint32(disp))
		return
	}
	idx := e.syms.internSymbol(symbolName, kind)
	e.emitU32(0)
	e.relocs = append(e.relocs, Relocation{OffsetInText: siteOffset, SymbolIndex: idx, Kind: RelocAMD64REL32})
}

// recordJumpPatch defers resolution of a branch displacement written at
// siteOffset (width bytes, either 1 or 4) targeting target, to be filled
// in by PatchJumps once every label in the function has a known offset.
func (e *Encoder) recordJumpPatch(siteOffset uint32, width int, target *mcir.PatchSite) {
	e.patches = append(e.patches, jumpPatch{
		siteOffset: siteOffset,
		width:      width,
		target:     target,
		instrEnd:   siteOffset + uint32(width),
	})
}

// PatchJumps resolves every deferred branch displacement recorded since
// the Encoder was created, and every deferred jump-table entry. It must
// run once, after every instruction in the unit has been emitted and
// every label defined, since branches to a not-yet-emitted forward label
// cannot be resolved any earlier. Returns an error naming the first
// unresolved target (a label the IR never defined — an internal
// invariant violation, not a user error).
func (e *Encoder) PatchJumps() error {
	for _, p := range e.patches {
		t, ok := e.targets[p.target]
		if !ok || !t.known {
			return fmt.Errorf("jump target never defined (site offset %d)", p.siteOffset)
		}
		disp := int64(t.offset) - int64(p.instrEnd)
		switch p.width {
		case 1:
			if disp < -128 || disp > 127 {
				return fmt.Errorf("rel8 jump displacement %d out of range at offset %d", disp, p.siteOffset)
			}
			e.text[p.siteOffset] = byte(int8(disp))
		case 4:
			if disp < -(1<<31) || disp > (1<<31)-1 {
				return fmt.Errorf("rel32 jump displacement %d out of range at offset %d", disp, p.siteOffset)
			}
			d := uint32(int32(disp))
			e.text[p.siteOffset] = byte(d)
			e.text[p.siteOffset+1] = byte(d >> 8)
			e.text[p.siteOffset+2] = byte(d >> 16)
			e.text[p.siteOffset+3] = byte(d >> 24)
		default:
			panic("BUG: jump patch width must be 1 or 4")
		}
	}
	for _, jt := range e.jumpTabs {
		for i, site := range jt.entries {
			t, ok := e.targets[site]
			if !ok || !t.known {
				return fmt.Errorf("jump table entry %d never defined (table offset %d)", i, jt.tableOffset)
			}
			off := jt.tableOffset + uint32(i)*8
			rel := uint64(int64(t.offset) - int64(e.funcStart))
			e.text[off] = byte(rel)
			e.text[off+1] = byte(rel >> 8)
			e.text[off+2] = byte(rel >> 16)
			e.text[off+3] = byte(rel >> 24)
			e.text[off+4] = byte(rel >> 32)
			e.text[off+5] = byte(rel >> 40)
			e.text[off+6] = byte(rel >> 48)
			e.text[off+7] = byte(rel >> 56)
		}
	}
	return nil
}
