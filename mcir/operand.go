package mcir

// OperandKind tags which field of Operand is meaningful.
type OperandKind uint8

const (
	OperandKindReg OperandKind = iota
	OperandKindBits
	OperandKindOp
	OperandKindCond
	OperandKindImm
	OperandKindPatch
)

// PatchSite is an opaque external handle a legalize/emit-time consumer
// attaches to an operand, e.g. a label or relocation target the encoder
// fills in once the final offset is known. The Micro-IR never interprets
// it; it is only carried and compared by identity.
type PatchSite struct {
	_ [0]byte
}

// Operand is a single tagged instruction operand. Exactly one of the
// typed fields is meaningful, selected by Kind. Operands are stored
// out-of-line in Storage's operand arena and referenced by instructions
// via a compact (offset, count) pair — never embedded in MicroInstr
// itself, so instructions stay a small, cache-dense fixed-size value.
type Operand struct {
	Kind  OperandKind
	Reg   MicroReg
	Bits  OpBits
	Op    MicroOp
	Cond  MicroCond
	Imm   uint64
	Patch *PatchSite
}

// MaxOperands bounds the number of operands any single instruction may
// carry; 8 is sufficient for every opcode family in §3.2 (the widest is
// LoadAmcRegMem's base+index+scale+disp+dst, still well under the cap).
const MaxOperands = 8

// RegOperand returns an Operand naming a register.
func RegOperand(r MicroReg) Operand { return Operand{Kind: OperandKindReg, Reg: r} }

// BitsOperand returns an Operand naming an operand width.
func BitsOperand(b OpBits) Operand { return Operand{Kind: OperandKindBits, Bits: b} }

// OpOperand returns an Operand naming a MicroOp.
func OpOperand(op MicroOp) Operand { return Operand{Kind: OperandKindOp, Op: op} }

// CondOperand returns an Operand naming a condition code.
func CondOperand(c MicroCond) Operand { return Operand{Kind: OperandKindCond, Cond: c} }

// ImmOperand returns an Operand carrying a raw immediate.
func ImmOperand(v uint64) Operand { return Operand{Kind: OperandKindImm, Imm: v} }

// PatchOperand returns an Operand carrying a pointer to an external patch
// site.
func PatchOperand(p *PatchSite) Operand { return Operand{Kind: OperandKindPatch, Patch: p} }
