package mcir

import "github.com/solder-lang/mcbackend/support"

// Ref is a stable handle to an instruction inside a Storage. It remains
// valid across insertions anywhere in the storage, and after Erase(ref)
// for any ref other than the one just erased.
type Ref = *MicroInstr

const operandArenaPageSize = 2048

// operandArena is a paged, append-only array of Operand, allocated in
// contiguous blocks so that an instruction's operand window is always a
// single Go slice. Pages are never moved or reallocated once allocated,
// so a block handed out by allocateBlock stays valid for the
// life of the arena.
type operandArena struct {
	pages []*[operandArenaPageSize]Operand
	used  int
}

func newOperandArena() *operandArena {
	return &operandArena{}
}

func (a *operandArena) allocateBlock(n int) []Operand {
	if n == 0 {
		return nil
	}
	if n > operandArenaPageSize {
		panic("BUG: operand block exceeds arena page size")
	}
	if len(a.pages) == 0 || a.used+n > operandArenaPageSize {
		a.pages = append(a.pages, new([operandArenaPageSize]Operand))
		a.used = 0
	}
	page := a.pages[len(a.pages)-1]
	block := page[a.used : a.used+n : a.used+n]
	a.used += n
	return block
}

// Storage is the paged, append-only instruction store backing one
// function's Micro-IR body: insertBefore/erase/forward iteration over a
// doubly-linked chain of MicroInstr values allocated from a support.Pool,
// plus the operand arena each instruction's Ops() window lives in.
type Storage struct {
	instrs   *support.Pool[MicroInstr]
	operands *operandArena
	head     Ref
	tail     Ref
}

// NewStorage returns an empty instruction storage.
func NewStorage() *Storage {
	return &Storage{
		instrs:   support.NewPool[MicroInstr](),
		operands: newOperandArena(),
	}
}

// Begin returns the first live instruction, or nil if the storage is
// empty.
func (s *Storage) Begin() Ref { return s.head }

// End returns the sentinel "one past the last" value used as a loop
// bound; it is always nil.
func (s *Storage) End() Ref { return nil }

// Append adds a new instruction with the given opcode and operands at
// the tail of the storage.
func (s *Storage) Append(opcode Opcode, ops []Operand) Ref {
	return s.InsertBefore(nil, opcode, ops)
}

// InsertBefore inserts a new instruction immediately before ref (placing
// it at the tail if ref is nil) and returns its Ref. Per §5's ordering
// guarantees, iteration order always matches insertion order modulo
// erasures.
func (s *Storage) InsertBefore(ref Ref, opcode Opcode, ops []Operand) Ref {
	cell, _ := s.instrs.Allocate()
	cell.Opcode = opcode
	cell.ops = s.operands.allocateBlock(len(ops))
	copy(cell.ops, ops)

	if ref == nil {
		cell.prev = s.tail
		if s.tail != nil {
			s.tail.next = cell
		} else {
			s.head = cell
		}
		s.tail = cell
		return cell
	}

	p := ref.prev
	cell.prev = p
	cell.next = ref
	if p != nil {
		p.next = cell
	} else {
		s.head = cell
	}
	ref.prev = cell
	return cell
}

// Erase removes ref from the storage. ref itself becomes an inert
// tombstone: other live Refs, including ones obtained before this call,
// remain valid, and ref.Next()/ref.Prev() still resolve to the nearest
// surviving neighbor.
func (s *Storage) Erase(ref Ref) {
	if ref.erased {
		panic("BUG: double erase of a MicroInstr")
	}
	ref.erased = true
	p, n := ref.prev, ref.next
	if p != nil {
		p.next = n
	} else {
		s.head = n
	}
	if n != nil {
		n.prev = p
	} else {
		s.tail = p
	}
}

// SetOperands replaces ref's operand window with a freshly allocated
// block, used when a rewrite changes the operand count. Any previously
// obtained slice from ref.Ops() becomes stale; callers must call Ops()
// again after this.
func (s *Storage) SetOperands(ref Ref, ops []Operand) {
	block := s.operands.allocateBlock(len(ops))
	copy(block, ops)
	ref.ops = block
}

// Rewrite changes both the opcode and the operand window of ref in a
// single step, the shape-changing counterpart to MicroInstr.SetOperand.
func (s *Storage) Rewrite(ref Ref, opcode Opcode, ops []Operand) {
	ref.Opcode = opcode
	s.SetOperands(ref, ops)
}
