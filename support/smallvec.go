package support

// SmallIntVec is an append-only vector of int optimized for the common
// case (a handful of register indices per instruction) without an
// allocation, falling back to a heap slice past the inline capacity.
// No pass uses it at present: use/def index lists are plain []int.
type SmallIntVec struct {
	inline [4]int
	n      int
	spill  []int
}

// Append adds v to the vector.
func (s *SmallIntVec) Append(v int) {
	if s.n < len(s.inline) {
		s.inline[s.n] = v
		s.n++
		return
	}
	if s.spill == nil {
		s.spill = make([]int, 0, 8)
	}
	s.spill = append(s.spill, v)
	s.n++
}

// Len returns the number of elements appended.
func (s *SmallIntVec) Len() int { return s.n }

// At returns the i-th element.
func (s *SmallIntVec) At(i int) int {
	if i < len(s.inline) {
		return s.inline[i]
	}
	return s.spill[i-len(s.inline)]
}

// Reset empties the vector for reuse.
func (s *SmallIntVec) Reset() {
	s.n = 0
	s.spill = s.spill[:0]
}

// Slice materializes the vector into a plain []int. Prefer At/Len in hot
// loops; this is for call sites that need a real slice.
func (s *SmallIntVec) Slice() []int {
	out := make([]int, s.n)
	for i := 0; i < s.n; i++ {
		out[i] = s.At(i)
	}
	return out
}
