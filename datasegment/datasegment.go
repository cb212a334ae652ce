// Package datasegment is the paged rodata store backing string and
// payload-buffer literals: string/byte-slice constants and fixed-size
// typed spans a function can take the address of via
// builder.Function.LoadAddrDataReg (spec §4.2, §6).
package datasegment

import (
	"strconv"

	"github.com/solder-lang/mcbackend/support"
)

// Entry is one interned rodata object.
type Entry struct {
	Name  string
	Bytes []byte
	Align int
}

// Segment accumulates rodata entries and hands out stable symbolic names
// for them; it never reuses a name and never moves an entry once added,
// mirroring support.Pool's stability guarantee.
type Segment struct {
	pool    *support.Pool[Entry]
	byName  map[string]support.PoolIndex
	counter int
}

// NewSegment returns an empty data segment.
func NewSegment() *Segment {
	return &Segment{pool: support.NewPool[Entry](), byName: make(map[string]support.PoolIndex)}
}

// AddString interns s as a NUL-free UTF-8 byte string and returns its
// symbolic name, reusing an existing entry if an identical string was
// already interned.
func (s *Segment) AddString(value string) string {
	for i := 0; i < s.pool.Len(); i++ {
		e := s.pool.View(support.PoolIndex(i))
		if len(e.Name) > 4 && e.Name[:4] == "str$" && string(e.Bytes) == value {
			return e.Name
		}
	}
	return s.addBytes([]byte(value), 1, "str")
}

// AddPayloadBuffer interns an arbitrary byte payload (e.g. a
// struct-literal initializer) at the given alignment.
func (s *Segment) AddPayloadBuffer(payload []byte, align int) string {
	if align <= 0 {
		align = 1
	}
	return s.addBytes(payload, align, "buf")
}

func (s *Segment) addBytes(payload []byte, align int, prefix string) string {
	cell, idx := s.pool.Allocate()
	name := s.freshName(prefix)
	cell.Name = name
	cell.Bytes = append([]byte(nil), payload...)
	cell.Align = align
	s.byName[name] = idx
	return name
}

func (s *Segment) freshName(prefix string) string {
	s.counter++
	return prefix + "$" + strconv.Itoa(s.counter)
}

// ReserveSpan reserves n zero-initialized bytes at the given alignment
// for a typed rodata span (e.g. a jump table's base, or a vtable), and
// returns its symbolic name and the Segment-relative byte offset it was
// placed at.
func (s *Segment) ReserveSpan(n int, align int) (name string, offset int) {
	if align <= 0 {
		align = 1
	}
	name = s.addBytes(make([]byte, n), align, "span")
	return name, s.OffsetOf(name)
}

// Lookup returns the entry registered under name.
func (s *Segment) Lookup(name string) (Entry, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return Entry{}, false
	}
	return *s.pool.View(idx), true
}

// OffsetOf returns the byte offset name would occupy within a
// sequentially laid out data segment (entries in allocation order,
// each aligned to its own Align). Used by a linker/loader that flattens
// the segment into a contiguous blob.
func (s *Segment) OffsetOf(name string) int {
	target, ok := s.byName[name]
	if !ok {
		return -1
	}
	offset := 0
	for i := 0; i < s.pool.Len(); i++ {
		idx := support.PoolIndex(i)
		e := s.pool.View(idx)
		if pad := align(offset, e.Align); pad != offset {
			offset = pad
		}
		if idx == target {
			return offset
		}
		offset += len(e.Bytes)
	}
	return -1
}

func align(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + (alignment - rem)
}

// Flatten returns the segment's contents as one contiguous byte blob,
// laid out in allocation order with each entry aligned per its own
// Align, ready to hand to a COFF .rdata writer.
func (s *Segment) Flatten() []byte {
	var out []byte
	for i := 0; i < s.pool.Len(); i++ {
		e := s.pool.View(support.PoolIndex(i))
		if pad := align(len(out), e.Align) - len(out); pad > 0 {
			out = append(out, make([]byte, pad)...)
		}
		out = append(out, e.Bytes...)
	}
	return out
}
