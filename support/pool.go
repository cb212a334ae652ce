// Package support holds the generic arena and small-vector types shared
// by the rest of the backend. None of it is specific to the Micro-IR; it
// exists so that mcir and datasegment can both build
// on the same paged-storage primitive.
package support

const poolPageSize = 256

// Pool is a paged, append-only arena for T. Elements are never physically
// moved once allocated, so a *T handed out by Allocate remains valid for
// the lifetime of the Pool, even across further Allocate calls that grow
// the arena. This is the property the Micro-IR storage and the data
// segment both depend on.
type Pool[T any] struct {
	pages     []*[poolPageSize]T
	index     int
	allocated int
}

// NewPool returns a ready-to-use Pool.
func NewPool[T any]() *Pool[T] {
	p := &Pool[T]{}
	p.Reset()
	return p
}

// Allocate returns a pointer to a fresh, zero-valued T and its stable
// PoolIndex within this arena.
func (p *Pool[T]) Allocate() (*T, PoolIndex) {
	if p.index == poolPageSize {
		if len(p.pages) == cap(p.pages) {
			p.pages = append(p.pages, new([poolPageSize]T))
		} else {
			i := len(p.pages)
			p.pages = p.pages[:i+1]
			if p.pages[i] == nil {
				p.pages[i] = new([poolPageSize]T)
			}
		}
		p.index = 0
	}
	page := len(p.pages) - 1
	idx := p.index
	p.index++
	p.allocated++
	return &p.pages[page][idx], PoolIndex(page*poolPageSize + idx)
}

// View returns the element at i. i must have been returned by a previous
// Allocate call on this Pool (after the last Reset).
func (p *Pool[T]) View(i PoolIndex) *T {
	page, idx := int(i)/poolPageSize, int(i)%poolPageSize
	return &p.pages[page][idx]
}

// Len returns the number of elements allocated since the last Reset.
func (p *Pool[T]) Len() int { return p.allocated }

// Reset clears the arena for reuse, zeroing every slot so stale pointers
// don't keep large values alive.
func (p *Pool[T]) Reset() {
	for _, page := range p.pages {
		var zero T
		for i := range page {
			page[i] = zero
		}
	}
	p.pages = p.pages[:0]
	p.index = poolPageSize
	p.allocated = 0
}

// PoolIndex is a stable handle into a Pool.
type PoolIndex uint32

// InvalidPoolIndex marks the absence of an element.
const InvalidPoolIndex PoolIndex = 1<<32 - 1
