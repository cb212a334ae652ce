package pass

import (
	"fmt"
	"sort"

	"github.com/solder-lang/mcbackend/mcir"
)

// liveInterval is one virtual register's live range, in instruction
// index units (§4.8's linear-scan allocator, decided over a graph-
// coloring allocator per this module's own complexity/compile-time
// tradeoff).
type liveInterval struct {
	reg        mcir.MicroReg
	start, end int
}

// runRegAlloc assigns a physical register to every virtual register in
// ctx.Fn, using linear scan over each register class's candidate pool
// independently (integer virtuals draw from CC.IntTransientRegs plus
// IntPersistentRegs when PreservePersistentRegs is false; float virtuals
// likewise from the float pools). It reports an error, rather than
// panicking, when a class runs out of physical registers — this
// allocator does not implement spilling to the stack, so a function
// whose live virtual-register pressure exceeds the register file cannot
// be compiled yet.
func runRegAlloc(ctx *Context) error {
	storage := ctx.Fn.Storage

	order := numberInstructions(storage)
	intervals := computeLiveIntervals(storage, order)

	intCandidates := candidatePool(ctx, false)
	floatCandidates := candidatePool(ctx, true)

	intAssign, err := linearScan(filterByFloat(intervals, false), intCandidates)
	if err != nil {
		return err
	}
	floatAssign, err := linearScan(filterByFloat(intervals, true), floatCandidates)
	if err != nil {
		return err
	}

	for ref := storage.Begin(); ref != storage.End(); ref = ref.Next() {
		for _, idx := range mcir.CollectRegOperands(ref) {
			r := ref.Reg(idx)
			if !r.IsVirtual() {
				continue
			}
			var phys mcir.MicroReg
			var ok bool
			if r.IsFloat() {
				phys, ok = floatAssign[r]
			} else {
				phys, ok = intAssign[r]
			}
			if !ok {
				return fmt.Errorf("regalloc: virtual register %d never appeared in a live interval", r)
			}
			ref.SetOperand(idx, mcir.RegOperand(phys))
		}
	}
	return nil
}

func numberInstructions(storage *mcir.Storage) map[mcir.Ref]int {
	order := make(map[mcir.Ref]int)
	i := 0
	for ref := storage.Begin(); ref != storage.End(); ref = ref.Next() {
		order[ref] = i
		i++
	}
	return order
}

func computeLiveIntervals(storage *mcir.Storage, order map[mcir.Ref]int) []liveInterval {
	span := make(map[mcir.MicroReg]*liveInterval)
	touch := func(r mcir.MicroReg, pos int) {
		if !r.IsVirtual() {
			return
		}
		iv, ok := span[r]
		if !ok {
			iv = &liveInterval{reg: r, start: pos, end: pos}
			span[r] = iv
			return
		}
		if pos < iv.start {
			iv.start = pos
		}
		if pos > iv.end {
			iv.end = pos
		}
	}
	for ref := storage.Begin(); ref != storage.End(); ref = ref.Next() {
		pos := order[ref]
		for _, idx := range mcir.CollectRegOperands(ref) {
			touch(ref.Reg(idx), pos)
		}
	}
	out := make([]liveInterval, 0, len(span))
	for _, iv := range span {
		out = append(out, *iv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func filterByFloat(intervals []liveInterval, float bool) []liveInterval {
	var out []liveInterval
	for _, iv := range intervals {
		if iv.reg.IsFloat() == float {
			out = append(out, iv)
		}
	}
	return out
}

func candidatePool(ctx *Context, float bool) []mcir.MicroReg {
	cc := ctx.CC
	if float {
		if ctx.Config.PreservePersistentRegs {
			return cc.FloatTransientRegs
		}
		return append(append([]mcir.MicroReg{}, cc.FloatTransientRegs...), cc.FloatPersistentRegs...)
	}
	if ctx.Config.PreservePersistentRegs {
		return cc.IntTransientRegs
	}
	return append(append([]mcir.MicroReg{}, cc.IntTransientRegs...), cc.IntPersistentRegs...)
}

// linearScan implements the classic Poletto/Sarkar algorithm: intervals
// are processed in start order; any active interval whose end has
// already passed releases its register before a new one is assigned.
func linearScan(intervals []liveInterval, pool []mcir.MicroReg) (map[mcir.MicroReg]mcir.MicroReg, error) {
	assign := make(map[mcir.MicroReg]mcir.MicroReg, len(intervals))
	type activeEntry struct {
		iv  liveInterval
		reg mcir.MicroReg
	}
	var active []activeEntry
	free := append([]mcir.MicroReg(nil), pool...)

	for _, iv := range intervals {
		// Expire intervals that have ended.
		kept := active[:0]
		for _, a := range active {
			if a.iv.end < iv.start {
				free = append(free, a.reg)
			} else {
				kept = append(kept, a)
			}
		}
		active = kept

		if len(free) == 0 {
			return nil, fmt.Errorf("regalloc: register file exhausted (no spilling implemented); virtual register %d unassignable", iv.reg)
		}
		phys := free[len(free)-1]
		free = free[:len(free)-1]
		assign[iv.reg] = phys
		active = append(active, activeEntry{iv: iv, reg: phys})
	}
	return assign, nil
}
