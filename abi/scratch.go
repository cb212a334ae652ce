package abi

import (
	"github.com/samber/lo"

	"github.com/solder-lang/mcbackend/mcir"
)

// TryPickIntScratchRegs chooses two distinct integer registers excluded
// from the stack/frame pointers, the integer return register, every
// argument register, and every register in forbidden. It searches the
// persistent list first, then the transient list, then the full register
// file, and fails atomically — both outputs invalid — when a second
// register can't be found (§4.1).
func (cc *CallConv) TryPickIntScratchRegs(forbidden []mcir.MicroReg) (r0, r1 mcir.MicroReg, ok bool) {
	excluded := make(map[mcir.MicroReg]bool, 8+len(forbidden))
	excluded[cc.StackPointer] = true
	excluded[cc.FramePointer] = true
	excluded[cc.IntReturnReg] = true
	for _, r := range cc.IntArgRegs {
		excluded[r] = true
	}
	for _, r := range forbidden {
		excluded[r] = true
	}

	search := append(append([]mcir.MicroReg{}, cc.IntPersistentRegs...), cc.IntTransientRegs...)
	search = append(search, cc.IntRegs...)
	candidates := lo.Uniq(lo.Filter(search, func(r mcir.MicroReg, _ int) bool {
		return !excluded[r]
	}))

	if len(candidates) < 2 {
		return mcir.InvalidReg, mcir.InvalidReg, false
	}
	return candidates[0], candidates[1], true
}
