package peephole

import "github.com/solder-lang/mcbackend/mcir"

// ruleElideRedundantClear erases a ClearReg whose destination is
// overwritten by the next instruction without being read, the cleanup
// counterpart of ruleElideDeadCopyBeforeOverwrite for the zeroing idiom
// specifically (ClearReg has no source operand to alias-check, so it
// gets its own rule rather than sharing the copy-family match).
func ruleElideRedundantClear() Rule {
	return Rule{
		Name:     "cleanup_elide_dead_clear",
		Category: CategoryCleanup,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeClearReg {
				return false
			}
			next := c.Ref.Next()
			if next == nil {
				return false
			}
			return isCopyDeadAfterInstruction(next, c.Ref.Reg(0))
		},
		Apply: func(c *Cursor) bool {
			return tryRewrite(c, func() {
				c.Storage.Erase(c.Ref)
			})
		},
	}
}

// ruleDropDeadFlagsDefiner erases a Cmp* instruction whose only purpose
// was to set flags that nothing downstream reads before the next
// flags-defining instruction — a compare left behind by an earlier
// rewrite that folded away the branch or setcc that used to consume it.
// Per I4 (flag liveness), this must never fire when the very next
// instruction still reads flags; areFlagsDeadAfterInstruction checks
// exactly that one-instruction horizon, which is sufficient since no
// instruction in this IR both reads and redefines flags in the same
// step.
func ruleDropDeadFlagsDefiner() Rule {
	return Rule{
		Name:     "cleanup_drop_dead_compare",
		Category: CategoryCleanup,
		Match: func(c *Cursor) bool {
			if !mcir.DefinesCpuFlags(c.Ref) {
				return false
			}
			switch c.Ref.Opcode {
			case mcir.OpcodeCmpRegReg, mcir.OpcodeCmpRegImm, mcir.OpcodeCmpRegZero:
			default:
				return false
			}
			next := c.Ref.Next()
			return next != nil && areFlagsDeadAfterInstruction(next)
		},
		Apply: func(c *Cursor) bool {
			return tryRewrite(c, func() {
				c.Storage.Erase(c.Ref)
			})
		},
	}
}

// areFlagsDeadAfterInstruction reports whether the flags a preceding
// instruction defined are dead at next: true only when next does not read
// flags and itself redefines them. Only next is examined; any other next,
// including a barrier or an instruction that leaves flags untouched,
// yields false without looking further ahead.
func areFlagsDeadAfterInstruction(next mcir.Ref) bool {
	if mcir.UsesCpuFlags(next) {
		return false
	}
	return mcir.DefinesCpuFlags(next)
}
