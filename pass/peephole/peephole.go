// Package peephole is the rule-driven peephole optimizer: a small,
// ordered list of local rewrite rules over addressing, immediate,
// copy-elimination, and cleanup patterns, each applied greedily and
// rolled back if the result fails the encoder's conformance probe (spec
// §4.7).
package peephole

import "github.com/solder-lang/mcbackend/mcir"

// Prober is the subset of the encoder this package consults to check
// that a rewrite it is about to commit is actually encodable; kept as an
// interface so the package doesn't import the encoder directly (and so
// tests can supply a fake).
type Prober interface {
	Probe(inst *mcir.MicroInstr) (ok bool)
}

// Rule is one named rewrite: Match reports whether it applies at the
// cursor's current instruction, and Apply performs the rewrite, reporting
// whether anything actually changed.
type Rule struct {
	Name     string
	Category Category
	Match    func(c *Cursor) bool
	Apply    func(c *Cursor) bool
}

// Category groups rules the way the spec's rule-list layout does.
type Category uint8

const (
	CategoryAddressing Category = iota
	CategoryImmediate
	CategoryCopy
	CategoryCleanup
)

// Cursor is the peephole driver's view of one position in a function's
// instruction storage: the instruction under consideration, its storage,
// and the prober rules consult before committing a rewrite that could
// change encodability.
type Cursor struct {
	Storage *mcir.Storage
	Ref     mcir.Ref
	Prober  Prober
}

// snapshot captures a copy of an instruction's operand array so a rule
// can restore it if the rewrite it attempted turns out not to conform.
type snapshot struct {
	ops []mcir.Operand
}

func takeSnapshot(ref mcir.Ref) snapshot {
	return snapshot{ops: append([]mcir.Operand(nil), ref.Ops()...)}
}

func (s snapshot) restore(storage *mcir.Storage, ref mcir.Ref) {
	storage.SetOperands(ref, s.ops)
}

// tryRewrite calls rewrite (expected to mutate c.Ref's operands via
// SetOperand/Rewrite) and probes the result; if the prober rejects it,
// the pre-rewrite operands are restored and tryRewrite reports false.
func tryRewrite(c *Cursor, rewrite func()) bool {
	snap := takeSnapshot(c.Ref)
	rewrite()
	if c.Prober == nil || c.Prober.Probe(c.Ref) {
		return true
	}
	snap.restore(c.Storage, c.Ref)
	return false
}

// DefaultRules returns the built-in rule list in priority order: one or
// more representative rules per category. Termination is guaranteed by
// construction — every rule here except cmp_zero_canonical erases at
// least one instruction, and cmp_zero_canonical rewrites a CmpRegImm into
// a CmpRegZero in place, which no rule turns back into a CmpRegImm, so the
// measure in §4.7 (instruction count, primarily) can only decrease.
func DefaultRules() []Rule {
	return []Rule{
		ruleAddrFoldLoadAfterLea(),
		ruleAddrFoldLoadBeforeRead(),
		ruleFoldZeroIndexAmc(),
		ruleFoldCopyAddIntoLoadAddress(),
		ruleFoldLoadAddrIntoNextMemOffset(),
		ruleFoldLoadAddrAmcIntoNextMemoryAccess(),
		ruleFoldLoadRegMemIntoNextLoadAddrCopy(),
		ruleFoldLoadRegMemIntoNextBinaryRegMem(),
		ruleMergeRegImmArithmetic(),
		ruleCanonicalizeCmpZero(),
		ruleFoldLoadImmIntoNextCopy(),
		ruleFoldLoadImmIntoNextBinary(),
		ruleFoldLoadImmIntoNextCompare(),
		ruleFoldLoadImmIntoNextMemStore(),
		ruleFoldAdjacentMemImm32Stores(),
		ruleElideSelfCopy(),
		ruleElideDeadCopyBeforeOverwrite(),
		ruleForwardCopyIntoNextBinarySource(),
		ruleForwardCopyIntoNextCompareSource(),
		ruleFoldCopyTwinLoadMemReuse(),
		ruleFoldCopyOpCopyBack(),
		ruleFoldCopyUnaryCopyBack(),
		ruleElideRedundantClear(),
		ruleDropDeadFlagsDefiner(),
	}
}

// Run drives rules over every instruction in storage once, left to
// right, per §4.7's rule driver: at each position it tries rules in list
// order and applies the first match, then recomputes the next live
// instruction (since a rule may have erased the one right after the
// cursor). It returns whether any rule fired, so a caller asserting the
// fixed-point law (L3) can check a second run reports false.
func Run(storage *mcir.Storage, prober Prober, rules []Rule) (changed bool) {
	ref := storage.Begin()
	for ref != storage.End() {
		c := &Cursor{Storage: storage, Ref: ref, Prober: prober}
		for _, rule := range rules {
			if ref.Erased() {
				break
			}
			if rule.Match(c) && rule.Apply(c) {
				changed = true
				break
			}
		}
		// Ref.Next skips any tombstoned instruction it encounters
		// (including ref itself, if a rule erased it), so the cursor
		// always lands on the next surviving instruction regardless of
		// whether this position's rule erased something.
		ref = c.Ref.Next()
	}
	return changed
}
