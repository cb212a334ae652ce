package pass

import (
	"fmt"

	"github.com/solder-lang/mcbackend/config"
)

// Run executes the fixed 8-pass pipeline against ctx.Fn exactly once, in
// the order the spec requires. Optimization passes (constprop through
// peephole) are skipped entirely at config.OptNone; register allocation,
// prolog/epilog, legalization, and emission always run, since a function
// cannot reach machine code without them.
func Run(ctx *Context) error {
	if ctx.Config.OptimizationLevel != config.OptNone {
		runConstProp(ctx)
		runBranchFold(ctx)
		runLoadStoreForward(ctx)
		runPeephole(ctx)
	}
	if err := runRegAlloc(ctx); err != nil {
		ctx.Diag.ReportInternalError("regalloc", err.Error())
		return fmt.Errorf("regalloc: %w", err)
	}
	runPrologEpilog(ctx)
	if err := runLegalize(ctx); err != nil {
		return fmt.Errorf("legalize: %w", err)
	}
	if err := runEmit(ctx); err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	return nil
}
