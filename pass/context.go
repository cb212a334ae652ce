// Package pass runs the fixed sequence of micro-passes the backend
// applies to every function exactly once, in order: constant propagation,
// branch folding, load/store forwarding, the peephole rule engine,
// register allocation, prolog/epilog insertion, legalization, and final
// emission (spec §4.4-§4.13).
package pass

import (
	"github.com/solder-lang/mcbackend/abi"
	"github.com/solder-lang/mcbackend/builder"
	"github.com/solder-lang/mcbackend/config"
	"github.com/solder-lang/mcbackend/diag"
	"github.com/solder-lang/mcbackend/encoder"
)

// Context threads the state every pass needs: the function being
// compiled, its resolved calling convention, the active build
// configuration, the encoder that legalize/emit consult, and the sink
// unrecoverable failures are reported to.
type Context struct {
	Fn     *builder.Function
	CC     *abi.CallConv
	Config config.Build
	Enc    *encoder.Encoder
	Diag   diag.Sink
}

// NewContext builds a pass Context for fn, resolving its calling
// convention from cfg and attaching enc as the encoder this function's
// legalize/emit stages target.
func NewContext(fn *builder.Function, cfg config.Build, enc *encoder.Encoder, sink diag.Sink) (*Context, error) {
	kind, err := cfg.ResolveCallConv()
	if err != nil {
		return nil, err
	}
	return &Context{
		Fn:     fn,
		CC:     abi.Get(kind),
		Config: cfg,
		Enc:    enc,
		Diag:   sink,
	}, nil
}
