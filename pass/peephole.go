package pass

import (
	"github.com/solder-lang/mcbackend/encoder"
	"github.com/solder-lang/mcbackend/mcir"
	"github.com/solder-lang/mcbackend/pass/peephole"
)

// encoderProber adapts *encoder.Encoder to peephole.Prober: a rewrite
// conforms only if the encoder would accept it without any further
// legalization.
type encoderProber struct {
	ctx *Context
}

func (p encoderProber) Probe(inst *mcir.MicroInstr) bool {
	return p.ctx.Enc.Probe(inst) == encoder.EncodeOK
}

func runPeephole(ctx *Context) {
	peephole.Run(ctx.Fn.Storage, encoderProber{ctx: ctx}, peephole.DefaultRules())
}
