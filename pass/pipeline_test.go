package pass

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solder-lang/mcbackend/abi"
	"github.com/solder-lang/mcbackend/builder"
	"github.com/solder-lang/mcbackend/config"
	"github.com/solder-lang/mcbackend/diag"
	"github.com/solder-lang/mcbackend/encoder"
	"github.com/solder-lang/mcbackend/mcir"
)

var setupOnce sync.Once

func setupABI() {
	setupOnce.Do(abi.Setup)
}

func runFunction(t *testing.T, fn *builder.Function, opt config.OptimizationLevel) (*encoder.Encoder, *diag.Collecting) {
	t.Helper()
	setupABI()

	cfg := config.Default()
	cfg.OptimizationLevel = opt
	enc := encoder.NewEncoder()
	sink := &diag.Collecting{}

	ctx, err := NewContext(fn, cfg, enc, sink)
	require.NoError(t, err)
	require.NoError(t, Run(ctx))
	return enc, sink
}

func TestPipelineEmitsAddOneFunction(t *testing.T) {
	fn := builder.NewFunction("add_one", abi.WindowsX64)
	a := fn.NewVirtualInt()
	fn.LoadRegImm(a, 41, mcir.Bits64)
	fn.OpBinaryRegImm(a, 1, mcir.OpAdd, mcir.Bits64)
	fn.LoadRegReg(mcir.RAX, a, mcir.Bits64)
	fn.Ret()

	enc, sink := runFunction(t, fn, config.OptDefault)
	require.Empty(t, sink.Reports)
	require.NotEmpty(t, enc.Bytes())
	require.Equal(t, byte(0xC3), enc.Bytes()[len(enc.Bytes())-1])
}

func TestPipelineResolvesDirectCallSites(t *testing.T) {
	fn := builder.NewFunction("call_through", abi.WindowsX64)
	fn.CallExtern("helper")
	fn.Ret()

	enc, sink := runFunction(t, fn, config.OptNone)
	require.Empty(t, sink.Reports)
	relocs := enc.Relocations()
	require.Len(t, relocs, 1)
	require.Equal(t, encoder.RelocAMD64REL32, relocs[0].Kind)
}

func TestPipelineHandlesAmcLoopWithBackBranch(t *testing.T) {
	fn := builder.NewFunction("sum_array", abi.WindowsX64)
	base := mcir.RCX
	sum := fn.NewVirtualInt()
	idx := fn.NewVirtualInt()
	elem := fn.NewVirtualInt()

	fn.LoadRegImm(sum, 0, mcir.Bits64)
	fn.LoadRegImm(idx, 0, mcir.Bits64)

	loop := fn.NewLabel()
	done := fn.NewLabel()
	fn.Label(loop)
	fn.LoadAmcRegMem(elem, base, idx, 8, 0, mcir.Bits64)
	fn.CmpRegZero(elem, mcir.Bits64)
	fn.JumpCond(mcir.CondEqual, done)
	fn.OpBinaryRegReg(sum, elem, mcir.OpAdd, mcir.Bits64)
	fn.OpBinaryRegImm(idx, 1, mcir.OpAdd, mcir.Bits64)
	fn.Jump(loop)
	fn.Label(done)
	fn.LoadRegReg(mcir.RAX, sum, mcir.Bits64)
	fn.Ret()

	enc, sink := runFunction(t, fn, config.OptDefault)
	require.Empty(t, sink.Reports)
	require.NotEmpty(t, enc.Bytes())
}

func TestPipelineLegalizesOversizedImmediate(t *testing.T) {
	fn := builder.NewFunction("big_imm", abi.WindowsX64)
	a := fn.NewVirtualInt()
	fn.LoadRegImm(a, 0, mcir.Bits64)
	// A 64-bit immediate that doesn't fit signed-32 forces legalize to
	// materialize it into a scratch register before the add can encode.
	fn.OpBinaryRegImm(a, 0x1_0000_0001, mcir.OpAdd, mcir.Bits64)
	fn.LoadRegReg(mcir.RAX, a, mcir.Bits64)
	fn.Ret()

	enc, sink := runFunction(t, fn, config.OptNone)
	require.Empty(t, sink.Reports)
	require.NotEmpty(t, enc.Bytes())
}

func TestPipelineEncodesConditionalMove(t *testing.T) {
	fn := builder.NewFunction("branch_max", abi.WindowsX64)
	a := fn.NewVirtualInt()
	b := fn.NewVirtualInt()
	fn.LoadRegReg(a, mcir.RCX, mcir.Bits64)
	fn.LoadRegReg(b, mcir.RDX, mcir.Bits64)
	fn.CmpRegReg(a, b, mcir.Bits64)
	fn.LoadCondRegReg(a, b, mcir.CondLess, mcir.Bits64)
	fn.LoadRegReg(mcir.RAX, a, mcir.Bits64)
	fn.Ret()

	enc, sink := runFunction(t, fn, config.OptDefault)
	require.Empty(t, sink.Reports)
	require.NotEmpty(t, enc.Bytes())
}
