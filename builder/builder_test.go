package builder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solder-lang/mcbackend/abi"
	"github.com/solder-lang/mcbackend/mcir"
)

func TestNewVirtualRegistersAreDistinctAndTyped(t *testing.T) {
	fn := NewFunction("f", abi.WindowsX64)
	a := fn.NewVirtualInt()
	b := fn.NewVirtualInt()
	c := fn.NewVirtualFloat()

	require.NotEqual(t, a, b)
	require.True(t, a.IsVirtual())
	require.False(t, a.IsFloat())
	require.True(t, c.IsFloat())
}

func TestCallLocalRecordsCallSiteInfo(t *testing.T) {
	fn := NewFunction("caller", abi.WindowsX64)
	ref := fn.CallLocal("callee")

	require.Equal(t, mcir.OpcodeJumpReg, ref.Opcode)
	require.True(t, ref.IsCall())
	require.Equal(t, 1, len(fn.CallSites))

	site := ref.Ops()[2].Patch
	info, ok := fn.CallSites[site]
	require.True(t, ok)
	require.Equal(t, "callee", info.Name)
	require.False(t, info.Extern)
}

func TestCallExternMarksExtern(t *testing.T) {
	fn := NewFunction("caller", abi.WindowsX64)
	ref := fn.CallExtern("memcpy")

	site := ref.Ops()[2].Patch
	info := fn.CallSites[site]
	require.True(t, info.Extern)
	require.Equal(t, "memcpy", info.Name)
}

func TestLoadAddrDataRegRecordsDataRef(t *testing.T) {
	fn := NewFunction("f", abi.WindowsX64)
	dst := fn.NewVirtualInt()
	ref := fn.LoadAddrDataReg(dst, "greeting")

	site := ref.Ops()[2].Patch
	info, ok := fn.DataRefs[site]
	require.True(t, ok)
	require.Equal(t, "greeting", info.Name)
}

func TestLoadAmcRegMemOperandShape(t *testing.T) {
	fn := NewFunction("f", abi.WindowsX64)
	dst := fn.NewVirtualInt()
	base := fn.NewVirtualInt()
	index := fn.NewVirtualInt()
	ref := fn.LoadAmcRegMem(dst, base, index, 8, 16, mcir.Bits64)

	require.Equal(t, mcir.OpcodeLoadAmcRegMem, ref.Opcode)
	ops := ref.Ops()
	require.Equal(t, dst, ops[0].Reg)
	require.Equal(t, base, ops[1].Reg)
	require.Equal(t, index, ops[2].Reg)
	require.Equal(t, uint64(8), ops[3].Imm)
	require.Equal(t, uint64(uint32(16)), ops[4].Imm)
	require.Equal(t, mcir.Bits64, ops[5].Bits)
}

func TestJumpAndLabelShareExactPatchSite(t *testing.T) {
	fn := NewFunction("f", abi.WindowsX64)
	target := fn.NewLabel()

	jump := fn.Jump(target)
	label := fn.Label(target)

	require.Same(t, target, jump.Ops()[1].Patch)
	require.Same(t, target, label.Ops()[0].Patch)
}
