package mcir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMicroRegRoundTripsClassAndIndex(t *testing.T) {
	r := NewMicroReg(RegClassVirtInt, 7)
	require.Equal(t, RegClassVirtInt, r.Class())
	require.Equal(t, uint32(7), r.Index())
	require.True(t, r.IsValid())
	require.True(t, r.IsVirtual())
	require.False(t, r.IsPhysical())
}

func TestNamedPhysicalRegistersHaveDistinctIndices(t *testing.T) {
	require.Equal(t, uint32(0), RAX.Index())
	require.Equal(t, uint32(15), R15.Index())
	require.True(t, IsExtendedGPR(R8))
	require.False(t, IsExtendedGPR(RAX))
}

func TestIsByteRegNeedingRex(t *testing.T) {
	require.True(t, IsByteRegNeedingRex(RSP))
	require.True(t, IsByteRegNeedingRex(RDI))
	require.False(t, IsByteRegNeedingRex(RAX))
	require.False(t, IsByteRegNeedingRex(R8))
}

func TestRegNameFormatsPhysicalRegisters(t *testing.T) {
	require.Equal(t, "rax", RegName(RAX))
	require.Equal(t, "r13", RegName(R13))
	require.Equal(t, "xmm3", RegName(XMM3))
	require.Equal(t, "?", RegName(NewMicroReg(RegClassVirtInt, 0)))
}
