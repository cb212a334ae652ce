package abi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solder-lang/mcbackend/mcir"
)

var setupOnce sync.Once

func setupOnceHelper() {
	setupOnce.Do(Setup)
}

func TestGetReturnsDistinctWindowsX64AndHostConv(t *testing.T) {
	setupOnceHelper()
	windows := Get(WindowsX64)
	host := Get(Host)
	require.NotNil(t, windows)
	require.NotNil(t, host)
	require.Equal(t, host, HostConv())
	require.NotSame(t, windows, host)
}

func TestGetPanicsOnUnknownKind(t *testing.T) {
	setupOnceHelper()
	require.Panics(t, func() {
		Get(Kind(255))
	})
}

func TestTryPickIntScratchRegsExcludesForbidden(t *testing.T) {
	setupOnceHelper()
	cc := Get(WindowsX64)
	r0, r1, ok := cc.TryPickIntScratchRegs([]mcir.MicroReg{mcir.RAX, mcir.RCX})
	require.True(t, ok)
	require.NotEqual(t, mcir.RAX, r0)
	require.NotEqual(t, mcir.RCX, r0)
	require.NotEqual(t, mcir.RAX, r1)
	require.NotEqual(t, mcir.RCX, r1)
	require.NotEqual(t, r0, r1)
}

func TestClassifyStructArgPassingBySize(t *testing.T) {
	setupOnceHelper()
	cc := Get(WindowsX64)
	small := cc.ClassifyStructArgPassing(8)
	large := cc.ClassifyStructArgPassing(64)
	require.NotEqual(t, small, large)
}
