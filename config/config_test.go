package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solder-lang/mcbackend/abi"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
optimization_level = "aggressive"
call_convention = "c"
preserve_persistent_regs = false
`), 0o644))

	b, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, OptAggressive, b.OptimizationLevel)
	require.False(t, b.PreservePersistentRegs)

	kind, err := b.ResolveCallConv()
	require.NoError(t, err)
	require.Equal(t, abi.C, kind)
}

func TestValidateRejectsUnknownOptimizationLevel(t *testing.T) {
	b := Default()
	b.OptimizationLevel = "ludicrous"
	require.Error(t, b.Validate())
}

func TestValidateRejectsUnknownCallConvention(t *testing.T) {
	b := Default()
	b.CallConvention = "arm-eabi"
	require.Error(t, b.Validate())
}
