// Package config loads the backend's build-time settings from a TOML
// file, the format the rest of the retrieval pack's tooling (and this
// project's own cmd/mcdump) standardizes on.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/solder-lang/mcbackend/abi"
)

// OptimizationLevel selects how aggressively the micro-passes rewrite a
// function's Micro-IR before legalization.
type OptimizationLevel string

const (
	OptNone   OptimizationLevel = "none"
	OptDefault OptimizationLevel = "default"
	OptAggressive OptimizationLevel = "aggressive"
)

// Build holds the settings a compilation driver threads through the pass
// manager for every function it compiles.
type Build struct {
	OptimizationLevel      OptimizationLevel `toml:"optimization_level"`
	CallConvention         string            `toml:"call_convention"`
	PreservePersistentRegs bool              `toml:"preserve_persistent_regs"`
}

// Default returns the conservative default build configuration: default
// optimization, the Windows x64 convention, and caller-visible persistent
// registers preserved across calls.
func Default() Build {
	return Build{
		OptimizationLevel:      OptDefault,
		CallConvention:         "windows-x64",
		PreservePersistentRegs: true,
	}
}

// Load reads and validates a Build configuration from a TOML file at
// path.
func Load(path string) (Build, error) {
	b := Default()
	if _, err := toml.DecodeFile(path, &b); err != nil {
		return Build{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return Build{}, err
	}
	return b, nil
}

// Validate reports whether b names a recognized optimization level and
// calling convention.
func (b Build) Validate() error {
	switch b.OptimizationLevel {
	case OptNone, OptDefault, OptAggressive:
	default:
		return fmt.Errorf("config: unknown optimization_level %q", b.OptimizationLevel)
	}
	if _, err := b.ResolveCallConv(); err != nil {
		return err
	}
	return nil
}

// ResolveCallConv maps the configured convention name to an abi.Kind.
func (b Build) ResolveCallConv() (abi.Kind, error) {
	switch b.CallConvention {
	case "windows-x64":
		return abi.WindowsX64, nil
	case "host":
		return abi.Host, nil
	case "c":
		return abi.C, nil
	default:
		return 0, fmt.Errorf("config: unknown call_convention %q", b.CallConvention)
	}
}
