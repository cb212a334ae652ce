// Command mcdump is a small debug CLI for the backend: it builds a
// Micro-IR program from one of the fixtures in fixtures.go, runs it
// through the full pass pipeline, and prints the resulting machine code,
// relocations, and a disassembly trace. bench-fixture instead times
// repeated pipeline runs over a fixture, in the same spirit as the
// teacher's cmd/z80opt debug surface.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/solder-lang/mcbackend/abi"
	"github.com/solder-lang/mcbackend/builder"
	"github.com/solder-lang/mcbackend/config"
	"github.com/solder-lang/mcbackend/diag"
	"github.com/solder-lang/mcbackend/encoder"
	"github.com/solder-lang/mcbackend/pass"
)

func main() {
	abi.Setup()

	rootCmd := &cobra.Command{
		Use:   "mcdump",
		Short: "Build, compile, and inspect Micro-IR fixtures",
	}

	var optLevel string

	dumpCmd := &cobra.Command{
		Use:   "dump [fixture]",
		Short: "Compile a fixture and print its bytes, relocations, and disassembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, enc, err := compileFixture(args[0], optLevel)
			if err != nil {
				return err
			}
			fmt.Printf("function %s (%d bytes)\n\n", fn.Name, len(enc.Bytes()))
			fmt.Println(hex.Dump(enc.Bytes()))
			printRelocations(enc)
			fmt.Println()
			fmt.Print(enc.DumpText())
			return nil
		},
	}
	dumpCmd.Flags().StringVar(&optLevel, "opt", "default", "optimization level: none, default, aggressive")

	benchCmd := &cobra.Command{
		Use:   "bench-fixture [fixture]",
		Short: "Time repeated pipeline runs over a fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iterations, err := cmd.Flags().GetInt("iterations")
			if err != nil {
				return err
			}
			start := time.Now()
			for i := 0; i < iterations; i++ {
				if _, _, err := compileFixture(args[0], optLevel); err != nil {
					return err
				}
			}
			elapsed := time.Since(start)
			fmt.Printf("%s: %d iterations in %s (%s/iter)\n",
				args[0], iterations, elapsed, elapsed/time.Duration(iterations))
			return nil
		},
	}
	benchCmd.Flags().StringVar(&optLevel, "opt", "default", "optimization level: none, default, aggressive")
	benchCmd.Flags().Int("iterations", 10000, "number of pipeline runs to time")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the available fixtures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(fixtures))
			for name := range fixtures {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	rootCmd.AddCommand(dumpCmd, benchCmd, listCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// compileFixture builds the named fixture, runs it through the pass
// pipeline at the given optimization level, and returns the function
// alongside the encoder holding its emitted code.
func compileFixture(name, optLevel string) (*builder.Function, *encoder.Encoder, error) {
	build, ok := fixtures[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown fixture %q (see mcdump list)", name)
	}
	fn := build()

	cfg := config.Default()
	switch optLevel {
	case "none":
		cfg.OptimizationLevel = config.OptNone
	case "default":
		cfg.OptimizationLevel = config.OptDefault
	case "aggressive":
		cfg.OptimizationLevel = config.OptAggressive
	default:
		return nil, nil, fmt.Errorf("unknown optimization level %q", optLevel)
	}

	enc := encoder.NewEncoder()
	sink := &diag.Collecting{}
	ctx, err := pass.NewContext(fn, cfg, enc, sink)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving calling convention: %w", err)
	}
	if err := pass.Run(ctx); err != nil {
		return nil, nil, fmt.Errorf("compiling %s: %w", name, err)
	}
	for _, r := range sink.Reports {
		fmt.Fprintf(os.Stderr, "internal error in %s: %s\n", r.Module, r.Message)
	}
	return fn, enc, nil
}

func printRelocations(enc *encoder.Encoder) {
	relocs := enc.Relocations()
	if len(relocs) == 0 {
		fmt.Println("relocations: none")
		return
	}
	fmt.Println("relocations:")
	for _, r := range relocs {
		fmt.Printf("  %+v\n", r)
	}
}
