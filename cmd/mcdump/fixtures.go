package main

import (
	"github.com/solder-lang/mcbackend/abi"
	"github.com/solder-lang/mcbackend/builder"
	"github.com/solder-lang/mcbackend/mcir"
)

// fixture names the hand-built programs dump/bench-fixture can run;
// each exercises a different slice of the Micro-IR surface.
var fixtures = map[string]func() *builder.Function{
	"add_one":      fixtureAddOne,
	"sum_array":    fixtureSumArray,
	"branch_max":   fixtureBranchMax,
	"call_through": fixtureCallThrough,
}

// fixtureAddOne is the smallest possible function: load an immediate,
// add one, return it in RAX.
func fixtureAddOne() *builder.Function {
	fn := builder.NewFunction("add_one", abi.WindowsX64)
	a := fn.NewVirtualInt()
	fn.LoadRegImm(a, 41, mcir.Bits64)
	fn.OpBinaryRegImm(a, 1, mcir.OpAdd, mcir.Bits64)
	fn.LoadRegReg(mcir.RAX, a, mcir.Bits64)
	fn.Ret()
	return fn
}

// fixtureSumArray walks a zero-terminated array of int64s addressed by
// RCX (the first Windows x64 integer argument), accumulating the sum
// via AMC-addressed loads, a conditional exit branch, and an
// unconditional back-branch.
func fixtureSumArray() *builder.Function {
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
	return fn
}

// fixtureBranchMax computes max(RCX, RDX) using a conditional move
// rather than a branch, exercising the compare and cond-reg opcodes.
func fixtureBranchMax() *builder.Function {
	fn := builder.NewFunction("branch_max", abi.WindowsX64)
	a := fn.NewVirtualInt()
	b := fn.NewVirtualInt()
	fn.LoadRegReg(a, mcir.RCX, mcir.Bits64)
	fn.LoadRegReg(b, mcir.RDX, mcir.Bits64)
	fn.CmpRegReg(a, b, mcir.Bits64)
	fn.LoadCondRegReg(a, b, mcir.CondLess, mcir.Bits64)
	fn.LoadRegReg(mcir.RAX, a, mcir.Bits64)
	fn.Ret()
	return fn
}

// fixtureCallThrough forwards its single argument to an extern helper
// and returns its result, exercising symbolic call-site resolution.
func fixtureCallThrough() *builder.Function {
	fn := builder.NewFunction("call_through", abi.WindowsX64)
	fn.CallExtern("helper")
	fn.Ret()
	return fn
}
