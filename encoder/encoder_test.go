package encoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solder-lang/mcbackend/mcir"
)

func TestEmitLoadRegImmAndRet(t *testing.T) {
	storage := mcir.NewStorage()
	e := NewEncoder()
	e.BeginFunction("add_one")

	loadInstr := storage.Append(mcir.OpcodeLoadRegImm, []mcir.Operand{
		mcir.RegOperand(mcir.RAX),
		mcir.ImmOperand(41),
		mcir.BitsOperand(mcir.Bits64),
	})
	require.Equal(t, EncodeOK, e.Probe(loadInstr))
	n := e.Emit(loadInstr)
	require.Greater(t, n, 0)

	retInstr := storage.Append(mcir.OpcodeRet, nil)
	require.Equal(t, EncodeOK, e.Probe(retInstr))
	e.Emit(retInstr)

	require.NoError(t, e.PatchJumps())
	require.Equal(t, byte(0xC3), e.Bytes()[len(e.Bytes())-1])
}

func TestProbeShiftFamilyRequestsRcx(t *testing.T) {
	storage := mcir.NewStorage()
	inst := storage.Append(mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
		mcir.RegOperand(mcir.RAX),
		mcir.ImmOperand(3),
		mcir.OpOperand(mcir.OpShl),
		mcir.BitsOperand(mcir.Bits64),
	})
	e := NewEncoder()
	require.Equal(t, EncodeRight2Rcx, e.Probe(inst))
}

func TestProbeDivFamilyRequestsRax(t *testing.T) {
	storage := mcir.NewStorage()
	inst := storage.Append(mcir.OpcodeOpBinaryRegReg, []mcir.Operand{
		mcir.RegOperand(mcir.RBX),
		mcir.RegOperand(mcir.RCX),
		mcir.OpOperand(mcir.OpDivideSigned),
		mcir.BitsOperand(mcir.Bits64),
	})
	e := NewEncoder()
	require.Equal(t, EncodeLeft2Rax, e.Probe(inst))
}

func TestJumpPatchResolvesForwardLabel(t *testing.T) {
	storage := mcir.NewStorage()
	e := NewEncoder()
	e.BeginFunction("loop")

	site := &mcir.PatchSite{}
	jump := storage.Append(mcir.OpcodeJumpCond, []mcir.Operand{
		mcir.CondOperand(mcir.CondUnconditional),
		mcir.PatchOperand(site),
	})
	e.Emit(jump)

	label := storage.Append(mcir.OpcodeLabel, []mcir.Operand{mcir.PatchOperand(site)})
	e.Emit(label)

	require.NoError(t, e.PatchJumps())
	require.Equal(t, byte(0xE9), e.Bytes()[0])
}

func TestDumpTextDoesNotPanicOnEmptyBuffer(t *testing.T) {
	e := NewEncoder()
	require.Equal(t, "", e.DumpText())
}
