package peephole

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solder-lang/mcbackend/mcir"
)

type alwaysOKProber struct{}

func (alwaysOKProber) Probe(*mcir.MicroInstr) bool { return true }

func TestRuleElideSelfCopy(t *testing.T) {
	storage := mcir.NewStorage()
	storage.Append(mcir.OpcodeLoadRegReg, []mcir.Operand{
		mcir.RegOperand(mcir.RAX), mcir.RegOperand(mcir.RAX), mcir.BitsOperand(mcir.Bits64),
	})
	changed := Run(storage, alwaysOKProber{}, DefaultRules())
	require.True(t, changed)
	require.Nil(t, storage.Begin())
}

func TestMergeRegImmFoldsTwoAdds(t *testing.T) {
	storage := mcir.NewStorage()
	storage.Append(mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
		mcir.RegOperand(mcir.RAX), mcir.ImmOperand(3), mcir.OpOperand(mcir.OpAdd), mcir.BitsOperand(mcir.Bits64),
	})
	storage.Append(mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
		mcir.RegOperand(mcir.RAX), mcir.ImmOperand(4), mcir.OpOperand(mcir.OpAdd), mcir.BitsOperand(mcir.Bits64),
	})
	Run(storage, alwaysOKProber{}, DefaultRules())

	ref := storage.Begin()
	require.NotNil(t, ref)
	require.Equal(t, mcir.OpcodeOpBinaryRegImm, ref.Opcode)
	require.Equal(t, uint64(7), ref.Imm(1))
	require.Nil(t, ref.Next())
}

func TestCmpZeroCanonicalization(t *testing.T) {
	storage := mcir.NewStorage()
	storage.Append(mcir.OpcodeCmpRegImm, []mcir.Operand{
		mcir.RegOperand(mcir.RAX), mcir.ImmOperand(0), mcir.BitsOperand(mcir.Bits32),
	})
	Run(storage, alwaysOKProber{}, DefaultRules())
	ref := storage.Begin()
	require.Equal(t, mcir.OpcodeCmpRegZero, ref.Opcode)
}

func TestFixedPointSecondRunIsNoop(t *testing.T) {
	storage := mcir.NewStorage()
	storage.Append(mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
		mcir.RegOperand(mcir.RAX), mcir.ImmOperand(1), mcir.OpOperand(mcir.OpAdd), mcir.BitsOperand(mcir.Bits64),
	})
	storage.Append(mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
		mcir.RegOperand(mcir.RAX), mcir.ImmOperand(2), mcir.OpOperand(mcir.OpAdd), mcir.BitsOperand(mcir.Bits64),
	})
	require.True(t, Run(storage, alwaysOKProber{}, DefaultRules()))
	require.False(t, Run(storage, alwaysOKProber{}, DefaultRules()))
}
