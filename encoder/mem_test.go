package encoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solder-lang/mcbackend/mcir"
)

func TestEmitLoadRegMemWithRbpBase(t *testing.T) {
	storage := mcir.NewStorage()
	// RBP as a plain [base+disp] base forces a disp8 even for disp==0,
	// since mod=00 with an RBP-numbered ModRM field means RIP-relative
	// instead (the chooseDispMode collision case in prefix.go).
	inst := storage.Append(mcir.OpcodeLoadRegMem, []mcir.Operand{
		mcir.RegOperand(mcir.RAX), mcir.RegOperand(mcir.RBP),
		mcir.ImmOperand(0), mcir.BitsOperand(mcir.Bits64),
	})
	e := NewEncoder()
	e.Emit(inst)
	require.NotEmpty(t, e.Bytes())
	require.Equal(t, byte(0x8B), e.Bytes()[1])
}

func TestEmitLoadAmcRegMemWithNoBaseForcesDisp32(t *testing.T) {
	storage := mcir.NewStorage()
	inst := storage.Append(mcir.OpcodeLoadAmcRegMem, []mcir.Operand{
		mcir.RegOperand(mcir.RAX), mcir.RegOperand(mcir.NoBaseReg), mcir.RegOperand(mcir.RCX),
		mcir.ImmOperand(4), mcir.ImmOperand(uint64(uint32(100))), mcir.BitsOperand(mcir.Bits64),
	})
	e := NewEncoder()
	e.Emit(inst)
	bytes := e.Bytes()
	require.NotEmpty(t, bytes)
	// Last 4 bytes of the instruction must be the little-endian disp32.
	require.Equal(t, []byte{100, 0, 0, 0}, bytes[len(bytes)-4:])
}

func TestEmitOpBinaryRegMemUsesLoadFormEncoding(t *testing.T) {
	storage := mcir.NewStorage()
	inst := storage.Append(mcir.OpcodeOpBinaryRegMem, []mcir.Operand{
		mcir.RegOperand(mcir.RAX), mcir.RegOperand(mcir.RCX), mcir.ImmOperand(uint64(uint32(8))),
		mcir.OpOperand(mcir.OpAdd), mcir.BitsOperand(mcir.Bits64),
	})
	e := NewEncoder()
	e.Emit(inst)
	require.NotEmpty(t, e.Bytes())
	require.Equal(t, byte(0x03), e.Bytes()[1])
}

func TestEmitLoadCondRegRegUsesCmovOpcode(t *testing.T) {
	storage := mcir.NewStorage()
	inst := storage.Append(mcir.OpcodeLoadCondRegReg, []mcir.Operand{
		mcir.RegOperand(mcir.RAX), mcir.RegOperand(mcir.RCX),
		mcir.CondOperand(mcir.CondLess), mcir.BitsOperand(mcir.Bits64),
	})
	e := NewEncoder()
	e.Emit(inst)
	bytes := e.Bytes()
	require.GreaterOrEqual(t, len(bytes), 2)
	require.Equal(t, byte(0x0F), bytes[len(bytes)-3])
}
