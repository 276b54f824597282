package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkWriteAndReadUint16RoundTrips(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpJump, 1)
	offset := len(c.Code)
	c.WriteUint16(0xBEEF, 1)

	require.Equal(t, uint16(0xBEEF), c.ReadUint16(offset))
}

func TestChunkPatchUint16Overwrites(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpJumpIfFalse, 1)
	offset := len(c.Code)
	c.WriteUint16(0, 1) // placeholder

	c.PatchUint16(offset, 42)
	require.Equal(t, uint16(42), c.ReadUint16(offset))
}

func TestChunkAddConstantEnforcesMax(t *testing.T) {
	c := NewChunk()
	for i := 0; i < MaxConstants; i++ {
		_, err := c.AddConstant(Number(float64(i)))
		require.NoError(t, err)
	}
	_, err := c.AddConstant(Number(999))
	require.Error(t, err)
}

func TestChunkLineAtTracksEmittedBytes(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpNil, 5)
	c.WriteOp(OpTrue, 7)

	require.Equal(t, 5, c.LineAt(0))
	require.Equal(t, 7, c.LineAt(1))
	require.Equal(t, -1, c.LineAt(99))
}

func TestDisassembleSimpleChunk(t *testing.T) {
	c := NewChunk()
	idx, err := c.AddConstant(Number(7))
	require.NoError(t, err)
	c.WriteOp(OpConstant, 1)
	c.WriteByte(idx, 1)
	c.WriteOp(OpReturn, 1)

	var buf bytes.Buffer
	Disassemble(&buf, c, "test")

	out := buf.String()
	require.Contains(t, out, "== test ==")
	require.Contains(t, out, "OP_CONSTANT")
	require.Contains(t, out, "OP_RETURN")
}

func TestValueEqualByTagAndIdentity(t *testing.T) {
	require.True(t, Nil.Equal(Nil))
	require.True(t, Bool(true).Equal(Bool(true)))
	require.False(t, Bool(true).Equal(Bool(false)))
	require.True(t, Number(3).Equal(Number(3)))
	require.False(t, Number(3).Equal(Bool(true)))
}

func TestValueIsFalsey(t *testing.T) {
	require.True(t, Nil.IsFalsey())
	require.True(t, Bool(false).IsFalsey())
	require.False(t, Bool(true).IsFalsey())
	require.False(t, Number(0).IsFalsey())
}

func TestFormatNumberTrimsIntegralValues(t *testing.T) {
	require.Equal(t, "7", Number(7).String())
	require.Equal(t, "7.5", Number(7.5).String())
	require.Equal(t, "-3", Number(-3).String())
}
