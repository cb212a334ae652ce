package datasegment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddStringRoundTrips(t *testing.T) {
	s := NewSegment()
	name := s.AddString("hello")
	entry, ok := s.Lookup(name)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), entry.Bytes)
}

func TestFlattenRespectsAlignment(t *testing.T) {
	s := NewSegment()
	s.AddPayloadBuffer([]byte{1}, 1)
	name := s.AddPayloadBuffer([]byte{2, 3, 4, 5}, 4)
	offset := s.OffsetOf(name)
	require.Zero(t, offset%4)

	blob := s.Flatten()
	require.Equal(t, []byte{2, 3, 4, 5}, blob[offset:offset+4])
}

func TestReserveSpanIsZeroed(t *testing.T) {
	s := NewSegment()
	name, offset := s.ReserveSpan(16, 8)
	entry, ok := s.Lookup(name)
	require.True(t, ok)
	require.Len(t, entry.Bytes, 16)
	require.Zero(t, offset%8)
}
