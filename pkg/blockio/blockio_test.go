package blockio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemBlockIOReadWriteRoundTrip(t *testing.T) {
	m := NewMem(100, 2048)
	payload := make([]byte, 2048*2)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, m.WriteAt(10, payload))

	got, err := m.ReadAt(10, 2)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestMemBlockIORejectsOutOfRange(t *testing.T) {
	m := NewMem(10, 2048)
	_, err := m.ReadAt(9, 5)
	require.Error(t, err)
}

func TestMemBlockIOReadOnlyRejectsWrite(t *testing.T) {
	m := NewMem(10, 2048)
	m.SetReadOnly(true)
	err := m.WriteAt(0, make([]byte, 2048))
	require.Error(t, err)
}

func TestFileBlockIOOpenMissingFails(t *testing.T) {
	_, err := Open("/nonexistent/path/to/image.iso", 2048)
	require.Error(t, err)
}
