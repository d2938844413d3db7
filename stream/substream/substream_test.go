package substream_test

import (
	"io"
	"testing"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/stream/substream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func newBacking(data []byte) io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(append([]byte(nil), data...))
}

func TestReadWithinWindow(t *testing.T) {
	backing := newBacking([]byte("0123456789"))
	w := substream.New(backing, 3, 4, nil)

	got, err := io.ReadAll(w)
	require.NoError(t, err)
	assert.Equal(t, []byte("3456"), got)
}

func TestWritePastWindowLengthFails(t *testing.T) {
	backing := newBacking([]byte("0123456789"))
	w := substream.New(backing, 3, 4, nil)

	_, err := w.Seek(2, io.SeekStart)
	require.NoError(t, err)
	_, err = w.Write([]byte("XYZ"))
	assert.Error(t, err)
}

func TestWriteWithinWindowDoesNotTouchNeighbours(t *testing.T) {
	backing := newBacking([]byte("0123456789"))
	w := substream.New(backing, 3, 4, nil)

	_, err := w.Write([]byte("ABCD"))
	require.NoError(t, err)

	all := make([]byte, 10)
	_, err = backing.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = io.ReadFull(backing, all)
	require.NoError(t, err)
	assert.Equal(t, []byte("012ABCD789"), all)
}

func TestRelocateShiftsWindowTransparently(t *testing.T) {
	backing := newBacking([]byte("0123456789"))
	w := substream.New(backing, 0, 3, nil)

	got, err := io.ReadAll(w)
	require.NoError(t, err)
	assert.Equal(t, []byte("012"), got)

	w.Relocate(4)
	_, err = w.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err = io.ReadAll(w)
	require.NoError(t, err)
	assert.Equal(t, []byte("456"), got)
}

func TestResizeClampsPosition(t *testing.T) {
	backing := newBacking([]byte("0123456789"))
	w := substream.New(backing, 0, 8, nil)

	_, err := w.Seek(8, io.SeekStart)
	require.NoError(t, err)
	w.Resize(3)
	assert.Equal(t, int64(3), w.Size())

	pos, err := w.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)
}

func TestInvalidateFailsSubsequentOperations(t *testing.T) {
	backing := newBacking([]byte("0123456789"))
	w := substream.New(backing, 0, 4, nil)

	w.Invalidate()

	_, err := w.Read(make([]byte, 1))
	assert.ErrorIs(t, err, gamearchive.ErrFileNotFound)
}

func TestTruncateWithoutCallbackIsReadOnly(t *testing.T) {
	backing := newBacking([]byte("0123456789"))
	w := substream.New(backing, 0, 4, nil)

	err := w.Truncate(6)
	assert.ErrorIs(t, err, gamearchive.ErrReadOnlyOperation)
}

func TestTruncateRoutesThroughCallback(t *testing.T) {
	backing := newBacking([]byte("0123456789"))
	var requested int64 = -1
	w := substream.New(backing, 0, 4, func(newLength int64) error {
		requested = newLength
		return nil
	})

	require.NoError(t, w.Truncate(9))
	assert.Equal(t, int64(9), requested)
}
