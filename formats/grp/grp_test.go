package grp_test

import (
	"io"
	"testing"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/formats/grp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func newBacking() io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(make([]byte, 0))
}

func snapshot(t *testing.T, rws io.ReadWriteSeeker) []byte {
	t.Helper()
	size, err := rws.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	_, err = rws.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, size)
	_, err = io.ReadFull(rws, buf)
	require.NoError(t, err)
	return buf
}

func insert(t *testing.T, a gamearchive.Archive, before *gamearchive.Entry, name string, data []byte) *gamearchive.Entry {
	t.Helper()
	e, err := a.Insert(before, name, int64(len(data)), "", gamearchive.AttrNone)
	require.NoError(t, err)
	s, err := a.Open(e, false)
	require.NoError(t, err)
	_, err = s.Write(data)
	require.NoError(t, err)
	if c, ok := s.(io.Closer); ok {
		require.NoError(t, c.Close())
	}
	require.NoError(t, a.Flush())
	return e
}

func TestCreateWritesSignatureAndZeroCount(t *testing.T) {
	backing := newBacking()
	_, err := grp.New().Create(backing, nil)
	require.NoError(t, err)

	data := snapshot(t, backing)
	require.Len(t, data, 16)
	assert.Equal(t, []byte("KenSilverman"), data[:12])
	assert.Equal(t, []byte{0, 0, 0, 0}, data[12:16])
}

func TestProbeRecognizesSignature(t *testing.T) {
	backing := newBacking()
	_, err := grp.New().Create(backing, nil)
	require.NoError(t, err)

	certainty, err := grp.New().Probe(backing)
	require.NoError(t, err)
	assert.Equal(t, gamearchive.DefinitelyYes, certainty)
}

func TestProbeRejectsWrongSignature(t *testing.T) {
	backing := bytesextra.NewReadWriteSeeker(make([]byte, 20))
	certainty, err := grp.New().Probe(backing)
	require.NoError(t, err)
	assert.Equal(t, gamearchive.DefinitelyNo, certainty)
}

func TestInsertAppendsGrowsDirectoryAndData(t *testing.T) {
	backing := newBacking()
	archive, err := grp.New().Create(backing, nil)
	require.NoError(t, err)

	insert(t, archive, nil, "FIRST.MAP", []byte{1, 2, 3, 4})
	insert(t, archive, nil, "SECOND.MAP", []byte{5, 6})

	data := snapshot(t, backing)
	// header(16) + 2*fatEntry(16) + 4 + 2 data bytes.
	assert.Len(t, data, 16+32+4+2)

	reopened, err := grp.New().Open(backing, nil)
	require.NoError(t, err)
	assert.Len(t, reopened.Files(), 2)

	found, err := reopened.Find("FIRST.MAP")
	require.NoError(t, err)
	s, err := reopened.Open(found, false)
	require.NoError(t, err)
	content, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, content)
}

func TestInsertUppercasesName(t *testing.T) {
	backing := newBacking()
	archive, err := grp.New().Create(backing, nil)
	require.NoError(t, err)

	insert(t, archive, nil, "lower.map", []byte{9})

	reopened, err := grp.New().Open(backing, nil)
	require.NoError(t, err)
	_, err = reopened.Find("LOWER.MAP")
	require.NoError(t, err)
}

func TestRemoveRestoresOriginalArchive(t *testing.T) {
	backing := newBacking()
	archive, err := grp.New().Create(backing, nil)
	require.NoError(t, err)

	insert(t, archive, nil, "A.MAP", []byte{1, 2, 3})
	before := snapshot(t, backing)

	e := insert(t, archive, nil, "B.MAP", []byte{4, 5})
	require.NoError(t, archive.Remove(e))
	require.NoError(t, archive.Flush())

	after := snapshot(t, backing)
	assert.Equal(t, before, after)
}

func TestCumulativeOffsetsAfterMultipleInserts(t *testing.T) {
	backing := newBacking()
	archive, err := grp.New().Create(backing, nil)
	require.NoError(t, err)

	insert(t, archive, nil, "A.MAP", []byte{1, 2, 3})
	insert(t, archive, nil, "B.MAP", []byte{4, 5})
	insert(t, archive, nil, "C.MAP", []byte{6, 7, 8, 9})

	reopened, err := grp.New().Open(backing, nil)
	require.NoError(t, err)

	b, err := reopened.Find("B.MAP")
	require.NoError(t, err)
	s, err := reopened.Open(b, false)
	require.NoError(t, err)
	content, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, content)

	c, err := reopened.Find("C.MAP")
	require.NoError(t, err)
	s, err = reopened.Open(c, false)
	require.NoError(t, err)
	content, err = io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, []byte{6, 7, 8, 9}, content)
}
