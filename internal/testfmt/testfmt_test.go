package testfmt_test

import (
	"io"
	"testing"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/internal/testfmt"
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

func createArchive(t *testing.T) (gamearchive.Archive, io.ReadWriteSeeker) {
	t.Helper()
	backing := newBacking()
	archive, err := testfmt.New().Create(backing, nil)
	require.NoError(t, err)
	return archive, backing
}

func insert(t *testing.T, a gamearchive.Archive, before *gamearchive.Entry, name string, data []byte) *gamearchive.Entry {
	t.Helper()
	entry, err := a.Insert(before, name, int64(len(data)), "", gamearchive.AttrNone)
	require.NoError(t, err)
	stream, err := a.Open(entry, false)
	require.NoError(t, err)
	_, err = stream.Write(data)
	require.NoError(t, err)
	if c, ok := stream.(io.Closer); ok {
		require.NoError(t, c.Close())
	}
	require.NoError(t, a.Flush())
	return entry
}

func TestOpenEmpty(t *testing.T) {
	_, backing := createArchive(t)
	data := snapshot(t, backing)
	assert.Len(t, data, testfmt.HeaderLen)

	archive, err := testfmt.New().Open(backing, nil)
	require.NoError(t, err)
	assert.Empty(t, archive.Files())
}

func TestInsertIntoEmpty(t *testing.T) {
	archive, backing := createArchive(t)
	entry := insert(t, archive, nil, "A", []byte{1, 2, 3, 4})

	data := snapshot(t, backing)
	assert.Len(t, data, testfmt.HeaderLen+testfmt.EntryHeaderLen+4)

	found, err := archive.Find("A")
	require.NoError(t, err)
	assert.Equal(t, entry, found)

	stream, err := archive.Open(entry, false)
	require.NoError(t, err)
	defer stream.(io.Closer).Close()
	content, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, content)
}

func TestInsertMidArchiveShiftsFollowingEntry(t *testing.T) {
	archive, _ := createArchive(t)
	x := insert(t, archive, nil, "X", []byte{1, 2, 3, 4, 5, 6, 7, 8})
	y := insert(t, archive, nil, "Y", []byte{11, 12, 13, 14, 15, 16, 17, 18})

	yStreamBefore, err := archive.Open(y, false)
	require.NoError(t, err)
	yOffsetContentBefore, err := io.ReadAll(yStreamBefore)
	require.NoError(t, err)
	yStreamBefore.(io.Closer).Close()

	m := insert(t, archive, y, "M", []byte{21, 22, 23, 24})

	assert.True(t, archive.IsValid(x))
	assert.True(t, archive.IsValid(m))
	assert.True(t, archive.IsValid(y))

	yStreamAfter, err := archive.Open(y, false)
	require.NoError(t, err)
	defer yStreamAfter.(io.Closer).Close()
	yOffsetContentAfter, err := io.ReadAll(yStreamAfter)
	require.NoError(t, err)
	assert.Equal(t, yOffsetContentBefore, yOffsetContentAfter, "Y's data must survive the shift untouched")
}

func TestRemoveRestoresOriginalArchive(t *testing.T) {
	archive, backing := createArchive(t)
	insert(t, archive, nil, "X", []byte{1, 2, 3, 4, 5, 6, 7, 8})
	y := insert(t, archive, nil, "Y", []byte{11, 12, 13, 14, 15, 16, 17, 18})
	before := snapshot(t, backing)

	m := insert(t, archive, y, "M", []byte{21, 22, 23, 24})
	require.NoError(t, archive.Remove(m))
	require.NoError(t, archive.Flush())

	after := snapshot(t, backing)
	assert.Equal(t, before, after)
}

func TestRenameIdempotence(t *testing.T) {
	archive, backing := createArchive(t)
	entry := insert(t, archive, nil, "X", []byte{1, 2, 3, 4})
	before := snapshot(t, backing)

	require.NoError(t, archive.Rename(entry, "X"))
	require.NoError(t, archive.Flush())

	after := snapshot(t, backing)
	assert.Equal(t, before, after)
}

func TestResizeLargerPreservesPrefixAndShiftsFollowing(t *testing.T) {
	archive, _ := createArchive(t)
	x := insert(t, archive, nil, "X", []byte{1, 2, 3, 4, 5, 6, 7, 8})
	y := insert(t, archive, nil, "Y", []byte{11, 12, 13, 14, 15, 16, 17, 18})

	require.NoError(t, archive.Resize(x, 12, 12))
	require.NoError(t, archive.Flush())

	xStream, err := archive.Open(x, false)
	require.NoError(t, err)
	defer xStream.(io.Closer).Close()
	xContent, err := io.ReadAll(xStream)
	require.NoError(t, err)
	require.Len(t, xContent, 12)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, xContent[:8])

	yStream, err := archive.Open(y, false)
	require.NoError(t, err)
	defer yStream.(io.Closer).Close()
	yContent, err := io.ReadAll(yStream)
	require.NoError(t, err)
	assert.Equal(t, []byte{11, 12, 13, 14, 15, 16, 17, 18}, yContent)
}

func TestOpenFilePinsEntryUntilClosed(t *testing.T) {
	archive, _ := createArchive(t)
	entry := insert(t, archive, nil, "X", []byte{1, 2, 3, 4})

	stream, err := archive.Open(entry, false)
	require.NoError(t, err)

	err = archive.Remove(entry)
	assert.ErrorIs(t, err, gamearchive.ErrFileInUse)

	require.NoError(t, stream.(io.Closer).Close())
	assert.NoError(t, archive.Remove(entry))
}

func TestHandleSurvivesUnrelatedInsertsAndRemoves(t *testing.T) {
	archive, _ := createArchive(t)
	e := insert(t, archive, nil, "E", []byte{1, 2, 3, 4, 5, 6, 7, 8})

	stream, err := archive.Open(e, false)
	require.NoError(t, err)
	defer stream.(io.Closer).Close()

	other := insert(t, archive, nil, "OTHER", []byte{9, 9, 9, 9})
	require.NoError(t, archive.Remove(other))

	_, err = stream.Seek(0, io.SeekStart)
	require.NoError(t, err)
	content, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, content)
}

func TestRoundTripProbe(t *testing.T) {
	archive, backing := createArchive(t)
	insert(t, archive, nil, "A", []byte{1, 2, 3, 4})
	insert(t, archive, nil, "B", []byte{5, 6, 7, 8, 9})

	certainty, err := testfmt.New().Probe(backing)
	require.NoError(t, err)
	assert.Equal(t, gamearchive.DefinitelyYes, certainty)

	reopened, err := testfmt.New().Open(backing, nil)
	require.NoError(t, err)
	assert.Len(t, reopened.Files(), 2)
}

func TestProbeRejectsShortStream(t *testing.T) {
	short := bytesextra.NewReadWriteSeeker(make([]byte, 8))
	certainty, err := testfmt.New().Probe(short)
	require.NoError(t, err)
	assert.Equal(t, gamearchive.DefinitelyNo, certainty)
}
