package resolve_test

import (
	"io"
	"testing"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeArchive is a minimal gamearchive.Archive double built only to let
// resolve_test exercise index/path descent through folders, which no
// shipped engine in this module implements nesting for.
type fakeArchive struct {
	entries []*gamearchive.Entry
	folders map[*gamearchive.Entry]*fakeArchive
}

func newFakeArchive(entries ...*gamearchive.Entry) *fakeArchive {
	return &fakeArchive{entries: entries, folders: make(map[*gamearchive.Entry]*fakeArchive)}
}

func (a *fakeArchive) withFolder(e *gamearchive.Entry, child *fakeArchive) *fakeArchive {
	a.folders[e] = child
	return a
}

func (a *fakeArchive) Find(name string) (*gamearchive.Entry, error) {
	for _, e := range a.entries {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, gamearchive.ErrFileNotFound
}

func (a *fakeArchive) Files() []*gamearchive.Entry { return a.entries }
func (a *fakeArchive) IsValid(e *gamearchive.Entry) bool {
	for _, entry := range a.entries {
		if entry == e {
			return true
		}
	}
	return false
}
func (a *fakeArchive) Open(e *gamearchive.Entry, useFilter bool) (io.ReadWriteSeeker, error) {
	return nil, gamearchive.ErrFileNotFound
}
func (a *fakeArchive) OpenFolder(e *gamearchive.Entry) (gamearchive.Archive, error) {
	child, ok := a.folders[e]
	if !ok {
		return nil, gamearchive.ErrFormatMismatch
	}
	return child, nil
}
func (a *fakeArchive) Insert(before *gamearchive.Entry, name string, storedSize int64, entryType string, attrs gamearchive.Attribute) (*gamearchive.Entry, error) {
	return nil, gamearchive.ErrReadOnlyOperation
}
func (a *fakeArchive) Remove(e *gamearchive.Entry) error                            { return gamearchive.ErrReadOnlyOperation }
func (a *fakeArchive) Rename(e *gamearchive.Entry, newName string) error            { return gamearchive.ErrReadOnlyOperation }
func (a *fakeArchive) Move(before, e *gamearchive.Entry) error                      { return gamearchive.ErrReadOnlyOperation }
func (a *fakeArchive) Resize(e *gamearchive.Entry, newStoredSize, newRealSize int64) error {
	return gamearchive.ErrReadOnlyOperation
}
func (a *fakeArchive) Flush() error                               { return nil }
func (a *fakeArchive) SupportedAttributes() gamearchive.Attribute { return gamearchive.AttrFolder }

func buildTree() *fakeArchive {
	leaf := &gamearchive.Entry{Name: "readme.txt", Valid: true}
	subEntry := &gamearchive.Entry{Name: "sub", Attributes: gamearchive.AttrFolder, Valid: true}
	topEntry := &gamearchive.Entry{Name: "top.dat", Valid: true}

	subFolder := newFakeArchive(leaf)
	root := newFakeArchive(topEntry, subEntry).withFolder(subEntry, subFolder)
	return root
}

func TestResolveByPathTopLevel(t *testing.T) {
	root := buildTree()
	container, entry, err := resolve.Resolve(root, "top.dat")
	require.NoError(t, err)
	assert.Same(t, root, container)
	assert.Equal(t, "top.dat", entry.Name)
}

func TestResolveByPathDescendsFolder(t *testing.T) {
	root := buildTree()
	container, entry, err := resolve.Resolve(root, "sub/readme.txt")
	require.NoError(t, err)
	assert.NotSame(t, root, container)
	assert.Equal(t, "readme.txt", entry.Name)
}

func TestResolveByPathMissingFails(t *testing.T) {
	root := buildTree()
	_, _, err := resolve.Resolve(root, "nope.dat")
	assert.ErrorIs(t, err, gamearchive.ErrFileNotFound)
}

func TestResolveByPathThroughFileComponentFails(t *testing.T) {
	root := buildTree()
	_, _, err := resolve.Resolve(root, "top.dat/inner")
	assert.ErrorIs(t, err, gamearchive.ErrFileNotFound)
}

func TestResolveByIndexTopLevel(t *testing.T) {
	root := buildTree()
	_, entry, err := resolve.Resolve(root, "@0")
	require.NoError(t, err)
	assert.Equal(t, "top.dat", entry.Name)
}

func TestResolveByIndexDescendsFolder(t *testing.T) {
	root := buildTree()
	_, entry, err := resolve.Resolve(root, "@1.0")
	require.NoError(t, err)
	assert.Equal(t, "readme.txt", entry.Name)
}

func TestResolveByIndexOutOfRangeFails(t *testing.T) {
	root := buildTree()
	_, _, err := resolve.Resolve(root, "@99")
	assert.ErrorIs(t, err, gamearchive.ErrFileNotFound)
}
