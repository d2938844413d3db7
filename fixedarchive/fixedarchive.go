// Package fixedarchive implements a read-only archive over a fixed,
// compile-time list of offset/length "files" within a host stream — for
// formats where the member list is hard-coded by the driver rather than
// read from an on-disk directory (e.g. game levels embedded at known
// offsets inside an executable).
package fixedarchive

import (
	"io"
	"strings"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/stream/substream"
)

// ResizeFunc lets a driver permit resizing of an otherwise-fixed entry
// (rare: most fixed-archive formats forbid it entirely, the zero value of
// this type). Returning an error rejects the resize.
type ResizeFunc func(entry *gamearchive.Entry, newStoredSize, newRealSize int64) error

// FileSpec describes one hard-coded member: its absolute offset and length
// in the host stream, its name, and optionally a filter and a resize hook.
type FileSpec struct {
	Offset     int64
	Size       int64
	Name       string
	FilterID   string
	Resize     ResizeFunc
	Attributes gamearchive.Attribute
}

// Archive is a read-only view over a fixed list of [FileSpec] entries
// within a host stream. Every mutating operation defined by
// [gamearchive.Archive] other than Resize (when a FileSpec supplies a
// ResizeFunc) fails with [gamearchive.ErrReadOnlyOperation], matching the
// format family this engine generalizes, whose fixed archives always
// reject insert/remove/rename/move.
type Archive struct {
	content io.ReadWriteSeeker
	entries []*gamearchive.Entry
	specs   map[*gamearchive.Entry]FileSpec
	handles *gamearchive.HandleTable
}

// New builds a fixed archive over content from specs, in the order given.
func New(content io.ReadWriteSeeker, specs []FileSpec) *Archive {
	a := &Archive{
		content: content,
		entries: make([]*gamearchive.Entry, len(specs)),
		specs:   make(map[*gamearchive.Entry]FileSpec, len(specs)),
		handles: gamearchive.NewHandleTable(),
	}
	for i, spec := range specs {
		e := &gamearchive.Entry{
			Name:       spec.Name,
			StoredSize: spec.Size,
			RealSize:   spec.Size,
			Type:       "",
			FilterID:   spec.FilterID,
			Attributes: spec.Attributes,
			Valid:      true,
		}
		a.entries[i] = e
		a.specs[e] = spec
	}
	return a
}

func (a *Archive) Find(name string) (*gamearchive.Entry, error) {
	for _, e := range a.entries {
		if strings.EqualFold(e.Name, name) {
			return e, nil
		}
	}
	return nil, gamearchive.ErrFileNotFound
}

func (a *Archive) Files() []*gamearchive.Entry {
	out := make([]*gamearchive.Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

func (a *Archive) IsValid(entry *gamearchive.Entry) bool {
	_, ok := a.specs[entry]
	return ok
}

// Open returns a window over the entry's stored bytes. useFilter is
// ignored: no filter is ever applied, even when the FileSpec names one.
func (a *Archive) Open(entry *gamearchive.Entry, useFilter bool) (io.ReadWriteSeeker, error) {
	spec, ok := a.specs[entry]
	if !ok {
		return nil, gamearchive.ErrFileNotFound
	}
	window := substream.New(a.content, spec.Offset, spec.Size, nil)
	handle := a.handles.Register(entry, window)
	return &pinned{Window: window, release: func() { a.handles.Release(handle) }}, nil
}

type pinned struct {
	*substream.Window
	release func()
}

func (p *pinned) Close() error {
	p.release()
	return nil
}

func (a *Archive) OpenFolder(entry *gamearchive.Entry) (gamearchive.Archive, error) {
	return nil, gamearchive.ErrFormatMismatch.WithMessage("fixed archives have no subfolders")
}

func (a *Archive) Insert(before *gamearchive.Entry, name string, storedSize int64, entryType string, attrs gamearchive.Attribute) (*gamearchive.Entry, error) {
	return nil, gamearchive.ErrReadOnlyOperation.WithMessage("fixed archive file list cannot be extended")
}

func (a *Archive) Remove(entry *gamearchive.Entry) error {
	return gamearchive.ErrReadOnlyOperation.WithMessage("fixed archive file list cannot be shrunk")
}

func (a *Archive) Rename(entry *gamearchive.Entry, newName string) error {
	return gamearchive.ErrReadOnlyOperation.WithMessage("fixed archive entries have no meaningful name to change")
}

func (a *Archive) Move(before, entry *gamearchive.Entry) error {
	return gamearchive.ErrReadOnlyOperation.WithMessage("fixed archive entries have a fixed position")
}

// Resize honors the entry's ResizeFunc if its FileSpec declared one;
// otherwise it fails, matching the format family's RESIZE_NONE default.
func (a *Archive) Resize(entry *gamearchive.Entry, newStoredSize, newRealSize int64) error {
	spec, ok := a.specs[entry]
	if !ok {
		return gamearchive.ErrFileNotFound
	}
	if spec.Resize == nil {
		return gamearchive.ErrReadOnlyOperation.WithMessage("this entry does not support resizing")
	}
	if err := spec.Resize(entry, newStoredSize, newRealSize); err != nil {
		return err
	}
	entry.StoredSize = newStoredSize
	entry.RealSize = newRealSize
	return nil
}

func (a *Archive) Flush() error {
	return nil
}

func (a *Archive) SupportedAttributes() gamearchive.Attribute {
	return gamearchive.AttrNone
}
