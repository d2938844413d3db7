// Package substream implements a read/write window into a parent stream,
// defined by a (start, length) byte range that an owning archive engine can
// relocate or resize at runtime without the window's caller noticing
// anything beyond a changed effective size.
//
// This is how an open member-file handle survives edits the archive makes
// to neighbouring entries: the archive calls Relocate/Resize on every live
// Window over an entry whenever that entry's data moves or changes length,
// instead of the window re-deriving its position from the entry on every
// access.
package substream

import (
	"io"

	gamearchive "github.com/camoto-go/gamearchive"
)

// TruncateRequester is supplied by the owning archive so that a user-driven
// Truncate call can be routed back through the archive engine, which alone
// knows how to shift neighbouring entries.
type TruncateRequester func(newLength int64) error

// Window exposes parent bytes [start, start+length) as its own [0, length).
type Window struct {
	parent io.ReadWriteSeeker
	start  int64
	length int64
	pos    int64
	valid  bool

	onTruncate TruncateRequester
}

// New returns a Window over parent's [start, start+length) byte range. The
// owning archive passes onTruncate so that Truncate calls can be routed
// back through it; it may be nil for windows that will never be resized by
// their caller (e.g. fixed archives without a resize callback).
func New(parent io.ReadWriteSeeker, start, length int64, onTruncate TruncateRequester) *Window {
	return &Window{
		parent:     parent,
		start:      start,
		length:     length,
		valid:      true,
		onTruncate: onTruncate,
	}
}

func (w *Window) checkValid() error {
	if !w.valid {
		return gamearchive.ErrFileNotFound.WithMessage("access to removed file")
	}
	return nil
}

// Size returns the window's current length.
func (w *Window) Size() int64 {
	return w.length
}

// Seek implements [io.Seeker] against the window's own [0, length) range.
func (w *Window) Seek(offset int64, whence int) (int64, error) {
	if err := w.checkValid(); err != nil {
		return 0, err
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = w.pos + offset
	case io.SeekEnd:
		target = w.length + offset
	default:
		return 0, gamearchive.ErrBackingIOError.WithMessage("invalid whence")
	}
	if target < 0 {
		return 0, gamearchive.ErrBackingIOError.WithMessage("negative seek position")
	}
	w.pos = target
	return w.pos, nil
}

// Read implements [io.Reader].
func (w *Window) Read(p []byte) (int, error) {
	if err := w.checkValid(); err != nil {
		return 0, err
	}
	if w.pos >= w.length {
		return 0, io.EOF
	}

	remaining := w.length - w.pos
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	if _, err := w.parent.Seek(w.start+w.pos, io.SeekStart); err != nil {
		return 0, gamearchive.ErrBackingIOError.Wrap(err)
	}
	n, err := w.parent.Read(p)
	w.pos += int64(n)
	if err != nil && err != io.EOF {
		return n, gamearchive.ErrBackingIOError.Wrap(err)
	}
	return n, err
}

// Write implements [io.Writer]. Writes past the current window length are
// not permitted here; callers that need to grow a member must go through
// the owning archive's Resize.
func (w *Window) Write(p []byte) (int, error) {
	if err := w.checkValid(); err != nil {
		return 0, err
	}
	if w.pos+int64(len(p)) > w.length {
		return 0, gamearchive.ErrBackingIOError.WithMessage("write would extend past window length")
	}

	if _, err := w.parent.Seek(w.start+w.pos, io.SeekStart); err != nil {
		return 0, gamearchive.ErrBackingIOError.Wrap(err)
	}
	n, err := w.parent.Write(p)
	w.pos += int64(n)
	if err != nil {
		return n, gamearchive.ErrBackingIOError.Wrap(err)
	}
	return n, nil
}

// Truncate forwards a user-driven resize request through the owning
// archive, which alone can shift neighbouring entries; it never silently
// extends the window past the archive's allocation on its own.
func (w *Window) Truncate(newLength int64) error {
	if err := w.checkValid(); err != nil {
		return err
	}
	if w.onTruncate == nil {
		return gamearchive.ErrReadOnlyOperation.WithMessage("window does not support resizing")
	}
	return w.onTruncate(newLength)
}

// Relocate implements [gamearchive.Relocatable]. Called only by the owning
// archive engine.
func (w *Window) Relocate(delta int64) {
	w.start += delta
}

// Resize implements [gamearchive.Relocatable]. Called only by the owning
// archive engine.
func (w *Window) Resize(newLength int64) {
	w.length = newLength
	if w.pos > w.length {
		w.pos = w.length
	}
}

// Invalidate implements [gamearchive.Relocatable]: once called, every
// subsequent operation on this window fails.
func (w *Window) Invalidate() {
	w.valid = false
}
