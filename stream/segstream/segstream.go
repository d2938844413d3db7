// Package segstream adapts a seekable base byte stream so that inserting or
// removing a run of bytes is O(1) until the edits are committed in bulk.
//
// The adapter keeps an ordered list of segments — each either a slice of the
// base stream, a zero-filled hole, or an in-memory literal buffer — and
// translates reads, writes, and seeks against that list instead of the base
// stream directly. Flush is the only operation that rewrites the base
// stream, and it does so once, in a single linear pass.
package segstream

import (
	"io"

	"github.com/boljen/go-bitmap"
	gamearchive "github.com/camoto-go/gamearchive"
)

type segmentKind int

const (
	segParent segmentKind = iota
	segHole
	segLiteral
)

type segment struct {
	kind         segmentKind
	parentOffset int64 // valid when kind == segParent
	literal      []byte
	length       int64
}

// Truncator is satisfied by base streams that can change their own length.
// Flush uses it to shrink or grow the base stream to its final size.
type Truncator interface {
	Truncate(size int64) error
}

// Stream wraps a base [io.ReadWriteSeeker] and presents the same interface
// over a logical length that can be grown or shrunk in O(1) by Insert and
// Remove, materializing into the base stream only on Flush.
type Stream struct {
	base     io.ReadWriteSeeker
	baseLen  int64
	segments []segment
	pos      int64

	// dirty marks which indices of segments have been touched (inserted,
	// removed, or overwritten with literal data) since the stream was
	// created or last flushed, mirroring the dirty-block bookkeeping the
	// teacher's block cache keeps, but at segment granularity rather than
	// fixed block granularity.
	dirty    bitmap.Bitmap
	dirtyCap int
}

// New wraps base, which must already contain the archive's current on-disk
// bytes. The initial logical content is exactly base's current bytes.
func New(base io.ReadWriteSeeker) (*Stream, error) {
	length, err := base.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}
	if _, err := base.Seek(0, io.SeekStart); err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}

	s := &Stream{base: base, baseLen: length}
	if length > 0 {
		s.segments = []segment{{kind: segParent, parentOffset: 0, length: length}}
	}
	s.resetDirty()
	return s, nil
}

func (s *Stream) resetDirty() {
	s.dirtyCap = s.segmentCapHint()
	s.dirty = bitmap.NewSlice(s.dirtyCap)
}

func (s *Stream) segmentCapHint() int {
	if n := len(s.segments) + 16; n > 16 {
		return n
	}
	return 16
}

// PendingEdits reports how many segments have been touched (inserted,
// removed, or overwritten) since construction or the last Flush. Zero means
// Flush would be a no-op.
func (s *Stream) PendingEdits() int {
	count := 0
	for i := 0; i < s.dirtyCap; i++ {
		if s.dirty.Get(i) {
			count++
		}
	}
	return count
}

// markDirty records that the segment at index has been touched since the
// last flush, growing the bitmap if the segment list has since grown past
// its original capacity hint.
func (s *Stream) markDirty(index int) {
	if index >= s.dirtyCap {
		grown := bitmap.NewSlice(index + 16)
		for i := 0; i < s.dirtyCap; i++ {
			grown.Set(i, s.dirty.Get(i))
		}
		s.dirty = grown
		s.dirtyCap = index + 16
	}
	s.dirty.Set(index, true)
}

// Size returns the current logical length of the stream.
func (s *Stream) Size() int64 {
	var total int64
	for _, seg := range s.segments {
		total += seg.length
	}
	return total
}

// Seek implements [io.Seeker] against the logical length.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = s.Size() + offset
	default:
		return 0, gamearchive.ErrBackingIOError.WithMessage("invalid whence")
	}
	if target < 0 {
		return 0, gamearchive.ErrBackingIOError.WithMessage("negative seek position")
	}
	s.pos = target
	return s.pos, nil
}

// locate finds the segment index and the offset within it that corresponds
// to logical position pos. If pos equals the logical length exactly, it
// returns len(segments), 0.
func (s *Stream) locate(pos int64) (index int, offsetInSegment int64) {
	var cursor int64
	for i, seg := range s.segments {
		if pos < cursor+seg.length {
			return i, pos - cursor
		}
		cursor += seg.length
	}
	return len(s.segments), 0
}

// Read implements [io.Reader].
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	total := s.Size()
	if s.pos >= total {
		return 0, io.EOF
	}

	idx, offset := s.locate(s.pos)
	n := 0
	for n < len(p) && idx < len(s.segments) {
		seg := s.segments[idx]
		avail := seg.length - offset
		want := int64(len(p) - n)
		take := avail
		if want < take {
			take = want
		}

		switch seg.kind {
		case segHole:
			for i := int64(0); i < take; i++ {
				p[n+int(i)] = 0
			}
		case segLiteral:
			copy(p[n:n+int(take)], seg.literal[offset:offset+take])
		case segParent:
			if _, err := s.base.Seek(seg.parentOffset+offset, io.SeekStart); err != nil {
				return n, gamearchive.ErrBackingIOError.Wrap(err)
			}
			read, err := io.ReadFull(s.base, p[n:n+int(take)])
			n += read
			s.pos += int64(read)
			if err != nil {
				return n, gamearchive.ErrBackingIOError.Wrap(err)
			}
			idx++
			offset = 0
			continue
		}

		n += int(take)
		s.pos += take
		idx++
		offset = 0
	}
	return n, nil
}

// Write implements [io.Writer]: it overlays p onto the logical stream at
// the current position as a literal segment, splitting existing segments as
// needed, and extends the stream if the write runs past the current end.
func (s *Stream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if gap := s.pos - s.Size(); gap > 0 {
		s.insertAt(s.Size(), segment{kind: segHole, length: gap})
	}

	s.overlay(s.pos, p)
	s.pos += int64(len(p))
	return len(p), nil
}

// overlay replaces the logical bytes [at, at+len(p)) with a literal segment
// holding p, splitting the surrounding segments as needed.
func (s *Stream) overlay(at int64, p []byte) {
	s.spliceOut(at, int64(len(p)))
	s.insertAt(at, segment{kind: segLiteral, literal: append([]byte(nil), p...), length: int64(len(p))})
}

// spliceOut removes n logical bytes starting at position at from the
// segment list, splitting segments at the boundaries.
func (s *Stream) spliceOut(at, n int64) {
	if n <= 0 {
		return
	}
	s.splitAt(at)
	s.splitAt(at + n)

	startIdx, _ := s.locate(at)
	endIdx, _ := s.locate(at + n)

	s.segments = append(s.segments[:startIdx], s.segments[endIdx:]...)
}

// splitAt ensures a segment boundary exists exactly at logical position pos
// (unless pos is 0 or the logical length, which are already boundaries).
func (s *Stream) splitAt(pos int64) {
	if pos <= 0 || pos >= s.Size() {
		return
	}
	idx, offset := s.locate(pos)
	if offset == 0 {
		return
	}
	seg := s.segments[idx]

	first := seg
	first.length = offset
	second := seg
	second.length = seg.length - offset
	switch seg.kind {
	case segParent:
		second.parentOffset = seg.parentOffset + offset
	case segLiteral:
		first.literal = seg.literal[:offset]
		second.literal = seg.literal[offset:]
	}

	s.segments = append(s.segments[:idx], append([]segment{first, second}, s.segments[idx+1:]...)...)
}

// insertAt splices seg into the segment list so it begins at logical
// position at.
func (s *Stream) insertAt(at int64, seg segment) {
	s.splitAt(at)
	idx, _ := s.locate(at)
	s.segments = append(s.segments[:idx], append([]segment{seg}, s.segments[idx:]...)...)
	s.markDirty(idx)
}

// Insert logically inserts n zero-filled bytes at the current position
// without copying any existing data; its cost depends on the number of
// segments, not on n or the stream length.
func (s *Stream) Insert(n int64) error {
	if n < 0 {
		return gamearchive.ErrBackingIOError.WithMessage("negative insert length")
	}
	if n == 0 {
		return nil
	}
	s.insertAt(s.pos, segment{kind: segHole, length: n})
	return nil
}

// Remove logically deletes n bytes starting at the current position without
// copying the tail; its cost depends on the number of segments, not on n or
// the stream length.
func (s *Stream) Remove(n int64) error {
	if n < 0 {
		return gamearchive.ErrBackingIOError.WithMessage("negative remove length")
	}
	if n == 0 {
		return nil
	}
	if s.pos+n > s.Size() {
		return gamearchive.ErrTruncated.WithMessage("remove extends past end of stream")
	}
	s.spliceOut(s.pos, n)
	idx, _ := s.locate(s.pos)
	s.markDirty(idx)
	return nil
}

// Flush materializes every pending segment into the base stream in a
// single linear pass and resets the segment list to one parent segment
// spanning the new length.
func (s *Stream) Flush() error {
	total := s.Size()

	// Snapshot whatever of the base stream's current bytes the new layout
	// still needs, before any of it is overwritten, so that segments whose
	// source and destination ranges overlap each other read old data
	// correctly regardless of processing order.
	snapshot := make([]byte, s.baseLen)
	if s.baseLen > 0 {
		if _, err := s.base.Seek(0, io.SeekStart); err != nil {
			return gamearchive.ErrBackingIOError.Wrap(err)
		}
		if _, err := io.ReadFull(s.base, snapshot); err != nil {
			return gamearchive.ErrBackingIOError.Wrap(err)
		}
	}

	out := make([]byte, total)
	var cursor int64
	for _, seg := range s.segments {
		switch seg.kind {
		case segHole:
			// out is already zero-filled.
		case segLiteral:
			copy(out[cursor:cursor+seg.length], seg.literal)
		case segParent:
			copy(out[cursor:cursor+seg.length], snapshot[seg.parentOffset:seg.parentOffset+seg.length])
		}
		cursor += seg.length
	}

	if _, err := s.base.Seek(0, io.SeekStart); err != nil {
		return gamearchive.ErrBackingIOError.Wrap(err)
	}
	if _, err := s.base.Write(out); err != nil {
		return gamearchive.ErrBackingIOError.Wrap(err)
	}
	if truncator, ok := s.base.(Truncator); ok {
		if err := truncator.Truncate(total); err != nil {
			return gamearchive.ErrBackingIOError.Wrap(err)
		}
	}

	s.baseLen = total
	if total > 0 {
		s.segments = []segment{{kind: segParent, parentOffset: 0, length: total}}
	} else {
		s.segments = nil
	}
	s.resetDirty()
	return nil
}
