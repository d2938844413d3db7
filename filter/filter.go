// Package filter implements the reversible byte-transform pipeline that
// sits between a member file's stored (post-filter) bytes and its real
// (pre-filter) bytes: compression and XOR-style encryption codecs.
//
// A [Codec] supplies a forward transform (used when writing: real bytes in,
// stored bytes out) and a reverse transform (used when reading: stored
// bytes in, real bytes out). [ApplyReadWrite], [ApplyReadOnly], and
// [ApplyWriteOnly] wrap a parent stream in the codec to produce a second
// stream presenting the real bytes, mirroring this module's three apply
// forms.
package filter

import (
	"io"

	gamearchive "github.com/camoto-go/gamearchive"
)

// Transform is one direction of a [Codec]: an incremental byte transform.
// Implementations of this package call it with the entirety of the
// available input in one call, since archive members are bounded and
// materialized in memory by this package's Stream type; Transform may still
// produce more or fewer bytes than it consumes.
type Transform interface {
	// Reset prepares the transform for a new run. expectedInputLen is the
	// number of bytes the caller intends to feed in total, or -1 if
	// unknown.
	Reset(expectedInputLen int64)

	// Transform consumes bytes from in and writes transformed bytes to out,
	// returning how many bytes of each were used.
	Transform(in, out []byte) (consumed, produced int)
}

// Codec is a forward/reverse transform pair identified by a persistent
// short code, the unit this package's registry looks filters up by.
type Codec interface {
	Code() string
	FriendlyName() string
	NewForwardTransform() Transform
	NewReverseTransform() Transform
}

// SizeReporter receives the pre-filter (real) and post-filter (stored) byte
// counts once a write-side Stream is flushed, so the owning archive engine
// can update its directory's RealSize/StoredSize fields.
type SizeReporter func(realSize, storedSize int64)

// maxTransformGrowth bounds how much larger than its input a single
// Transform call is allowed to make its output, so this package can size a
// scratch buffer without the caller declaring it up front. The generous
// multiplier covers the worst case for the RLE codec, whose encoding of
// many runs of exactly two identical bytes each costs one extra byte per
// pair (a 50% expansion).
const transformGrowthNumerator = 3
const transformGrowthDenominator = 2
const maxTransformGrowth = 64

func scratchSize(inputLen int) int {
	return inputLen*transformGrowthNumerator/transformGrowthDenominator + maxTransformGrowth
}

// runForward feeds all of real through codec's forward transform in one
// call and returns the stored bytes.
func runForward(codec Codec, real []byte) []byte {
	t := codec.NewForwardTransform()
	t.Reset(int64(len(real)))
	out := make([]byte, scratchSize(len(real)))
	consumed, produced := t.Transform(real, out)
	_ = consumed
	return out[:produced]
}

// runReverse feeds all of stored through codec's reverse transform in one
// call and returns the real bytes.
func runReverse(codec Codec, stored []byte) []byte {
	t := codec.NewReverseTransform()
	t.Reset(int64(len(stored)))
	out := make([]byte, scratchSize(len(stored)))
	consumed, produced := t.Transform(stored, out)
	_ = consumed
	return out[:produced]
}

// readAll reads every remaining byte from r.
func readAll(r io.Reader) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return buf, err
		}
	}
}

// Stream is the filtered view [ApplyReadWrite], [ApplyReadOnly], and
// [ApplyWriteOnly] return. It lazily loads and reverse-transforms the
// parent's stored bytes on first read, and buffers writes until Flush,
// which forward-transforms them and writes the stored bytes back to the
// parent.
type Stream struct {
	parent    io.ReadWriteSeeker
	codec     Codec
	readOnly  bool
	writeOnly bool

	loaded  bool
	real    []byte // decoded (pre-filter) bytes, valid once loaded
	written []byte // bytes the caller has written so far, pre-filter form
	dirty   bool
	pos     int64

	onFlush SizeReporter
}

func newStream(parent io.ReadWriteSeeker, codec Codec, readOnly, writeOnly bool, onFlush SizeReporter) *Stream {
	return &Stream{parent: parent, codec: codec, readOnly: readOnly, writeOnly: writeOnly, onFlush: onFlush}
}

func (s *Stream) load() error {
	if s.loaded {
		return nil
	}
	if s.writeOnly {
		// There is nothing to reverse-transform: a write-only pipeline is
		// producing new stored data, not reading existing data.
		s.loaded = true
		return nil
	}
	if _, err := s.parent.Seek(0, io.SeekStart); err != nil {
		return gamearchive.ErrBackingIOError.Wrap(err)
	}
	stored, err := readAll(s.parent)
	if err != nil {
		return gamearchive.ErrBackingIOError.Wrap(err)
	}
	s.real = runReverse(s.codec, stored)
	s.written = append([]byte(nil), s.real...)
	s.loaded = true
	return nil
}

// Size returns the current real (pre-filter) length.
func (s *Stream) Size() int64 {
	if err := s.load(); err != nil {
		return 0
	}
	return int64(len(s.written))
}

func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if err := s.load(); err != nil {
		return 0, err
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = int64(len(s.written)) + offset
	default:
		return 0, gamearchive.ErrBackingIOError.WithMessage("invalid whence")
	}
	if target < 0 {
		return 0, gamearchive.ErrBackingIOError.WithMessage("negative seek position")
	}
	s.pos = target
	return s.pos, nil
}

func (s *Stream) Read(p []byte) (int, error) {
	if err := s.load(); err != nil {
		return 0, err
	}
	if s.pos >= int64(len(s.written)) {
		return 0, io.EOF
	}
	n := copy(p, s.written[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *Stream) Write(p []byte) (int, error) {
	if s.readOnly {
		return 0, gamearchive.ErrReadOnlyOperation.WithMessage("filtered stream opened read-only")
	}
	if err := s.load(); err != nil {
		return 0, err
	}
	end := s.pos + int64(len(p))
	if end > int64(len(s.written)) {
		grown := make([]byte, end)
		copy(grown, s.written)
		s.written = grown
	}
	copy(s.written[s.pos:end], p)
	s.pos = end
	s.dirty = true
	return len(p), nil
}

// Flush forward-transforms the buffered real bytes and writes the stored
// result back to the parent stream, then reports the new sizes via the
// configured SizeReporter.
func (s *Stream) Flush() error {
	if s.readOnly || !s.dirty {
		return nil
	}
	stored := runForward(s.codec, s.written)

	if _, err := s.parent.Seek(0, io.SeekStart); err != nil {
		return gamearchive.ErrBackingIOError.Wrap(err)
	}
	if _, err := s.parent.Write(stored); err != nil {
		return gamearchive.ErrBackingIOError.Wrap(err)
	}
	if truncator, ok := s.parent.(interface{ Truncate(int64) error }); ok {
		if err := truncator.Truncate(int64(len(stored))); err != nil {
			return gamearchive.ErrBackingIOError.Wrap(err)
		}
	}

	s.real = s.written
	s.dirty = false
	if s.onFlush != nil {
		s.onFlush(int64(len(s.written)), int64(len(stored)))
	}
	return nil
}

// ApplyReadWrite wraps parent (read-write) in codec's pipeline, presenting
// the real (pre-filter) bytes. onFlush, if non-nil, is called on Flush with
// the new real/stored sizes.
func ApplyReadWrite(codec Codec, parent io.ReadWriteSeeker, onFlush SizeReporter) *Stream {
	return newStream(parent, codec, false, false, onFlush)
}

// ApplyReadOnly wraps parent (read-only) using only codec's reverse
// transform.
func ApplyReadOnly(codec Codec, parent io.ReadSeeker) (*Stream, error) {
	rws, ok := parent.(io.ReadWriteSeeker)
	if !ok {
		rws = readOnlyWrapper{parent}
	}
	s := newStream(rws, codec, true, false, nil)
	return s, nil
}

// ApplyWriteOnly wraps parent (write-only) using only codec's forward
// transform.
func ApplyWriteOnly(codec Codec, parent io.WriteSeeker, onFlush SizeReporter) *Stream {
	rws := writeOnlyWrapper{parent}
	return newStream(rws, codec, false, true, onFlush)
}

// readOnlyWrapper adapts an io.ReadSeeker to io.ReadWriteSeeker for
// ApplyReadOnly, whose Write is never legitimately reachable (Stream
// rejects writes on a read-only stream before it would be called).
type readOnlyWrapper struct {
	io.ReadSeeker
}

func (readOnlyWrapper) Write(p []byte) (int, error) {
	return 0, gamearchive.ErrReadOnlyOperation
}

// writeOnlyWrapper adapts an io.WriteSeeker to io.ReadWriteSeeker for
// ApplyWriteOnly, whose Read is never legitimately reachable for a
// write-only consumer.
type writeOnlyWrapper struct {
	io.WriteSeeker
}

func (writeOnlyWrapper) Read(p []byte) (int, error) {
	return 0, io.EOF
}
