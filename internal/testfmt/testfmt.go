// Package testfmt is a fixture archive format used only by this module's
// own tests: a minimal FAT-style format with a fixed-length name field and
// two 32-bit little-endian integers for offset and size, behind a 16-byte
// header holding "KenSilverman\0\0\0\0". It exercises [fat.Archive] directly
// with a per-entry inline header (no separate directory table), so most of
// its driver is the eight hooks and nothing else.
package testfmt

import (
	"encoding/binary"
	"io"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/fat"
	"github.com/camoto-go/gamearchive/stream/segstream"
)

const (
	HeaderLen       = 16
	NameFieldLen    = 8
	EntryHeaderLen  = 16 // NameFieldLen + 4 (offset) + 4 (size)
	MaxFilenameLen  = NameFieldLen
	FirstFileOffset = HeaderLen
)

var signature = [16]byte{'K', 'e', 'n', 'S', 'i', 'l', 'v', 'e', 'r', 'm', 'a', 'n'}

type driver struct{}

// New returns the fixture format driver.
func New() gamearchive.Driver { return driver{} }

func (driver) Code() string             { return "testfmt" }
func (driver) FriendlyName() string     { return "internal test fixture format" }
func (driver) FileExtensions() []string { return []string{"tst"} }
func (driver) Games() []string          { return nil }

func (driver) RequiredSupplementaryFiles(primaryName string) map[string]string {
	return nil
}

// Probe walks the sequence of (header, data) records starting right after
// the signature, each holding its own on-disk data offset, and requires the
// chain to parse cleanly to exactly the end of the stream.
func (driver) Probe(stream io.ReadSeeker) (gamearchive.Certainty, error) {
	size, err := streamSize(stream)
	if err != nil {
		return gamearchive.DefinitelyNo, err
	}
	if size < HeaderLen {
		return gamearchive.DefinitelyNo, nil
	}
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return gamearchive.DefinitelyNo, err
	}
	var sig [16]byte
	if _, err := io.ReadFull(stream, sig[:]); err != nil {
		return gamearchive.DefinitelyNo, nil
	}
	if sig != signature {
		return gamearchive.DefinitelyNo, nil
	}

	pos := int64(HeaderLen)
	for pos < size {
		if pos+EntryHeaderLen > size {
			return gamearchive.DefinitelyNo, nil
		}
		if _, err := stream.Seek(pos+NameFieldLen, io.SeekStart); err != nil {
			return gamearchive.DefinitelyNo, nil
		}
		var fields [8]byte
		if _, err := io.ReadFull(stream, fields[:]); err != nil {
			return gamearchive.DefinitelyNo, nil
		}
		dataOffset := binary.LittleEndian.Uint32(fields[0:4])
		dataSize := binary.LittleEndian.Uint32(fields[4:8])
		if int64(dataOffset) != pos+EntryHeaderLen {
			return gamearchive.DefinitelyNo, nil
		}
		pos = int64(dataOffset) + int64(dataSize)
		if pos > size {
			return gamearchive.DefinitelyNo, nil
		}
	}
	return gamearchive.DefinitelyYes, nil
}

func streamSize(stream io.ReadSeeker) (int64, error) {
	cur, err := stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	size, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := stream.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}

func config() gamearchive.ArchiveConfig {
	return gamearchive.ArchiveConfig{FirstFileOffset: FirstFileOffset, MaxNameLength: MaxFilenameLen}
}

func (driver) Create(stream io.ReadWriteSeeker, supps map[string]io.ReadWriteSeeker) (gamearchive.Archive, error) {
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}
	header := make([]byte, HeaderLen)
	copy(header, signature[:])
	if _, err := stream.Write(header); err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}
	fmtDriver := &formatDriver{}
	engine, err := fat.New(stream, config(), fmtDriver, nil)
	if err != nil {
		return nil, err
	}
	fmtDriver.archive = engine
	return engine, nil
}

func (driver) Open(stream io.ReadWriteSeeker, supps map[string]io.ReadWriteSeeker) (gamearchive.Archive, error) {
	size, err := streamSize(stream)
	if err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}

	fmtDriver := &formatDriver{}
	engine, err := fat.New(stream, config(), fmtDriver, nil)
	if err != nil {
		return nil, err
	}
	fmtDriver.archive = engine

	var entries []*fat.Entry
	pos := int64(HeaderLen)
	for pos < size {
		if pos+EntryHeaderLen > size {
			return nil, gamearchive.ErrTruncated
		}
		if _, err := stream.Seek(pos, io.SeekStart); err != nil {
			return nil, gamearchive.ErrBackingIOError.Wrap(err)
		}
		entryHeader := make([]byte, EntryHeaderLen)
		if _, err := io.ReadFull(stream, entryHeader); err != nil {
			return nil, gamearchive.ErrTruncated.Wrap(err)
		}

		dataOffset := binary.LittleEndian.Uint32(entryHeader[NameFieldLen : NameFieldLen+4])
		dataSize := binary.LittleEndian.Uint32(entryHeader[NameFieldLen+4 : NameFieldLen+8])

		e := &fat.Entry{}
		e.Name = nullPaddedToString(entryHeader[:NameFieldLen])
		e.Index = len(entries)
		e.Offset = pos // header start; data begins at Offset+HeaderLen
		e.HeaderLen = EntryHeaderLen
		e.StoredSize = int64(dataSize)
		e.RealSize = int64(dataSize)
		e.Valid = true
		entries = append(entries, e)

		pos = int64(dataOffset) + int64(dataSize)
	}
	engine.LoadEntries(entries)
	return engine, nil
}

func nullPaddedToString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func writeU32LE(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// formatDriver is the fat.Driver for this fixture: every entry carries its
// own 16-byte header (name + on-disk data offset + size) starting at
// Entry.Offset, immediately before its data at Offset+HeaderLen. The
// generic engine's Insert opens a gap only for the new entry's data, so
// PreInsert inserts the header's bytes itself, writes them, and shifts
// later entries by the header length; PreRemove needs nothing extra since
// the engine's own Remove deletes header and data together.
type formatDriver struct {
	fat.BaseDriver
	archive *fat.Archive
}

func (*formatDriver) MakeNewEntry() *fat.Entry {
	return &fat.Entry{}
}

func (*formatDriver) SupportedAttributes() gamearchive.Attribute {
	return gamearchive.AttrEmpty | gamearchive.AttrHidden | gamearchive.AttrCompressed | gamearchive.AttrEncrypted
}

func (d *formatDriver) writeHeader(stream *segstream.Stream, e *fat.Entry, name string) error {
	if _, err := stream.Seek(e.Offset, io.SeekStart); err != nil {
		return err
	}
	nameBuf := make([]byte, NameFieldLen)
	copy(nameBuf, name)
	if _, err := stream.Write(nameBuf); err != nil {
		return err
	}
	if err := writeU32LE(stream, uint32(e.Offset+EntryHeaderLen)); err != nil {
		return err
	}
	return writeU32LE(stream, uint32(e.StoredSize))
}

func (d *formatDriver) UpdateFileName(stream *segstream.Stream, e *fat.Entry, newName string) error {
	if len(newName) > MaxFilenameLen {
		return gamearchive.ErrNameTooLong
	}
	return d.writeHeader(stream, e, newName)
}

func (d *formatDriver) UpdateFileOffset(stream *segstream.Stream, e *fat.Entry, delta int64) error {
	return d.writeHeader(stream, e, e.Name)
}

func (d *formatDriver) UpdateFileSize(stream *segstream.Stream, e *fat.Entry, delta int64) error {
	return d.writeHeader(stream, e, e.Name)
}

// PreInsert inserts the new entry's 16-byte header at its allocated
// position (the engine's initial offset guess already lands exactly on
// the header start for this uniform-HeaderLen format) and shifts every
// later entry's Offset by EntryHeaderLen — the one part of the physical
// move the engine's own post-PreInsert shiftFiles call does not cover,
// since that call only accounts for the new entry's data size.
func (d *formatDriver) PreInsert(stream *segstream.Stream, before, newEntry *fat.Entry) error {
	if len(newEntry.Name) > MaxFilenameLen {
		return gamearchive.ErrNameTooLong
	}
	newEntry.HeaderLen = EntryHeaderLen

	if _, err := stream.Seek(newEntry.Offset, io.SeekStart); err != nil {
		return err
	}
	if err := stream.Insert(EntryHeaderLen); err != nil {
		return err
	}

	if err := d.archive.ShiftFiles(nil, newEntry.Offset, EntryHeaderLen, 0); err != nil {
		return err
	}

	return d.writeHeader(stream, newEntry, newEntry.Name)
}

func (*formatDriver) PostInsert(stream *segstream.Stream, newEntry *fat.Entry) error {
	return nil
}
