// Package grp implements the Duke Nukem 3D GRP format: a fixed 16-byte
// "KenSilverman" signature and file count, followed by a contiguous table
// of 16-byte directory entries (12-byte padded name + 32-bit little-endian
// size), followed by every member's data concatenated back-to-back with no
// stored offsets — each member's position is the sum of every preceding
// member's size.
package grp

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/fat"
	"github.com/camoto-go/gamearchive/stream/segstream"
)

const (
	headerLen          = 16
	fileCountOffset    = 12
	fatEntryLen        = 16
	filenameFieldLen   = 12
	maxFilenameLen     = filenameFieldLen
	firstFileOffset    = headerLen
	safetyMaxFileCount = 8192
)

var signature = [12]byte{'K', 'e', 'n', 'S', 'i', 'l', 'v', 'e', 'r', 'm', 'a', 'n'}

// driver is the gamearchive.Driver for this format.
type driver struct{}

// New returns the GRP format driver.
func New() gamearchive.Driver { return driver{} }

func (driver) Code() string             { return "grp-duke3d" }
func (driver) FriendlyName() string     { return "Duke Nukem 3D Group File" }
func (driver) FileExtensions() []string { return []string{"grp"} }
func (driver) Games() []string {
	return []string{"Duke Nukem 3D", "Redneck Rampage", "Shadow Warrior"}
}

func (driver) RequiredSupplementaryFiles(primaryName string) map[string]string {
	return nil
}

func (driver) Probe(stream io.ReadSeeker) (gamearchive.Certainty, error) {
	size, err := streamSize(stream)
	if err != nil {
		return gamearchive.DefinitelyNo, err
	}
	if size < fatEntryLen {
		return gamearchive.DefinitelyNo, nil
	}
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return gamearchive.DefinitelyNo, err
	}
	var sig [12]byte
	if _, err := io.ReadFull(stream, sig[:]); err != nil {
		return gamearchive.DefinitelyNo, nil
	}
	if sig != signature {
		return gamearchive.DefinitelyNo, nil
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

func (driver) Create(stream io.ReadWriteSeeker, supps map[string]io.ReadWriteSeeker) (gamearchive.Archive, error) {
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}
	header := make([]byte, headerLen)
	copy(header, signature[:])
	if _, err := stream.Write(header); err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}

	config := gamearchive.ArchiveConfig{FirstFileOffset: firstFileOffset, MaxNameLength: maxFilenameLen}
	fmtDriver := &formatDriver{}
	engine, err := fat.New(stream, config, fmtDriver, nil)
	if err != nil {
		return nil, err
	}
	fmtDriver.archive = engine
	return engine, nil
}

func (driver) Open(stream io.ReadWriteSeeker, supps map[string]io.ReadWriteSeeker) (gamearchive.Archive, error) {
	if _, err := stream.Seek(fileCountOffset, io.SeekStart); err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}
	var numFiles uint32
	if err := binary.Read(stream, binary.LittleEndian, &numFiles); err != nil {
		return nil, gamearchive.ErrTruncated.Wrap(err)
	}
	if numFiles >= safetyMaxFileCount {
		return nil, gamearchive.ErrFormatMismatch.WithMessage("too many files or corrupted archive")
	}

	config := gamearchive.ArchiveConfig{FirstFileOffset: firstFileOffset, MaxNameLength: maxFilenameLen}
	fmtDriver := &formatDriver{}
	engine, err := fat.New(stream, config, fmtDriver, nil)
	if err != nil {
		return nil, err
	}
	fmtDriver.archive = engine

	entries := make([]*fat.Entry, numFiles)
	offNext := int64(headerLen) + int64(numFiles)*fatEntryLen
	for i := 0; i < int(numFiles); i++ {
		nameBuf := make([]byte, filenameFieldLen)
		if _, err := io.ReadFull(stream, nameBuf); err != nil {
			return nil, gamearchive.ErrTruncated.Wrap(err)
		}
		var size uint32
		if err := binary.Read(stream, binary.LittleEndian, &size); err != nil {
			return nil, gamearchive.ErrTruncated.Wrap(err)
		}

		e := &fat.Entry{}
		e.Name = nullPaddedToString(nameBuf)
		e.Index = i
		e.Offset = offNext
		e.HeaderLen = 0
		e.StoredSize = int64(size)
		e.RealSize = int64(size)
		e.Valid = true
		entries[i] = e
		offNext += int64(size)
	}
	engine.LoadEntries(entries)
	return engine, nil
}

func nullPaddedToString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func writeU32LE(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// formatDriver is the fat.Driver for GRP: it owns a contiguous directory
// table at the front of the archive, which grows or shrinks by one
// fatEntryLen slot on every insert/remove, distinct from (and ahead of)
// the per-member data region the generic engine manages.
type formatDriver struct {
	fat.BaseDriver
	archive *fat.Archive
}

func entryTableOffset(e *fat.Entry) int64 {
	return headerLen + int64(e.Index)*fatEntryLen
}

func (d *formatDriver) MakeNewEntry() *fat.Entry {
	return &fat.Entry{}
}

func (formatDriver) SupportedAttributes() gamearchive.Attribute {
	return gamearchive.AttrNone
}

func (d *formatDriver) UpdateFileName(stream *segstream.Stream, e *fat.Entry, newName string) error {
	if len(newName) > maxFilenameLen {
		return gamearchive.ErrNameTooLong
	}
	if _, err := stream.Seek(entryTableOffset(e), io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, filenameFieldLen)
	copy(buf, strings.ToUpper(newName))
	_, err := stream.Write(buf)
	return err
}

func (d *formatDriver) UpdateFileOffset(stream *segstream.Stream, e *fat.Entry, delta int64) error {
	// GRP stores no on-disk offset field; a member's position is always
	// derived from the cumulative size of everything before it.
	return nil
}

func (d *formatDriver) UpdateFileSize(stream *segstream.Stream, e *fat.Entry, delta int64) error {
	if _, err := stream.Seek(entryTableOffset(e)+filenameFieldLen, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(stream, uint32(e.StoredSize))
}

func (d *formatDriver) PreInsert(stream *segstream.Stream, before, newEntry *fat.Entry) error {
	if len(newEntry.Name) > maxFilenameLen {
		return gamearchive.ErrNameTooLong
	}
	newEntry.HeaderLen = 0
	// The new entry isn't in the directory table yet, so its data offset
	// must be shifted forward by one table slot manually.
	newEntry.Offset += fatEntryLen

	count := len(d.archive.Entries())

	if _, err := stream.Seek(entryTableOffset(newEntry), io.SeekStart); err != nil {
		return err
	}
	if err := stream.Insert(fatEntryLen); err != nil {
		return err
	}

	newEntry.Name = strings.ToUpper(newEntry.Name)
	nameBuf := make([]byte, filenameFieldLen)
	copy(nameBuf, newEntry.Name)
	if _, err := stream.Write(nameBuf); err != nil {
		return err
	}
	if err := writeU32LE(stream, uint32(newEntry.StoredSize)); err != nil {
		return err
	}

	if err := d.archive.ShiftFiles(nil, headerLen+int64(count)*fatEntryLen, fatEntryLen, 0); err != nil {
		return err
	}

	return d.updateFileCount(stream, count+1)
}

func (d *formatDriver) PostInsert(stream *segstream.Stream, newEntry *fat.Entry) error {
	return nil
}

func (d *formatDriver) PreRemove(stream *segstream.Stream, e *fat.Entry) error {
	count := len(d.archive.Entries())

	// Every member's data moves back by one table slot once that slot is
	// removed; only the in-memory offsets change, since GRP stores none.
	if err := d.archive.ShiftFiles(nil, headerLen+int64(count)*fatEntryLen, -fatEntryLen, 0); err != nil {
		return err
	}

	if _, err := stream.Seek(entryTableOffset(e), io.SeekStart); err != nil {
		return err
	}
	if err := stream.Remove(fatEntryLen); err != nil {
		return err
	}

	return d.updateFileCount(stream, count-1)
}

func (d *formatDriver) PostRemove(stream *segstream.Stream, e *fat.Entry) error {
	return nil
}

func (d *formatDriver) updateFileCount(stream *segstream.Stream, n int) error {
	if _, err := stream.Seek(fileCountOffset, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(stream, uint32(n))
}
