// Package datgot implements the God of Thunder DAT format: a fixed-size,
// XOR-encrypted directory of up to 256 entries occupying the first bytes
// of the archive, each carrying an explicit on-disk offset (unlike the GRP
// format's cumulative-offset scheme) and a compressed-attribute flag.
//
// The directory bytes are encrypted at rest with the incremental XOR key
// seed=0, period=128 — the same running-key construction [filter.XOR]
// implements for member data, applied here directly to the fixed-size
// directory region rather than through the generic per-member filter
// pipeline.
package datgot

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/fat"
	"github.com/camoto-go/gamearchive/stream/segstream"
)

const (
	maxFiles         = 256
	maxFilenameLen   = 8
	filenameFieldLen = 9
	fatEntryLen      = 23
	fatLength        = maxFiles * fatEntryLen
	firstFileOffset  = fatLength

	xorSeed   byte  = 0
	xorPeriod int64 = 128

	flagCompressed uint16 = 1
)

func xorCrypt(buf []byte, startOffset int64) []byte {
	out := make([]byte, len(buf))
	for i, b := range buf {
		key := xorSeed + byte((startOffset+int64(i))%xorPeriod)
		out[i] = b ^ key
	}
	return out
}

type driver struct{}

// New returns the God of Thunder DAT format driver.
func New() gamearchive.Driver { return driver{} }

func (driver) Code() string             { return "dat-got" }
func (driver) FriendlyName() string     { return "God of Thunder Resource File" }
func (driver) FileExtensions() []string { return []string{"dat"} }
func (driver) Games() []string          { return []string{"God of Thunder"} }

func (driver) RequiredSupplementaryFiles(primaryName string) map[string]string {
	return nil
}

func (driver) Probe(stream io.ReadSeeker) (gamearchive.Certainty, error) {
	size, err := streamSize(stream)
	if err != nil {
		return gamearchive.DefinitelyNo, err
	}
	if size < fatLength {
		return gamearchive.DefinitelyNo, nil
	}

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return gamearchive.DefinitelyNo, err
	}
	raw := make([]byte, fatLength)
	if _, err := io.ReadFull(stream, raw); err != nil {
		return gamearchive.DefinitelyNo, nil
	}
	decoded := xorCrypt(raw, 0)

	for i := 0; i < maxFiles; i++ {
		entry := decoded[i*fatEntryLen : (i+1)*fatEntryLen]
		name := entry[:filenameFieldLen]
		for _, b := range name {
			if b == 0 {
				break
			}
			if b < 32 {
				return gamearchive.DefinitelyNo, nil
			}
		}
		offset := binary.LittleEndian.Uint32(entry[9:13])
		length := binary.LittleEndian.Uint32(entry[13:17])
		if int64(offset)+int64(length) > size {
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
	return gamearchive.ArchiveConfig{
		FirstFileOffset: firstFileOffset,
		MaxNameLength:   maxFilenameLen,
		MaxEntryCount:   maxFiles,
	}
}

func (driver) Create(stream io.ReadWriteSeeker, supps map[string]io.ReadWriteSeeker) (gamearchive.Archive, error) {
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}
	blank := xorCrypt(make([]byte, fatLength), 0)
	if _, err := stream.Write(blank); err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}

	fmtDriver := newFormatDriver()
	engine, err := fat.New(stream, config(), fmtDriver, nil)
	if err != nil {
		return nil, err
	}
	fmtDriver.archive = engine
	return engine, nil
}

func (driver) Open(stream io.ReadWriteSeeker, supps map[string]io.ReadWriteSeeker) (gamearchive.Archive, error) {
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, gamearchive.ErrBackingIOError.Wrap(err)
	}
	raw := make([]byte, fatLength)
	if _, err := io.ReadFull(stream, raw); err != nil {
		return nil, gamearchive.ErrTruncated.Wrap(err)
	}
	decoded := xorCrypt(raw, 0)

	fmtDriver := newFormatDriver()
	engine, err := fat.New(stream, config(), fmtDriver, nil)
	if err != nil {
		return nil, err
	}
	fmtDriver.archive = engine

	var entries []*fat.Entry
	for slot := 0; slot < maxFiles; slot++ {
		raw := decoded[slot*fatEntryLen : (slot+1)*fatEntryLen]
		offset := binary.LittleEndian.Uint32(raw[9:13])
		if offset == 0 {
			continue
		}
		storedSize := binary.LittleEndian.Uint32(raw[13:17])
		realSize := binary.LittleEndian.Uint32(raw[17:21])
		flags := binary.LittleEndian.Uint16(raw[21:23])

		e := &fat.Entry{}
		e.Name = nullPaddedToString(raw[0:filenameFieldLen])
		e.Index = len(entries)
		e.Offset = int64(offset)
		e.HeaderLen = 0
		e.StoredSize = int64(storedSize)
		e.RealSize = int64(realSize)
		if flags&flagCompressed != 0 {
			e.Attributes |= gamearchive.AttrCompressed
			e.FilterID = "lzss-got"
		}
		e.Valid = true

		fmtDriver.slots[e] = slot
		fmtDriver.occupied[slot] = true
		entries = append(entries, e)
	}
	// Slots are reused after removals, so slot order need not be data order.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })
	for i, e := range entries {
		e.Index = i
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

// formatDriver is the fat.Driver for this format. A directory slot is
// assigned to an entry once (at insert or load time) and stays fixed for
// that entry's lifetime — unlike Entry.Index, which the generic engine
// renumbers on every insert/remove to track data order.
type formatDriver struct {
	fat.BaseDriver
	archive  *fat.Archive
	slots    map[*fat.Entry]int
	occupied [maxFiles]bool
}

func newFormatDriver() *formatDriver {
	return &formatDriver{slots: make(map[*fat.Entry]int)}
}

func (d *formatDriver) MakeNewEntry() *fat.Entry {
	return &fat.Entry{}
}

func (formatDriver) SupportedAttributes() gamearchive.Attribute {
	return gamearchive.AttrCompressed
}

func (d *formatDriver) findFreeSlot() (int, bool) {
	for i := 0; i < maxFiles; i++ {
		if !d.occupied[i] {
			return i, true
		}
	}
	return 0, false
}

// writeEntry serializes e's current fields (using name in place of
// e.Name, since Rename calls this hook before updating e.Name) into its
// assigned directory slot.
func (d *formatDriver) writeEntry(stream *segstream.Stream, e *fat.Entry, name string) error {
	slot, ok := d.slots[e]
	if !ok {
		return gamearchive.ErrFileNotFound
	}
	return d.writeSlot(stream, slot, name, e.Offset, e.StoredSize, e.RealSize, e.Attributes.Has(gamearchive.AttrCompressed))
}

func (d *formatDriver) writeSlot(stream *segstream.Stream, slot int, name string, offset, storedSize, realSize int64, compressed bool) error {
	buf := make([]byte, fatEntryLen)
	copy(buf[0:filenameFieldLen], name)
	binary.LittleEndian.PutUint32(buf[9:13], uint32(offset))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(storedSize))
	binary.LittleEndian.PutUint32(buf[17:21], uint32(realSize))
	var flags uint16
	if compressed {
		flags = flagCompressed
	}
	binary.LittleEndian.PutUint16(buf[21:23], flags)

	slotOffset := int64(slot) * fatEntryLen
	encoded := xorCrypt(buf, slotOffset)
	if _, err := stream.Seek(slotOffset, io.SeekStart); err != nil {
		return err
	}
	_, err := stream.Write(encoded)
	return err
}

func (d *formatDriver) UpdateFileName(stream *segstream.Stream, e *fat.Entry, newName string) error {
	if len(newName) > maxFilenameLen {
		return gamearchive.ErrNameTooLong
	}
	return d.writeEntry(stream, e, newName)
}

func (d *formatDriver) UpdateFileOffset(stream *segstream.Stream, e *fat.Entry, delta int64) error {
	return d.writeEntry(stream, e, e.Name)
}

func (d *formatDriver) UpdateFileSize(stream *segstream.Stream, e *fat.Entry, delta int64) error {
	return d.writeEntry(stream, e, e.Name)
}

func (d *formatDriver) PreInsert(stream *segstream.Stream, before, newEntry *fat.Entry) error {
	if len(newEntry.Name) > maxFilenameLen {
		return gamearchive.ErrNameTooLong
	}
	slot, ok := d.findFreeSlot()
	if !ok {
		return gamearchive.ErrTooMany
	}
	newEntry.HeaderLen = 0
	d.slots[newEntry] = slot
	d.occupied[slot] = true
	return d.writeEntry(stream, newEntry, newEntry.Name)
}

func (d *formatDriver) PostInsert(stream *segstream.Stream, newEntry *fat.Entry) error {
	return nil
}

func (d *formatDriver) PreRemove(stream *segstream.Stream, e *fat.Entry) error {
	slot, ok := d.slots[e]
	if !ok {
		return gamearchive.ErrFileNotFound
	}
	return d.writeSlot(stream, slot, "", 0, 0, 0, false)
}

func (d *formatDriver) PostRemove(stream *segstream.Stream, e *fat.Entry) error {
	slot, ok := d.slots[e]
	if ok {
		d.occupied[slot] = false
		delete(d.slots, e)
	}
	return nil
}
