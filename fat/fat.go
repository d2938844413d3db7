// Package fat implements the generic FAT-style archive engine: it keeps an
// ordered directory of member entries synchronized with a segmented backing
// stream across insert, remove, rename, move, and resize, delegating the
// per-format on-disk directory encoding to an eight-hook [Driver].
package fat

import (
	"io"
	"strings"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/filter"
	"github.com/camoto-go/gamearchive/stream/segstream"
	"github.com/camoto-go/gamearchive/stream/substream"
	"github.com/hashicorp/go-multierror"
)

// Entry extends [gamearchive.Entry] with the bookkeeping the FAT engine
// needs but that is meaningless to a fixed archive or to callers: its
// ordinal position, its absolute byte offset, and the length of whatever
// per-entry inline header precedes its data region.
type Entry struct {
	gamearchive.Entry

	// Index is the entry's ordinal position in on-disk order.
	Index int

	// Offset is the absolute byte position of the start of the entry's
	// inline header, if any; its data region begins at Offset+HeaderLen.
	// For formats with no per-entry header, Offset is simply the data
	// position.
	Offset int64

	// HeaderLen is the number of bytes of per-entry inline header
	// starting at Offset, before the entry's own data. Zero for formats
	// with no per-entry header.
	HeaderLen int64
}

// Driver is the per-format contract the FAT engine calls into. Embed
// [BaseDriver] to get no-op defaults for every hook except MakeNewEntry,
// which every driver must supply.
type Driver interface {
	// UpdateFileName writes entry's new name into the on-disk directory.
	UpdateFileName(stream *segstream.Stream, entry *Entry, newName string) error

	// UpdateFileOffset writes entry's new offset into the on-disk
	// directory after a shift. entry.Offset already reflects the new
	// value; delta is supplied for drivers that store offsets
	// incrementally. Formats with no on-disk offset field leave this a
	// no-op.
	UpdateFileOffset(stream *segstream.Stream, entry *Entry, delta int64) error

	// UpdateFileSize writes entry's new stored size into the on-disk
	// directory after a resize. entry.StoredSize already reflects the new
	// value.
	UpdateFileSize(stream *segstream.Stream, entry *Entry, delta int64) error

	// PreInsert allocates the directory slot and any per-entry inline
	// header for newEntry, which is not yet marked valid. It must set
	// newEntry.HeaderLen and may write header bytes into stream at
	// newEntry.Offset. before is the entry newEntry will precede, or nil
	// when inserting at the end.
	PreInsert(stream *segstream.Stream, before, newEntry *Entry) error

	// PostInsert runs after the entry's data region has been allocated in
	// the backing stream.
	PostInsert(stream *segstream.Stream, newEntry *Entry) error

	// PreRemove deletes entry's directory slot.
	PreRemove(stream *segstream.Stream, entry *Entry) error

	// PostRemove runs after entry's data has been removed from the backing
	// stream.
	PostRemove(stream *segstream.Stream, entry *Entry) error

	// MakeNewEntry produces a new, empty Entry value (possibly a
	// driver-specific subclass of Entry's fields via embedding).
	MakeNewEntry() *Entry

	// SupportedAttributes returns the bitwise-OR of every Attribute value
	// this format can represent.
	SupportedAttributes() gamearchive.Attribute
}

// BaseDriver supplies no-op defaults for every hook except MakeNewEntry,
// matching the defaults the format family this engine generalizes provides,
// plus a SupportedAttributes default reporting Empty, Hidden, Compressed
// and Encrypted.
type BaseDriver struct{}

func (BaseDriver) UpdateFileName(*segstream.Stream, *Entry, string) error    { return nil }
func (BaseDriver) UpdateFileOffset(*segstream.Stream, *Entry, int64) error   { return nil }
func (BaseDriver) UpdateFileSize(*segstream.Stream, *Entry, int64) error     { return nil }
func (BaseDriver) PreInsert(*segstream.Stream, *Entry, *Entry) error         { return nil }
func (BaseDriver) PostInsert(*segstream.Stream, *Entry) error                { return nil }
func (BaseDriver) PreRemove(*segstream.Stream, *Entry) error                 { return nil }
func (BaseDriver) PostRemove(*segstream.Stream, *Entry) error                { return nil }
func (BaseDriver) SupportedAttributes() gamearchive.Attribute {
	return gamearchive.AttrEmpty | gamearchive.AttrHidden | gamearchive.AttrCompressed | gamearchive.AttrEncrypted
}

// FilterResolver looks up a filter codec by its persistent FilterID.
// Archive uses it to wrap Open'd streams when useFilter is requested.
type FilterResolver interface {
	ResolveFilter(filterID string) (filter.Codec, bool)
}

// Archive is the generic FAT-style engine: an ordered entry list backed by
// a [segstream.Stream], driven by a format-specific [Driver].
type Archive struct {
	config   gamearchive.ArchiveConfig
	driver   Driver
	stream   *segstream.Stream
	filters  FilterResolver
	entries  []*Entry
	byHandle map[*gamearchive.Entry]*Entry
	handles  *gamearchive.HandleTable
}

// New creates an archive engine over base using driver for the per-format
// directory encoding. filters may be nil if the format never uses filters.
func New(base io.ReadWriteSeeker, config gamearchive.ArchiveConfig, driver Driver, filters FilterResolver) (*Archive, error) {
	stream, err := segstream.New(base)
	if err != nil {
		return nil, err
	}
	return &Archive{
		config:   config,
		driver:   driver,
		stream:   stream,
		filters:  filters,
		byHandle: make(map[*gamearchive.Entry]*Entry),
		handles:  gamearchive.NewHandleTable(),
	}, nil
}

// LoadEntries installs entries parsed by a concrete format driver as the
// archive's initial directory, in on-disk order. It is the counterpart to
// Insert for an Open (rather than Create) code path, which does not run the
// insert hooks since the entries already exist on disk.
func (a *Archive) LoadEntries(entries []*Entry) {
	a.entries = entries
	a.byHandle = make(map[*gamearchive.Entry]*Entry, len(entries))
	for _, e := range entries {
		e.Valid = true
		a.byHandle[&e.Entry] = e
	}
}

// Stream returns the archive's backing segmented stream, for drivers that
// need direct access outside the hook calls (e.g. to parse the directory
// during Open).
func (a *Archive) Stream() *segstream.Stream {
	return a.stream
}

func (a *Archive) lookup(entry *gamearchive.Entry) *Entry {
	if entry == nil {
		return nil
	}
	return a.byHandle[entry]
}

// Find implements [gamearchive.Archive].
func (a *Archive) Find(name string) (*gamearchive.Entry, error) {
	for _, e := range a.entries {
		if e.Valid && strings.EqualFold(e.Name, name) {
			return &e.Entry, nil
		}
	}
	return nil, gamearchive.ErrFileNotFound
}

// Files implements [gamearchive.Archive].
func (a *Archive) Files() []*gamearchive.Entry {
	result := make([]*gamearchive.Entry, len(a.entries))
	for i, e := range a.entries {
		result[i] = &e.Entry
	}
	return result
}

// IsValid implements [gamearchive.Archive].
func (a *Archive) IsValid(entry *gamearchive.Entry) bool {
	fe := a.lookup(entry)
	return fe != nil && fe.Valid
}

// Entries returns the FAT-extended entry list directly, in on-disk order,
// for drivers whose hooks need the Index/Offset/HeaderLen fields Files'
// plain []*gamearchive.Entry does not expose.
func (a *Archive) Entries() []*Entry {
	return a.entries
}

// ShiftFiles updates the Offset and Index of every entry at or past
// offsetStart (other than skip, per the zero-length special case — see
// entryInRange), notifying the driver and any live substreams. Drivers
// call this from their hooks to account for housekeeping regions they
// manage themselves (e.g. a directory table whose own size changes
// independently of any single member's data region).
func (a *Archive) ShiftFiles(skip *Entry, offsetStart, deltaOffset int64, deltaIndex int) error {
	return a.shiftFiles(skip, offsetStart, deltaOffset, deltaIndex)
}

// OpenFolder implements [gamearchive.Archive]. The generic FAT engine has
// no notion of nested archives; formats that support subdirectories wrap
// Archive with their own type that overrides this.
func (a *Archive) OpenFolder(entry *gamearchive.Entry) (gamearchive.Archive, error) {
	return nil, gamearchive.ErrFormatMismatch.WithMessage("format does not support subfolders")
}

// SupportedAttributes implements [gamearchive.Archive].
func (a *Archive) SupportedAttributes() gamearchive.Attribute {
	return a.driver.SupportedAttributes()
}

// Flush implements [gamearchive.Archive].
func (a *Archive) Flush() error {
	return a.stream.Flush()
}

// entryInRange is the shift-range predicate shared by Insert, Remove, and
// Resize: e belongs to the shift region iff its offset is at or past
// offsetStart and it is not the skip entry, with one exception — a
// zero-length entry sitting at exactly skip's offset but with a lower
// index is not shifted, so that zero-length files placed immediately
// before the reference entry keep their relative order as the reference
// entry grows.
func entryInRange(e, skip *Entry, offsetStart int64) bool {
	if e == skip {
		return false
	}
	if e.Offset < offsetStart {
		return false
	}
	if skip != nil && e.StoredSize == 0 && e.Offset == skip.Offset && e.Index < skip.Index {
		return false
	}
	return true
}

// shiftFiles updates offset and index of every entry in the shift region
// and notifies the driver and any live substreams of the new offsets.
func (a *Archive) shiftFiles(skip *Entry, offsetStart, deltaOffset int64, deltaIndex int) error {
	var errs *multierror.Error
	for _, e := range a.entries {
		if !entryInRange(e, skip, offsetStart) {
			continue
		}
		e.Offset += deltaOffset
		e.Index += deltaIndex
		if err := a.driver.UpdateFileOffset(a.stream, e, deltaOffset); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if deltaOffset != 0 {
			a.handles.NotifyRelocate(&e.Entry, deltaOffset)
		}
	}
	return errs.ErrorOrNil()
}

// Insert implements [gamearchive.Archive].
func (a *Archive) Insert(
	before *gamearchive.Entry,
	name string,
	storedSize int64,
	entryType string,
	attrs gamearchive.Attribute,
) (*gamearchive.Entry, error) {
	if name == "" {
		return nil, gamearchive.ErrNameTooLong.WithMessage("name must not be empty")
	}
	if a.config.MaxNameLength > 0 && len(name) > a.config.MaxNameLength {
		return nil, gamearchive.ErrNameTooLong
	}
	if a.config.MaxEntryCount > 0 && len(a.entries) >= a.config.MaxEntryCount {
		return nil, gamearchive.ErrTooMany
	}

	beforeFE := a.lookup(before)
	if beforeFE != nil && !beforeFE.Valid {
		beforeFE = nil
	}

	newEntry := a.driver.MakeNewEntry()
	newEntry.Name = name
	newEntry.StoredSize = storedSize
	newEntry.RealSize = storedSize
	newEntry.Type = entryType
	newEntry.Attributes = attrs
	newEntry.Valid = false

	if beforeFE != nil {
		newEntry.Offset = beforeFE.Offset
		newEntry.Index = beforeFE.Index
	} else if len(a.entries) > 0 {
		last := a.entries[len(a.entries)-1]
		newEntry.Offset = last.Offset + last.HeaderLen + last.StoredSize
		newEntry.Index = len(a.entries)
	} else {
		newEntry.Offset = a.config.FirstFileOffset
		newEntry.Index = 0
	}

	if err := a.driver.PreInsert(a.stream, beforeFE, newEntry); err != nil {
		return nil, err
	}

	newEntry.Valid = true

	// The physical gap for the new entry's data must exist before shiftFiles
	// asks the driver to rewrite survivors' on-disk offsets at their new
	// (post-shift) positions — otherwise those writes land on bytes that
	// haven't been displaced yet.
	if _, err := a.stream.Seek(newEntry.Offset+newEntry.HeaderLen, io.SeekStart); err != nil {
		return nil, err
	}
	if err := a.stream.Insert(newEntry.StoredSize); err != nil {
		return nil, err
	}

	if beforeFE != nil {
		if err := a.shiftFiles(newEntry, newEntry.Offset+newEntry.HeaderLen, newEntry.StoredSize, 1); err != nil {
			newEntry.Valid = false
			return nil, err
		}
	}

	position := len(a.entries)
	if beforeFE != nil {
		for i, e := range a.entries {
			if e == beforeFE {
				position = i
				break
			}
		}
	}
	a.entries = append(a.entries, nil)
	copy(a.entries[position+1:], a.entries[position:])
	a.entries[position] = newEntry
	a.byHandle[&newEntry.Entry] = newEntry

	if err := a.driver.PostInsert(a.stream, newEntry); err != nil {
		return nil, err
	}

	return &newEntry.Entry, nil
}

// Remove implements [gamearchive.Archive].
func (a *Archive) Remove(entry *gamearchive.Entry) error {
	fe := a.lookup(entry)
	if fe == nil || !fe.Valid {
		return gamearchive.ErrFileNotFound
	}
	if a.handles.IsOpen(entry) {
		return gamearchive.ErrFileInUse
	}

	if err := a.driver.PreRemove(a.stream, fe); err != nil {
		return err
	}

	for i, e := range a.entries {
		if e == fe {
			a.entries = append(a.entries[:i], a.entries[i+1:]...)
			break
		}
	}
	fe.Valid = false
	delete(a.byHandle, &fe.Entry)

	// As in Insert, the physical removal must happen before shiftFiles
	// rewrites survivors' on-disk offsets at their new positions.
	if _, err := a.stream.Seek(fe.Offset, io.SeekStart); err != nil {
		return err
	}
	if err := a.stream.Remove(fe.HeaderLen + fe.StoredSize); err != nil {
		return err
	}

	if err := a.shiftFiles(nil, fe.Offset, -(fe.HeaderLen + fe.StoredSize), -1); err != nil {
		return err
	}

	a.handles.NotifyInvalidate(entry)

	return a.driver.PostRemove(a.stream, fe)
}

// Rename implements [gamearchive.Archive].
func (a *Archive) Rename(entry *gamearchive.Entry, newName string) error {
	fe := a.lookup(entry)
	if fe == nil || !fe.Valid {
		return gamearchive.ErrFileNotFound
	}
	if a.config.MaxNameLength > 0 && len(newName) > a.config.MaxNameLength {
		return gamearchive.ErrNameTooLong
	}
	if err := a.driver.UpdateFileName(a.stream, fe, newName); err != nil {
		return err
	}
	fe.Name = newName
	return nil
}

// Move implements [gamearchive.Archive] as insert-copy-remove: a new entry
// is created before before, the source bytes are copied across, and the
// original entry is removed. It fails if the filters at the source and
// destination would differ; this engine does not transparently convert
// between filters.
func (a *Archive) Move(before *gamearchive.Entry, entry *gamearchive.Entry) error {
	srcFE := a.lookup(entry)
	if srcFE == nil || !srcFE.Valid {
		return gamearchive.ErrFileNotFound
	}

	src, err := a.Open(entry, false)
	if err != nil {
		return err
	}
	closeSrc := func() {
		if c, ok := src.(io.Closer); ok {
			c.Close()
		}
	}

	newEntry, err := a.Insert(before, srcFE.Name, srcFE.StoredSize, srcFE.Type, srcFE.Attributes)
	if err != nil {
		closeSrc()
		return err
	}
	newFE := a.lookup(newEntry)
	if newFE.FilterID != srcFE.FilterID {
		closeSrc()
		a.Remove(newEntry)
		return gamearchive.ErrFilterMismatch
	}
	newFE.FilterID = srcFE.FilterID

	dst, err := a.Open(newEntry, false)
	if err != nil {
		closeSrc()
		a.Remove(newEntry)
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		closeSrc()
		if c, ok := dst.(io.Closer); ok {
			c.Close()
		}
		a.Remove(newEntry)
		return gamearchive.ErrBackingIOError.Wrap(err)
	}

	closeSrc()
	if c, ok := dst.(io.Closer); ok {
		c.Close()
	}

	return a.Remove(entry)
}

// Resize implements [gamearchive.Archive]. If the driver's UpdateFileSize
// hook fails, the in-memory size change is rolled back before the error is
// returned.
func (a *Archive) Resize(entry *gamearchive.Entry, newStoredSize, newRealSize int64) error {
	fe := a.lookup(entry)
	if fe == nil || !fe.Valid {
		return gamearchive.ErrFileNotFound
	}

	oldStoredSize, oldRealSize := fe.StoredSize, fe.RealSize
	delta := newStoredSize - oldStoredSize

	fe.StoredSize = newStoredSize
	fe.RealSize = newRealSize

	if err := a.driver.UpdateFileSize(a.stream, fe, delta); err != nil {
		fe.StoredSize = oldStoredSize
		fe.RealSize = oldRealSize
		return err
	}

	if delta != 0 {
		if _, err := a.stream.Seek(fe.Offset+fe.HeaderLen+oldStoredSize, io.SeekStart); err != nil {
			return err
		}
		if delta > 0 {
			if err := a.stream.Insert(delta); err != nil {
				return err
			}
		} else {
			if err := a.stream.Remove(-delta); err != nil {
				return err
			}
		}
		if err := a.shiftFiles(fe, fe.Offset+fe.HeaderLen+oldStoredSize, delta, 0); err != nil {
			return err
		}
	}

	a.handles.NotifyResize(entry, newStoredSize)
	return nil
}

// Open implements [gamearchive.Archive]. The returned stream also
// implements io.Closer; closing it un-pins the entry so Remove can succeed.
func (a *Archive) Open(entry *gamearchive.Entry, useFilter bool) (io.ReadWriteSeeker, error) {
	fe := a.lookup(entry)
	if fe == nil || !fe.Valid {
		return nil, gamearchive.ErrFileNotFound
	}

	onTruncate := func(newLength int64) error {
		return a.Resize(entry, newLength, newLength)
	}
	window := substream.New(a.stream, fe.Offset+fe.HeaderLen, fe.StoredSize, onTruncate)
	handle := a.handles.Register(entry, window)
	pinned := &pinnedStream{Window: window, release: func() { a.handles.Release(handle) }}

	if !useFilter || fe.FilterID == "" {
		return pinned, nil
	}
	if a.filters == nil {
		return nil, gamearchive.ErrFilterMissing
	}
	codec, ok := a.filters.ResolveFilter(fe.FilterID)
	if !ok {
		return nil, gamearchive.ErrFilterMissing
	}

	onFlush := func(realSize, storedSize int64) {
		a.Resize(entry, storedSize, realSize)
	}
	return &filteredStream{
		Stream:  filter.ApplyReadWrite(codec, pinned, onFlush),
		release: pinned.release,
	}, nil
}

// pinnedStream wraps a [substream.Window] with the handle-table release
// callback its Close runs, so that an open file pins its entry until the
// caller explicitly closes it.
type pinnedStream struct {
	*substream.Window
	release func()
}

func (p *pinnedStream) Close() error {
	p.release()
	return nil
}

// filteredStream is the filtered counterpart of pinnedStream: closing it
// flushes any pending writes through the filter before releasing the pin.
type filteredStream struct {
	*filter.Stream
	release func()
}

func (f *filteredStream) Close() error {
	err := f.Stream.Flush()
	f.release()
	return err
}
