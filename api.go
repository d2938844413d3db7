package gamearchive

import "io"

// Attribute is a bit set describing properties of an [Entry], mirroring the
// E_ATTRIBUTE enum of the format family this module supports.
type Attribute uint8

const (
	AttrNone       Attribute = 0
	AttrEmpty      Attribute = 1 << 0
	AttrHidden     Attribute = 1 << 1
	AttrCompressed Attribute = 1 << 2
	AttrEncrypted  Attribute = 1 << 3
	AttrFolder     Attribute = 1 << 7
)

func (a Attribute) Has(flag Attribute) bool {
	return a&flag != 0
}

// Entry is the atomic unit of an archive directory: one record describing a
// member file. Fields beyond these are added by engines that need more
// on-disk bookkeeping (see the FAT-entry extension in the fat package).
type Entry struct {
	// Name is the display name of the member. Per-format length and charset
	// limits are enforced by the owning Archive, not by this type.
	Name string

	// StoredSize is the number of bytes this member occupies in the backing
	// stream (its post-filter size).
	StoredSize int64

	// RealSize is the number of bytes this member occupies after the reverse
	// filter has been applied (its pre-filter / "decompressed" size). Equal
	// to StoredSize when FilterID is empty.
	RealSize int64

	// Type is an opaque MIME-like tag, or empty for "generic".
	Type string

	// FilterID names the filter to apply when reading or writing this
	// member's data, or is empty for no filter.
	FilterID string

	// Attributes is the bit set of flags over {Empty, Hidden, Compressed,
	// Encrypted, Folder}.
	Attributes Attribute

	// Valid is false once the entry has been removed from its archive. Any
	// handle still referencing it must observe this and fail.
	Valid bool
}

// ArchiveConfig holds per-format configuration that the generic engines
// need but that the byte format itself does not encode: where member data
// begins in an empty archive, and the longest permitted file name (zero
// meaning unlimited).
type ArchiveConfig struct {
	// FirstFileOffset is the byte offset at which the first member's data
	// region begins in a brand new, empty archive (after any fixed header).
	FirstFileOffset int64

	// MaxNameLength is the longest name, in bytes, a member may have. Zero
	// means unlimited.
	MaxNameLength int

	// MaxEntryCount caps the number of directory entries the format can
	// hold. Zero means unlimited.
	MaxEntryCount int
}

// Archive is the interface every archive engine (FAT-based or fixed)
// implements. It is the public surface callers and the resolver use; format
// drivers produce values satisfying this interface from Open/Create.
type Archive interface {
	// Find returns the first entry whose Name matches name, case
	// insensitively. Returns ErrFileNotFound if none match. Duplicate names
	// are permitted; which duplicate is returned when more than one matches
	// is unspecified.
	Find(name string) (*Entry, error)

	// Files returns the ordered entry list by reference. The slice is valid
	// only until the next mutating call on this Archive.
	Files() []*Entry

	// IsValid reports whether entry still belongs to this archive and has
	// not been removed.
	IsValid(entry *Entry) bool

	// Open returns a read/write stream over entry's data region. When
	// useFilter is true and entry.FilterID is set, the returned stream is
	// wrapped in that filter's pipeline.
	Open(entry *Entry, useFilter bool) (io.ReadWriteSeeker, error)

	// OpenFolder returns a nested Archive over entry's data region. Entry
	// must have AttrFolder set. Engines that do not support nesting always
	// return ErrFormatMismatch.
	OpenFolder(entry *Entry) (Archive, error)

	// Insert creates a new member immediately before before, or at the end
	// of the archive when before is nil or not a member of this archive.
	Insert(before *Entry, name string, storedSize int64, entryType string, attrs Attribute) (*Entry, error)

	// Remove deletes entry from the archive. Fails with ErrFileInUse if a
	// live stream is still open on it.
	Remove(entry *Entry) error

	// Rename changes entry's display name in place.
	Rename(entry *Entry, newName string) error

	// Move relocates entry to immediately before before, by inserting a new
	// entry, copying the stream content across, and removing the original.
	Move(before *Entry, entry *Entry) error

	// Resize changes entry's StoredSize and RealSize.
	Resize(entry *Entry, newStoredSize, newRealSize int64) error

	// Flush commits all pending edits to the backing stream.
	Flush() error

	// SupportedAttributes returns the bitwise-OR of every Attribute value
	// this archive format can represent.
	SupportedAttributes() Attribute
}

// Certainty is a format driver's confidence that a stream is in its format.
type Certainty int

const (
	DefinitelyNo Certainty = iota
	Unsure
	PossiblyYes
	DefinitelyYes
)

// Driver is the contract a per-format archive driver satisfies: given a
// backing stream (and any supplementary files it declared it needs), it can
// probe, create, or open an Archive.
type Driver interface {
	// Code is a short, stable, lowercase identifier for the format.
	Code() string

	// FriendlyName is a human-readable name for the format.
	FriendlyName() string

	// FileExtensions lists the file extensions (without the leading dot)
	// commonly used by this format.
	FileExtensions() []string

	// Games lists titles known to use this format. May be empty.
	Games() []string

	// Probe reports this driver's confidence that stream is in its format.
	// Probe must not read past the structural limits the format declares.
	Probe(stream io.ReadSeeker) (Certainty, error)

	// Create initializes a brand-new, empty archive of this format over
	// stream, which must already be open for reading and writing.
	Create(stream io.ReadWriteSeeker, supps map[string]io.ReadWriteSeeker) (Archive, error)

	// Open parses an existing archive of this format from stream.
	Open(stream io.ReadWriteSeeker, supps map[string]io.ReadWriteSeeker) (Archive, error)

	// RequiredSupplementaryFiles returns, for a primary archive named
	// primaryName, the set of additional input files this driver needs
	// (role -> file name) before Open or Create can be called.
	RequiredSupplementaryFiles(primaryName string) map[string]string
}

// FilterDriver is the contract a per-filter codec satisfies so it can be
// registered and looked up by its persistent FilterID.
type FilterDriver interface {
	Code() string
	FriendlyName() string
	Games() []string

	// ApplyReadWrite wraps parent (read-write) in this filter's pipeline.
	ApplyReadWrite(parent io.ReadWriteSeeker) (io.ReadWriteSeeker, error)

	// ApplyReadOnly wraps parent (read-only) using the reverse transform.
	ApplyReadOnly(parent io.ReadSeeker) (io.ReadSeeker, error)

	// ApplyWriteOnly wraps parent (write-only) using the forward transform.
	ApplyWriteOnly(parent io.WriteSeeker) (io.WriteSeeker, error)
}
