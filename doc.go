// Package gamearchive reads, writes, and edits retro-game archive files:
// container files that bundle many small member files behind a directory
// ("FAT", a historical term, not a filesystem) inside a single backing byte
// stream.
//
// The package itself defines the vocabulary shared by every archive engine:
// [Entry] (one directory record), [Attribute] (the bit flags an entry may
// carry), [Archive] (the operations every engine exposes), and the [Driver]
// / [FilterDriver] contracts a concrete per-format implementation and a
// per-filter codec satisfy. The engines themselves live in subpackages:
// fat (the general insert/remove/rename/move/resize engine), fixedarchive
// (a read-only fixed-table variant), filter (the reversible byte-transform
// pipeline), stream/segstream and stream/substream (the two byte-stream
// adapters the engines are built on), registry (driver/filter lookup and
// probing), and resolve (name/index path resolution).
//
// Archive invariants the engines maintain between public calls (they are
// not verified at run time):
//
//   - For each entry: offset + header length + StoredSize is within the
//     backing stream's length.
//   - Adjacent entries' data regions do not overlap.
//   - AttrCompressed is only set when FilterID is non-empty.
//   - StoredSize equals RealSize whenever FilterID is empty.
//   - No entry's Name exceeds its archive's MaxNameLength, when nonzero.
//   - Every open stream points at a still-Valid entry or is itself dead.
package gamearchive
