// Package registry is the lookup table of archive [gamearchive.Driver]s and
// filter codecs: it is how a caller goes from "I have a stream, what format
// is it?" to a concrete driver, and from "this entry names filter X" to the
// codec that implements it.
package registry

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/filter"
	"github.com/gocarina/gocsv"
)

// FormatMetadata is one row of descriptive information about a format in
// the wider family this module's engines can represent, independent of
// whether a concrete Go driver is registered for it.
type FormatMetadata struct {
	Code             string `csv:"code"`
	FriendlyName     string `csv:"friendly_name"`
	Extensions       string `csv:"extensions"`
	Games            string `csv:"games"`
	HasFixedOffsets  bool   `csv:"has_fixed_offsets"`
}

//go:embed knownformats.csv
var knownFormatsCSV string

var knownFormats map[string]FormatMetadata

func init() {
	knownFormats = make(map[string]FormatMetadata)
	err := gocsv.UnmarshalToCallback(strings.NewReader(knownFormatsCSV), func(row FormatMetadata) error {
		if _, exists := knownFormats[row.Code]; exists {
			return fmt.Errorf("duplicate known-format entry for code %q", row.Code)
		}
		knownFormats[row.Code] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// KnownFormat returns the descriptive metadata row for code, if the format
// family documents one (whether or not a driver is registered for it).
func KnownFormat(code string) (FormatMetadata, bool) {
	row, ok := knownFormats[code]
	return row, ok
}

// KnownFormats returns every known-format metadata row.
func KnownFormats() []FormatMetadata {
	out := make([]FormatMetadata, 0, len(knownFormats))
	for _, row := range knownFormats {
		out = append(out, row)
	}
	return out
}

// Registry holds registered archive drivers and filter codecs.
type Registry struct {
	drivers map[string]gamearchive.Driver
	codecs  map[string]filter.Codec
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		drivers: make(map[string]gamearchive.Driver),
		codecs:  make(map[string]filter.Codec),
	}
}

// RegisterDriver adds driver under its own Code. A later registration with
// the same code replaces the earlier one.
func (r *Registry) RegisterDriver(driver gamearchive.Driver) {
	r.drivers[driver.Code()] = driver
}

// RegisterFilter adds codec under its own Code.
func (r *Registry) RegisterFilter(codec filter.Codec) {
	r.codecs[codec.Code()] = codec
}

// Driver returns the registered driver for code, if any.
func (r *Registry) Driver(code string) (gamearchive.Driver, bool) {
	d, ok := r.drivers[code]
	return d, ok
}

// Drivers returns every registered driver.
func (r *Registry) Drivers() []gamearchive.Driver {
	out := make([]gamearchive.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		out = append(out, d)
	}
	return out
}

// ResolveFilter implements fat.FilterResolver: it looks up a codec by its
// persistent FilterID.
func (r *Registry) ResolveFilter(filterID string) (filter.Codec, bool) {
	codec, ok := r.codecs[filterID]
	return codec, ok
}

// Probe tries every registered driver against stream and returns the first
// DefinitelyYes match immediately. If no driver is certain, it returns a
// PossiblyYes match whose required supplementary files are all present in
// supps. Drivers are tried in no defined order (not registration order), so
// when several drivers qualify, which one is returned is not defined.
// Returns ErrFormatMismatch if nothing matches.
func (r *Registry) Probe(stream io.ReadSeeker, primaryName string, supps map[string]io.ReadWriteSeeker) (gamearchive.Driver, error) {
	var bestPossibly gamearchive.Driver

	for _, driver := range r.drivers {
		if _, err := stream.Seek(0, io.SeekStart); err != nil {
			return nil, gamearchive.ErrBackingIOError.Wrap(err)
		}
		certainty, err := driver.Probe(stream)
		if err != nil {
			continue
		}
		switch certainty {
		case gamearchive.DefinitelyYes:
			return driver, nil
		case gamearchive.PossiblyYes:
			if bestPossibly == nil && suppsPresent(driver, primaryName, supps) {
				bestPossibly = driver
			}
		}
	}

	if bestPossibly != nil {
		return bestPossibly, nil
	}
	return nil, gamearchive.ErrFormatMismatch
}

func suppsPresent(driver gamearchive.Driver, primaryName string, supps map[string]io.ReadWriteSeeker) bool {
	required := driver.RequiredSupplementaryFiles(primaryName)
	for _, name := range required {
		found := false
		for suppName := range supps {
			if strings.EqualFold(suppName, name) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
