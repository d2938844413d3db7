// Command gaextract is a thin CLI over the archive engines: probe a file to
// name its format, or extract members out of it to a directory. Exit codes
// follow a fixed severity order so a caller driving this from a script can
// tell a bad invocation from a damaged archive from a single missing file:
// 0 success; 1 bad arguments; 2 major I/O error; 3 underdetermined format;
// 4 per-file noncritical failure (file not found); 5 uncommon per-file I/O
// failure.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/camoto-go/gamearchive/filter"
	"github.com/camoto-go/gamearchive/formats/datgot"
	"github.com/camoto-go/gamearchive/formats/grp"
	"github.com/camoto-go/gamearchive/registry"
	"github.com/camoto-go/gamearchive/resolve"
)

// exitCode tracks the worst severity seen across a batch of per-file
// operations, per the CLI's documented exit-code contract.
type exitCode int

const (
	exitSuccess            exitCode = 0
	exitBadArguments       exitCode = 1
	exitMajorIOError       exitCode = 2
	exitUnderdeterminedFmt exitCode = 3
	exitFileNotFound       exitCode = 4
	exitFileIOFailure      exitCode = 5
)

func newRegistry() *registry.Registry {
	reg := registry.New()
	reg.RegisterDriver(grp.New())
	reg.RegisterDriver(datgot.New())
	reg.RegisterFilter(filter.XOR{Seed: 0, Period: 0})
	reg.RegisterFilter(filter.RLE{})
	return reg
}

func main() {
	app := &cli.App{
		Name:  "gaextract",
		Usage: "Probe and extract retro-game archive files",
		Commands: []*cli.Command{
			{
				Name:      "probe",
				Usage:     "Report which registered format an archive matches",
				ArgsUsage: "ARCHIVE_FILE",
				Action:    runProbe,
			},
			{
				Name:      "extract",
				Usage:     "Extract one or more members from an archive",
				ArgsUsage: "ARCHIVE_FILE [MEMBER ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "directory to extract members into",
						Value: ".",
					},
					&cli.BoolFlag{
						Name:  "no-filter",
						Usage: "bypass each member's filter and extract its stored bytes",
					},
				},
				Action: runExtract,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		var xerr *cliExitError
		if errors.As(err, &xerr) {
			fmt.Fprintln(os.Stderr, xerr.Error())
			os.Exit(int(xerr.code))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(exitBadArguments))
	}
}

// cliExitError carries the specific exit code a failed command should
// report, since cli.App.Run only gives us an error to print and a generic
// failure.
type cliExitError struct {
	code exitCode
	err  error
}

func (e *cliExitError) Error() string { return e.err.Error() }
func (e *cliExitError) Unwrap() error  { return e.err }

func exitf(code exitCode, format string, args ...interface{}) error {
	return &cliExitError{code: code, err: fmt.Errorf(format, args...)}
}

func openArchive(path string) (gamearchive.Archive, *os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, exitf(exitMajorIOError, "open %s: %s", path, err)
	}

	reg := newRegistry()
	primaryName := filepath.Base(path)
	driver, err := reg.Probe(f, primaryName, nil)
	if err != nil {
		f.Close()
		if errors.Is(err, gamearchive.ErrFormatMismatch) {
			return nil, nil, exitf(exitUnderdeterminedFmt, "%s: no registered format matched", path)
		}
		return nil, nil, exitf(exitMajorIOError, "probe %s: %s", path, err)
	}

	archive, err := driver.Open(f, nil)
	if err != nil {
		f.Close()
		return nil, nil, exitf(exitMajorIOError, "open %s as %s: %s", path, driver.Code(), err)
	}
	return archive, f, nil
}

func runProbe(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return exitf(exitBadArguments, "probe requires exactly one archive file argument")
	}
	path := ctx.Args().First()

	f, err := os.Open(path)
	if err != nil {
		return exitf(exitMajorIOError, "open %s: %s", path, err)
	}
	defer f.Close()

	reg := newRegistry()
	driver, err := reg.Probe(f, filepath.Base(path), nil)
	if err != nil {
		if errors.Is(err, gamearchive.ErrFormatMismatch) {
			return exitf(exitUnderdeterminedFmt, "%s: no registered format matched", path)
		}
		return exitf(exitMajorIOError, "probe %s: %s", path, err)
	}

	fmt.Printf("%s: %s (%s)\n", path, driver.FriendlyName(), driver.Code())
	return nil
}

func runExtract(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		return exitf(exitBadArguments, "extract requires an archive file argument")
	}
	path := ctx.Args().First()
	members := ctx.Args().Tail()
	outDir := ctx.String("out")
	useFilter := !ctx.Bool("no-filter")

	archive, f, err := openArchive(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return exitf(exitMajorIOError, "create output directory %s: %s", outDir, err)
	}

	if len(members) == 0 {
		members = allMemberPaths(archive)
	}

	worst := exitSuccess
	for _, name := range members {
		if code := extractOne(archive, outDir, name, useFilter); code > worst {
			worst = code
		}
	}

	if worst != exitSuccess {
		return &cliExitError{code: worst, err: fmt.Errorf("one or more members failed to extract")}
	}
	return nil
}

// allMemberPaths lists every non-folder entry at the top level of archive,
// by display name.
func allMemberPaths(archive gamearchive.Archive) []string {
	var names []string
	for _, e := range archive.Files() {
		if e.Attributes.Has(gamearchive.AttrFolder) {
			continue
		}
		names = append(names, e.Name)
	}
	return names
}

func extractOne(archive gamearchive.Archive, outDir, name string, useFilter bool) exitCode {
	container, entry, err := resolve.Resolve(archive, name)
	if err != nil {
		fmt.Printf("%s [failed; not found in archive]\n", name)
		return exitFileNotFound
	}

	src, err := container.Open(entry, useFilter)
	if err != nil {
		fmt.Printf("%s [failed; %s]\n", name, err)
		return exitFileIOFailure
	}
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}

	destPath := filepath.Join(outDir, filepath.Base(name))
	dest, err := os.Create(destPath)
	if err != nil {
		fmt.Printf("%s [failed; %s]\n", name, err)
		return exitFileIOFailure
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		fmt.Printf("%s [failed; %s]\n", name, err)
		return exitFileIOFailure
	}

	fmt.Printf("%s -> %s\n", name, destPath)
	return exitSuccess
}
