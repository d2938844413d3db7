// Package resolve implements the path-and-index lookup rules shared by
// every archive format: a leading '@' addresses entries by ordinal
// position (optionally descending into subfolders with dot-separated
// indices), and anything else is matched as a case-insensitive slash path,
// opening a folder per non-final component.
package resolve

import (
	"strconv"
	"strings"

	gamearchive "github.com/camoto-go/gamearchive"
)

// Resolve looks up path within root, returning the archive that directly
// contains the matched entry (which may be root itself or a folder opened
// along the way) together with the entry.
func Resolve(root gamearchive.Archive, path string) (gamearchive.Archive, *gamearchive.Entry, error) {
	if strings.HasPrefix(path, "@") && len(path) > 1 {
		return resolveByIndex(root, path[1:])
	}
	return resolveByPath(root, path)
}

// resolveByIndex handles '@N' and '@N.M.…', where each dot-separated
// component indexes into the files() vector of the archive reached so far,
// descending through a folder for every component but the last.
func resolveByIndex(archive gamearchive.Archive, spec string) (gamearchive.Archive, *gamearchive.Entry, error) {
	parts := strings.Split(spec, ".")
	current := archive

	for i, part := range parts {
		index, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, nil, gamearchive.ErrFileNotFound.WithMessage("invalid index: " + part)
		}
		files := current.Files()
		if index >= uint64(len(files)) {
			return nil, nil, gamearchive.ErrFileNotFound.WithMessage("index too large")
		}
		entry := files[index]

		if i == len(parts)-1 {
			return current, entry, nil
		}

		if !entry.Attributes.Has(gamearchive.AttrFolder) {
			return nil, nil, gamearchive.ErrFileNotFound.WithMessage("index path addresses a file, not a folder")
		}
		next, err := current.OpenFolder(entry)
		if err != nil {
			return nil, nil, err
		}
		current = next
	}

	return nil, nil, gamearchive.ErrFileNotFound
}

// resolveByPath splits path on '/' and walks the archive tree, opening a
// folder for every non-final component; the final component is matched
// case-insensitively as a filename.
func resolveByPath(archive gamearchive.Archive, path string) (gamearchive.Archive, *gamearchive.Entry, error) {
	components := strings.Split(path, "/")
	current := archive

	for i, name := range components {
		if name == "" {
			continue
		}
		entry, err := current.Find(name)
		if err != nil || !current.IsValid(entry) {
			return nil, nil, gamearchive.ErrFileNotFound
		}

		if i == len(components)-1 {
			if entry.Attributes.Has(gamearchive.AttrFolder) {
				return nil, nil, gamearchive.ErrFormatMismatch.WithMessage("path addresses a folder")
			}
			return current, entry, nil
		}

		if !entry.Attributes.Has(gamearchive.AttrFolder) {
			return nil, nil, gamearchive.ErrFileNotFound.WithMessage("path component is a file, not a folder")
		}
		next, err := current.OpenFolder(entry)
		if err != nil {
			return nil, nil, err
		}
		current = next
	}

	return nil, nil, gamearchive.ErrFileNotFound
}
