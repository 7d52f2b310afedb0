package migration

import (
	"os"
	"strings"

	"golang.org/x/xerrors"
)

// ErrSourceUnavailable means the source directory cannot be listed. Fatal:
// there is nothing to migrate without it.
var ErrSourceUnavailable = xerrors.New("source unavailable")

// ListCandidates enumerates piece files under dir, in directory order
// (lexical, per os.ReadDir). Entries not matching prefix are not pieces and
// are ignored.
func ListCandidates(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, xerrors.Errorf("listing %s (%s): %w", dir, err, ErrSourceUnavailable)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if prefix != "" && !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Remaining subtracts already-handled names from candidates, preserving
// candidate order.
func Remaining(candidates []string, migrated map[string]struct{}) []string {
	remaining := make([]string, 0, len(candidates))
	for _, name := range candidates {
		if _, ok := migrated[name]; ok {
			continue
		}
		remaining = append(remaining, name)
	}
	return remaining
}
