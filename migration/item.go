package migration

import (
	"os"

	"golang.org/x/xerrors"
)

// Item is one migratable piece file. Enumerated once, never mutated.
type Item struct {
	Name     string
	Path     string
	Metadata map[string]string
}

// Payload reads the piece bytes. Called lazily by the upload worker so that
// only in-flight pieces occupy memory.
func (it Item) Payload() ([]byte, error) {
	b, err := os.ReadFile(it.Path)
	if err != nil {
		return nil, xerrors.Errorf("reading piece %s: %w", it.Name, err)
	}
	return b, nil
}
