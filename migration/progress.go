package migration

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"golang.org/x/xerrors"
)

// ErrCorruptState means a progress file exists but cannot be parsed. It is
// fatal: silently discarding prior progress would resubmit everything.
var ErrCorruptState = xerrors.New("corrupt progress state")

// ProgressRecord is the on-disk checkpoint, rewritten in full after every
// batch. MigratedCount always equals len(MigratedFiles).
type ProgressRecord struct {
	LastUpdated   string   `json:"lastUpdated"`
	TotalFiles    int      `json:"totalFiles"`
	MigratedCount int      `json:"migratedCount"`
	MigratedFiles []string `json:"migratedFiles"`
}

// ProgressStore owns the checkpoint file. The scheduler is its only writer;
// the file is read once, at startup.
type ProgressStore struct {
	path     string
	total    int
	migrated map[string]struct{}
}

// OpenProgressStore loads prior progress from path. A missing file yields an
// empty store; an unparsable one fails with ErrCorruptState.
func OpenProgressStore(path string) (*ProgressStore, error) {
	s := &ProgressStore{
		path:     path,
		migrated: map[string]struct{}{},
	}

	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, xerrors.Errorf("reading progress file %s: %w", path, err)
	}

	var rec ProgressRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, xerrors.Errorf("parsing progress file %s (%s): %w", path, err, ErrCorruptState)
	}

	s.total = rec.TotalFiles
	for _, name := range rec.MigratedFiles {
		s.migrated[name] = struct{}{}
	}
	return s, nil
}

// Contains reports whether name was already handled by a prior run or batch.
func (s *ProgressStore) Contains(name string) bool {
	_, ok := s.migrated[name]
	return ok
}

// Mark records name as handled. Durable only after the next Save.
func (s *ProgressStore) Mark(name string) {
	s.migrated[name] = struct{}{}
}

// Count is the number of handled names.
func (s *ProgressStore) Count() int {
	return len(s.migrated)
}

// SetTotal records the candidate count from the latest full enumeration.
func (s *ProgressStore) SetTotal(n int) {
	s.total = n
}

// Migrated exposes the handled-name set for remaining-set computation. The
// caller must not mutate it.
func (s *ProgressStore) Migrated() map[string]struct{} {
	return s.migrated
}

// Record snapshots the current state in serializable form. Names are sorted
// for stable output; order carries no meaning on reload.
func (s *ProgressStore) Record() ProgressRecord {
	names := make([]string, 0, len(s.migrated))
	for name := range s.migrated {
		names = append(names, name)
	}
	sort.Strings(names)

	return ProgressRecord{
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
		TotalFiles:    s.total,
		MigratedCount: len(names),
		MigratedFiles: names,
	}
}

// Save rewrites the checkpoint file. Writes go to a temp file which is
// renamed into place, so a crash mid-write leaves either the old or the new
// record readable, never a truncated hybrid.
func (s *ProgressStore) Save() error {
	b, err := json.MarshalIndent(s.Record(), "", "  ")
	if err != nil {
		return xerrors.Errorf("marshaling progress record: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return xerrors.Errorf("creating %s: %w", tmp, err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return xerrors.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return xerrors.Errorf("syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return xerrors.Errorf("closing %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return xerrors.Errorf("renaming %s into place: %w", tmp, err)
	}
	return nil
}
