package migration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/TippyFlitsUK/migrate-pdp-node/pdp"
)

func testCid(t *testing.T, name string) cid.Cid {
	h, err := multihash.Sum([]byte(name), multihash.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, h)
}

// fakeUploader records call order and concurrency, and fails the names it is
// told to fail.
type fakeUploader struct {
	t     *testing.T
	delay time.Duration
	errs  map[string]error

	mu        sync.Mutex
	calls     []string
	active    map[string]struct{}
	maxActive int
	overlaps  [][2]string
}

func newFakeUploader(t *testing.T) *fakeUploader {
	return &fakeUploader{
		t:      t,
		errs:   map[string]error{},
		active: map[string]struct{}{},
	}
}

func (f *fakeUploader) UploadPiece(ctx context.Context, name string, payload []byte, meta map[string]string) (cid.Cid, error) {
	f.mu.Lock()
	for other := range f.active {
		f.overlaps = append(f.overlaps, [2]string{other, name})
	}
	f.active[name] = struct{}{}
	if len(f.active) > f.maxActive {
		f.maxActive = len(f.active)
	}
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	delete(f.active, name)
	f.mu.Unlock()

	if err, ok := f.errs[name]; ok {
		return cid.Undef, err
	}
	return testCid(f.t, name), nil
}

func (f *fakeUploader) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func testConfig(t *testing.T, sourceDir string) *Config {
	stateDir := t.TempDir()
	t.Setenv("PDP_SOURCE_DIR", sourceDir)
	t.Setenv("PDP_SERVICE_URL", "http://service.invalid")
	t.Setenv("PDP_WALLET_ADDRESS", "f01000")
	t.Setenv("PDP_PROGRESS_FILE", filepath.Join(stateDir, "progress.json"))
	t.Setenv("PDP_ERROR_LOG", filepath.Join(stateDir, "errors.json"))
	t.Setenv("PDP_BATCH_SIZE", "2")
	t.Setenv("PDP_MAX_CONCURRENT", "2")
	t.Setenv("PDP_LOG_INTERVAL", "1")

	cfg, err := FromEnv()
	require.NoError(t, err)
	return cfg
}

func writePieces(t *testing.T, dir string, names ...string) {
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("payload-"+name), 0644))
	}
}

func runMigration(t *testing.T, cfg *Config, up Uploader) *Migrator {
	store, err := OpenProgressStore(cfg.ProgressFile)
	require.NoError(t, err)

	m := New(cfg, store, up)
	require.NoError(t, m.Run(context.Background()))
	return m
}

func loadRecord(t *testing.T, path string) ProgressRecord {
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec ProgressRecord
	require.NoError(t, json.Unmarshal(b, &rec))
	return rec
}

func TestMigrateAll(t *testing.T) {
	dir := t.TempDir()
	writePieces(t, dir, "bagaa", "bagab", "bagac", "bagad")
	cfg := testConfig(t, dir)

	up := newFakeUploader(t)
	m := runMigration(t, cfg, up)

	require.Equal(t, 4, m.stats.Completed)
	require.Equal(t, 0, m.stats.Failed)

	rec := loadRecord(t, cfg.ProgressFile)
	require.Equal(t, 4, rec.MigratedCount)
	require.Len(t, rec.MigratedFiles, rec.MigratedCount)
	require.ElementsMatch(t, []string{"bagaa", "bagab", "bagac", "bagad"}, rec.MigratedFiles)
}

func TestIdempotentRerun(t *testing.T) {
	dir := t.TempDir()
	writePieces(t, dir, "bagaa", "bagab", "bagac", "bagad")
	cfg := testConfig(t, dir)

	up := newFakeUploader(t)
	runMigration(t, cfg, up)
	require.Len(t, up.calls, 4)

	// Same progress file, fresh run: nothing is resubmitted.
	m := runMigration(t, cfg, up)
	require.Len(t, up.calls, 4)
	require.Equal(t, 4, m.stats.Skipped)
	require.Equal(t, 0, m.stats.Completed)

	rec := loadRecord(t, cfg.ProgressFile)
	require.Equal(t, 4, rec.MigratedCount)
}

func TestPermanentSkipNotRetried(t *testing.T) {
	dir := t.TempDir()
	writePieces(t, dir, "bagaa", "bagab", "bagac", "bagad")
	cfg := testConfig(t, dir)

	up := newFakeUploader(t)
	up.errs["bagab"] = &pdp.Error{Code: pdp.ErrPieceTooLarge, Status: 413, Message: "piece too large"}

	m := runMigration(t, cfg, up)
	require.Equal(t, 3, m.stats.Completed)
	require.Equal(t, 1, m.stats.Failed)
	require.Equal(t, 1, m.stats.PermSkips)

	// The oversized piece is recorded as handled, so a second run skips it.
	rec := loadRecord(t, cfg.ProgressFile)
	require.Contains(t, rec.MigratedFiles, "bagab")

	runMigration(t, cfg, up)
	require.Equal(t, 1, up.callCount("bagab"))
}

func TestTransientFailureRetriedNextRun(t *testing.T) {
	dir := t.TempDir()
	writePieces(t, dir, "bagaa", "bagab", "bagac", "bagad")
	cfg := testConfig(t, dir)

	up := newFakeUploader(t)
	up.errs["bagac"] = &pdp.Error{Code: pdp.ErrInternal, Status: 500, Message: "shard acquisition failed"}

	m := runMigration(t, cfg, up)
	require.Equal(t, 3, m.stats.Completed)
	require.Equal(t, 1, m.stats.Failed)
	require.Equal(t, 0, m.stats.PermSkips)

	rec := loadRecord(t, cfg.ProgressFile)
	require.NotContains(t, rec.MigratedFiles, "bagac")
	require.Equal(t, 3, rec.MigratedCount)

	// The failure artifact names the piece.
	var errs []ErrorRecord
	b, err := os.ReadFile(cfg.ErrorLog)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &errs))
	require.Len(t, errs, 1)
	require.Equal(t, "bagac", errs[0].File)

	// Clearing the fault and re-running picks the piece back up.
	delete(up.errs, "bagac")
	m2 := runMigration(t, cfg, up)
	require.Equal(t, 1, m2.stats.Completed)
	require.Equal(t, 2, up.callCount("bagac"))
	require.Equal(t, 4, loadRecord(t, cfg.ProgressFile).MigratedCount)
}

func TestDuplicateCountsAsCompleted(t *testing.T) {
	dir := t.TempDir()
	writePieces(t, dir, "bagaa", "bagab", "bagac", "bagad")
	cfg := testConfig(t, dir)

	up := newFakeUploader(t)
	up.errs["bagad"] = &pdp.Error{Code: pdp.ErrPieceExists, Status: 409, Message: "piece already exists"}

	m := runMigration(t, cfg, up)
	require.Equal(t, 4, m.stats.Completed)
	require.Equal(t, 1, m.stats.Duplicates)
	require.Equal(t, 0, m.stats.Failed)
	require.Empty(t, m.stats.Errors)

	require.Contains(t, loadRecord(t, cfg.ProgressFile).MigratedFiles, "bagad")
}

func TestBatchOrderingAndConcurrencyBound(t *testing.T) {
	dir := t.TempDir()
	names := []string{"bagaa", "bagab", "bagac", "bagad", "bagae", "bagaf"}
	writePieces(t, dir, names...)
	cfg := testConfig(t, dir)

	up := newFakeUploader(t)
	up.delay = 10 * time.Millisecond
	runMigration(t, cfg, up)

	require.LessOrEqual(t, up.maxActive, cfg.MaxConcurrent)

	// Items only ever overlap with items of their own batch: no piece from
	// batch N+1 starts before batch N fully drains.
	batchOf := map[string]int{}
	for i, name := range names {
		batchOf[name] = i / cfg.BatchSize
	}
	for _, pair := range up.overlaps {
		require.Equal(t, batchOf[pair[0]], batchOf[pair[1]],
			"%s and %s from different batches were in flight together", pair[0], pair[1])
	}
}

func TestShutdownBeforeFirstBatch(t *testing.T) {
	dir := t.TempDir()
	writePieces(t, dir, "bagaa", "bagab")
	cfg := testConfig(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store, err := OpenProgressStore(cfg.ProgressFile)
	require.NoError(t, err)

	up := newFakeUploader(t)
	require.NoError(t, New(cfg, store, up).Run(ctx))
	require.Empty(t, up.calls)

	// The interrupt still forced a checkpoint.
	rec := loadRecord(t, cfg.ProgressFile)
	require.Equal(t, 2, rec.TotalFiles)
	require.Equal(t, 0, rec.MigratedCount)
}

func TestUnreadablePayloadIsTransient(t *testing.T) {
	dir := t.TempDir()
	writePieces(t, dir, "bagaa")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "bagab"), 0755)) // a directory is filtered out, not an item
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "bagac")))
	cfg := testConfig(t, dir)

	up := newFakeUploader(t)
	m := runMigration(t, cfg, up)

	require.Equal(t, 1, m.stats.Completed)
	require.Equal(t, 1, m.stats.Failed)
	require.NotContains(t, loadRecord(t, cfg.ProgressFile).MigratedFiles, "bagac")
}

func TestOversizedPieceSkippedLocally(t *testing.T) {
	dir := t.TempDir()
	writePieces(t, dir, "bagaa")
	cfg := testConfig(t, dir)
	cfg.maxPieceBytes = 4 // smaller than any payload written above

	up := newFakeUploader(t)
	m := runMigration(t, cfg, up)

	require.Empty(t, up.calls, "oversized piece must not be shipped")
	require.Equal(t, 1, m.stats.PermSkips)
	require.Contains(t, loadRecord(t, cfg.ProgressFile).MigratedFiles, "bagaa")
}

func TestConfigValidation(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.SourceDir = ""
	store, err := OpenProgressStore(cfg.ProgressFile)
	require.NoError(t, err)

	err = New(cfg, store, newFakeUploader(t)).Run(context.Background())
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestMissingSourceIsFatal(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "nope"))
	store, err := OpenProgressStore(cfg.ProgressFile)
	require.NoError(t, err)

	err = New(cfg, store, newFakeUploader(t)).Run(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
}
