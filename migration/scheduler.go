package migration

import (
	"context"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("migration")

// Uploader is the remote storage collaborator. Implementations own their
// network timeouts; any error they return is classified, never fatal.
type Uploader interface {
	UploadPiece(ctx context.Context, name string, payload []byte, meta map[string]string) (cid.Cid, error)
}

// Migrator drives a migration run: enumerate, batch, upload, checkpoint,
// report. A single goroutine owns all shared state; workers only return
// results.
type Migrator struct {
	cfg      *Config
	store    *ProgressStore
	uploader Uploader

	stats   RunStats
	started time.Time
}

func New(cfg *Config, store *ProgressStore, uploader Uploader) *Migrator {
	return &Migrator{
		cfg:      cfg,
		store:    store,
		uploader: uploader,
	}
}

// Run executes the whole migration. It returns an error only for fatal
// conditions (configuration, source listing, checkpoint writes); per-item
// failures are folded into the final report instead.
//
// Cancelling ctx stops the run at the next batch boundary: the in-flight
// batch drains, a final checkpoint is written, and Run returns nil.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.cfg.ValidateMigration(); err != nil {
		return err
	}
	m.started = time.Now()

	candidates, err := ListCandidates(m.cfg.SourceDir, m.cfg.PiecePrefix)
	if err != nil {
		return err
	}

	m.store.SetTotal(len(candidates))
	remaining := Remaining(candidates, m.store.Migrated())

	m.stats.Total = len(candidates)
	m.stats.Skipped = len(candidates) - len(remaining)

	log.Infow("starting migration",
		"source", m.cfg.SourceDir,
		"total", m.stats.Total,
		"alreadyMigrated", m.stats.Skipped,
		"remaining", len(remaining),
		"concurrency", m.cfg.MaxConcurrent,
		"batchSize", m.cfg.BatchSize)

	if len(remaining) == 0 {
		log.Info("nothing to migrate")
		if err := m.store.Save(); err != nil {
			return xerrors.Errorf("saving checkpoint: %w", err)
		}
		return m.report()
	}

	// Shutdown is cooperative and only observed between batches: the
	// in-flight batch always drains, so uploads run on an uncancellable
	// child context.
	batchCtx := context.WithoutCancel(ctx)

	interrupted := false
	for start := 0; start < len(remaining); start += m.cfg.BatchSize {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		end := start + m.cfg.BatchSize
		if end > len(remaining) {
			end = len(remaining)
		}

		// Batches run strictly in order; only items within a batch are
		// concurrent. The checkpoint after each batch is the resumability
		// guarantee: a crash loses at most one batch of work.
		for _, r := range m.runBatch(batchCtx, m.items(remaining[start:end])) {
			m.fold(r)
		}

		if err := m.store.Save(); err != nil {
			return xerrors.Errorf("saving checkpoint: %w", err)
		}
	}

	if interrupted {
		if err := m.store.Save(); err != nil {
			return xerrors.Errorf("saving final checkpoint: %w", err)
		}
		log.Warnw("migration interrupted, progress checkpointed", "handled", m.store.Count())
	}

	return m.report()
}

func (m *Migrator) items(names []string) []Item {
	items := make([]Item, len(names))
	for i, name := range names {
		items[i] = Item{
			Name: name,
			Path: filepath.Join(m.cfg.SourceDir, name),
			Metadata: map[string]string{
				"source":   "migrate-pdp-node",
				"filename": name,
			},
		}
	}
	return items
}

// fold merges one worker result into the run state. Driver goroutine only.
func (m *Migrator) fold(r itemResult) {
	switch r.outcome {
	case OutcomeSuccess:
		m.stats.Completed++
		m.stats.Bytes += r.size
	case OutcomeDuplicate:
		m.stats.Completed++
		m.stats.Duplicates++
	case OutcomeSkipped:
		m.stats.Failed++
		m.stats.PermSkips++
		log.Warnw("piece skipped permanently", "name", r.name, "error", r.err)
	case OutcomeFailed:
		m.stats.Failed++
		log.Warnw("piece upload failed", "name", r.name, "error", r.err)
	}

	if r.outcome.Handled() {
		m.store.Mark(r.name)
	}
	if r.err != nil && r.outcome != OutcomeDuplicate {
		m.stats.Errors = append(m.stats.Errors, ErrorRecord{
			File:      r.name,
			Error:     r.err.Error(),
			Timestamp: time.Now().UTC(),
		})
	}

	done := m.stats.Completed + m.stats.Failed
	if done%m.cfg.LogInterval == 0 {
		m.logProgress(done)
	}
}

func (m *Migrator) logProgress(done int) {
	elapsed := time.Since(m.started)
	if elapsed <= 0 {
		return
	}

	left := m.stats.Total - m.stats.Skipped - done
	rate := float64(done) / elapsed.Seconds()

	eta := "unknown"
	if rate > 0 && left > 0 {
		eta = durafmt.Parse(time.Duration(float64(left)/rate * float64(time.Second)).Round(time.Second)).LimitFirstN(2).String()
	}

	log.Infow("progress",
		"done", done,
		"left", left,
		"throughput", humanize.IBytes(uint64(float64(m.stats.Bytes)/elapsed.Seconds()))+"/s",
		"eta", eta)
}
