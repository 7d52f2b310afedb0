package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"golang.org/x/xerrors"
)

// ErrorRecord is one classified failure, kept for the failure artifact.
type ErrorRecord struct {
	File      string    `json:"file"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// RunStats are run-scoped counters, owned and mutated only by the driver
// goroutine as batch results are folded in.
type RunStats struct {
	Total      int
	Completed  int
	Duplicates int
	Failed     int
	PermSkips  int
	Skipped    int // already handled before this run started
	Bytes      int64
	Errors     []ErrorRecord
}

// report prints the final summary and, when failures occurred, writes the
// structured failure artifact for operator triage.
func (m *Migrator) report() error {
	elapsed := time.Since(m.started).Round(time.Second)

	fmt.Printf("\nMigration complete in %s\n", durafmt.Parse(elapsed).LimitFirstN(2))
	fmt.Printf("  Total pieces:      %d\n", m.stats.Total)
	fmt.Printf("  Already migrated:  %d\n", m.stats.Skipped)
	fmt.Printf("  Completed:         %d (%d duplicates)\n", m.stats.Completed, m.stats.Duplicates)
	fmt.Printf("  Failed:            %d (%d skipped permanently)\n", m.stats.Failed, m.stats.PermSkips)
	if m.stats.Bytes > 0 && elapsed > 0 {
		rate := float64(m.stats.Bytes) / elapsed.Seconds()
		fmt.Printf("  Transferred:       %s (%s/s)\n", humanize.IBytes(uint64(m.stats.Bytes)), humanize.IBytes(uint64(rate)))
	}

	if len(m.stats.Errors) == 0 {
		return nil
	}

	if err := writeErrorLog(m.cfg.ErrorLog, m.stats.Errors); err != nil {
		return err
	}
	fmt.Printf("\n%d pieces failed; details written to %s\n", len(m.stats.Errors), m.cfg.ErrorLog)
	if m.stats.Failed > m.stats.PermSkips {
		fmt.Println("Transient failures are retried automatically on the next run of this tool.")
	}
	return nil
}

func writeErrorLog(path string, recs []ErrorRecord) error {
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshaling error log: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return xerrors.Errorf("writing error log %s: %w", path, err)
	}
	return nil
}
