package migration

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/TippyFlitsUK/migrate-pdp-node/pdp"
)

type itemResult struct {
	name    string
	outcome Outcome
	err     error
	size    int64
}

// runBatch uploads every item in batch with at most cfg.MaxConcurrent in
// flight. It returns only once every item has a terminal outcome; a slow or
// failing item never blocks siblings beyond the concurrency limit, and no
// item's failure cancels another's upload.
func (m *Migrator) runBatch(ctx context.Context, batch []Item) []itemResult {
	throttle := make(chan struct{}, m.cfg.MaxConcurrent)
	results := make(chan itemResult, len(batch))

	var wg sync.WaitGroup
	for _, it := range batch {
		wg.Add(1)
		go func(it Item) {
			defer wg.Done()
			throttle <- struct{}{}
			defer func() { <-throttle }()
			results <- m.uploadOne(ctx, it)
		}(it)
	}
	wg.Wait()
	close(results)

	out := make([]itemResult, 0, len(batch))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// uploadOne takes one item to a terminal outcome. All errors are absorbed
// here; nothing propagates to the driver.
func (m *Migrator) uploadOne(ctx context.Context, it Item) itemResult {
	payload, err := it.Payload()
	if err != nil {
		return itemResult{name: it.Name, outcome: OutcomeFailed, err: err}
	}

	res := itemResult{name: it.Name, size: int64(len(payload))}

	if res.size > m.cfg.MaxPieceBytes() {
		res.err = &pdp.Error{
			Code:    pdp.ErrPieceTooLarge,
			Message: "piece exceeds the service size ceiling",
		}
		res.outcome = OutcomeSkipped
		return res
	}

	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; ; attempt++ {
		_, err := m.uploader.UploadPiece(ctx, it.Name, payload, it.Metadata)
		res.err = err
		res.outcome = Classify(err)

		// Only transient failures are worth a second attempt, and only when
		// in-run retries are enabled.
		if res.outcome != OutcomeFailed || attempt >= m.cfg.UploadRetries || ctx.Err() != nil {
			return res
		}

		delay := b.Duration()
		log.Debugw("retrying upload", "name", it.Name, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return res
		case <-time.After(delay):
		}
	}
}
