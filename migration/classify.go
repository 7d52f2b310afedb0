package migration

import (
	"errors"
	"strings"

	"github.com/TippyFlitsUK/migrate-pdp-node/pdp"
)

// Outcome is the terminal classification of one upload attempt.
type Outcome int

const (
	// OutcomeSuccess: uploaded and accepted.
	OutcomeSuccess Outcome = iota
	// OutcomeDuplicate: the service already holds this piece. Counts as
	// completed; the item is marked handled.
	OutcomeDuplicate
	// OutcomeSkipped: the piece can never be accepted (size ceiling).
	// Counts as failed for reporting, but is marked handled so it is never
	// retried automatically.
	OutcomeSkipped
	// OutcomeFailed: transient. Not marked handled, so the next run
	// retries it.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Handled reports whether the item should enter the migrated set.
func (o Outcome) Handled() bool {
	return o != OutcomeFailed
}

// Classify maps an upload error to its outcome. Structured codes from the
// service client take priority; matching on message text remains as a
// compatibility shim for providers that return bare strings.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	var perr *pdp.Error
	if errors.As(err, &perr) {
		switch perr.Code {
		case pdp.ErrPieceExists:
			return OutcomeDuplicate
		case pdp.ErrPieceTooLarge:
			return OutcomeSkipped
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already exists"),
		strings.Contains(msg, "duplicate"):
		return OutcomeDuplicate
	case strings.Contains(msg, "too large"),
		strings.Contains(msg, "exceeds maximum"),
		strings.Contains(msg, "size limit"):
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}
