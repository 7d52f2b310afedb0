package pdp

import "fmt"

// ErrorCode is a stable failure kind reported by the PDP service. Callers
// classify on it rather than on message text where possible.
type ErrorCode string

const (
	ErrUnknown       ErrorCode = ""
	ErrPieceExists   ErrorCode = "piece_exists"
	ErrPieceTooLarge ErrorCode = "piece_too_large"
	ErrUnauthorized  ErrorCode = "unauthorized"
	ErrRateLimited   ErrorCode = "rate_limited"
	ErrInternal      ErrorCode = "internal"
)

// Error is a structured failure from the service. Code is taken from the
// error body when the service supplies one, otherwise inferred from the HTTP
// status.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Code == ErrUnknown {
		return fmt.Sprintf("pdp service error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("pdp service error (%s, status %d): %s", e.Code, e.Status, e.Message)
}

func codeForStatus(status int) ErrorCode {
	switch {
	case status == 409:
		return ErrPieceExists
	case status == 413:
		return ErrPieceTooLarge
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status == 429:
		return ErrRateLimited
	case status >= 500:
		return ErrInternal
	default:
		return ErrUnknown
	}
}
