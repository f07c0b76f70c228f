package transfer

import "fmt"

// Kind classifies transfer failures for the per-layer handling policy:
// source-level kinds skip the whole source for the cycle, target-level
// kinds skip only the one target, and persistence failures never abort
// the cycle.
type Kind int

const (
	// KindSourceUnreachable - the source host could not be reached; the
	// whole source is skipped and its state is left untouched
	KindSourceUnreachable Kind = iota
	// KindProbeFailed - size/identity of a target could not be determined
	KindProbeFailed
	// KindReadFailed - the incremental read from the source failed
	KindReadFailed
	// KindWriteFailed - the destination append failed, including the
	// truncate-create fallback; state is not updated so the same bytes
	// are retried next cycle
	KindWriteFailed
	// KindStatePersist - the end-of-cycle state flush failed; state for
	// this cycle is best-effort
	KindStatePersist
)

// String returns a stable name for logging
func (k Kind) String() string {
	switch k {
	case KindSourceUnreachable:
		return "source_unreachable"
	case KindProbeFailed:
		return "probe_failed"
	case KindReadFailed:
		return "read_failed"
	case KindWriteFailed:
		return "write_failed"
	case KindStatePersist:
		return "state_persist"
	default:
		return "unknown"
	}
}

// Error wraps a failure with its handling classification
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func classify(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
