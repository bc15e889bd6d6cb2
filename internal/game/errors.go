package game

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind classifies a business-rule failure so the transport layer can map it
// to a response without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPermission
	KindInvalidState
	KindDuplicate
	KindCapacity
	KindNotFound
	// KindRetryable marks transient store contention (lock wait timeout or
	// deadlock). The caller may safely re-issue the identical operation.
	KindRetryable
	// KindDeckExhausted guards an unreachable-under-capacity condition and is
	// treated as fatal if it ever fires.
	KindDeckExhausted
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindInvalidState:
		return "invalid_state"
	case KindDuplicate:
		return "duplicate"
	case KindCapacity:
		return "capacity"
	case KindNotFound:
		return "not_found"
	case KindRetryable:
		return "retryable"
	case KindDeckExhausted:
		return "deck_exhausted"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the taxonomy kind from an error chain, defaulting to
// KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// Postgres error codes that represent lock contention rather than a broken
// request. 55P03 is lock_not_available (lock_timeout expired), 40P01 is
// deadlock_detected.
const (
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
	pgUniqueViolation  = "23505"
)

// translateStoreError folds driver-level failures into the taxonomy so
// handlers can distinguish "try again" from a hard failure.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Message: "record not found", cause: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected:
			return &Error{Kind: KindRetryable, Message: "session is busy, try again", cause: err}
		case pgUniqueViolation:
			return &Error{Kind: KindDuplicate, Message: "already exists", cause: err}
		}
	}
	return err
}
