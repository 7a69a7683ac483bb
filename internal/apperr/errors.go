// Package apperr defines the error taxonomy shared across every VerSafe
// service: Validation, Auth, NotFound, Conflict, Security, LedgerUnavailable,
// Integrity, Internal (spec.md §7). Handlers never leak a database error
// string or a stack trace to a client; they translate to one of these
// kinds and a short human-readable detail.
package apperr

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"
)

// Kind is one of the taxonomy entries from spec.md §7.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuth               Kind = "auth"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindSecurity           Kind = "security"
	KindLedgerUnavailable  Kind = "ledger_unavailable"
	KindIntegrity          Kind = "integrity"
	KindInternal           Kind = "internal"
)

// Error is the typed error value passed between layers. Detail is safe to
// show to a client; Stack and Cause are logged server-side only.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
	Stack  stack.CallStack
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind. Internal-kind errors capture a
// call stack at construction time (never shown to the client, only logged).
func New(kind Kind, detail string) *Error {
	e := &Error{Kind: kind, Detail: detail}
	if kind == KindInternal {
		e.Stack = stack.Trace().TrimRuntime()
	}
	return e
}

// Wrap attaches kind/detail to an underlying cause, e.g. a *sql.DB error
// that must not reach the client verbatim.
func Wrap(kind Kind, detail string, cause error) *Error {
	e := New(kind, detail)
	e.Cause = cause
	return e
}

// Internal is a shorthand for Wrap(KindInternal, ...), used at the
// boundary of every unexpected failure (spec.md §7: "never leaks stack
// traces to clients").
func Internal(detail string, cause error) *Error {
	return Wrap(KindInternal, detail, cause)
}

// As reports whether err (or something it wraps) is an *Error, writing it
// into target, mirroring the stdlib errors.As contract.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// KindOf extracts the Kind of err if it (or a wrapped cause) is an *Error,
// defaulting to KindInternal so an un-translated error never accidentally
// reads as a lower-severity kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinel errors reused across packages for precondition checks that
// callers may want to compare with errors.Is before translating to an
// *Error for the HTTP layer.
var (
	ErrAlreadySigned      = errors.New("signer has already signed this document")
	ErrInvalidDocState    = errors.New("document is not in a state that accepts this operation")
	ErrTerminalState      = errors.New("document is in a terminal state")
	ErrNoKeyMaterial      = errors.New("signer has no enrolled key pair for this signature type")
	ErrDuplicateSignature = errors.New("document/signer signature pair already exists")
	ErrRefreshReused       = errors.New("refresh token already consumed")
	ErrDigestMismatch      = errors.New("recomputed digest does not match stored digest")
	ErrLedgerMismatch      = errors.New("ledger record does not match stored document state")
	ErrDualHashDivergence  = errors.New("independent digests diverge for a CRITICAL document")
)
