package wallet

import "fmt"

// ErrorKind names a semantic error kind that originates at the
// orchestrator layer itself rather than from txbuilder's create_tx
// validation (those surface unchanged as *txbuilder.Error).
type ErrorKind string

const (
	// KindGeneric covers store/view incoherence during sign: a missing
	// cached prior transaction or a missing derivation path. Always fatal.
	KindGeneric ErrorKind = "generic"
	// KindInvalidKey wraps whatever the HD/curve library surfaces when
	// derivation produces an out-of-range scalar.
	KindInvalidKey ErrorKind = "invalid_key"
)

// Error is the typed error this layer raises directly. All errors surface
// to the caller unchanged; nothing here is self-retried.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func newGenericErr(reason string) *Error { return &Error{Kind: KindGeneric, Reason: reason} }

func newInvalidKeyErr(reason string, err error) *Error {
	return &Error{Kind: KindInvalidKey, Reason: reason, Err: err}
}
