package ledger

import "errors"

// Sentinel error kinds. Callers compare with errors.Is; adapters wrap these
// with errors.Unwrap-able struct errors that carry the offending values.
var (
	ErrInsufficientBalance = errors.New("credit: insufficient balance")
	ErrExpiredBatch        = errors.New("credit: batch is expired")
	ErrInvalidInput        = errors.New("credit: invalid input")
	ErrRepositoryFailure   = errors.New("credit: repository failure")
)

// InsufficientBalanceError reports a consume request that exceeds the
// account's available balance, or is non-positive.
type InsufficientBalanceError struct {
	AccountID string
	Requested string
	Available string
}

func (e *InsufficientBalanceError) Error() string {
	return "credit: account " + e.AccountID + " requested " + e.Requested +
		" but only " + e.Available + " is available"
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ExpiredBatchError reports an attempted consume against an already
// expired batch outside the replay override path.
type ExpiredBatchError struct {
	BatchID string
}

func (e *ExpiredBatchError) Error() string {
	return "credit: batch " + e.BatchID + " is expired and cannot accept new consumption"
}

func (e *ExpiredBatchError) Unwrap() error { return ErrExpiredBatch }

// InvalidInputError reports malformed caller input: negative or
// fractional amounts.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "credit: invalid " + e.Field + ": " + e.Reason
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// RepositoryFailureError wraps any adapter-level error surfaced to a use
// case. The originating error is preserved for errors.Is/As chains.
type RepositoryFailureError struct {
	Op  string
	Err error
}

func (e *RepositoryFailureError) Error() string {
	return "credit: repository failure during " + e.Op + ": " + e.Err.Error()
}

func (e *RepositoryFailureError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRepositoryFailure) hold for every
// RepositoryFailureError, alongside the wrapped error's own chain.
func (e *RepositoryFailureError) Is(target error) bool { return target == ErrRepositoryFailure }

// IsNotFound reports whether err indicates a missing account/batch rather
// than a transport or constraint failure. Adapters that distinguish "no
// rows" from other SQL errors should wrap with this predicate in mind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// ErrAccountNotFound is returned by LoadAccountByTenant when no account
// has ever been created for the tenant. It is not itself a failure: the
// add use case treats it as "create lazily" per the lifecycle rule in §3.
var ErrAccountNotFound = errors.New("credit: account not found")
