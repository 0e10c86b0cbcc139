package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags a Movement with the operation that produced it.
type Kind string

const (
	KindAdd     Kind = "ADD"
	KindConsume Kind = "CONSUME"
	KindExpire  Kind = "EXPIRE"
	KindRefund  Kind = "REFUND"
	KindRenew   Kind = "RENEW"
)

// positiveKinds carries +amount as signed_delta; the complement
// (CONSUME, EXPIRE) carries -amount.
var positiveKinds = map[Kind]bool{
	KindAdd:    true,
	KindRefund: true,
	KindRenew:  true,
}

// Target identifies the external domain object a CONSUME or REFUND
// movement refers to. An empty Target (both fields blank) means
// "untargeted" and can never participate in a refund (§9.4).
type Target struct {
	Type string
	ID   string
}

// IsEmpty reports whether the target carries no reference at all.
func (t Target) IsEmpty() bool { return t.Type == "" && t.ID == "" }

// Movement is an atomic, immutable signed change to one batch. Once
// appended to a CreditTransaction's movement list it is never edited or
// removed.
type Movement struct {
	ID           string
	Kind         Kind
	Amount       decimal.Decimal
	SignedDelta  decimal.Decimal
	Description  string
	Target       Target
	OperationID  string
	CreatedAt    time.Time
}

// NewMovement constructs a Movement whose Amount is the non-negative
// magnitude and whose SignedDelta takes its sign from kind, validating
// that amount is a
// non-negative integer (the domain's Non-goal against fractional
// credits, enforced here since the underlying representation is
// decimal.Decimal).
func NewMovement(kind Kind, amount decimal.Decimal, description string, target Target, operationID string, createdAt time.Time) (Movement, error) {
	if amount.IsNegative() {
		return Movement{}, &InvalidInputError{Field: "amount", Reason: "must be non-negative"}
	}
	if !amount.Equal(amount.Truncate(0)) {
		return Movement{}, &InvalidInputError{Field: "amount", Reason: "fractional credits are not supported"}
	}
	if kind == KindAdd || kind == KindExpire {
		target = Target{}
	}

	magnitude := amount
	signed := magnitude
	if !positiveKinds[kind] {
		signed = magnitude.Neg()
	}

	return Movement{
		Kind:        kind,
		Amount:      magnitude,
		SignedDelta: signed,
		Description: description,
		Target:      target,
		OperationID: operationID,
		CreatedAt:   createdAt,
	}, nil
}

// Pending reports whether the repository has not yet assigned this
// movement a persistent id (Design Note 9.2).
func (m Movement) Pending() bool { return m.ID == "" }
