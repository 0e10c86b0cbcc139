package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditAccount is the aggregate root of the prepaid credit ledger: it
// exclusively owns an ordered sequence of CreditTransaction batches and
// enforces FIFO consumption, expiration, refund and renewal across them.
type CreditAccount struct {
	id            string
	referenceDate time.Time
	batches       []*CreditTransaction
	pendingBatches []*CreditTransaction
}

// NewCreditAccount constructs an empty aggregate for tenantID. Accounts
// are created lazily by the add use case when the first ADD arrives for
// a tenant that has none (§3 Lifecycle).
func NewCreditAccount(tenantID string, referenceDate time.Time) *CreditAccount {
	return &CreditAccount{id: tenantID, referenceDate: truncateToDate(referenceDate)}
}

// HydrateAccount reconstructs an aggregate from already-persisted
// batches, in the insertion order the adapter's storage preserves (§5).
func HydrateAccount(tenantID string, referenceDate time.Time, batches []*CreditTransaction) *CreditAccount {
	return &CreditAccount{id: tenantID, referenceDate: truncateToDate(referenceDate), batches: batches}
}

func (a *CreditAccount) ID() string            { return a.id }
func (a *CreditAccount) ReferenceDate() time.Time { return a.referenceDate }
func (a *CreditAccount) Batches() []*CreditTransaction { return a.batches }

// SetReferenceDate moves the aggregate's notion of "now". Exposed so
// tests and replay-driven adapters can simulate the passage of time
// without round-tripping through persistence (used throughout §8's
// concrete scenarios).
func (a *CreditAccount) SetReferenceDate(at time.Time) { a.referenceDate = truncateToDate(at) }

// Add always creates a new batch; it never augments an existing one
// (§4.3, Open Question 9.5 resolved: no coalescing).
func (a *CreditAccount) Add(amount decimal.Decimal, description, kindLabel, operationID string, contractServiceID *string) error {
	batch := NewCreditTransaction(a.id, kindLabel, a.referenceDate, contractServiceID, time.Time{})
	if err := batch.Add(amount, description, operationID, a.referenceDate); err != nil {
		return err
	}
	a.batches = append(a.batches, batch)
	a.pendingBatches = append(a.pendingBatches, batch)
	return nil
}

// Balance sums the remaining value of every non-expired batch as of at.
// A zero at defaults to the account's reference date.
func (a *CreditAccount) Balance(at time.Time) decimal.Decimal {
	if at.IsZero() {
		at = a.referenceDate
	}
	total := decimal.Zero
	for _, b := range a.batches {
		if b.IsExpired(at) {
			continue
		}
		total = total.Add(b.RemainingValue())
	}
	return total
}

// CountExpired sums the remaining value of every expired batch.
func (a *CreditAccount) CountExpired() decimal.Decimal {
	total := decimal.Zero
	for _, b := range a.batches {
		if !b.IsExpired(a.referenceDate) {
			continue
		}
		total = total.Add(b.RemainingValue())
	}
	return total
}

// Consume drains amount from batches walked in reverse-insertion order
// (§4.3, Design Note 9.1). It fails fast with InsufficientBalance if
// amount is non-positive or exceeds the current balance, leaving the
// aggregate unchanged.
func (a *CreditAccount) Consume(amount decimal.Decimal, description string, consumedAt time.Time, target Target, operationID string) error {
	if consumedAt.IsZero() {
		consumedAt = a.referenceDate
	}
	balance := a.Balance(a.referenceDate)
	if !amount.IsPositive() || amount.GreaterThan(balance) {
		return &InsufficientBalanceError{
			AccountID: a.id,
			Requested: amount.String(),
			Available: balance.String(),
		}
	}

	remainingDemand := amount
	for i := len(a.batches) - 1; i >= 0; i-- {
		batch := a.batches[i]
		if batch.RemainingValue().LessThan(decimal.NewFromInt(1)) || batch.IsExpired(a.referenceDate) {
			continue
		}
		unconsumed, err := batch.Consume(remainingDemand, consumedAt, target, description, operationID, ConsumeOptions{})
		if err != nil {
			return err
		}
		remainingDemand = unconsumed
		if !remainingDemand.IsPositive() {
			break
		}
	}
	return nil
}

// Expire iterates every batch and calls its Expire. Idempotent (§4.3, §8 P4).
func (a *CreditAccount) Expire(operationID string) error {
	for _, b := range a.batches {
		if err := b.Expire(a.referenceDate, operationID); err != nil {
			return err
		}
	}
	return nil
}

// Refund iterates every batch and calls its Refund with target. The
// same target can be refunded across several batches but never twice
// within the same batch (§4.3, §8 P3).
func (a *CreditAccount) Refund(target Target, description, operationID string) error {
	for _, b := range a.batches {
		if err := b.Refund(target, description, operationID, a.referenceDate); err != nil {
			return err
		}
	}
	return nil
}

// Renew produces a successor for every expired batch that does not
// already have one appended this session (§4.3). eligible, when
// non-nil, lets the caller (the renew use case, consulting the
// contracted-service catalog port per §6) veto renewal of a specific
// batch without the aggregate itself performing I/O.
func (a *CreditAccount) Renew(operationID string, eligible func(*CreditTransaction) bool) error {
	for _, b := range a.batches {
		if !b.IsExpired(a.referenceDate) {
			continue
		}
		if eligible != nil && !eligible(b) {
			continue
		}
		if a.hasSuccessor(b) {
			continue
		}
		successor, err := b.Renew(operationID)
		if err != nil {
			return err
		}
		a.batches = append(a.batches, successor)
		a.pendingBatches = append(a.pendingBatches, successor)
	}
	return nil
}

func (a *CreditAccount) hasSuccessor(predecessor *CreditTransaction) bool {
	for _, b := range a.batches {
		if b == predecessor {
			continue
		}
		if predecessor.SameSuccessor(b) {
			return true
		}
	}
	return false
}

// PendingMovement pairs a movement with the id of the batch that owns
// it, for the repository adapter's diff-and-append flow (Design Note
// 9.2).
type PendingMovement struct {
	BatchID  string
	Batch    *CreditTransaction
	Movement Movement
	Index    int // position within Batch.Movements(), for AssignMovementID
}

// PendingMovements walks every batch's movement list and yields every
// movement whose ID is still empty. The repository adapter uses this
// instead of reaching into private aggregate state.
func (a *CreditAccount) PendingMovements() []PendingMovement {
	var out []PendingMovement
	for _, b := range a.batches {
		for i, m := range b.Movements() {
			if m.Pending() {
				out = append(out, PendingMovement{BatchID: b.id, Batch: b, Movement: m, Index: i})
			}
		}
	}
	return out
}

// PendingMovementsByKind filters PendingMovements to a single kind, the
// shape each PersistX repository call needs (§4.5).
func (a *CreditAccount) PendingMovementsByKind(kind Kind) []PendingMovement {
	var out []PendingMovement
	for _, pm := range a.PendingMovements() {
		if pm.Movement.Kind == kind {
			out = append(out, pm)
		}
	}
	return out
}

// PendingBatches returns batches created during this session that have
// not yet been assigned a persistent id.
func (a *CreditAccount) PendingBatches() []*CreditTransaction {
	var out []*CreditTransaction
	for _, b := range a.pendingBatches {
		if b.id == "" {
			out = append(out, b)
		}
	}
	return out
}
