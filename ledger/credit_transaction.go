package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditTransaction is a credit batch: a unit of credit issued once (by
// Add or Renew) with a single expiration date, owning an append-only
// list of Movements.
type CreditTransaction struct {
	id                          string
	accountID                   string
	kindLabel                   string
	creationDate                time.Time
	contractServiceID           *string
	contractServiceCreationDate time.Time
	movements                   []Movement
}

// NewCreditTransaction constructs a fresh, unpersisted batch. If
// contractServiceCreationDate is the zero value it defaults to
// creationDate, per §3.
func NewCreditTransaction(accountID, kindLabel string, creationDate time.Time, contractServiceID *string, contractServiceCreationDate time.Time) *CreditTransaction {
	creationDate = truncateToDate(creationDate)
	if contractServiceCreationDate.IsZero() {
		contractServiceCreationDate = creationDate
	} else {
		contractServiceCreationDate = truncateToDate(contractServiceCreationDate)
	}
	return &CreditTransaction{
		accountID:                   accountID,
		kindLabel:                   kindLabel,
		creationDate:                creationDate,
		contractServiceID:           contractServiceID,
		contractServiceCreationDate: contractServiceCreationDate,
	}
}

// Hydrate reconstructs a CreditTransaction with an already-assigned id
// and movement history, for use by repository adapters loading
// persisted state. Movements passed in are assumed already persisted
// (non-empty IDs); callers should not pass pending movements here.
func Hydrate(id, accountID, kindLabel string, creationDate time.Time, contractServiceID *string, contractServiceCreationDate time.Time, movements []Movement) *CreditTransaction {
	ct := NewCreditTransaction(accountID, kindLabel, creationDate, contractServiceID, contractServiceCreationDate)
	ct.id = id
	ct.movements = movements
	return ct
}

func (ct *CreditTransaction) ID() string          { return ct.id }
func (ct *CreditTransaction) SetID(id string)     { ct.id = id }
func (ct *CreditTransaction) AccountID() string   { return ct.accountID }
func (ct *CreditTransaction) KindLabel() string   { return ct.kindLabel }
func (ct *CreditTransaction) CreationDate() time.Time { return ct.creationDate }
func (ct *CreditTransaction) ContractServiceID() *string {
	return ct.contractServiceID
}
func (ct *CreditTransaction) ContractServiceCreationDate() time.Time {
	return ct.contractServiceCreationDate
}

// Movements returns the batch's append-only movement list. Callers must
// not mutate the returned slice.
func (ct *CreditTransaction) Movements() []Movement { return ct.movements }

// ExpirationDate computes the deterministic expiration per §4.2.
func (ct *CreditTransaction) ExpirationDate() time.Time {
	return expirationDate(ct.creationDate, ct.contractServiceCreationDate.Day())
}

// HasExpireMovement reports whether an EXPIRE movement has been
// recorded. Once true it is the absorbing signal for IsExpired.
func (ct *CreditTransaction) HasExpireMovement() bool {
	for _, m := range ct.movements {
		if m.Kind == KindExpire {
			return true
		}
	}
	return false
}

// IsExpired reports whether ref is on or after the expiration date, or
// the batch already carries an EXPIRE movement.
func (ct *CreditTransaction) IsExpired(ref time.Time) bool {
	return !truncateToDate(ref).Before(ct.ExpirationDate()) || ct.HasExpireMovement()
}

// RemainingValue is the sum of signed deltas of every movement in the
// batch.
func (ct *CreditTransaction) RemainingValue() decimal.Decimal {
	total := decimal.Zero
	for _, m := range ct.movements {
		total = total.Add(m.SignedDelta)
	}
	return total
}

func (ct *CreditTransaction) append(m Movement) {
	ct.movements = append(ct.movements, m)
}

// AssignMovementID sets the persistent id of the movement at index,
// the repository adapter's half of Design Note 9.2's pending_movements
// contract: the adapter finds pending work through PendingMovements
// (which carries the index) and writes ids back through this method
// rather than reaching into the batch's private slice.
func (ct *CreditTransaction) AssignMovementID(at int, id string) {
	if at < 0 || at >= len(ct.movements) {
		return
	}
	ct.movements[at].ID = id
}

// Add seeds the batch with a single ADD movement. Used by
// CreditAccount.Add when creating a fresh batch; never called again on
// the same batch afterwards (§3: "no later top-up").
func (ct *CreditTransaction) Add(amount decimal.Decimal, description, operationID string, at time.Time) error {
	m, err := NewMovement(KindAdd, amount, description, Target{}, operationID, at)
	if err != nil {
		return err
	}
	ct.append(m)
	return nil
}

// ConsumeOptions controls the replay override described in §4.6.
type ConsumeOptions struct {
	// IgnoreExpiration allows consuming from an already-expired batch.
	// Used only by the repository layer when rehydrating historical
	// state (§4.6).
	IgnoreExpiration bool
}

// Consume appends at most one CONSUME movement and returns the portion
// of amount that could not be settled from this batch (§4.2).
func (ct *CreditTransaction) Consume(amount decimal.Decimal, refDate time.Time, target Target, description, operationID string, opts ConsumeOptions) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, &InvalidInputError{Field: "amount", Reason: "must be non-negative"}
	}
	if ct.IsExpired(refDate) && !opts.IgnoreExpiration {
		return decimal.Zero, &ExpiredBatchError{BatchID: ct.id}
	}

	remaining := ct.RemainingValue()
	if remaining.GreaterThanOrEqual(amount) {
		m, err := NewMovement(KindConsume, amount, description, target, operationID, refDate)
		if err != nil {
			return decimal.Zero, err
		}
		ct.append(m)
		return decimal.Zero, nil
	}

	m, err := NewMovement(KindConsume, remaining, description, target, operationID, refDate)
	if err != nil {
		return decimal.Zero, err
	}
	ct.append(m)
	return amount.Sub(remaining), nil
}

// Refund finds every unrefunded CONSUME movement matching target and
// books one REFUND movement mirroring their combined magnitude.
// Idempotent per target (§4.2, §8 P3).
func (ct *CreditTransaction) Refund(target Target, description, operationID string, at time.Time) error {
	if target.IsEmpty() {
		return nil
	}
	if !ct.canRefund(target) {
		return nil
	}

	total := decimal.Zero
	for _, m := range ct.movements {
		if m.Kind == KindConsume && m.Target == target {
			total = total.Add(m.Amount)
		}
	}
	if total.IsZero() {
		return nil
	}

	m, err := NewMovement(KindRefund, total, description, target, operationID, at)
	if err != nil {
		return err
	}
	ct.append(m)
	return nil
}

func (ct *CreditTransaction) canRefund(target Target) bool {
	for _, m := range ct.movements {
		if m.Kind == KindRefund && m.Target == target {
			return false
		}
	}
	return true
}

// Expire books one EXPIRE movement draining the batch to zero. No-op if
// already expired by movement, or if at is before the expiration date
// (§4.2, §8 P4).
func (ct *CreditTransaction) Expire(at time.Time, operationID string) error {
	if ct.HasExpireMovement() {
		return nil
	}
	if !ct.IsExpired(at) {
		return nil
	}
	remaining := ct.RemainingValue()
	m, err := NewMovement(KindExpire, remaining, "batch expired", Target{}, operationID, at)
	if err != nil {
		return err
	}
	ct.append(m)
	return nil
}

// addEquivalentTotal sums the ADD and RENEW movements of this batch,
// i.e. the original subscription quantum, as opposed to RemainingValue
// which nets out consumption.
func (ct *CreditTransaction) addEquivalentTotal() decimal.Decimal {
	total := decimal.Zero
	for _, m := range ct.movements {
		if m.Kind == KindAdd || m.Kind == KindRenew {
			total = total.Add(m.Amount)
		}
	}
	return total
}

// Renew produces a successor batch seeded with one RENEW movement equal
// to this batch's original ADD+RENEW total (§4.2).
func (ct *CreditTransaction) Renew(operationID string) (*CreditTransaction, error) {
	successor := NewCreditTransaction(ct.accountID, ct.kindLabel, ct.ExpirationDate(), ct.contractServiceID, ct.contractServiceCreationDate)
	m, err := NewMovement(KindRenew, ct.addEquivalentTotal(), "credits renewed", Target{}, operationID, successor.creationDate)
	if err != nil {
		return nil, err
	}
	successor.append(m)
	return successor, nil
}

// ConsumedMovements returns the settled CONSUME movements in this batch.
func (ct *CreditTransaction) ConsumedMovements() []Movement {
	var out []Movement
	for _, m := range ct.movements {
		if m.Kind == KindConsume {
			out = append(out, m)
		}
	}
	return out
}

// ConsumedValue sums the magnitude of every settled CONSUME movement.
func (ct *CreditTransaction) ConsumedValue() decimal.Decimal {
	total := decimal.Zero
	for _, m := range ct.ConsumedMovements() {
		total = total.Add(m.Amount)
	}
	return total
}

// SameSuccessor reports whether candidate is already ct's successor
// batch: a renewal always starts on ct's expiration date and keeps its
// kind label, so that pair uniquely identifies "already renewed" (§4.3).
func (ct *CreditTransaction) SameSuccessor(candidate *CreditTransaction) bool {
	return ct.ExpirationDate().Equal(candidate.creationDate) && ct.kindLabel == candidate.kindLabel
}
