package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation groups the Movements produced by one logical call to the
// aggregate (§4.4, Design Note 9.3). It is a read-only projection; it
// does not drive the aggregate.
type Operation struct {
	ID        string
	Kind      Kind
	AccountID string
	Movements []Movement
	CreatedAt time.Time
}

// SignedTotal sums the signed deltas of every movement in the
// operation, matching the OperationLog.signed_total column in §6.
func (op Operation) SignedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, m := range op.Movements {
		total = total.Add(m.SignedDelta)
	}
	return total
}

// OperationHistory is a read-only view over the movements already
// persisted for an account, grouped by operation id and indexed by
// kind. Built by the repository on load; never constructed by the
// aggregate itself.
type OperationHistory struct {
	byKind map[Kind][]Operation
}

// BuildOperationHistory groups every movement across batches into
// Operations keyed by operation id, then indexes the result by kind.
// Movements that share an operation id but originate from different
// batches (a consume spanning two batches, for example) collapse into
// one Operation with multiple Movements, per §4.4.
func BuildOperationHistory(batches []*CreditTransaction) *OperationHistory {
	byID := map[string]*Operation{}
	order := []string{}

	for _, batch := range batches {
		for _, m := range batch.Movements() {
			op, ok := byID[m.OperationID]
			if !ok {
				op = &Operation{ID: m.OperationID, Kind: m.Kind, AccountID: batch.AccountID(), CreatedAt: m.CreatedAt}
				byID[m.OperationID] = op
				order = append(order, m.OperationID)
			}
			op.Movements = append(op.Movements, m)
		}
	}

	h := &OperationHistory{byKind: map[Kind][]Operation{}}
	for _, id := range order {
		op := *byID[id]
		h.byKind[op.Kind] = append(h.byKind[op.Kind], op)
	}
	return h
}

// ByKind returns every operation of the given kind, in the order they
// were first observed across the account's batches.
func (h *OperationHistory) ByKind(kind Kind) []Operation {
	return h.byKind[kind]
}

// All returns every operation across every kind.
func (h *OperationHistory) All() []Operation {
	var out []Operation
	for _, kind := range []Kind{KindAdd, KindConsume, KindExpire, KindRefund, KindRenew} {
		out = append(out, h.byKind[kind]...)
	}
	return out
}
