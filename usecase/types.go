// Package usecase implements the thin orchestrators of §2's data flow:
// load the account by tenant id via the repository, invoke one mutator
// on the aggregate, hand it back to the repository to persist, then
// invalidate the cache. Mirrors the source's AddCreditUC/ConsumeCreditUC
// shape, generalized to all five mutators plus the two read-only
// supplemental use cases from SPEC_FULL.md §10.
package usecase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/prepaid/creditengine/ledger"
)

// AddCreditInput is the add use case's request, per SPEC_FULL.md §6.
type AddCreditInput struct {
	TenantID          string
	Amount            decimal.Decimal
	OwnerID           string
	KindLabel         string
	Description       string
	TargetID          string
	TargetType        string
	ContractedServiceID *string
}

// ConsumeCreditInput is the consume use case's request.
type ConsumeCreditInput struct {
	TenantID    string
	Amount      decimal.Decimal
	Description string
	OwnerID     string
	ConsumedAt  time.Time
	TargetID    string
	TargetType  string
}

// RefundCreditInput is the refund use case's request.
type RefundCreditInput struct {
	TenantID   string
	OwnerID    string
	TargetID   string
	TargetType string
}

// ExpireCreditInput is the expire use case's request.
type ExpireCreditInput struct {
	TenantID string
	OwnerID  string
}

// RenewCreditInput is the renew use case's request.
type RenewCreditInput struct {
	TenantID string
	OwnerID  string
}

// AccountMutationOutput is the shared response shape for every mutating
// use case (§6: "{account_id, new_balance}").
type AccountMutationOutput struct {
	AccountID  string
	NewBalance decimal.Decimal
}

// GetBalanceInput is the balance read use case's request (SPEC_FULL.md §10).
type GetBalanceInput struct {
	TenantID string
	At       time.Time
}

// GetBalanceOutput reports the account's balance and expired total.
type GetBalanceOutput struct {
	AccountID    string
	Balance      decimal.Decimal
	CountExpired decimal.Decimal
}

// GetOperationHistoryInput is the operation-history read use case's request.
type GetOperationHistoryInput struct {
	TenantID string
	Kind     ledger.Kind // zero value means "all kinds"
}

// GetOperationHistoryOutput carries the matching operations.
type GetOperationHistoryOutput struct {
	Operations []ledger.Operation
}
