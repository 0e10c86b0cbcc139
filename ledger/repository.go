package ledger

import "context"

// Repository is the persistence contract the aggregate is saved and
// loaded through. The core depends on this interface but never
// implements it (§4.5); see store/sqlite and store/memory for adapters.
type Repository interface {
	// LoadAccountByTenant returns ErrAccountNotFound if no account has
	// ever been created for tenantID; the add use case treats that as
	// "create lazily" per §3's lifecycle rule.
	LoadAccountByTenant(ctx context.Context, tenantID string) (*CreditAccount, error)

	// CreateAccount persists a brand-new account and assigns it (and
	// its first batch's movements) persistent ids.
	CreateAccount(ctx context.Context, account *CreditAccount) error

	// PersistAdds, PersistConsumes, PersistRefunds, PersistExpires each
	// inspect account.PendingMovementsByKind for their kind and append
	// only those not yet persisted. Neither adapter keeps a stored
	// balance; it is always recomputed from movements. Renew is persisted through
	// PersistAdds since a RENEW movement seeds a brand-new batch the
	// same way an ADD movement does.
	PersistAdds(ctx context.Context, account *CreditAccount) error
	PersistConsumes(ctx context.Context, account *CreditAccount) error
	PersistRefunds(ctx context.Context, account *CreditAccount) error
	PersistExpires(ctx context.Context, account *CreditAccount) error

	// LoadOperationHistory reconstructs the read-only projection for
	// tenantID from every persisted movement, with no date filter
	// (§6(c): historical reconstruction ignores expiration_date).
	LoadOperationHistory(ctx context.Context, tenantID string) (*OperationHistory, error)
}
