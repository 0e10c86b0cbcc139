package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/prepaid/creditengine/cache"
	"github.com/prepaid/creditengine/catalog"
	"github.com/prepaid/creditengine/ledger"
)

// Service bundles the five mutating use cases and the two supplemental
// read use cases behind the repository, cache and catalog ports. One
// Service is shared across requests; it holds no per-tenant state.
type Service struct {
	Repository ledger.Repository
	Cache      cache.Invalidator
	Catalog    catalog.ServiceCatalog
}

// NewService wires the three ports together. cacheInvalidator and
// serviceCatalog default to no-op implementations when nil, so callers
// that don't need them can omit the wiring.
func NewService(repo ledger.Repository, cacheInvalidator cache.Invalidator, serviceCatalog catalog.ServiceCatalog) *Service {
	if cacheInvalidator == nil {
		cacheInvalidator = cache.NoopInvalidator{}
	}
	if serviceCatalog == nil {
		serviceCatalog = catalog.AlwaysActive{}
	}
	return &Service{Repository: repo, Cache: cacheInvalidator, Catalog: serviceCatalog}
}

func newOperationID() string { return uuid.NewString() }

// loadOrCreateAccount implements the "accounts are created lazily"
// lifecycle rule from §3: it is only ever called by AddCredit, the one
// use case allowed to create an account that doesn't exist yet.
func (s *Service) loadOrCreateAccount(ctx context.Context, tenantID string, referenceDate time.Time) (*ledger.CreditAccount, bool, error) {
	account, err := s.Repository.LoadAccountByTenant(ctx, tenantID)
	if err == nil {
		return account, false, nil
	}
	if ledger.IsNotFound(err) {
		return ledger.NewCreditAccount(tenantID, referenceDate), true, nil
	}
	return nil, false, &ledger.RepositoryFailureError{Op: "LoadAccountByTenant", Err: err}
}

func (s *Service) loadAccount(ctx context.Context, tenantID string, referenceDate time.Time) (*ledger.CreditAccount, error) {
	account, err := s.Repository.LoadAccountByTenant(ctx, tenantID)
	if err != nil {
		return nil, &ledger.RepositoryFailureError{Op: "LoadAccountByTenant", Err: err}
	}
	account.SetReferenceDate(referenceDate)
	return account, nil
}

// AddCredit implements SPEC_FULL.md §6's Add use case.
func (s *Service) AddCredit(ctx context.Context, in AddCreditInput) (AccountMutationOutput, error) {
	now := time.Now()
	account, isNew, err := s.loadOrCreateAccount(ctx, in.TenantID, now)
	if err != nil {
		return AccountMutationOutput{}, err
	}
	account.SetReferenceDate(now)

	operationID := newOperationID()
	if err := account.Add(in.Amount, in.Description, in.KindLabel, operationID, in.ContractedServiceID); err != nil {
		return AccountMutationOutput{}, err
	}

	if isNew {
		if err := s.Repository.CreateAccount(ctx, account); err != nil {
			return AccountMutationOutput{}, &ledger.RepositoryFailureError{Op: "CreateAccount", Err: err}
		}
	}
	if err := s.Repository.PersistAdds(ctx, account); err != nil {
		return AccountMutationOutput{}, &ledger.RepositoryFailureError{Op: "PersistAdds", Err: err}
	}
	if err := s.invalidate(ctx, in.TenantID); err != nil {
		return AccountMutationOutput{}, err
	}

	return AccountMutationOutput{AccountID: account.ID(), NewBalance: account.Balance(now)}, nil
}

// ConsumeCredit implements SPEC_FULL.md §6's Consume use case.
func (s *Service) ConsumeCredit(ctx context.Context, in ConsumeCreditInput) (AccountMutationOutput, error) {
	now := time.Now()
	account, err := s.loadAccount(ctx, in.TenantID, now)
	if err != nil {
		return AccountMutationOutput{}, err
	}

	target := ledger.Target{Type: in.TargetType, ID: in.TargetID}
	operationID := newOperationID()
	if err := account.Consume(in.Amount, in.Description, in.ConsumedAt, target, operationID); err != nil {
		return AccountMutationOutput{}, err
	}

	if err := s.Repository.PersistConsumes(ctx, account); err != nil {
		return AccountMutationOutput{}, &ledger.RepositoryFailureError{Op: "PersistConsumes", Err: err}
	}
	if err := s.invalidate(ctx, in.TenantID); err != nil {
		return AccountMutationOutput{}, err
	}

	return AccountMutationOutput{AccountID: account.ID(), NewBalance: account.Balance(now)}, nil
}

// RefundCredit implements SPEC_FULL.md §6's Refund use case.
func (s *Service) RefundCredit(ctx context.Context, in RefundCreditInput) (AccountMutationOutput, error) {
	now := time.Now()
	account, err := s.loadAccount(ctx, in.TenantID, now)
	if err != nil {
		return AccountMutationOutput{}, err
	}

	target := ledger.Target{Type: in.TargetType, ID: in.TargetID}
	operationID := newOperationID()
	if err := account.Refund(target, "credit refunded", operationID); err != nil {
		return AccountMutationOutput{}, err
	}

	if err := s.Repository.PersistRefunds(ctx, account); err != nil {
		return AccountMutationOutput{}, &ledger.RepositoryFailureError{Op: "PersistRefunds", Err: err}
	}
	if err := s.invalidate(ctx, in.TenantID); err != nil {
		return AccountMutationOutput{}, err
	}

	return AccountMutationOutput{AccountID: account.ID(), NewBalance: account.Balance(now)}, nil
}

// ExpireCredit implements SPEC_FULL.md §6's Expire use case.
func (s *Service) ExpireCredit(ctx context.Context, in ExpireCreditInput) (AccountMutationOutput, error) {
	now := time.Now()
	account, err := s.loadAccount(ctx, in.TenantID, now)
	if err != nil {
		return AccountMutationOutput{}, err
	}

	operationID := newOperationID()
	if err := account.Expire(operationID); err != nil {
		return AccountMutationOutput{}, err
	}

	if err := s.Repository.PersistExpires(ctx, account); err != nil {
		return AccountMutationOutput{}, &ledger.RepositoryFailureError{Op: "PersistExpires", Err: err}
	}
	if err := s.invalidate(ctx, in.TenantID); err != nil {
		return AccountMutationOutput{}, err
	}

	return AccountMutationOutput{AccountID: account.ID(), NewBalance: account.Balance(now)}, nil
}

// RenewCredit implements SPEC_FULL.md §6's Renew use case. Unlike the
// other four mutators it consults the contracted-service catalog port
// before delegating to the aggregate, per Open Question 9.5's
// resolution: the aggregate stays pure, the use case performs the I/O.
func (s *Service) RenewCredit(ctx context.Context, in RenewCreditInput) (AccountMutationOutput, error) {
	now := time.Now()
	account, err := s.loadAccount(ctx, in.TenantID, now)
	if err != nil {
		return AccountMutationOutput{}, err
	}

	var catalogErr *multierror.Error
	eligible := func(batch *ledger.CreditTransaction) bool {
		id := batch.ContractServiceID()
		if id == nil {
			return true
		}
		active, err := s.Catalog.IsActive(ctx, *id)
		if err != nil {
			catalogErr = multierror.Append(catalogErr, err)
			return false
		}
		return active
	}

	operationID := newOperationID()
	if err := account.Renew(operationID, eligible); err != nil {
		return AccountMutationOutput{}, err
	}
	if catalogErr != nil {
		return AccountMutationOutput{}, &ledger.RepositoryFailureError{Op: "RenewCredit.Catalog", Err: catalogErr}
	}

	if err := s.Repository.PersistAdds(ctx, account); err != nil {
		return AccountMutationOutput{}, &ledger.RepositoryFailureError{Op: "PersistAdds", Err: err}
	}
	if err := s.invalidate(ctx, in.TenantID); err != nil {
		return AccountMutationOutput{}, err
	}

	return AccountMutationOutput{AccountID: account.ID(), NewBalance: account.Balance(now)}, nil
}

// GetBalance implements the read-only supplemental use case from
// SPEC_FULL.md §10.
func (s *Service) GetBalance(ctx context.Context, in GetBalanceInput) (GetBalanceOutput, error) {
	account, err := s.Repository.LoadAccountByTenant(ctx, in.TenantID)
	if err != nil {
		return GetBalanceOutput{}, &ledger.RepositoryFailureError{Op: "LoadAccountByTenant", Err: err}
	}
	at := in.At
	if !at.IsZero() {
		account.SetReferenceDate(at)
	}
	return GetBalanceOutput{
		AccountID:    account.ID(),
		Balance:      account.Balance(at),
		CountExpired: account.CountExpired(),
	}, nil
}

// GetOperationHistory implements the read-only supplemental use case
// from SPEC_FULL.md §10.
func (s *Service) GetOperationHistory(ctx context.Context, in GetOperationHistoryInput) (GetOperationHistoryOutput, error) {
	history, err := s.Repository.LoadOperationHistory(ctx, in.TenantID)
	if err != nil {
		return GetOperationHistoryOutput{}, &ledger.RepositoryFailureError{Op: "LoadOperationHistory", Err: err}
	}
	if in.Kind == "" {
		return GetOperationHistoryOutput{Operations: history.All()}, nil
	}
	return GetOperationHistoryOutput{Operations: history.ByKind(in.Kind)}, nil
}

func (s *Service) invalidate(ctx context.Context, tenantID string) error {
	if err := s.Cache.Invalidate(ctx, tenantID, ""); err != nil {
		return &ledger.RepositoryFailureError{Op: "Cache.Invalidate", Err: err}
	}
	return nil
}
