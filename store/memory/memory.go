// Package memory implements ledger.Repository entirely in process
// memory, for tests and local development. It mirrors the teacher's
// generic/store/memory.go shape: a mutex-guarded map plus a monotonic
// counter standing in for the sequence/id-assignment a real database
// would provide.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prepaid/creditengine/ledger"
)

type batchRecord struct {
	batch *ledger.CreditTransaction
}

// Store is an in-memory ledger.Repository. Safe for concurrent use,
// though the domain's Non-goals explicitly exclude concurrent writers
// to the same account — the mutex here only protects the map itself.
type Store struct {
	mu       sync.RWMutex
	accounts map[string][]*batchRecord
	seq      int
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{accounts: map[string][]*batchRecord{}}
}

func (s *Store) nextID() string {
	s.seq++
	return strconv.Itoa(s.seq)
}

func (s *Store) LoadAccountByTenant(ctx context.Context, tenantID string) (*ledger.CreditAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.accounts[tenantID]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	batches := make([]*ledger.CreditTransaction, 0, len(records))
	for _, r := range records {
		batches = append(batches, r.batch)
	}
	return ledger.HydrateAccount(tenantID, time.Now(), batches), nil
}

func (s *Store) CreateAccount(ctx context.Context, account *ledger.CreditAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID()]; exists {
		return nil
	}
	s.accounts[account.ID()] = nil
	s.assignPendingIDsLocked(account)
	return nil
}

// assignPendingIDsLocked gives every pending batch and movement a
// persistent id and appends the batch records to storage, in the
// insertion order the aggregate already observed (§5's ordering
// guarantee). Callers must hold s.mu.
func (s *Store) assignPendingIDsLocked(account *ledger.CreditAccount) {
	for _, batch := range account.PendingBatches() {
		batch.SetID(s.nextID())
		s.accounts[account.ID()] = append(s.accounts[account.ID()], &batchRecord{batch: batch})
	}
	s.assignPendingMovementIDsLocked(account)
}

func (s *Store) assignPendingMovementIDsLocked(account *ledger.CreditAccount) {
	for _, pm := range account.PendingMovements() {
		pm.Batch.AssignMovementID(pm.Index, s.nextID())
	}
}

func (s *Store) PersistAdds(ctx context.Context, account *ledger.CreditAccount) error {
	return s.persist(account, ledger.KindAdd)
}

func (s *Store) PersistConsumes(ctx context.Context, account *ledger.CreditAccount) error {
	return s.persist(account, ledger.KindConsume)
}

func (s *Store) PersistRefunds(ctx context.Context, account *ledger.CreditAccount) error {
	return s.persist(account, ledger.KindRefund)
}

func (s *Store) PersistExpires(ctx context.Context, account *ledger.CreditAccount) error {
	return s.persist(account, ledger.KindExpire)
}

// persist assigns ids to every still-pending batch (ADD and RENEW both
// seed a brand-new batch, so both flow through here when kind is ADD)
// and every pending movement of the requested kind, then records the
// batch if it is new to this tenant's storage.
func (s *Store) persist(account *ledger.CreditAccount, kind ledger.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == ledger.KindAdd {
		for _, batch := range account.PendingBatches() {
			batch.SetID(s.nextID())
			s.accounts[account.ID()] = append(s.accounts[account.ID()], &batchRecord{batch: batch})
		}
	}
	for _, pm := range account.PendingMovements() {
		if pm.Movement.Kind != kind && !(kind == ledger.KindAdd && pm.Movement.Kind == ledger.KindRenew) {
			continue
		}
		pm.Batch.AssignMovementID(pm.Index, s.nextID())
	}
	return nil
}

func (s *Store) LoadOperationHistory(ctx context.Context, tenantID string) (*ledger.OperationHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.accounts[tenantID]
	if !ok {
		return ledger.BuildOperationHistory(nil), nil
	}
	batches := make([]*ledger.CreditTransaction, 0, len(records))
	for _, r := range records {
		batches = append(batches, r.batch)
	}
	return ledger.BuildOperationHistory(batches), nil
}
