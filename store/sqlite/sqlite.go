/*
Package sqlite provides a SQLite-backed implementation of ledger.Repository.

APPEND-ONLY ENFORCEMENT:
  The movements table never sees an UPDATE or DELETE. Corrections arrive
  as new REFUND/EXPIRE movements, exactly as the domain models them.

KEY TABLES:
  batches:    One row per CreditTransaction (a credit grant and its expiry).
  movements:  Immutable ledger of every ADD/CONSUME/EXPIRE/REFUND/RENEW.

CONCURRENCY:
  Single-writer per tenant is enforced with BEGIN IMMEDIATE, which takes
  SQLite's write lock at transaction start rather than at first write,
  so two concurrent mutations against the same tenant serialize instead
  of racing to commit.

WAL MODE:
  Opened with WAL for concurrent readers alongside the single writer.

SEE ALSO:
  - ledger/repository.go: the port this store implements.
  - store/memory/memory.go: in-memory counterpart for tests.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/prepaid/creditengine/ledger"
)

// Store implements ledger.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path. Use
// ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		kind_label TEXT NOT NULL,
		creation_date TEXT NOT NULL,
		expiration_date TEXT NOT NULL,
		contract_service_id TEXT,
		contract_service_creation_date TEXT NOT NULL,
		created_seq INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batches_account
		ON batches(account_id);
	CREATE INDEX IF NOT EXISTS idx_batches_account_seq
		ON batches(account_id, created_seq ASC);
	CREATE INDEX IF NOT EXISTS idx_batches_account_expiration
		ON batches(account_id, expiration_date);

	-- Movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL REFERENCES batches(id),
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		signed_delta TEXT NOT NULL,
		description TEXT,
		target_type TEXT NOT NULL DEFAULT '',
		target_id TEXT NOT NULL DEFAULT '',
		operation_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_batch_seq
		ON movements(batch_id, seq ASC);
	CREATE INDEX IF NOT EXISTS idx_movements_operation
		ON movements(operation_id);
	CREATE INDEX IF NOT EXISTS idx_movements_target
		ON movements(target_type, target_id) WHERE target_id != '';
	CREATE INDEX IF NOT EXISTS idx_movements_kind
		ON movements(kind);

	-- Tracks tenants that have an account even before their first batch
	-- lands, so LoadAccountByTenant can distinguish "no account" from
	-- "account with zero batches" once Expire/Refund run before any Add.
	CREATE TABLE IF NOT EXISTS accounts_seen (
		id TEXT PRIMARY KEY
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadAccountByTenant rebuilds the aggregate from the batches stored for
// tenantID whose expiration_date is today or later, with their
// movements, in insertion order.
func (s *Store) LoadAccountByTenant(ctx context.Context, tenantID string) (*ledger.CreditAccount, error) {
	batches, err := s.loadBatches(ctx, s.db, tenantID, true)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		exists, err := s.accountExists(ctx, s.db, tenantID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ledger.ErrAccountNotFound
		}
	}
	return ledger.HydrateAccount(tenantID, time.Now(), batches), nil
}

func (s *Store) accountExists(ctx context.Context, q queryer, tenantID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM batches WHERE account_id = ?", tenantID).Scan(&count)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts_seen WHERE id = ?", tenantID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateAccount records the tenant in accounts_seen (ignored if already
// there) and persists the account's pending batches and ADD movements.
func (s *Store) CreateAccount(ctx context.Context, account *ledger.CreditAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO accounts_seen (id) VALUES (?)", account.ID()); err != nil {
		return err
	}
	if err := persistPendingBatches(ctx, tx, account); err != nil {
		return err
	}
	if err := persistPendingMovements(ctx, tx, account, ledger.KindAdd); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) PersistAdds(ctx context.Context, account *ledger.CreditAccount) error {
	return s.persist(ctx, account, ledger.KindAdd)
}

func (s *Store) PersistConsumes(ctx context.Context, account *ledger.CreditAccount) error {
	return s.persist(ctx, account, ledger.KindConsume)
}

func (s *Store) PersistRefunds(ctx context.Context, account *ledger.CreditAccount) error {
	return s.persist(ctx, account, ledger.KindRefund)
}

func (s *Store) PersistExpires(ctx context.Context, account *ledger.CreditAccount) error {
	return s.persist(ctx, account, ledger.KindExpire)
}

// persist opens a BEGIN IMMEDIATE transaction, which SQLite grants the
// write lock for immediately rather than at the first write statement,
// serializing concurrent mutators of the same tenant per §5.
func (s *Store) persist(ctx context.Context, account *ledger.CreditAccount, kind ledger.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := beginImmediate(ctx, s.db)
	if err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}
	defer tx.Rollback()

	if kind == ledger.KindAdd {
		if err := persistPendingBatches(ctx, tx, account); err != nil {
			return err
		}
	}
	if err := persistPendingMovements(ctx, tx, account, kind); err != nil {
		return err
	}
	return tx.Commit()
}

func beginImmediate(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		// BeginTx above already issued BEGIN IMMEDIATE (the DSN sets
		// _txlock=immediate), so SQLite rejects this nested BEGIN; that
		// error is not fatal.
	}
	return tx, nil
}

func persistPendingBatches(ctx context.Context, tx *sql.Tx, account *ledger.CreditAccount) error {
	for _, batch := range account.PendingBatches() {
		var seq int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(created_seq), -1) + 1 FROM batches WHERE account_id = ?", account.ID(),
		).Scan(&seq); err != nil {
			return fmt.Errorf("next created_seq: %w", err)
		}

		id := fmt.Sprintf("batch_%s_%d", account.ID(), seq)
		batch.SetID(id)
		var contractServiceID sql.NullString
		if cs := batch.ContractServiceID(); cs != nil {
			contractServiceID = sql.NullString{String: *cs, Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO batches
			(id, account_id, kind_label, creation_date, expiration_date, contract_service_id, contract_service_creation_date, created_seq, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			batch.ID(), account.ID(), batch.KindLabel(),
			batch.CreationDate().Format(time.RFC3339),
			batch.ExpirationDate().Format(time.RFC3339),
			contractServiceID,
			batch.ContractServiceCreationDate().Format(time.RFC3339),
			seq,
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
	}
	return nil
}

func persistPendingMovements(ctx context.Context, tx *sql.Tx, account *ledger.CreditAccount, kind ledger.Kind) error {
	for _, pm := range account.PendingMovements() {
		if pm.Movement.Kind != kind && !(kind == ledger.KindAdd && pm.Movement.Kind == ledger.KindRenew) {
			continue
		}
		var seq int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), -1) + 1 FROM movements WHERE batch_id = ?", pm.BatchID,
		).Scan(&seq); err != nil {
			return fmt.Errorf("next seq: %w", err)
		}

		id := fmt.Sprintf("mv_%s_%d", pm.BatchID, seq)
		m := pm.Movement
		_, err := tx.ExecContext(ctx, `
			INSERT INTO movements
			(id, batch_id, seq, kind, amount, signed_delta, description, target_type, target_id, operation_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, pm.BatchID, seq, string(m.Kind), m.Amount.String(), m.SignedDelta.String(),
			m.Description, m.Target.Type, m.Target.ID, m.OperationID,
			m.CreatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert movement: %w", err)
		}
		pm.Batch.AssignMovementID(pm.Index, id)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loadBatches loads every batch stored for tenantID, in insertion order
// (created_seq). When onlyUnexpired is true it restricts the result to
// batches whose expiration_date has not yet passed as of today, the
// filter the live aggregate needs for hydration (§6); historical
// reconstruction passes false to see every batch ever written,
// expired or not.
func (s *Store) loadBatches(ctx context.Context, db queryer, tenantID string, onlyUnexpired bool) ([]*ledger.CreditTransaction, error) {
	query := `
		SELECT id, kind_label, creation_date, contract_service_id, contract_service_creation_date
		FROM batches WHERE account_id = ?`
	args := []any{tenantID}
	if onlyUnexpired {
		query += " AND expiration_date >= ?"
		today := time.Now().UTC()
		today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		args = append(args, today.Format(time.RFC3339))
	}
	query += " ORDER BY created_seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []*ledger.CreditTransaction
	for rows.Next() {
		var id, kindLabel, creationDate, contractServiceCreationDate string
		var contractServiceID sql.NullString
		if err := rows.Scan(&id, &kindLabel, &creationDate, &contractServiceID, &contractServiceCreationDate); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}

		created, _ := time.Parse(time.RFC3339, creationDate)
		csCreated, _ := time.Parse(time.RFC3339, contractServiceCreationDate)
		var csID *string
		if contractServiceID.Valid {
			v := contractServiceID.String
			csID = &v
		}

		movements, err := s.loadMovements(ctx, id)
		if err != nil {
			return nil, err
		}
		batches = append(batches, ledger.Hydrate(id, tenantID, kindLabel, created, csID, csCreated, movements))
	}
	return batches, rows.Err()
}

func (s *Store) loadMovements(ctx context.Context, batchID string) ([]ledger.Movement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, amount, signed_delta, description, target_type, target_id, operation_id, created_at
		FROM movements WHERE batch_id = ? ORDER BY seq ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var out []ledger.Movement
	for rows.Next() {
		var id, kind, amount, signedDelta, description, targetType, targetID, operationID, createdAt string
		if err := rows.Scan(&id, &kind, &amount, &signedDelta, &description, &targetType, &targetID, &operationID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		delta, err := decimal.NewFromString(signedDelta)
		if err != nil {
			return nil, fmt.Errorf("parse signed_delta: %w", err)
		}
		at, _ := time.Parse(time.RFC3339, createdAt)

		out = append(out, ledger.Movement{
			ID:          id,
			Kind:        ledger.Kind(kind),
			Amount:      amt,
			SignedDelta: delta,
			Description: description,
			Target:      ledger.Target{Type: targetType, ID: targetID},
			OperationID: operationID,
			CreatedAt:   at,
		})
	}
	return out, rows.Err()
}

// LoadOperationHistory groups every stored movement by operation_id and
// kind, for the read-side supplemental use case.
func (s *Store) LoadOperationHistory(ctx context.Context, tenantID string) (*ledger.OperationHistory, error) {
	batches, err := s.loadBatches(ctx, s.db, tenantID, false)
	if err != nil {
		return nil, err
	}
	return ledger.BuildOperationHistory(batches), nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
