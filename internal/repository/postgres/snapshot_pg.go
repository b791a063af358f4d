// internal/repository/postgres/snapshot_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/repository"
	"p2p-lending/internal/util"
	"p2p-lending/pkg/db"

	"github.com/jmoiron/sqlx"
)

const (
	// snapshotRowID is the primary key of the single snapshot row.
	snapshotRowID = 1
	// snapshotLockKey identifies the transaction-scoped advisory lock guarding the snapshot.
	snapshotLockKey int64 = 0x4c454447 // "LEDG"
)

// SnapshotRepository implements repository.SnapshotBackend for PostgreSQL.
// The snapshot lives in one JSONB row; every update runs in a transaction that first takes
// an advisory lock, so concurrent writers from any process are serialized.
type SnapshotRepository struct {
	dbBeginner db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
	closer     func() error
}

// NewSnapshotRepository creates a backend on an open connection pool.
func NewSnapshotRepository(conn *sqlx.DB) *SnapshotRepository {
	return NewSnapshotRepositoryWithTx(conn, conn, db.BeginTx, db.CommitTx, db.RollbackTx, conn.Close)
}

// NewSnapshotRepositoryWithTx creates a backend with injected transaction hooks.
func NewSnapshotRepositoryWithTx(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	closer func() error,
) *SnapshotRepository {
	return &SnapshotRepository{
		dbBeginner: dbBeginner,
		dbExecutor: dbExecutor,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
		closer:     closer,
	}
}

// EnsureSchema creates the snapshot table when it does not exist.
func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ledger_snapshots (
		id         SMALLINT PRIMARY KEY,
		document   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := r.dbExecutor.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create ledger_snapshots table: %w", err)
	}
	return nil
}

// Read returns the persisted snapshot, or util.ErrNotFound when the row does not exist.
func (r *SnapshotRepository) Read(ctx context.Context) (*domain.Snapshot, error) {
	return r.read(ctx, r.dbExecutor)
}

func (r *SnapshotRepository) read(ctx context.Context, q repository.DBExecutor) (*domain.Snapshot, error) {
	var document []byte
	query := `SELECT document FROM ledger_snapshots WHERE id = $1`
	if err := q.GetContext(ctx, &document, query, snapshotRowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ledger snapshot: %w", err)
	}
	return repository.DecodeSnapshot(document)
}

// Update locks the snapshot, applies fn and upserts the result in one transaction.
func (r *SnapshotRepository) Update(ctx context.Context, fn repository.UpdateFunc) error {
	txController, err := r.beginTx(ctx, r.dbBeginner)
	if err != nil {
		return fmt.Errorf("update snapshot: failed to begin transaction: %w", err)
	}
	defer r.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("update snapshot: transaction controller does not implement DBExecutor")
	}

	if _, err := txExecutor.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, snapshotLockKey); err != nil {
		return fmt.Errorf("update snapshot: failed to acquire lock: %w", err)
	}

	current, err := r.read(ctx, txExecutor)
	if err != nil && !errors.Is(err, util.ErrNotFound) {
		return fmt.Errorf("update snapshot: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	document, err := repository.EncodeSnapshot(next)
	if err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}

	query := `INSERT INTO ledger_snapshots (id, document, updated_at)
              VALUES ($1, $2::jsonb, $3)
              ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`
	if _, err := txExecutor.ExecContext(ctx, query, snapshotRowID, string(document), time.Now().UTC()); err != nil {
		return fmt.Errorf("update snapshot: failed to write snapshot: %w", err)
	}

	if err := r.commitTx(txController); err != nil {
		return fmt.Errorf("update snapshot: failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *SnapshotRepository) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
