// internal/repository/postgres/snapshot_pg_test.go
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/repository"
	"p2p-lending/internal/util"
	"p2p-lending/pkg/db"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockTxController is a mock implementation of db.TxController that also satisfies
// repository.DBExecutor by embedding MockDBExecutor.
type MockTxController struct {
	mock.Mock
	MockDBExecutor
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

func queryContains(fragment string) interface{} {
	return mock.MatchedBy(func(query string) bool { return strings.Contains(query, fragment) })
}

func newMockedRepository(reader *MockDBExecutor, tx *MockTxController) *SnapshotRepository {
	return NewSnapshotRepositoryWithTx(
		new(MockDBBeginner),
		reader,
		func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			return tx, nil
		},
		func(_ db.TxController) error {
			return tx.Commit()
		},
		func(_ db.TxController) {
			_ = tx.Rollback()
		},
		nil,
	)
}

func TestSnapshotRepositoryRead(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		ctx := context.Background()
		reader := new(MockDBExecutor)
		repo := newMockedRepository(reader, new(MockTxController))

		reader.On("GetContext", ctx, mock.Anything, queryContains("FROM ledger_snapshots"), mock.Anything).Return(sql.ErrNoRows).Once()

		snap, err := repo.Read(ctx)
		assert.ErrorIs(t, err, util.ErrNotFound)
		assert.Nil(t, snap)
		reader.AssertExpectations(t)
	})

	t.Run("DecodesDocument", func(t *testing.T) {
		ctx := context.Background()
		reader := new(MockDBExecutor)
		repo := newMockedRepository(reader, new(MockTxController))

		document, err := repository.EncodeSnapshot(domain.SeedSnapshot())
		require.NoError(t, err)
		reader.On("GetContext", ctx, mock.Anything, queryContains("FROM ledger_snapshots"), mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(1).(*[]byte) = document
			}).Return(nil).Once()

		snap, err := repo.Read(ctx)
		require.NoError(t, err)
		assert.Len(t, snap.Users, 2)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		ctx := context.Background()
		reader := new(MockDBExecutor)
		repo := newMockedRepository(reader, new(MockTxController))

		reader.On("GetContext", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

		_, err := repo.Read(ctx)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, util.ErrNotFound)
		assert.Contains(t, err.Error(), "failed to get ledger snapshot")
	})
}

func TestSnapshotRepositoryUpdate(t *testing.T) {
	t.Run("SeedsMissingRow", func(t *testing.T) {
		ctx := context.Background()
		tx := new(MockTxController)
		repo := newMockedRepository(new(MockDBExecutor), tx)

		tx.MockDBExecutor.On("ExecContext", ctx, queryContains("pg_advisory_xact_lock"), mock.Anything).Return(driver.RowsAffected(0), nil).Once()
		tx.MockDBExecutor.On("GetContext", ctx, mock.Anything, queryContains("FROM ledger_snapshots"), mock.Anything).Return(sql.ErrNoRows).Once()
		tx.MockDBExecutor.On("ExecContext", ctx, queryContains("INSERT INTO ledger_snapshots"), mock.Anything).Return(driver.RowsAffected(1), nil).Once()
		tx.On("Commit").Return(nil).Once()
		tx.On("Rollback").Return(sql.ErrTxDone).Maybe()

		var received *domain.Snapshot
		err := repo.Update(ctx, func(current *domain.Snapshot) (*domain.Snapshot, error) {
			received = current
			return domain.SeedSnapshot(), nil
		})

		require.NoError(t, err)
		assert.Nil(t, received, "a missing row is reported as a nil snapshot")
		mock.AssertExpectationsForObjects(t, tx, &tx.MockDBExecutor)
	})

	t.Run("RejectedUpdateIsRolledBack", func(t *testing.T) {
		ctx := context.Background()
		tx := new(MockTxController)
		repo := newMockedRepository(new(MockDBExecutor), tx)

		document, err := repository.EncodeSnapshot(domain.SeedSnapshot())
		require.NoError(t, err)

		tx.MockDBExecutor.On("ExecContext", ctx, queryContains("pg_advisory_xact_lock"), mock.Anything).Return(driver.RowsAffected(0), nil).Once()
		tx.MockDBExecutor.On("GetContext", ctx, mock.Anything, queryContains("FROM ledger_snapshots"), mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(1).(*[]byte) = document
			}).Return(nil).Once()
		tx.On("Rollback").Return(nil).Once()

		err = repo.Update(ctx, func(current *domain.Snapshot) (*domain.Snapshot, error) {
			require.NotNil(t, current)
			assert.True(t, decimal.NewFromInt(5000).Equal(current.Investor().Balance))
			return nil, util.ErrInsufficientFunds
		})

		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		tx.AssertNotCalled(t, "Commit")
		tx.MockDBExecutor.AssertNotCalled(t, "ExecContext", ctx, queryContains("INSERT INTO ledger_snapshots"), mock.Anything)
		mock.AssertExpectationsForObjects(t, tx, &tx.MockDBExecutor)
	})

	t.Run("LockFailure", func(t *testing.T) {
		ctx := context.Background()
		tx := new(MockTxController)
		repo := newMockedRepository(new(MockDBExecutor), tx)

		tx.MockDBExecutor.On("ExecContext", ctx, queryContains("pg_advisory_xact_lock"), mock.Anything).Return(driver.RowsAffected(0), errors.New("lock timeout")).Once()
		tx.On("Rollback").Return(nil).Once()

		called := false
		err := repo.Update(ctx, func(current *domain.Snapshot) (*domain.Snapshot, error) {
			called = true
			return current, nil
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to acquire lock")
		assert.False(t, called)
		tx.AssertNotCalled(t, "Commit")
	})
}

// TestSnapshotRepositoryIntegration runs against a real PostgreSQL when LEDGER_TEST_PG_DSN is set.
func TestSnapshotRepositoryIntegration(t *testing.T) {
	dsn := os.Getenv("LEDGER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	conn, err := db.ConnectPostgres(dsn)
	require.NoError(t, err)
	repo := NewSnapshotRepository(conn)
	defer repo.Close()

	require.NoError(t, repo.EnsureSchema(ctx))
	_, err = conn.ExecContext(ctx, `DELETE FROM ledger_snapshots`)
	require.NoError(t, err)

	store := repository.NewSnapshotStore(repo, nil)

	const callers = 10
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.NextLoanID(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(callers+1), snap.NextLoanID)
}
