// internal/repository/snapshot_store_test.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/util"
)

func TestSnapshotStoreLoad(t *testing.T) {
	t.Run("SeedsOnce", func(t *testing.T) {
		ctx := context.Background()
		backend := NewMemoryBackend()
		store := NewSnapshotStore(backend, nil)

		first, err := store.Load(ctx)
		require.NoError(t, err)
		second, err := store.Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, backend.Writes(), "seed must be persisted exactly once")
	})

	t.Run("CustomSeed", func(t *testing.T) {
		store := NewSnapshotStoreWithSeed(NewMemoryBackend(), func() *domain.Snapshot {
			return &domain.Snapshot{Users: []domain.User{{ID: 10, Role: domain.RoleInvestor}}, NextLoanID: 1}
		}, nil)

		user, err := store.FindUserByID(context.Background(), 10)
		require.NoError(t, err)
		assert.True(t, user.IsInvestor())
	})
}

func TestSnapshotStoreSave(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(NewMemoryBackend(), nil)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	snap.UserByID(1).Balance = decimal.NewFromInt(1234)
	require.NoError(t, store.Save(ctx, snap))

	reloaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1234).Equal(reloaded.UserByID(1).Balance))

	assert.ErrorIs(t, store.Save(ctx, nil), util.ErrInvalidInput)
}

func TestSnapshotStoreUpdate(t *testing.T) {
	t.Run("ErrorDiscardsMutation", func(t *testing.T) {
		ctx := context.Background()
		backend := NewMemoryBackend()
		store := NewSnapshotStore(backend, nil)
		_, err := store.Load(ctx)
		require.NoError(t, err)

		boom := errors.New("boom")
		err = store.Update(ctx, func(snap *domain.Snapshot) error {
			snap.UserByID(1).Balance = decimal.Zero
			snap.AllocateLoanID()
			return boom
		})
		assert.ErrorIs(t, err, boom)

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(5000).Equal(snap.UserByID(1).Balance))
		assert.Equal(t, int64(1), snap.NextLoanID)
		assert.Equal(t, 1, backend.Writes())
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		store := NewSnapshotStore(NewMemoryBackend(), nil)

		err := store.Update(ctx, func(snap *domain.Snapshot) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSnapshotStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(NewMemoryBackend(), nil)

	user, err := store.FindUserByID(ctx, 1)
	require.NoError(t, err)
	user.Balance = decimal.Zero

	again, err := store.FindUserByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5000).Equal(again.Balance))
}

func TestSnapshotStoreUpsertAndCounter(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(NewMemoryBackend(), nil)

	id, err := store.NextLoanID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	loan := domain.NewLoan(id, 2, 1, decimal.NewFromInt(10))
	require.NoError(t, store.UpsertLoan(ctx, &loan))

	found, err := store.FindLoanByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, found.Status)

	next, err := store.NextLoanID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)

	assert.ErrorIs(t, store.UpsertUser(ctx, nil), util.ErrInvalidInput)
	assert.ErrorIs(t, store.UpsertLoan(ctx, nil), util.ErrInvalidInput)
}

func TestCodecRoundTripKeepsLayout(t *testing.T) {
	snap := domain.SeedSnapshot()
	snap.PutLoan(domain.NewLoan(2, 2, 1, decimal.NewFromInt(5)))
	snap.PutLoan(domain.NewLoan(1, 2, 1, decimal.NewFromInt(7)))

	data, err := EncodeSnapshot(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"users\": [")

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, int64(1), decoded.Loans[0].ID)
	assert.Equal(t, int64(3), decoded.NextLoanID)

	_, err = DecodeSnapshot([]byte("{not json"))
	assert.Error(t, err)
}

func TestCodecWritesMoneyAsNumbers(t *testing.T) {
	data, err := EncodeSnapshot(domain.SeedSnapshot())
	require.NoError(t, err)

	var raw struct {
		Users []map[string]interface{} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.NotEmpty(t, raw.Users)
	assert.Equal(t, float64(5000), raw.Users[0]["balance"])
	assert.Equal(t, 3.6, raw.Users[0]["rate"])
	assert.Equal(t, float64(40), raw.Users[1]["credit_limit"])
}
