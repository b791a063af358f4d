// internal/repository/snapshot_store.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/util"
)

// SnapshotStore implements LedgerRepository on top of any SnapshotBackend.
// All writes go through one mutex, so the load-validate-mutate-persist cycle of each
// operation is serialized inside the process; backends extend the exclusion across processes.
type SnapshotStore struct {
	backend SnapshotBackend
	seed    func() *domain.Snapshot
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewSnapshotStore creates a store that seeds empty backends with domain.SeedSnapshot.
func NewSnapshotStore(backend SnapshotBackend, logger *slog.Logger) *SnapshotStore {
	return NewSnapshotStoreWithSeed(backend, domain.SeedSnapshot, logger)
}

// NewSnapshotStoreWithSeed creates a store with a custom seed.
func NewSnapshotStoreWithSeed(backend SnapshotBackend, seed func() *domain.Snapshot, logger *slog.Logger) *SnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{backend: backend, seed: seed, logger: logger}
}

// Load returns the current snapshot. A missing snapshot is seeded and persisted first.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := s.backend.Read(ctx)
	if err == nil {
		snap.Normalize()
		return snap, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	// Seed under the write lock; another caller may have seeded in between.
	var seeded *domain.Snapshot
	err = s.update(ctx, func(current *domain.Snapshot) error {
		seeded = current.Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot: failed to seed: %w", err)
	}
	return seeded, nil
}

// Save overwrites the entire persisted snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("save snapshot: %w", util.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := snapshot.Clone()
	replacement.Normalize()
	err := s.backend.Update(ctx, func(_ *domain.Snapshot) (*domain.Snapshot, error) {
		return replacement, nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Update runs fn against the freshest snapshot inside the global critical section and
// persists the mutated snapshot when fn succeeds. fn must not call back into the store.
func (s *SnapshotStore) Update(ctx context.Context, fn func(snapshot *domain.Snapshot) error) error {
	return s.update(ctx, fn)
}

func (s *SnapshotStore) update(ctx context.Context, fn func(snapshot *domain.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.Update(ctx, func(current *domain.Snapshot) (*domain.Snapshot, error) {
		if current == nil {
			current = s.seed()
			s.logger.Info("Seeding empty ledger store", "users", len(current.Users))
		}
		current.Normalize()
		if err := fn(current); err != nil {
			return nil, err
		}
		return current, nil
	})
}

// FindUserByID returns a copy of the user, or util.ErrNotFound.
func (s *SnapshotStore) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	user := snap.UserByID(id)
	if user == nil {
		return nil, fmt.Errorf("id %d: %w", id, util.ErrUserNotFound)
	}
	found := *user
	return &found, nil
}

// FindUserByEmail returns a copy of the user, or util.ErrNotFound.
func (s *SnapshotStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	user := snap.UserByEmail(email)
	if user == nil {
		return nil, fmt.Errorf("email %q: %w", email, util.ErrUserNotFound)
	}
	found := *user
	return &found, nil
}

// FindLoanByID returns a copy of the loan, or util.ErrNotFound.
func (s *SnapshotStore) FindLoanByID(ctx context.Context, id int64) (*domain.Loan, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	loan := snap.LoanByID(id)
	if loan == nil {
		return nil, fmt.Errorf("id %d: %w", id, util.ErrLoanNotFound)
	}
	found := *loan
	return &found, nil
}

// ListLoansByBorrower returns the borrower's loans in id order.
func (s *SnapshotStore) ListLoansByBorrower(ctx context.Context, borrowerID int64) ([]domain.Loan, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.LoansByBorrower(borrowerID), nil
}

// UpsertUser replaces the user with the same id, or appends it, then persists.
func (s *SnapshotStore) UpsertUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return fmt.Errorf("upsert user: %w", util.ErrInvalidInput)
	}
	return s.update(ctx, func(snap *domain.Snapshot) error {
		snap.PutUser(*user)
		return nil
	})
}

// UpsertLoan replaces the loan with the same id, or appends it, then persists.
func (s *SnapshotStore) UpsertLoan(ctx context.Context, loan *domain.Loan) error {
	if loan == nil {
		return fmt.Errorf("upsert loan: %w", util.ErrInvalidInput)
	}
	return s.update(ctx, func(snap *domain.Snapshot) error {
		snap.PutLoan(*loan)
		return nil
	})
}

// NextLoanID allocates a loan id; the increment is persisted before it is returned.
func (s *SnapshotStore) NextLoanID(ctx context.Context) (int64, error) {
	var id int64
	err := s.update(ctx, func(snap *domain.Snapshot) error {
		id = snap.AllocateLoanID()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("next loan id: %w", err)
	}
	return id, nil
}

// Close releases the backend.
func (s *SnapshotStore) Close() error {
	return s.backend.Close()
}
