// internal/repository/ledger_repo.go
package repository

import (
	"context"

	"p2p-lending/internal/domain"
)

// UpdateFunc receives the current persisted snapshot (nil when nothing is persisted yet) and
// returns the snapshot that replaces it. Returning an error aborts the update without writing.
type UpdateFunc func(current *domain.Snapshot) (*domain.Snapshot, error)

// SnapshotBackend persists the whole ledger snapshot as one document.
type SnapshotBackend interface {
	// Read returns the persisted snapshot, or util.ErrNotFound if nothing has been persisted.
	Read(ctx context.Context) (*domain.Snapshot, error)
	// Update runs fn inside the backend's exclusive section and atomically replaces the
	// persisted snapshot with its result.
	Update(ctx context.Context, fn UpdateFunc) error
	// Close releases the backend's resources.
	Close() error
}

// LedgerRepository is the record store every ledger operation goes through.
type LedgerRepository interface {
	// Load returns the full current state, seeding and persisting it on first use.
	Load(ctx context.Context) (*domain.Snapshot, error)
	// Save overwrites the entire persisted state.
	Save(ctx context.Context, snapshot *domain.Snapshot) error
	// Update loads the snapshot, applies fn and persists the result as one serialized
	// read-modify-write. When fn returns an error nothing is written.
	Update(ctx context.Context, fn func(snapshot *domain.Snapshot) error) error

	FindUserByID(ctx context.Context, id int64) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindLoanByID(ctx context.Context, id int64) (*domain.Loan, error)
	ListLoansByBorrower(ctx context.Context, borrowerID int64) ([]domain.Loan, error)
	UpsertUser(ctx context.Context, user *domain.User) error
	UpsertLoan(ctx context.Context, loan *domain.Loan) error
	// NextLoanID returns the counter value and persists the increment in the same write.
	NextLoanID(ctx context.Context) (int64, error)
}
