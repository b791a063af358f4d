// internal/service/ledger_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/repository"
	"p2p-lending/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerService defines the ledger operations exposed to the request façade.
type LedgerService interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListLoans(ctx context.Context, borrowerID int64) ([]domain.Loan, error)
	OriginateLoan(ctx context.Context, borrowerID int64, amount decimal.Decimal) (*domain.Loan, error)
	RepayLoan(ctx context.Context, borrowerID, loanID int64) (*domain.User, *domain.Loan, error)
	VerifyIdentity(ctx context.Context, userID int64, documentID string) (*domain.User, error)
	Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.User, error)
	Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.User, error)
}

// WalletPartner confirms balance movements with the external wallet partner.
type WalletPartner interface {
	ConfirmTransfer(ctx context.Context, transfer domain.WalletTransfer) error
}

// ledgerService implements the LedgerService interface.
type ledgerService struct {
	store   repository.LedgerRepository
	gate    *VerificationGate
	partner WalletPartner // nil: wallet transfers are purely local
	logger  *slog.Logger
	now     func() time.Time
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(
	store repository.LedgerRepository,
	gate *VerificationGate,
	partner WalletPartner,
	logger *slog.Logger,
) LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	if gate == nil {
		gate = NewVerificationGate(false, nil, logger)
	}
	return &ledgerService{
		store:   store,
		gate:    gate,
		partner: partner,
		logger:  logger,
		now:     time.Now,
	}
}

// GetUserByID looks a user up by id.
func (s *ledgerService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail looks a user up by email.
func (s *ledgerService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, util.ErrInvalidInput
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// ListLoans returns a borrower's loans in id order.
func (s *ledgerService) ListLoans(ctx context.Context, borrowerID int64) ([]domain.Loan, error) {
	if _, err := s.store.FindUserByID(ctx, borrowerID); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	loans, err := s.store.ListLoansByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("list loans: failed to read loans for user %d: %w", borrowerID, err)
	}
	return loans, nil
}

// OriginateLoan lends amount from the investor's balance to the borrower. Validation and the
// balance debit happen in one snapshot update, so concurrent originations cannot overdraw.
func (s *ledgerService) OriginateLoan(ctx context.Context, borrowerID int64, amount decimal.Decimal) (*domain.Loan, error) {
	if !amount.IsPositive() {
		return nil, util.ErrInvalidInput
	}

	var created domain.Loan
	err := s.store.Update(ctx, func(snap *domain.Snapshot) error {
		borrower := snap.UserByID(borrowerID)
		if borrower == nil {
			return fmt.Errorf("id %d: %w", borrowerID, util.ErrUserNotFound)
		}
		if !borrower.IsBorrower() {
			return util.ErrInvalidRole
		}
		if s.gate.IsRequired() && !borrower.KYCVerified {
			return util.ErrVerificationRequired
		}
		if amount.GreaterThan(borrower.CreditLimit) {
			return util.NewLimitExceeded(amount, borrower.CreditLimit)
		}

		investor := snap.Investor()
		if investor == nil {
			return util.NewInsufficientFunds(amount, decimal.Zero)
		}
		if investor.Balance.LessThan(amount) {
			return util.NewInsufficientFunds(amount, investor.Balance)
		}

		investor.Balance = investor.Balance.Sub(amount)
		created = domain.NewLoan(snap.AllocateLoanID(), borrower.ID, investor.ID, amount)
		snap.PutLoan(created)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("originate loan: %w", err)
	}

	s.logger.Info("Loan originated",
		"loan_id", created.ID,
		"borrower_id", created.BorrowerID,
		"investor_id", created.InvestorID,
		"amount", created.Amount.String(),
	)
	return &created, nil
}

// RepayLoan settles an active loan and grows the borrower's credit limit.
func (s *ledgerService) RepayLoan(ctx context.Context, borrowerID, loanID int64) (*domain.User, *domain.Loan, error) {
	var (
		updatedUser domain.User
		updatedLoan domain.Loan
	)
	err := s.store.Update(ctx, func(snap *domain.Snapshot) error {
		borrower := snap.UserByID(borrowerID)
		if borrower == nil {
			return fmt.Errorf("id %d: %w", borrowerID, util.ErrUserNotFound)
		}
		loan := snap.LoanByID(loanID)
		if loan == nil {
			return fmt.Errorf("id %d: %w", loanID, util.ErrLoanNotFound)
		}
		if loan.BorrowerID != borrowerID {
			return util.ErrUnauthorized
		}
		if !loan.Settle(s.now()) {
			return util.ErrAlreadySettled
		}
		borrower.RecordSuccessfulPayment()

		updatedUser = *borrower
		updatedLoan = *loan
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("repay loan: %w", err)
	}

	s.logger.Info("Loan repaid",
		"loan_id", updatedLoan.ID,
		"borrower_id", updatedUser.ID,
		"successful_payments", updatedUser.SuccessfulPayments,
		"credit_limit", updatedUser.CreditLimit.String(),
	)
	return &updatedUser, &updatedLoan, nil
}

// VerifyIdentity asks the verification gate about a document and persists a positive decision.
func (s *ledgerService) VerifyIdentity(ctx context.Context, userID int64, documentID string) (*domain.User, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, util.ErrInvalidInput
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("verify identity: %w", err)
	}
	if user.KYCVerified {
		return user, nil
	}

	// The collaborator call happens outside the critical section.
	verified, reason, err := s.gate.Verify(ctx, user, documentID)
	if err != nil {
		return nil, fmt.Errorf("verify identity: %w", err)
	}
	if !verified {
		return nil, &util.VerificationError{Reason: reason}
	}

	var updated domain.User
	err = s.store.Update(ctx, func(snap *domain.Snapshot) error {
		current := snap.UserByID(userID)
		if current == nil {
			return fmt.Errorf("id %d: %w", userID, util.ErrUserNotFound)
		}
		current.KYCVerified = true
		updated = *current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify identity: %w", err)
	}

	s.logger.Info("Identity verified", "user_id", userID)
	return &updated, nil
}

// Deposit parks funds with the wallet partner: balance -> vudy_balance.
func (s *ledgerService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.User, error) {
	user, err := s.transfer(ctx, userID, domain.TransferDeposit, amount)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	return user, nil
}

// Withdraw brings parked funds back: vudy_balance -> balance.
func (s *ledgerService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.User, error) {
	user, err := s.transfer(ctx, userID, domain.TransferWithdraw, amount)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	return user, nil
}

// transfer confirms the movement with the partner before taking the store lock, then
// re-validates against the freshest snapshot before mutating it.
func (s *ledgerService) transfer(ctx context.Context, userID int64, direction domain.TransferDirection, amount decimal.Decimal) (*domain.User, error) {
	if !amount.IsPositive() {
		return nil, util.ErrInvalidInput
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	transfer := domain.WalletTransfer{
		Reference: uuid.NewString(),
		UserID:    userID,
		Direction: direction,
		Amount:    amount,
	}
	if source := transfer.Source(user); source.LessThan(amount) {
		return nil, util.NewInsufficientFunds(amount, source)
	}

	if s.partner != nil {
		if err := s.partner.ConfirmTransfer(ctx, transfer); err != nil {
			s.logger.Warn("Wallet partner did not confirm transfer",
				"reference", transfer.Reference,
				"user_id", userID,
				"direction", string(direction),
				"error", err,
			)
			if !errors.Is(err, util.ErrUpstreamFailure) {
				err = fmt.Errorf("%w: %w", util.ErrUpstreamFailure, err)
			}
			return nil, err
		}
	}

	var updated domain.User
	err = s.store.Update(ctx, func(snap *domain.Snapshot) error {
		current := snap.UserByID(userID)
		if current == nil {
			return fmt.Errorf("id %d: %w", userID, util.ErrUserNotFound)
		}
		if source := transfer.Source(current); source.LessThan(amount) {
			return util.NewInsufficientFunds(amount, source)
		}
		transfer.Apply(current)
		updated = *current
		return nil
	})
	if err != nil {
		if s.partner != nil {
			s.logger.Error("Wallet transfer confirmed by partner but not applied locally",
				"reference", transfer.Reference,
				"user_id", userID,
				"error", err,
			)
		}
		return nil, err
	}

	s.logger.Info("Wallet transfer applied",
		"reference", transfer.Reference,
		"user_id", userID,
		"direction", string(direction),
		"amount", amount.String(),
	)
	return &updated, nil
}
