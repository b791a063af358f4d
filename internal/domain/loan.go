// internal/domain/loan.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan. paid is terminal.
type LoanStatus string

const (
	LoanStatusActive LoanStatus = "active"
	LoanStatusPaid   LoanStatus = "paid"
)

// Loan represents one origination-to-settlement lending event.
type Loan struct {
	ID         int64           `json:"id"`                  // Sequential from 1, never reused
	BorrowerID int64           `json:"borrower_id"`         // Foreign reference to User.ID
	InvestorID int64           `json:"investor_id"`         // Foreign reference to User.ID
	Amount     decimal.Decimal `json:"amount"`              // Fixed at origination
	Status     LoanStatus      `json:"status"`              // active -> paid, exactly once
	CreatedAt  time.Time       `json:"created_at,omitzero"` // Origination time
	PaidAt     *time.Time      `json:"paid_at,omitempty"`   // Settlement time, nil while active
}

// NewLoan creates an active loan. The id is allocated by the caller from the snapshot counter.
func NewLoan(id, borrowerID, investorID int64, amount decimal.Decimal) Loan {
	return Loan{
		ID:         id,
		BorrowerID: borrowerID,
		InvestorID: investorID,
		Amount:     amount,
		Status:     LoanStatusActive,
		CreatedAt:  time.Now().UTC(),
	}
}

// IsPaid reports whether the loan reached its terminal state.
func (l *Loan) IsPaid() bool {
	return l.Status == LoanStatusPaid
}

// Settle moves an active loan to paid. It returns false, leaving the loan untouched,
// when the loan is already paid.
func (l *Loan) Settle(at time.Time) bool {
	if l.IsPaid() {
		return false
	}
	paidAt := at.UTC()
	l.Status = LoanStatusPaid
	l.PaidAt = &paidAt
	return true
}
