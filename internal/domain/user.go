// internal/domain/user.go
package domain

import "github.com/shopspring/decimal"

// Role distinguishes the funding side of the pool from the borrowing side.
type Role string

const (
	RoleInvestor Role = "investor"
	RoleBorrower Role = "borrower"
)

// User represents a participant in the lending pool.
type User struct {
	ID                 int64           `json:"id"`                  // Unique, immutable
	Email              string          `json:"email"`               // Unique, used for lookup
	Role               Role            `json:"type"`                // investor or borrower
	Balance            decimal.Decimal `json:"balance"`             // Funds available to lend (investor) or to park
	Rate               decimal.Decimal `json:"rate"`                // Investor's advertised rate, informational
	VudyBalance        decimal.Decimal `json:"vudy_balance"`        // Funds parked with the wallet partner
	CreditLimit        decimal.Decimal `json:"credit_limit"`        // Upper bound on a single loan request
	SuccessfulPayments int             `json:"successful_payments"` // Count of settled loans
	KYCVerified        bool            `json:"kyc_verified"`        // Identity confirmed by the verification partner
}

// IsInvestor reports whether the user supplies lendable funds.
func (u *User) IsInvestor() bool {
	return u.Role == RoleInvestor
}

// IsBorrower reports whether the user may request loans.
func (u *User) IsBorrower() bool {
	return u.Role == RoleBorrower
}

// RecordSuccessfulPayment counts one more settled loan and grows the credit limit accordingly.
func (u *User) RecordSuccessfulPayment() {
	u.SuccessfulPayments++
	u.CreditLimit = NextCreditLimit(u.CreditLimit, u.SuccessfulPayments)
}
