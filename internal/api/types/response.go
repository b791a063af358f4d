// internal/api/types/response.go
package types

import (
	"github.com/shopspring/decimal"

	"p2p-lending/internal/domain"
)

// ErrorResponse is the body of every failed request. The numeric context fields are set only
// for the error kinds they belong to.
type ErrorResponse struct {
	Error       string           `json:"error"`
	CreditLimit *decimal.Decimal `json:"credit_limit,omitempty"` // amount exceeds credit_limit
	Balance     *decimal.Decimal `json:"balance,omitempty"`      // insufficient funds
	Reason      string           `json:"reason,omitempty"`       // identity verification failed
}

// LoanResponse is returned by a successful loan request.
type LoanResponse struct {
	OK   bool         `json:"ok"`
	Loan *domain.Loan `json:"loan"`
}

// RepaymentResponse is returned by a successful repayment.
type RepaymentResponse struct {
	OK   bool         `json:"ok"`
	User *domain.User `json:"user"`
	Loan *domain.Loan `json:"loan"`
}

// UserResponse is returned by operations that only change a user.
type UserResponse struct {
	OK   bool         `json:"ok"`
	User *domain.User `json:"user"`
}

// ListResponse defines a generic structure for list API responses.
// T represents the type of data contained in the 'Data' slice.
type ListResponse[T any] struct {
	Data       []T `json:"data"`
	TotalCount int `json:"total_count"`
}

// LoansResponse lists a borrower's loans.
type LoansResponse = ListResponse[domain.Loan]

// StatusResponse is returned by the health endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}
