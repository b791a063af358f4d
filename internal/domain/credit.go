// internal/domain/credit.go
package domain

import "github.com/shopspring/decimal"

// CreditLimitCap bounds every borrower's credit limit.
var CreditLimitCap = decimal.NewFromInt(500)

var (
	creditGrowthBase = decimal.NewFromInt(15)
	creditGrowthStep = decimal.NewFromInt(5)
)

// NextCreditLimit returns the limit after a repayment:
// min(current + 15 + 5*paymentsAfter, CreditLimitCap), where paymentsAfter already counts
// the repayment being rewarded.
func NextCreditLimit(current decimal.Decimal, paymentsAfter int) decimal.Decimal {
	growth := creditGrowthBase.Add(creditGrowthStep.Mul(decimal.NewFromInt(int64(paymentsAfter))))
	return decimal.Min(current.Add(growth), CreditLimitCap)
}
