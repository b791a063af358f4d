// internal/domain/wallet.go
package domain

import "github.com/shopspring/decimal"

// TransferDirection says which way funds move between the ledger balance and the wallet partner.
type TransferDirection string

const (
	// TransferDeposit moves funds from balance to vudy_balance.
	TransferDeposit TransferDirection = "deposit"
	// TransferWithdraw moves funds from vudy_balance back to balance.
	TransferWithdraw TransferDirection = "withdraw"
)

// Valid reports whether d names a known direction.
func (d TransferDirection) Valid() bool {
	return d == TransferDeposit || d == TransferWithdraw
}

// WalletTransfer describes one balance movement to or from the wallet partner.
type WalletTransfer struct {
	Reference string            `json:"reference"` // Idempotency key shared with the partner
	UserID    int64             `json:"user_id"`
	Direction TransferDirection `json:"direction"`
	Amount    decimal.Decimal   `json:"amount"`
}

// Source returns the balance debited by the transfer.
func (t WalletTransfer) Source(u *User) decimal.Decimal {
	if t.Direction == TransferDeposit {
		return u.Balance
	}
	return u.VudyBalance
}

// Apply moves the amount between the user's balances. The caller checks funds first.
func (t WalletTransfer) Apply(u *User) {
	switch t.Direction {
	case TransferDeposit:
		u.Balance = u.Balance.Sub(t.Amount)
		u.VudyBalance = u.VudyBalance.Add(t.Amount)
	case TransferWithdraw:
		u.VudyBalance = u.VudyBalance.Sub(t.Amount)
		u.Balance = u.Balance.Add(t.Amount)
	}
}
