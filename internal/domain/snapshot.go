// internal/domain/snapshot.go
package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Money is written as JSON numbers, the layout data.json documents and API clients already use.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Snapshot is the full persisted ledger state, read and written as one unit.
type Snapshot struct {
	Users      []User `json:"users"`
	Loans      []Loan `json:"loans"`
	NextLoanID int64  `json:"next_loan_id"`
}

// SeedSnapshot returns the state a fresh store starts from: one investor and one borrower.
func SeedSnapshot() *Snapshot {
	return &Snapshot{
		Users: []User{
			{
				ID:          1,
				Email:       "investor@test.com",
				Role:        RoleInvestor,
				Balance:     decimal.NewFromInt(5000),
				Rate:        decimal.RequireFromString("3.6"),
				VudyBalance: decimal.Zero,
				CreditLimit: decimal.Zero,
			},
			{
				ID:          2,
				Email:       "borrower@test.com",
				Role:        RoleBorrower,
				Balance:     decimal.Zero,
				Rate:        decimal.Zero,
				VudyBalance: decimal.Zero,
				CreditLimit: decimal.NewFromInt(40),
			},
		},
		Loans:      []Loan{},
		NextLoanID: 1,
	}
}

// Clone returns a deep copy so callers never share state with the store.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Users:      make([]User, len(s.Users)),
		Loans:      make([]Loan, len(s.Loans)),
		NextLoanID: s.NextLoanID,
	}
	copy(out.Users, s.Users)
	for i, loan := range s.Loans {
		if loan.PaidAt != nil {
			paidAt := *loan.PaidAt
			loan.PaidAt = &paidAt
		}
		out.Loans[i] = loan
	}
	return out
}

// Normalize fixes up documents written by older versions: nil collections, a missing
// counter, and ordering by id.
func (s *Snapshot) Normalize() {
	if s.Users == nil {
		s.Users = []User{}
	}
	if s.Loans == nil {
		s.Loans = []Loan{}
	}
	sort.SliceStable(s.Users, func(i, j int) bool { return s.Users[i].ID < s.Users[j].ID })
	sort.SliceStable(s.Loans, func(i, j int) bool { return s.Loans[i].ID < s.Loans[j].ID })

	var maxID int64
	for _, loan := range s.Loans {
		if loan.ID > maxID {
			maxID = loan.ID
		}
	}
	if s.NextLoanID <= maxID {
		s.NextLoanID = maxID + 1
	}
}

// UserByID returns a pointer into the snapshot, or nil.
func (s *Snapshot) UserByID(id int64) *User {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return &s.Users[i]
		}
	}
	return nil
}

// UserByEmail returns a pointer into the snapshot, or nil.
func (s *Snapshot) UserByEmail(email string) *User {
	for i := range s.Users {
		if s.Users[i].Email == email {
			return &s.Users[i]
		}
	}
	return nil
}

// Investor resolves the funding user: the lowest-id user holding the investor role.
func (s *Snapshot) Investor() *User {
	var investor *User
	for i := range s.Users {
		if s.Users[i].IsInvestor() && (investor == nil || s.Users[i].ID < investor.ID) {
			investor = &s.Users[i]
		}
	}
	return investor
}

// LoanByID returns a pointer into the snapshot, or nil.
func (s *Snapshot) LoanByID(id int64) *Loan {
	for i := range s.Loans {
		if s.Loans[i].ID == id {
			return &s.Loans[i]
		}
	}
	return nil
}

// LoansByBorrower returns copies of a borrower's loans in id order.
func (s *Snapshot) LoansByBorrower(borrowerID int64) []Loan {
	loans := []Loan{}
	for _, loan := range s.Loans {
		if loan.BorrowerID == borrowerID {
			loans = append(loans, loan)
		}
	}
	return loans
}

// PutUser replaces the user with the same id or appends it.
func (s *Snapshot) PutUser(user User) {
	if existing := s.UserByID(user.ID); existing != nil {
		*existing = user
		return
	}
	s.Users = append(s.Users, user)
}

// PutLoan replaces the loan with the same id or appends it.
func (s *Snapshot) PutLoan(loan Loan) {
	if existing := s.LoanByID(loan.ID); existing != nil {
		*existing = loan
		return
	}
	s.Loans = append(s.Loans, loan)
}

// AllocateLoanID returns the current counter value and advances it.
func (s *Snapshot) AllocateLoanID() int64 {
	if s.NextLoanID < 1 {
		s.NextLoanID = 1
	}
	id := s.NextLoanID
	s.NextLoanID++
	return id
}
