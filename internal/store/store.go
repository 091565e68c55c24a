package store

import (
	"errors"

	"github.com/EmanAguilera/FiamBond-sub000/internal/domain"
)

var (
	ErrLoanNotFound = errors.New("loan not found")
	ErrUserNotFound = errors.New("user not found")
	// ErrConflict means a concurrent writer won the race for the same loan.
	ErrConflict = errors.New("concurrent update")
)

// MutateFunc receives the current loan inside the store's atomic scope. It may
// modify the loan in place and returns the transactions to insert alongside
// the update. A non-nil error aborts the unit and is returned unchanged.
type MutateFunc func(loan *domain.Loan) ([]domain.Transaction, error)
