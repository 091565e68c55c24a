package store

import (
	"context"
	"sort"
	"sync"

	"github.com/EmanAguilera/FiamBond-sub000/internal/domain"
)

// Memory is an in-process ledger store. All writes go through one mutex, which
// gives the same all-or-nothing and per-loan serialization guarantees as the
// Postgres store.
type Memory struct {
	mu           sync.RWMutex
	loans        map[string]*domain.Loan
	transactions []domain.Transaction
	users        map[string]string
	families     map[string]map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		loans:    make(map[string]*domain.Loan),
		users:    make(map[string]string),
		families: make(map[string]map[string]bool),
	}
}

// AddUser registers a user and their display name.
func (m *Memory) AddUser(id, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = displayName
}

// AddFamilyMember records userID as a member of familyID.
func (m *Memory) AddFamilyMember(familyID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.families[familyID] == nil {
		m.families[familyID] = make(map[string]bool)
	}
	m.families[familyID][userID] = true
}

func (m *Memory) DisplayName(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.users[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return name, nil
}

func (m *Memory) IsFamilyMember(ctx context.Context, familyID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.families[familyID][userID], nil
}

func (m *Memory) CreateLoan(ctx context.Context, loan *domain.Loan, txns []domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[loan.ID] = loan.Clone()
	m.transactions = append(m.transactions, txns...)
	return nil
}

func (m *Memory) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loan, ok := m.loans[id]
	if !ok {
		return nil, ErrLoanNotFound
	}
	return loan.Clone(), nil
}

// UpdateLoan applies fn to a copy of the loan and publishes the copy and the
// returned transactions only if fn succeeds.
func (m *Memory) UpdateLoan(ctx context.Context, id string, fn MutateFunc) (*domain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.loans[id]
	if !ok {
		return nil, ErrLoanNotFound
	}
	next := current.Clone()
	txns, err := fn(next)
	if err != nil {
		return nil, err
	}

	m.loans[id] = next
	m.transactions = append(m.transactions, txns...)
	return next.Clone(), nil
}

// ListLoans returns loans where userID is creditor or debtor, newest first.
func (m *Memory) ListLoans(ctx context.Context, userID string, familyID *string) ([]domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Loan
	for _, l := range m.loans {
		if l.RoleOf(userID) == domain.RoleNone {
			continue
		}
		if familyID != nil && (l.FamilyID == nil || *l.FamilyID != *familyID) {
			continue
		}
		out = append(out, *l.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListTransactions returns the user's transactions, newest first.
func (m *Memory) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Transaction
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].UserID == userID {
			out = append(out, m.transactions[i])
		}
	}
	return out, nil
}
