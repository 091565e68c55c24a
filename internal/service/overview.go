package service

import (
	"sort"
	"time"

	"github.com/EmanAguilera/FiamBond-sub000/internal/domain"
)

// LoanOverview is a user's loans grouped by what they need from that user.
// Each group is ordered newest first.
type LoanOverview struct {
	ActionRequired []domain.Loan
	Lent           []domain.Loan
	Borrowed       []domain.Loan
	Repaid         []domain.Loan
	Summary        Summary
}

// Summary totals the non-terminal loans of an overview.
type Summary struct {
	Receivable domain.Money
	Payable    domain.Money
	Overdue    int
}

// NeedsAction reports whether userID is the one who must act next on l: the
// debtor of an unconfirmed loan, or the creditor of a pending repayment.
func NeedsAction(l *domain.Loan, userID string) bool {
	switch l.RoleOf(userID) {
	case domain.RoleDebtor:
		return l.Status == domain.StatusPendingConfirmation
	case domain.RoleCreditor:
		return l.PendingRepayment != nil
	}
	return false
}

// Categorize partitions loans for userID. Loans the user is not a party to
// are ignored.
func Categorize(userID string, loans []domain.Loan, now time.Time) *LoanOverview {
	sorted := append([]domain.Loan(nil), loans...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	o := &LoanOverview{
		ActionRequired: []domain.Loan{},
		Lent:           []domain.Loan{},
		Borrowed:       []domain.Loan{},
		Repaid:         []domain.Loan{},
	}
	for i := range sorted {
		l := &sorted[i]
		role := l.RoleOf(userID)
		if role == domain.RoleNone {
			continue
		}
		if l.IsTerminal() {
			o.Repaid = append(o.Repaid, *l)
			continue
		}

		switch role {
		case domain.RoleCreditor:
			o.Summary.Receivable += l.Outstanding()
		case domain.RoleDebtor:
			o.Summary.Payable += l.Outstanding()
		}
		if l.IsOverdue(now) {
			o.Summary.Overdue++
		}

		switch {
		case NeedsAction(l, userID):
			o.ActionRequired = append(o.ActionRequired, *l)
		case role == domain.RoleCreditor:
			o.Lent = append(o.Lent, *l)
		default:
			o.Borrowed = append(o.Borrowed, *l)
		}
	}
	return o
}
