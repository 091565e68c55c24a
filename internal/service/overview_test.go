package service

import (
	"testing"
	"time"

	"github.com/EmanAguilera/FiamBond-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
)

func overviewLoan(id, creditor string, debtor domain.Debtor, status domain.LoanStatus, createdAt time.Time) domain.Loan {
	l := domain.Loan{
		ID:         id,
		CreditorID: creditor,
		Debtor:     debtor,
		Principal:  10000,
		TotalOwed:  10000,
		Status:     status,
		CreatedAt:  createdAt,
	}
	if status == domain.StatusRepaid {
		l.RepaidAmount = l.TotalOwed
	}
	return l
}

func ids(loans []domain.Loan) []string {
	out := make([]string, 0, len(loans))
	for _, l := range loans {
		out = append(out, l.ID)
	}
	return out
}

func TestCategorize(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	day := func(n int) time.Time { return now.AddDate(0, 0, -n) }
	past := now.AddDate(0, 0, -3)
	bob := domain.KnownDebtor{UserID: "bob"}
	alice := domain.KnownDebtor{UserID: "alice"}

	lentAwaitingConfirm := overviewLoan("l1", "alice", bob, domain.StatusPendingConfirmation, day(10))
	lentWithClaim := overviewLoan("l2", "alice", bob, domain.StatusOutstanding, day(9))
	lentWithClaim.RepaidAmount = 2500
	lentWithClaim.PendingRepayment = &domain.PendingRepayment{Amount: 1000, SubmittedBy: "bob"}
	lentExternal := overviewLoan("l3", "alice", domain.ExternalDebtor{Name: "Dan"}, domain.StatusOutstanding, day(8))
	lentExternal.Deadline = &past
	borrowedUnconfirmed := overviewLoan("l4", "carol", alice, domain.StatusPendingConfirmation, day(7))
	borrowedOutstanding := overviewLoan("l5", "carol", alice, domain.StatusOutstanding, day(6))
	borrowedOutstanding.Deadline = &past
	repaid := overviewLoan("l6", "alice", bob, domain.StatusRepaid, day(5))
	repaid.Deadline = &past
	unrelated := overviewLoan("l7", "carol", bob, domain.StatusOutstanding, day(4))

	loans := []domain.Loan{lentAwaitingConfirm, lentWithClaim, lentExternal, borrowedUnconfirmed, borrowedOutstanding, repaid, unrelated}
	o := Categorize("alice", loans, now)

	assert.Equal(t, []string{"l4", "l2"}, ids(o.ActionRequired))
	assert.Equal(t, []string{"l3", "l1"}, ids(o.Lent))
	assert.Equal(t, []string{"l5"}, ids(o.Borrowed))
	assert.Equal(t, []string{"l6"}, ids(o.Repaid))

	assert.Equal(t, domain.Money(10000+7500+10000), o.Summary.Receivable)
	assert.Equal(t, domain.Money(20000), o.Summary.Payable)
	assert.Equal(t, 2, o.Summary.Overdue)
}

func TestCategorize_EmptyAndTies(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	o := Categorize("alice", nil, now)
	assert.NotNil(t, o.ActionRequired)
	assert.NotNil(t, o.Lent)
	assert.NotNil(t, o.Borrowed)
	assert.NotNil(t, o.Repaid)
	assert.Zero(t, o.Summary)

	bob := domain.KnownDebtor{UserID: "bob"}
	loans := []domain.Loan{
		overviewLoan("b", "alice", bob, domain.StatusOutstanding, now),
		overviewLoan("a", "alice", bob, domain.StatusOutstanding, now),
	}
	o = Categorize("alice", loans, now)
	assert.Equal(t, []string{"a", "b"}, ids(o.Lent))
	assert.Equal(t, "b", loans[0].ID, "input is not reordered")
}

func TestNeedsAction(t *testing.T) {
	l := overviewLoan("l1", "alice", domain.KnownDebtor{UserID: "bob"}, domain.StatusPendingConfirmation, time.Time{})
	assert.True(t, NeedsAction(&l, "bob"))
	assert.False(t, NeedsAction(&l, "alice"))

	l.Status = domain.StatusOutstanding
	assert.False(t, NeedsAction(&l, "bob"))
	l.PendingRepayment = &domain.PendingRepayment{Amount: 1}
	assert.True(t, NeedsAction(&l, "alice"))
	assert.False(t, NeedsAction(&l, "bob"))
	assert.False(t, NeedsAction(&l, "carol"))
}
