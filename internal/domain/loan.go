package domain

import (
	"errors"
	"fmt"
	"time"
)

// Action names a user-triggered transition on an existing loan.
type Action string

const (
	ActionConfirmReceipt   Action = "confirm_receipt"
	ActionSubmitRepayment  Action = "submit_repayment"
	ActionConfirmRepayment Action = "confirm_repayment"
	ActionDeclineRepayment Action = "decline_repayment"
	ActionRecordRepayment  Action = "record_repayment"
)

// Debtor is the borrowing side of a loan. It is either a KnownDebtor with an
// account in the system or an ExternalDebtor identified only by name, and each
// variant defines which actions its loans accept.
type Debtor interface {
	Actions() []Action
	isDebtor()
}

// KnownDebtor is a debtor with a resolvable user account.
type KnownDebtor struct {
	UserID string
}

// ExternalDebtor is a person outside the system. Only the creditor can act on
// such loans.
type ExternalDebtor struct {
	Name string
}

func (KnownDebtor) Actions() []Action {
	return []Action{
		ActionConfirmReceipt,
		ActionSubmitRepayment,
		ActionConfirmRepayment,
		ActionDeclineRepayment,
		ActionRecordRepayment,
	}
}

func (ExternalDebtor) Actions() []Action {
	return []Action{ActionRecordRepayment}
}

func (KnownDebtor) isDebtor()    {}
func (ExternalDebtor) isDebtor() {}

// Role is a user's side of a particular loan.
type Role int

const (
	RoleNone Role = iota
	RoleCreditor
	RoleDebtor
)

func (r Role) String() string {
	switch r {
	case RoleCreditor:
		return "creditor"
	case RoleDebtor:
		return "debtor"
	default:
		return "none"
	}
}

// InitialStatus is the status a new loan starts in for the given debtor.
func InitialStatus(d Debtor) LoanStatus {
	if _, ok := d.(KnownDebtor); ok {
		return StatusPendingConfirmation
	}
	return StatusOutstanding
}

// DebtorUserID returns the debtor's account id when the debtor is known.
func (l *Loan) DebtorUserID() (string, bool) {
	if d, ok := l.Debtor.(KnownDebtor); ok {
		return d.UserID, true
	}
	return "", false
}

// RoleOf reports which side of the loan userID is on.
func (l *Loan) RoleOf(userID string) Role {
	if userID == "" {
		return RoleNone
	}
	if userID == l.CreditorID {
		return RoleCreditor
	}
	if id, ok := l.DebtorUserID(); ok && id == userID {
		return RoleDebtor
	}
	return RoleNone
}

// Supports reports whether the loan's debtor variant defines action.
func (l *Loan) Supports(action Action) bool {
	if l.Debtor == nil {
		return false
	}
	for _, a := range l.Debtor.Actions() {
		if a == action {
			return true
		}
	}
	return false
}

// Outstanding is the amount still owed.
func (l *Loan) Outstanding() Money {
	return l.TotalOwed - l.RepaidAmount
}

func (l *Loan) IsTerminal() bool {
	return l.Status == StatusRepaid
}

// IsOverdue reports whether a non-terminal loan is past its deadline. The
// deadline is a date, so a loan is still on time for the whole due day.
func (l *Loan) IsOverdue(now time.Time) bool {
	return !l.IsTerminal() && l.Deadline != nil && !now.Before(l.Deadline.AddDate(0, 0, 1))
}

// Settle moves the loan to repaid once the full amount has been repaid.
func (l *Loan) Settle() {
	if l.RepaidAmount >= l.TotalOwed {
		l.Status = StatusRepaid
	}
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	c := *l
	if l.FamilyID != nil {
		f := *l.FamilyID
		c.FamilyID = &f
	}
	if l.Deadline != nil {
		d := *l.Deadline
		c.Deadline = &d
	}
	if l.ConfirmedAt != nil {
		t := *l.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if l.PendingRepayment != nil {
		p := *l.PendingRepayment
		c.PendingRepayment = &p
	}
	if l.RepaymentReceipts != nil {
		c.RepaymentReceipts = append([]RepaymentReceipt(nil), l.RepaymentReceipts...)
	}
	return &c
}

// CheckInvariants returns an error describing the first broken loan invariant.
func (l *Loan) CheckInvariants() error {
	switch {
	case l.Debtor == nil:
		return errors.New("loan has no debtor")
	case l.Principal <= 0:
		return fmt.Errorf("principal %d is not positive", l.Principal)
	case l.Interest < 0:
		return fmt.Errorf("interest %d is negative", l.Interest)
	case l.TotalOwed != l.Principal+l.Interest:
		return fmt.Errorf("total owed %d does not equal principal %d + interest %d", l.TotalOwed, l.Principal, l.Interest)
	case l.RepaidAmount < 0 || l.RepaidAmount > l.TotalOwed:
		return fmt.Errorf("repaid amount %d outside [0, %d]", l.RepaidAmount, l.TotalOwed)
	case (l.Status == StatusRepaid) != (l.RepaidAmount >= l.TotalOwed):
		return fmt.Errorf("status %s inconsistent with repaid %d of %d", l.Status, l.RepaidAmount, l.TotalOwed)
	case l.PendingRepayment != nil && l.Status != StatusOutstanding:
		return fmt.Errorf("pending repayment on %s loan", l.Status)
	}
	if d, ok := l.Debtor.(KnownDebtor); ok && d.UserID == l.CreditorID {
		return errors.New("creditor and debtor are the same user")
	}
	return nil
}
