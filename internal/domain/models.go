package domain

import (
	"fmt"
	"time"
)

// Money is an amount in minor currency units (cents).
type Money int64

// String renders the amount in major units with two decimals, e.g. "12.50".
func (m Money) String() string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, m/100, m%100)
}

type LoanStatus string

const (
	StatusPendingConfirmation LoanStatus = "pending_confirmation"
	StatusOutstanding         LoanStatus = "outstanding"
	StatusRepaid              LoanStatus = "repaid"
)

type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// PendingRepayment is a debtor's repayment claim awaiting creditor confirmation.
type PendingRepayment struct {
	Amount      Money     `json:"amount"`
	SubmittedBy string    `json:"submitted_by"`
	SubmittedAt time.Time `json:"submitted_at"`
	ReceiptURL  string    `json:"receipt_url,omitempty"`
}

// RepaymentReceipt is one entry of a loan's append-only repayment log.
type RepaymentReceipt struct {
	URL        string    `json:"url,omitempty"`
	Amount     Money     `json:"amount"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Loan represents money owed by a debtor to a creditor.
// TotalOwed is always Principal + Interest.
type Loan struct {
	ID                string
	CreditorID        string
	Debtor            Debtor
	FamilyID          *string
	Description       string
	Principal         Money
	Interest          Money
	TotalOwed         Money
	RepaidAmount      Money
	Deadline          *time.Time
	AttachmentURL     string
	Status            LoanStatus
	PendingRepayment  *PendingRepayment
	RepaymentReceipts []RepaymentReceipt
	CreatedAt         time.Time
	ConfirmedAt       *time.Time
	UpdatedAt         time.Time
}

// Transaction is an immutable income/expense record against one user's balance.
type Transaction struct {
	ID            string
	UserID        string
	FamilyID      *string
	LoanID        string
	Type          TransactionType
	Amount        Money
	Description   string
	AttachmentURL string
	CreatedAt     time.Time
}
