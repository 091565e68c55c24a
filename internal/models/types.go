package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/EmanAguilera/FiamBond-sub000/internal/domain"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

var (
	ErrAmountPrecision = errors.New("amount has more than two decimal places")
	ErrAmountRange     = errors.New("amount is out of range")
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ParseMoney converts a major-unit decimal ("12.50") to minor units. Sign is
// preserved; positivity is a business rule checked by the engine.
func ParseMoney(d decimal.Decimal) (domain.Money, error) {
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrAmountPrecision, d)
	}
	if cents.Abs().GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("%w: %s", ErrAmountRange, d)
	}
	return domain.Money(cents.IntPart()), nil
}

// FormatMoney renders minor units as a major-unit decimal string.
func FormatMoney(m domain.Money) string {
	return decimal.New(int64(m), -2).StringFixed(2)
}

// CreateLoanRequest is the payload for a new loan. Exactly one of DebtorID and
// DebtorName is set.
type CreateLoanRequest struct {
	DebtorID      string          `json:"debtor_id" validate:"required_without=DebtorName,excluded_with=DebtorName"`
	DebtorName    string          `json:"debtor_name" validate:"omitempty,max=100"`
	FamilyID      *string         `json:"family_id" validate:"omitempty,min=1"`
	Principal     decimal.Decimal `json:"principal"`
	Interest      decimal.Decimal `json:"interest"`
	Description   string          `json:"description" validate:"required,max=255"`
	Deadline      string          `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	AttachmentURL string          `json:"attachment_url" validate:"omitempty,url"`
}

// Debtor returns the debtor variant the request names.
func (r *CreateLoanRequest) Debtor() domain.Debtor {
	if r.DebtorID != "" {
		return domain.KnownDebtor{UserID: r.DebtorID}
	}
	return domain.ExternalDebtor{Name: r.DebtorName}
}

// DeadlineTime parses the optional deadline as a UTC date.
func (r *CreateLoanRequest) DeadlineTime() (*time.Time, error) {
	if r.Deadline == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, r.Deadline)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RepaymentRequest is the payload for submitting or recording a repayment.
type RepaymentRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	ReceiptURL string          `json:"receipt_url" validate:"omitempty,url"`
}

type PendingRepaymentResponse struct {
	Amount      string    `json:"amount"`
	SubmittedBy string    `json:"submitted_by"`
	SubmittedAt time.Time `json:"submitted_at"`
	ReceiptURL  string    `json:"receipt_url,omitempty"`
}

type ReceiptResponse struct {
	URL        string    `json:"url,omitempty"`
	Amount     string    `json:"amount"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LoanResponse is the canonical loan representation.
type LoanResponse struct {
	ID                string                    `json:"id"`
	CreditorID        string                    `json:"creditor_id"`
	DebtorID          string                    `json:"debtor_id,omitempty"`
	DebtorName        string                    `json:"debtor_name,omitempty"`
	FamilyID          *string                   `json:"family_id,omitempty"`
	Description       string                    `json:"description"`
	Principal         string                    `json:"principal"`
	Interest          string                    `json:"interest"`
	TotalOwed         string                    `json:"total_owed"`
	RepaidAmount      string                    `json:"repaid_amount"`
	Outstanding       string                    `json:"outstanding"`
	Deadline          string                    `json:"deadline,omitempty"`
	Overdue           bool                      `json:"overdue"`
	AttachmentURL     string                    `json:"attachment_url,omitempty"`
	Status            domain.LoanStatus         `json:"status"`
	PendingRepayment  *PendingRepaymentResponse `json:"pending_repayment"`
	RepaymentReceipts []ReceiptResponse         `json:"repayment_receipts"`
	CreatedAt         time.Time                 `json:"created_at"`
	ConfirmedAt       *time.Time                `json:"confirmed_at,omitempty"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

func NewLoanResponse(l *domain.Loan, now time.Time) LoanResponse {
	resp := LoanResponse{
		ID:                l.ID,
		CreditorID:        l.CreditorID,
		FamilyID:          l.FamilyID,
		Description:       l.Description,
		Principal:         FormatMoney(l.Principal),
		Interest:          FormatMoney(l.Interest),
		TotalOwed:         FormatMoney(l.TotalOwed),
		RepaidAmount:      FormatMoney(l.RepaidAmount),
		Outstanding:       FormatMoney(l.Outstanding()),
		Overdue:           l.IsOverdue(now),
		AttachmentURL:     l.AttachmentURL,
		Status:            l.Status,
		RepaymentReceipts: make([]ReceiptResponse, 0, len(l.RepaymentReceipts)),
		CreatedAt:         l.CreatedAt,
		ConfirmedAt:       l.ConfirmedAt,
		UpdatedAt:         l.UpdatedAt,
	}
	switch d := l.Debtor.(type) {
	case domain.KnownDebtor:
		resp.DebtorID = d.UserID
	case domain.ExternalDebtor:
		resp.DebtorName = d.Name
	}
	if l.Deadline != nil {
		resp.Deadline = l.Deadline.Format(DateLayout)
	}
	if p := l.PendingRepayment; p != nil {
		resp.PendingRepayment = &PendingRepaymentResponse{
			Amount:      FormatMoney(p.Amount),
			SubmittedBy: p.SubmittedBy,
			SubmittedAt: p.SubmittedAt,
			ReceiptURL:  p.ReceiptURL,
		}
	}
	for _, r := range l.RepaymentReceipts {
		resp.RepaymentReceipts = append(resp.RepaymentReceipts, ReceiptResponse{
			URL:        r.URL,
			Amount:     FormatMoney(r.Amount),
			RecordedAt: r.RecordedAt,
		})
	}
	return resp
}

func NewLoanResponses(loans []domain.Loan, now time.Time) []LoanResponse {
	out := make([]LoanResponse, 0, len(loans))
	for i := range loans {
		out = append(out, NewLoanResponse(&loans[i], now))
	}
	return out
}

type SummaryResponse struct {
	Receivable string `json:"receivable"`
	Payable    string `json:"payable"`
	Overdue    int    `json:"overdue"`
}

// OverviewResponse groups a user's loans by what they need from the user.
type OverviewResponse struct {
	ActionRequired []LoanResponse  `json:"action_required"`
	Lent           []LoanResponse  `json:"lent"`
	Borrowed       []LoanResponse  `json:"borrowed"`
	Repaid         []LoanResponse  `json:"repaid"`
	Summary        SummaryResponse `json:"summary"`
}

type TransactionResponse struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"user_id"`
	FamilyID      *string                `json:"family_id,omitempty"`
	LoanID        string                 `json:"loan_id"`
	Type          domain.TransactionType `json:"type"`
	Amount        string                 `json:"amount"`
	Description   string                 `json:"description"`
	AttachmentURL string                 `json:"attachment_url,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

func NewTransactionResponses(txns []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, TransactionResponse{
			ID:            t.ID,
			UserID:        t.UserID,
			FamilyID:      t.FamilyID,
			LoanID:        t.LoanID,
			Type:          t.Type,
			Amount:        FormatMoney(t.Amount),
			Description:   t.Description,
			AttachmentURL: t.AttachmentURL,
			CreatedAt:     t.CreatedAt,
		})
	}
	return out
}
