package service

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"github.com/EmanAguilera/FiamBond-sub000/internal/domain"
	"github.com/EmanAguilera/FiamBond-sub000/internal/store"
	"github.com/EmanAguilera/FiamBond-sub000/internal/upload"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var loanOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fiambond_loan_operations_total",
	Help: "Loan lifecycle operations, labeled by action and outcome",
}, []string{"action", "outcome"})

const maxDescriptionLen = 255

// Store is the ledger persistence the engine needs. UpdateLoan must run fn
// and the resulting writes as one all-or-nothing unit against a fresh read of
// the loan.
type Store interface {
	CreateLoan(ctx context.Context, loan *domain.Loan, txns []domain.Transaction) error
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	UpdateLoan(ctx context.Context, id string, fn store.MutateFunc) (*domain.Loan, error)
	ListLoans(ctx context.Context, userID string, familyID *string) ([]domain.Loan, error)
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// Directory resolves users and family membership.
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
	IsFamilyMember(ctx context.Context, familyID, userID string) (bool, error)
}

// Proof is an optional supporting document. Either URL points at an already
// stored file, or Body is uploaded before anything is committed.
type Proof struct {
	URL      string
	Filename string
	Body     io.Reader
}

// Payload carries the per-action arguments of Propose.
type Payload struct {
	Amount domain.Money
	Proof  Proof
}

type CreateLoanInput struct {
	CreditorID  string
	Debtor      domain.Debtor
	FamilyID    *string
	Principal   domain.Money
	Interest    domain.Money
	Description string
	Deadline    *time.Time
	Attachment  Proof
}

// LoanService is the reconciliation engine: it owns every write to a loan's
// status, repaid amount and pending repayment, and mirrors each money movement
// into the parties' ledgers in the same atomic unit.
type LoanService struct {
	store     Store
	directory Directory
	uploader  upload.Uploader
	now       func() time.Time
	newID     func() string
}

type Option func(*LoanService)

func WithUploader(u upload.Uploader) Option {
	return func(s *LoanService) { s.uploader = u }
}

func WithClock(now func() time.Time) Option {
	return func(s *LoanService) { s.now = now }
}

func NewLoanService(s Store, d Directory, opts ...Option) *LoanService {
	svc := &LoanService{
		store:     s,
		directory: d,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateLoan records a new loan and the creditor's expense for the principal.
func (s *LoanService) CreateLoan(ctx context.Context, in CreateLoanInput) (loan *domain.Loan, err error) {
	defer func() { loanOperations.WithLabelValues("create", outcome(err)).Inc() }()

	in.Description = strings.TrimSpace(in.Description)
	debtorName, err := s.validateCreate(ctx, &in)
	if err != nil {
		return nil, err
	}

	attachmentURL, err := s.resolveProof(ctx, in.Attachment)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	loan = &domain.Loan{
		ID:                s.newID(),
		CreditorID:        in.CreditorID,
		Debtor:            in.Debtor,
		FamilyID:          in.FamilyID,
		Description:       in.Description,
		Principal:         in.Principal,
		Interest:          in.Interest,
		TotalOwed:         in.Principal + in.Interest,
		Deadline:          in.Deadline,
		AttachmentURL:     attachmentURL,
		Status:            domain.InitialStatus(in.Debtor),
		RepaymentReceipts: []domain.RepaymentReceipt{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := loan.CheckInvariants(); err != nil {
		return nil, validationf("%v", err)
	}

	label := "Personal loan"
	if in.FamilyID != nil {
		label = "Loan"
	}
	// Interest is not cash that left the creditor; only the principal is an expense.
	expense := s.newTransaction(loan, in.CreditorID, domain.Expense, in.Principal,
		label+" to "+debtorName+": "+loan.Description, attachmentURL, now)

	if err := s.store.CreateLoan(ctx, loan, []domain.Transaction{expense}); err != nil {
		return nil, storeError(err)
	}

	log.Printf("Loan %s created by %s for %s (%s)", loan.ID, loan.CreditorID, loan.TotalOwed, loan.Status)
	return loan, nil
}

// validateCreate checks the input and returns the debtor's display name.
func (s *LoanService) validateCreate(ctx context.Context, in *CreateLoanInput) (string, error) {
	if in.CreditorID == "" {
		return "", wrap(ErrUnauthorized, "missing actor")
	}
	if _, err := s.directory.DisplayName(ctx, in.CreditorID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", wrap(ErrUnauthorized, "unknown user %s", in.CreditorID)
		}
		return "", storeError(err)
	}

	switch {
	case in.Principal <= 0:
		return "", validationf("principal must be positive")
	case in.Interest < 0:
		return "", validationf("interest cannot be negative")
	case in.Interest > math.MaxInt64-in.Principal:
		return "", validationf("amount is too large")
	case in.Description == "":
		return "", validationf("description is required")
	case len(in.Description) > maxDescriptionLen:
		return "", validationf("description exceeds %d characters", maxDescriptionLen)
	}

	var debtorName string
	switch d := in.Debtor.(type) {
	case domain.KnownDebtor:
		if d.UserID == "" {
			return "", validationf("debtor id is required")
		}
		if d.UserID == in.CreditorID {
			return "", validationf("cannot lend to yourself")
		}
		name, err := s.directory.DisplayName(ctx, d.UserID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				return "", validationf("debtor %s is not a registered user", d.UserID)
			}
			return "", storeError(err)
		}
		debtorName = name
	case domain.ExternalDebtor:
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return "", validationf("debtor name is required")
		}
		in.Debtor = d
		debtorName = d.Name
	default:
		return "", validationf("debtor is required")
	}

	if in.FamilyID != nil {
		if *in.FamilyID == "" {
			return "", validationf("family id is empty")
		}
		ok, err := s.directory.IsFamilyMember(ctx, *in.FamilyID, in.CreditorID)
		if err != nil {
			return "", storeError(err)
		}
		if !ok {
			return "", wrap(ErrUnauthorized, "user %s is not a member of family %s", in.CreditorID, *in.FamilyID)
		}
		if d, known := in.Debtor.(domain.KnownDebtor); known {
			ok, err := s.directory.IsFamilyMember(ctx, *in.FamilyID, d.UserID)
			if err != nil {
				return "", storeError(err)
			}
			if !ok {
				return "", validationf("debtor %s is not a member of family %s", d.UserID, *in.FamilyID)
			}
		}
	}
	return debtorName, nil
}

func (s *LoanService) ConfirmReceipt(ctx context.Context, loanID, actorID string) (*domain.Loan, error) {
	return s.Propose(ctx, loanID, domain.ActionConfirmReceipt, actorID, Payload{})
}

func (s *LoanService) SubmitRepayment(ctx context.Context, loanID, actorID string, amount domain.Money, receipt Proof) (*domain.Loan, error) {
	return s.Propose(ctx, loanID, domain.ActionSubmitRepayment, actorID, Payload{Amount: amount, Proof: receipt})
}

func (s *LoanService) ConfirmRepayment(ctx context.Context, loanID, actorID string) (*domain.Loan, error) {
	return s.Propose(ctx, loanID, domain.ActionConfirmRepayment, actorID, Payload{})
}

func (s *LoanService) DeclineRepayment(ctx context.Context, loanID, actorID string) (*domain.Loan, error) {
	return s.Propose(ctx, loanID, domain.ActionDeclineRepayment, actorID, Payload{})
}

func (s *LoanService) RecordRepayment(ctx context.Context, loanID, actorID string, amount domain.Money, receipt Proof) (*domain.Loan, error) {
	return s.Propose(ctx, loanID, domain.ActionRecordRepayment, actorID, Payload{Amount: amount, Proof: receipt})
}

// Propose runs one transition on an existing loan. The loan is re-read and
// re-validated inside the store's atomic scope, so of two racing calls on the
// same loan the loser fails with ErrStateConflict instead of applying twice.
// There are no idempotency keys: a retry after an unacknowledged success
// fails validation rather than double-applying.
func (s *LoanService) Propose(ctx context.Context, loanID string, action domain.Action, actorID string, p Payload) (loan *domain.Loan, err error) {
	defer func() { loanOperations.WithLabelValues(string(action), outcome(err)).Inc() }()

	if actorID == "" {
		return nil, wrap(ErrUnauthorized, "missing actor")
	}

	snapshot, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, storeError(err)
	}
	names := s.partyNames(ctx, snapshot)

	// Dry run on the snapshot so a request that cannot succeed never uploads.
	if _, err := s.apply(snapshot, action, actorID, p.Amount, "", names); err != nil {
		return nil, err
	}

	receiptURL, err := s.resolveProof(ctx, p.Proof)
	if err != nil {
		return nil, err
	}

	loan, err = s.store.UpdateLoan(ctx, loanID, func(current *domain.Loan) ([]domain.Transaction, error) {
		return s.apply(current, action, actorID, p.Amount, receiptURL, names)
	})
	if err != nil {
		return nil, storeError(err)
	}

	log.Printf("Loan %s: %s by %s committed (%s, repaid %s of %s)",
		loan.ID, action, actorID, loan.Status, loan.RepaidAmount, loan.TotalOwed)
	return loan, nil
}

// GetLoan returns a loan to one of its parties.
func (s *LoanService) GetLoan(ctx context.Context, loanID, actorID string) (*domain.Loan, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, storeError(err)
	}
	if loan.RoleOf(actorID) == domain.RoleNone {
		return nil, wrap(ErrUnauthorized, "user %s is not a party to loan %s", actorID, loanID)
	}
	return loan, nil
}

// ListLoansForUser groups the user's loans for presentation.
func (s *LoanService) ListLoansForUser(ctx context.Context, userID string, familyID *string) (*LoanOverview, error) {
	if userID == "" {
		return nil, wrap(ErrUnauthorized, "missing actor")
	}
	loans, err := s.store.ListLoans(ctx, userID, familyID)
	if err != nil {
		return nil, storeError(err)
	}
	return Categorize(userID, loans, s.now()), nil
}

func (s *LoanService) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	if userID == "" {
		return nil, wrap(ErrUnauthorized, "missing actor")
	}
	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	return txns, nil
}

// resolveProof uploads p.Body when present. It always runs before the commit.
func (s *LoanService) resolveProof(ctx context.Context, p Proof) (string, error) {
	if p.Body == nil {
		return p.URL, nil
	}
	if s.uploader == nil {
		return "", wrap(ErrUploadFailed, "file uploads are not configured")
	}
	url, err := s.uploader.Upload(ctx, p.Filename, p.Body)
	if err != nil {
		log.Printf("Upload of %q failed: %v", p.Filename, err)
		return "", wrap(ErrUploadFailed, "%v", err)
	}
	return url, nil
}

type parties struct {
	creditor string
	debtor   string
}

func (s *LoanService) partyNames(ctx context.Context, l *domain.Loan) parties {
	p := parties{creditor: s.displayName(ctx, l.CreditorID)}
	switch d := l.Debtor.(type) {
	case domain.KnownDebtor:
		p.debtor = s.displayName(ctx, d.UserID)
	case domain.ExternalDebtor:
		p.debtor = d.Name
	}
	return p
}

// displayName falls back to the user id when no profile is available.
func (s *LoanService) displayName(ctx context.Context, userID string) string {
	name, err := s.directory.DisplayName(ctx, userID)
	if err != nil || name == "" {
		return userID
	}
	return name
}

func (s *LoanService) newTransaction(l *domain.Loan, userID string, typ domain.TransactionType, amount domain.Money, description, attachmentURL string, now time.Time) domain.Transaction {
	return domain.Transaction{
		ID:            s.newID(),
		UserID:        userID,
		LoanID:        l.ID,
		Type:          typ,
		Amount:        amount,
		Description:   description,
		AttachmentURL: attachmentURL,
		CreatedAt:     now,
	}
}
