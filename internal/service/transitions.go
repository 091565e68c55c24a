package service

import (
	"fmt"
	"time"

	"github.com/EmanAguilera/FiamBond-sub000/internal/domain"
)

// transition is the working set of one state machine step.
type transition struct {
	svc        *LoanService
	loan       *domain.Loan
	actorID    string
	amount     domain.Money
	receiptURL string
	names      parties
	now        time.Time
}

type step struct {
	actor domain.Role
	run   func(t *transition) ([]domain.Transaction, error)
}

var steps = map[domain.Action]step{
	domain.ActionConfirmReceipt:   {actor: domain.RoleDebtor, run: confirmReceipt},
	domain.ActionSubmitRepayment:  {actor: domain.RoleDebtor, run: submitRepayment},
	domain.ActionConfirmRepayment: {actor: domain.RoleCreditor, run: confirmRepayment},
	domain.ActionDeclineRepayment: {actor: domain.RoleCreditor, run: declineRepayment},
	domain.ActionRecordRepayment:  {actor: domain.RoleCreditor, run: recordRepayment},
}

// apply validates and performs action on l in place and returns the ledger
// transactions that mirror it. On error l must be discarded.
func (s *LoanService) apply(l *domain.Loan, action domain.Action, actorID string, amount domain.Money, receiptURL string, names parties) ([]domain.Transaction, error) {
	st, ok := steps[action]
	if !ok {
		return nil, validationf("unknown action %q", action)
	}

	role := l.RoleOf(actorID)
	if role == domain.RoleNone {
		return nil, wrap(ErrUnauthorized, "user %s is not a party to loan %s", actorID, l.ID)
	}
	if role != st.actor {
		return nil, wrap(ErrUnauthorized, "%s must be done by the %s, user %s is the %s", action, st.actor, actorID, role)
	}
	if !l.Supports(action) {
		return nil, validationf("%s is not available for loans to external debtors", action)
	}
	if l.IsTerminal() {
		return nil, conflictf("loan %s is already repaid", l.ID)
	}

	t := &transition{
		svc:        s,
		loan:       l,
		actorID:    actorID,
		amount:     amount,
		receiptURL: receiptURL,
		names:      names,
		now:        s.now().UTC(),
	}
	txns, err := st.run(t)
	if err != nil {
		return nil, err
	}

	l.UpdatedAt = t.now
	if err := l.CheckInvariants(); err != nil {
		return nil, conflictf("loan %s: %v", l.ID, err)
	}
	return txns, nil
}

func confirmReceipt(t *transition) ([]domain.Transaction, error) {
	l := t.loan
	if l.Status != domain.StatusPendingConfirmation {
		return nil, conflictf("loan %s is %s, not awaiting receipt confirmation", l.ID, l.Status)
	}
	l.Status = domain.StatusOutstanding
	confirmedAt := t.now
	l.ConfirmedAt = &confirmedAt

	// The debtor's liability is the full owed amount, interest included.
	return []domain.Transaction{
		t.record(t.actorID, domain.Income, l.TotalOwed, "Loan funds received from "+t.names.creditor, ""),
	}, nil
}

func submitRepayment(t *transition) ([]domain.Transaction, error) {
	l := t.loan
	if err := t.requireOutstanding(); err != nil {
		return nil, err
	}
	if err := t.checkAmount(); err != nil {
		return nil, err
	}
	l.PendingRepayment = &domain.PendingRepayment{
		Amount:      t.amount,
		SubmittedBy: t.actorID,
		SubmittedAt: t.now,
		ReceiptURL:  t.receiptURL,
	}

	// The debtor's cash leaves on submission, before the creditor confirms.
	return []domain.Transaction{
		t.record(t.actorID, domain.Expense, t.amount, "Repayment submitted to "+t.names.creditor, t.receiptURL),
	}, nil
}

func confirmRepayment(t *transition) ([]domain.Transaction, error) {
	l := t.loan
	pending := l.PendingRepayment
	if pending == nil {
		return nil, conflictf("loan %s has no pending repayment", l.ID)
	}
	if pending.Amount > l.Outstanding() {
		return nil, conflictf("pending repayment %s exceeds outstanding balance %s", pending.Amount, l.Outstanding())
	}

	l.RepaidAmount += pending.Amount
	l.RepaymentReceipts = append(l.RepaymentReceipts, domain.RepaymentReceipt{
		URL:        pending.ReceiptURL,
		Amount:     pending.Amount,
		RecordedAt: t.now,
	})
	l.PendingRepayment = nil
	l.Settle()

	return []domain.Transaction{
		t.record(t.actorID, domain.Income, pending.Amount, "Repayment confirmed from "+t.names.debtor, pending.ReceiptURL),
	}, nil
}

// declineRepayment drops a pending claim and refunds the debtor's submission
// expense with an offsetting income.
func declineRepayment(t *transition) ([]domain.Transaction, error) {
	l := t.loan
	pending := l.PendingRepayment
	if pending == nil {
		return nil, conflictf("loan %s has no pending repayment", l.ID)
	}
	l.PendingRepayment = nil

	return []domain.Transaction{
		t.record(pending.SubmittedBy, domain.Income, pending.Amount, "Repayment declined by "+t.names.creditor, pending.ReceiptURL),
	}, nil
}

// recordRepayment is the creditor recording money received directly. When the
// debtor has an account the payment is mirrored out of their balance too.
func recordRepayment(t *transition) ([]domain.Transaction, error) {
	l := t.loan
	if err := t.requireOutstanding(); err != nil {
		return nil, err
	}
	if err := t.checkAmount(); err != nil {
		return nil, err
	}

	l.RepaidAmount += t.amount
	l.RepaymentReceipts = append(l.RepaymentReceipts, domain.RepaymentReceipt{
		URL:        t.receiptURL,
		Amount:     t.amount,
		RecordedAt: t.now,
	})
	l.Settle()

	txns := []domain.Transaction{
		t.record(t.actorID, domain.Income, t.amount, "Repayment received from "+t.names.debtor, t.receiptURL),
	}
	if debtorID, ok := l.DebtorUserID(); ok {
		txns = append(txns,
			t.record(debtorID, domain.Expense, t.amount, "Repayment sent to "+t.names.creditor, t.receiptURL))
	}
	return txns, nil
}

// requireOutstanding rejects loans that are not outstanding or already carry
// a pending repayment.
func (t *transition) requireOutstanding() error {
	l := t.loan
	if l.Status != domain.StatusOutstanding {
		return conflictf("loan %s is %s, not outstanding", l.ID, l.Status)
	}
	if l.PendingRepayment != nil {
		return conflictf("loan %s already has a pending repayment of %s", l.ID, l.PendingRepayment.Amount)
	}
	return nil
}

func (t *transition) checkAmount() error {
	if t.amount <= 0 {
		return validationf("amount must be positive")
	}
	if outstanding := t.loan.Outstanding(); t.amount > outstanding {
		return validationf("amount %s exceeds outstanding balance %s", t.amount, outstanding)
	}
	return nil
}

func (t *transition) record(userID string, typ domain.TransactionType, amount domain.Money, what, attachmentURL string) domain.Transaction {
	description := fmt.Sprintf("%s: %s", what, t.loan.Description)
	return t.svc.newTransaction(t.loan, userID, typ, amount, description, attachmentURL, t.now)
}
