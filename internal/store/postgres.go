package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/EmanAguilera/FiamBond-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	db DB
}

func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Connect opens and pings a connection pool.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

const loanColumns = `id, creditor_id, debtor_id, debtor_name, family_id, description,
	principal, interest, total_owed, repaid_amount, deadline, attachment_url, status,
	pending_repayment, repayment_receipts, created_at, confirmed_at, updated_at`

// CreateLoan inserts the loan and its opening transactions in one transaction.
func (s *Postgres) CreateLoan(ctx context.Context, loan *domain.Loan, txns []domain.Transaction) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	debtorID, debtorName := debtorColumns(loan.Debtor)
	pending, receipts, err := encodeRepayments(loan)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO loans (`+loanColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		loan.ID, loan.CreditorID, debtorID, debtorName, loan.FamilyID, loan.Description,
		int64(loan.Principal), int64(loan.Interest), int64(loan.TotalOwed), int64(loan.RepaidAmount),
		loan.Deadline, nullString(loan.AttachmentURL), string(loan.Status),
		pending, receipts, loan.CreatedAt, loan.ConfirmedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("loan insert failed: %w", classify(err))
	}

	if err := insertTransactions(ctx, tx, txns); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", classify(err))
	}
	return nil
}

// UpdateLoan locks the loan row, hands it to fn and writes the result together
// with fn's transactions. Concurrent callers on the same loan serialize on the
// row lock; a serialization failure surfaces as ErrConflict.
func (s *Postgres) UpdateLoan(ctx context.Context, id string, fn MutateFunc) (*domain.Loan, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	loan, err := scanLoan(tx.QueryRow(ctx, "SELECT "+loanColumns+" FROM loans WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("lock acquisition failed: %w", classify(err))
	}

	txns, err := fn(loan)
	if err != nil {
		return nil, err
	}

	pending, receipts, err := encodeRepayments(loan)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE loans
		SET repaid_amount = $2, status = $3, pending_repayment = $4, repayment_receipts = $5,
			confirmed_at = $6, updated_at = $7
		WHERE id = $1`,
		loan.ID, int64(loan.RepaidAmount), string(loan.Status), pending, receipts, loan.ConfirmedAt, loan.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("loan update failed: %w", classify(err))
	}
	if tag.RowsAffected() != 1 {
		return nil, fmt.Errorf("loan update affected %d rows", tag.RowsAffected())
	}

	if err := insertTransactions(ctx, tx, txns); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", classify(err))
	}
	return loan, nil
}

// GetLoan reads a loan without locking it.
func (s *Postgres) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	loan, err := scanLoan(s.db.QueryRow(ctx, "SELECT "+loanColumns+" FROM loans WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// ListLoans returns loans where userID is creditor or debtor, newest first,
// optionally restricted to one family.
func (s *Postgres) ListLoans(ctx context.Context, userID string, familyID *string) ([]domain.Loan, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+loanColumns+` FROM loans
		WHERE (creditor_id = $1 OR debtor_id = $1)
		  AND ($2::text IS NULL OR family_id = $2)
		ORDER BY created_at DESC, id`,
		userID, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *loan)
	}
	return loans, rows.Err()
}

// ListTransactions returns the user's transactions, newest first.
func (s *Postgres) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, family_id, loan_id, type, amount, description, attachment_url, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC, id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t          domain.Transaction
			loanID     *string
			typ        string
			amount     int64
			attachment *string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.FamilyID, &loanID, &typ, &amount, &t.Description, &attachment, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.LoanID = deref(loanID)
		t.Type = domain.TransactionType(typ)
		t.Amount = domain.Money(amount)
		t.AttachmentURL = deref(attachment)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) DisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, "SELECT display_name FROM users WHERE id = $1", userID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return name, nil
}

func (s *Postgres) IsFamilyMember(ctx context.Context, familyID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM family_members WHERE family_id = $1 AND user_id = $2)",
		familyID, userID).Scan(&exists)
	return exists, err
}

func insertTransactions(ctx context.Context, tx pgx.Tx, txns []domain.Transaction) error {
	for _, t := range txns {
		_, err := tx.Exec(ctx,
			`INSERT INTO transactions (id, user_id, family_id, loan_id, type, amount, description, attachment_url, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.ID, t.UserID, t.FamilyID, nullString(t.LoanID), string(t.Type), int64(t.Amount),
			t.Description, nullString(t.AttachmentURL), t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("transaction insert failed: %w", classify(err))
		}
	}
	return nil
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		l                                            domain.Loan
		debtorID, debtorName, attachment             *string
		principal, interest, totalOwed, repaidAmount int64
		status                                       string
		pending, receipts                            []byte
		deadline, confirmedAt                        *time.Time
	)
	err := row.Scan(
		&l.ID, &l.CreditorID, &debtorID, &debtorName, &l.FamilyID, &l.Description,
		&principal, &interest, &totalOwed, &repaidAmount, &deadline, &attachment, &status,
		&pending, &receipts, &l.CreatedAt, &confirmedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if debtorID != nil {
		l.Debtor = domain.KnownDebtor{UserID: *debtorID}
	} else {
		l.Debtor = domain.ExternalDebtor{Name: deref(debtorName)}
	}
	l.Principal = domain.Money(principal)
	l.Interest = domain.Money(interest)
	l.TotalOwed = domain.Money(totalOwed)
	l.RepaidAmount = domain.Money(repaidAmount)
	l.Deadline = deadline
	l.AttachmentURL = deref(attachment)
	l.Status = domain.LoanStatus(status)
	l.ConfirmedAt = confirmedAt

	if len(pending) > 0 {
		var p domain.PendingRepayment
		if err := json.Unmarshal(pending, &p); err != nil {
			return nil, fmt.Errorf("decode pending repayment of loan %s: %w", l.ID, err)
		}
		l.PendingRepayment = &p
	}
	if len(receipts) > 0 {
		if err := json.Unmarshal(receipts, &l.RepaymentReceipts); err != nil {
			return nil, fmt.Errorf("decode receipts of loan %s: %w", l.ID, err)
		}
	}
	return &l, nil
}

func encodeRepayments(l *domain.Loan) (pending, receipts []byte, err error) {
	if l.PendingRepayment != nil {
		if pending, err = json.Marshal(l.PendingRepayment); err != nil {
			return nil, nil, err
		}
	}
	list := l.RepaymentReceipts
	if list == nil {
		list = []domain.RepaymentReceipt{}
	}
	if receipts, err = json.Marshal(list); err != nil {
		return nil, nil, err
	}
	return pending, receipts, nil
}

func debtorColumns(d domain.Debtor) (id, name *string) {
	switch v := d.(type) {
	case domain.KnownDebtor:
		return &v.UserID, nil
	case domain.ExternalDebtor:
		return nil, &v.Name
	}
	return nil, nil
}

// classify maps Postgres concurrency failures onto ErrConflict.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
