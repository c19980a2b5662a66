package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/repayment-engine/internal/domain"
)

type loanRepository struct {
	db sqlx.ExtContext
}

// NewLoanRepository works on either a *sqlx.DB or a *sqlx.Tx.
func NewLoanRepository(db sqlx.ExtContext) LoanRepository {
	return &loanRepository{db: db}
}

const loanColumns = `id, user_id, amount, currency_code, terms, outstanding_amount, status, processed_at, created_at, updated_at`

const scheduleColumns = `id, loan_id, sequence_no, amount, outstanding_amount, currency_code, due_date, status, created_at, updated_at`

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := r.db.Rebind(`
		INSERT INTO loans (` + loanColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.UserID,
		loan.Amount,
		loan.CurrencyCode,
		loan.Terms,
		loan.OutstandingAmount,
		loan.Status,
		loan.ProcessedAt,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, id, "")
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	// SQLite serialises writers at the database level and has no row locks.
	lock := ""
	if r.db.DriverName() == "postgres" {
		lock = " FOR UPDATE"
	}
	return r.get(ctx, id, lock)
}

func (r *loanRepository) get(ctx context.Context, id uuid.UUID, lock string) (*domain.Loan, error) {
	query := r.db.Rebind(`
		SELECT ` + loanColumns + `
		FROM loans
		WHERE id = ?` + lock)

	var loan domain.Loan
	err := sqlx.GetContext(ctx, r.db, &loan, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := r.db.Rebind(`
		UPDATE loans
		SET outstanding_amount = ?, status = ?, updated_at = ?
		WHERE id = ?
	`)

	res, err := r.db.ExecContext(ctx, query,
		loan.OutstandingAmount,
		loan.Status,
		loan.UpdatedAt,
		loan.ID,
	)
	if err != nil {
		return err
	}

	return expectOneRow(res)
}

func (r *loanRepository) ListIDsByStatus(ctx context.Context, status domain.LoanStatus) ([]uuid.UUID, error) {
	query := r.db.Rebind(`
		SELECT id
		FROM loans
		WHERE status = ?
		ORDER BY created_at, id
	`)

	var ids []uuid.UUID
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, status); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *loanRepository) CreateSchedule(ctx context.Context, schedule []*domain.ScheduledRepayment) error {
	query := r.db.Rebind(`
		INSERT INTO scheduled_repayments (` + scheduleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	for _, s := range schedule {
		_, err := r.db.ExecContext(ctx, query,
			s.ID,
			s.LoanID,
			s.Sequence,
			s.Amount,
			s.OutstandingAmount,
			s.CurrencyCode,
			s.DueDate,
			s.Status,
			s.CreatedAt,
			s.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *loanRepository) GetScheduleByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.ScheduledRepayment, error) {
	query := r.db.Rebind(`
		SELECT ` + scheduleColumns + `
		FROM scheduled_repayments
		WHERE loan_id = ?
		ORDER BY due_date, sequence_no
	`)

	var schedule []*domain.ScheduledRepayment
	if err := sqlx.SelectContext(ctx, r.db, &schedule, query, loanID); err != nil {
		return nil, err
	}

	return schedule, nil
}

func (r *loanRepository) UpdateScheduledRepayment(ctx context.Context, s *domain.ScheduledRepayment) error {
	query := r.db.Rebind(`
		UPDATE scheduled_repayments
		SET outstanding_amount = ?, status = ?, updated_at = ?
		WHERE id = ? AND loan_id = ?
	`)

	res, err := r.db.ExecContext(ctx, query,
		s.OutstandingAmount,
		s.Status,
		s.UpdatedAt,
		s.ID,
		s.LoanID,
	)
	if err != nil {
		return err
	}

	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}
