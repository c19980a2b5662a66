package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/repayment-engine/internal/domain"
)

type repaymentRepository struct {
	db sqlx.ExtContext
}

func NewRepaymentRepository(db sqlx.ExtContext) RepaymentRepository {
	return &repaymentRepository{db: db}
}

func (r *repaymentRepository) Create(ctx context.Context, repayment *domain.ReceivedRepayment) error {
	query := r.db.Rebind(`
		INSERT INTO received_repayments (id, loan_id, amount, currency_code, received_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		repayment.ID,
		repayment.LoanID,
		repayment.Amount,
		repayment.CurrencyCode,
		repayment.ReceivedAt,
		repayment.CreatedAt,
	)

	return err
}

func (r *repaymentRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.ReceivedRepayment, error) {
	query := r.db.Rebind(`
		SELECT id, loan_id, amount, currency_code, received_at, created_at
		FROM received_repayments
		WHERE loan_id = ?
		ORDER BY received_at, created_at
	`)

	var repayments []*domain.ReceivedRepayment
	if err := sqlx.SelectContext(ctx, r.db, &repayments, query, loanID); err != nil {
		return nil, err
	}

	return repayments, nil
}

func (r *repaymentRepository) GetTotalReceived(ctx context.Context, loanID uuid.UUID) (int64, error) {
	query := r.db.Rebind(`
		SELECT COALESCE(SUM(amount), 0)
		FROM received_repayments
		WHERE loan_id = ?
	`)

	var total int64
	if err := sqlx.GetContext(ctx, r.db, &total, query, loanID); err != nil {
		return 0, err
	}

	return total, nil
}
