package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type sqlxUnitOfWorkFactory struct {
	db *sqlx.DB
}

// NewUnitOfWorkFactory returns a factory whose units of work are database transactions.
func NewUnitOfWorkFactory(db *sqlx.DB) UnitOfWorkFactory {
	return &sqlxUnitOfWorkFactory{db: db}
}

func (f *sqlxUnitOfWorkFactory) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := f.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &sqlxUnitOfWork{
		tx:         tx,
		loans:      NewLoanRepository(tx),
		repayments: NewRepaymentRepository(tx),
	}, nil
}

type sqlxUnitOfWork struct {
	tx         *sqlx.Tx
	loans      LoanRepository
	repayments RepaymentRepository
}

func (u *sqlxUnitOfWork) Loans() LoanRepository {
	return u.loans
}

func (u *sqlxUnitOfWork) Repayments() RepaymentRepository {
	return u.repayments
}

func (u *sqlxUnitOfWork) Commit() error {
	return u.tx.Commit()
}

func (u *sqlxUnitOfWork) Rollback() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
