package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/segyhp/repayment-engine/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("repository: not found")

// LoanRepository defines the interface for loan and schedule data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetByIDForUpdate retrieves a loan and locks its row until the
	// surrounding transaction ends, where the driver supports row locks.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// Update writes the mutable fields of a loan
	Update(ctx context.Context, loan *domain.Loan) error

	// ListIDsByStatus returns the IDs of all loans in the given status
	ListIDsByStatus(ctx context.Context, status domain.LoanStatus) ([]uuid.UUID, error)

	// CreateSchedule creates the scheduled repayments of a loan
	CreateSchedule(ctx context.Context, schedule []*domain.ScheduledRepayment) error

	// GetScheduleByLoanID retrieves scheduled repayments ordered by due date
	GetScheduleByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.ScheduledRepayment, error)

	// UpdateScheduledRepayment writes the balance and status of one installment
	UpdateScheduledRepayment(ctx context.Context, repayment *domain.ScheduledRepayment) error
}

// RepaymentRepository defines the interface for received repayment ledger operations
type RepaymentRepository interface {
	// Create appends a received repayment to the ledger
	Create(ctx context.Context, repayment *domain.ReceivedRepayment) error

	// GetByLoanID retrieves all received repayments for a loan
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.ReceivedRepayment, error)

	// GetTotalReceived sums every repayment received for a loan
	GetTotalReceived(ctx context.Context, loanID uuid.UUID) (int64, error)
}

// UnitOfWork groups the writes of one operation. Nothing is visible to other
// callers until Commit; Rollback after Commit is a no-op so it can be deferred.
type UnitOfWork interface {
	Loans() LoanRepository
	Repayments() RepaymentRepository
	Commit() error
	Rollback() error
}

// UnitOfWorkFactory starts units of work.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
