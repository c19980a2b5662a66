package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/repayment-engine/internal/config"
	"github.com/segyhp/repayment-engine/internal/database"
	"github.com/segyhp/repayment-engine/internal/domain"
	"github.com/segyhp/repayment-engine/internal/repository"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "repayment_engine_test.db")
	cfg := config.DatabaseConfig{Driver: config.DriverSQLite, URL: path}

	require.NoError(t, database.RunMigrations("../../migrations", cfg.MigrationURL()))

	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newLoan(amount int64, terms int) *domain.Loan {
	ts := time.Now().UTC().Truncate(time.Second)
	return &domain.Loan{
		ID:                uuid.New(),
		UserID:            "user-1",
		Amount:            amount,
		CurrencyCode:      domain.CurrencySGD,
		Terms:             terms,
		OutstandingAmount: amount,
		Status:            domain.LoanStatusDue,
		ProcessedAt:       date(2024, 1, 1),
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
}

func newSchedule(loan *domain.Loan, amounts ...int64) []*domain.ScheduledRepayment {
	schedule := make([]*domain.ScheduledRepayment, 0, len(amounts))
	for i, amount := range amounts {
		schedule = append(schedule, &domain.ScheduledRepayment{
			ID:                uuid.New(),
			LoanID:            loan.ID,
			Sequence:          i + 1,
			Amount:            amount,
			OutstandingAmount: amount,
			CurrencyCode:      loan.CurrencyCode,
			DueDate:           loan.ProcessedAt.AddDate(0, i+1, 0),
			Status:            domain.ScheduledRepaymentStatusDue,
			CreatedAt:         loan.CreatedAt,
			UpdatedAt:         loan.UpdatedAt,
		})
	}
	return schedule
}

func TestLoanRepository_CreateAndGetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newLoan(1000, 3)
	require.NoError(t, repo.Create(ctx, loan))

	fetched, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)

	assert.Equal(t, loan.ID, fetched.ID)
	assert.Equal(t, "user-1", fetched.UserID)
	assert.Equal(t, int64(1000), fetched.Amount)
	assert.Equal(t, domain.CurrencySGD, fetched.CurrencyCode)
	assert.Equal(t, 3, fetched.Terms)
	assert.Equal(t, int64(1000), fetched.OutstandingAmount)
	assert.Equal(t, domain.LoanStatusDue, fetched.Status)
	assert.Equal(t, "2024-01-01", fetched.ProcessedAt.Format("2006-01-02"))
}

func TestLoanRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)

	loan, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Nil(t, loan)

	loan, err = repo.GetByIDForUpdate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Nil(t, loan)
}

func TestLoanRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newLoan(1000, 2)
	require.NoError(t, repo.Create(ctx, loan))

	loan.OutstandingAmount = 0
	loan.Status = domain.LoanStatusRepaid
	loan.UpdatedAt = loan.UpdatedAt.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, loan))

	fetched, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fetched.OutstandingAmount)
	assert.Equal(t, domain.LoanStatusRepaid, fetched.Status)

	missing := newLoan(10, 1)
	assert.ErrorIs(t, repo.Update(ctx, missing), repository.ErrNotFound)
}

func TestLoanRepository_Schedule(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newLoan(1000, 3)
	require.NoError(t, repo.Create(ctx, loan))

	schedule := newSchedule(loan, 333, 333, 334)
	// Insert out of order; reads must come back by due date.
	require.NoError(t, repo.CreateSchedule(ctx, []*domain.ScheduledRepayment{schedule[2], schedule[0], schedule[1]}))

	first, err := repo.GetScheduleByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, first, 3)

	for i, s := range first {
		assert.Equal(t, i+1, s.Sequence)
		assert.Equal(t, schedule[i].ID, s.ID)
		assert.Equal(t, schedule[i].DueDate.Format("2006-01-02"), s.DueDate.Format("2006-01-02"))
	}
	assert.Equal(t, int64(334), first[2].Amount)

	second, err := repo.GetScheduleByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoanRepository_UpdateScheduledRepayment(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newLoan(1000, 2)
	require.NoError(t, repo.Create(ctx, loan))
	schedule := newSchedule(loan, 500, 500)
	require.NoError(t, repo.CreateSchedule(ctx, schedule))

	schedule[0].OutstandingAmount = 200
	schedule[0].Status = domain.ScheduledRepaymentStatusPartial
	require.NoError(t, repo.UpdateScheduledRepayment(ctx, schedule[0]))

	fetched, err := repo.GetScheduleByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), fetched[0].OutstandingAmount)
	assert.Equal(t, domain.ScheduledRepaymentStatusPartial, fetched[0].Status)
	assert.Equal(t, int64(500), fetched[1].OutstandingAmount)

	// outstanding may never exceed the installment amount
	schedule[1].OutstandingAmount = 600
	assert.Error(t, repo.UpdateScheduledRepayment(ctx, schedule[1]))
}

func TestLoanRepository_ListIDsByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	due := newLoan(100, 1)
	repaid := newLoan(200, 1)
	repaid.Status = domain.LoanStatusRepaid
	repaid.OutstandingAmount = 0
	require.NoError(t, repo.Create(ctx, due))
	require.NoError(t, repo.Create(ctx, repaid))

	ids, err := repo.ListIDsByStatus(ctx, domain.LoanStatusDue)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{due.ID}, ids)
}

func TestRepaymentRepository(t *testing.T) {
	db := setupTestDB(t)
	loans := repository.NewLoanRepository(db)
	repo := repository.NewRepaymentRepository(db)
	ctx := context.Background()

	loan := newLoan(1000, 2)
	require.NoError(t, loans.Create(ctx, loan))

	total, err := repo.GetTotalReceived(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	for i, amount := range []int64{300, 700} {
		require.NoError(t, repo.Create(ctx, &domain.ReceivedRepayment{
			ID:           uuid.New(),
			LoanID:       loan.ID,
			Amount:       amount,
			CurrencyCode: domain.CurrencySGD,
			ReceivedAt:   date(2024, time.Month(2+i), 1),
			CreatedAt:    time.Now().UTC(),
		}))
	}

	repayments, err := repo.GetByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, repayments, 2)
	assert.Equal(t, int64(300), repayments[0].Amount)
	assert.Equal(t, int64(700), repayments[1].Amount)

	total, err = repo.GetTotalReceived(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), total)
}

func TestUnitOfWork_RollbackDiscardsWrites(t *testing.T) {
	db := setupTestDB(t)
	factory := repository.NewUnitOfWorkFactory(db)
	ctx := context.Background()

	loan := newLoan(1000, 2)

	uow, err := factory.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Loans().Create(ctx, loan))
	require.NoError(t, uow.Loans().CreateSchedule(ctx, newSchedule(loan, 500, 500)))
	require.NoError(t, uow.Rollback())

	_, err = repository.NewLoanRepository(db).GetByID(ctx, loan.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	schedule, err := repository.NewLoanRepository(db).GetScheduleByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, schedule)
}

func TestUnitOfWork_CommitPersists(t *testing.T) {
	db := setupTestDB(t)
	factory := repository.NewUnitOfWorkFactory(db)
	ctx := context.Background()

	loan := newLoan(1000, 2)

	uow, err := factory.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Loans().Create(ctx, loan))
	require.NoError(t, uow.Repayments().Create(ctx, &domain.ReceivedRepayment{
		ID:           uuid.New(),
		LoanID:       loan.ID,
		Amount:       100,
		CurrencyCode: domain.CurrencySGD,
		ReceivedAt:   date(2024, 2, 1),
		CreatedAt:    time.Now().UTC(),
	}))
	require.NoError(t, uow.Commit())
	// deferred Rollback after Commit must be harmless
	require.NoError(t, uow.Rollback())

	fetched, err := repository.NewLoanRepository(db).GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, fetched.ID)

	total, err := repository.NewRepaymentRepository(db).GetTotalReceived(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
}
