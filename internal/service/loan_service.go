package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/repayment-engine/internal/cache"
	"github.com/segyhp/repayment-engine/internal/config"
	"github.com/segyhp/repayment-engine/internal/domain"
	"github.com/segyhp/repayment-engine/internal/metrics"
	"github.com/segyhp/repayment-engine/internal/repository"
	customError "github.com/segyhp/repayment-engine/pkg/errors"
	"github.com/segyhp/repayment-engine/pkg/utils"
)

const defaultDelinquencyThreshold = 2

// LoanService creates loans and applies repayments to their schedules.
type LoanService struct {
	LoanRepo      repository.LoanRepository
	RepaymentRepo repository.RepaymentRepository
	uow           repository.UnitOfWorkFactory
	cache         cache.LoanCache
	config        *config.Config
	logger        *slog.Logger
	locks         *loanLocks
	now           func() time.Time
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	repaymentRepo repository.RepaymentRepository,
	uow repository.UnitOfWorkFactory,
	loanCache cache.LoanCache,
	config *config.Config,
	logger *slog.Logger,
) *LoanService {
	if loanCache == nil {
		var ttl time.Duration
		if config != nil {
			ttl = config.Redis.CacheTTL
		}
		loanCache = cache.NewMemoryCache(ttl)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LoanService{
		LoanRepo:      loanRepo,
		RepaymentRepo: repaymentRepo,
		uow:           uow,
		cache:         loanCache,
		config:        config,
		logger:        logger,
		locks:         newLoanLocks(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateLoan creates a loan together with its full repayment schedule
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (loan *domain.Loan, schedule []*domain.ScheduledRepayment, err error) {
	start := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues("create_loan", metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	}()

	if err := s.validateCreateLoan(request); err != nil {
		return nil, nil, err
	}

	entries, err := GenerateSchedule(request.Amount, request.Terms, request.ProcessedAt)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	loan = &domain.Loan{
		ID:                uuid.New(),
		UserID:            request.UserID,
		Amount:            request.Amount,
		CurrencyCode:      request.CurrencyCode,
		Terms:             request.Terms,
		OutstandingAmount: request.Amount,
		Status:            domain.LoanStatusDue,
		ProcessedAt:       utils.TruncateToDate(request.ProcessedAt),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	schedule = make([]*domain.ScheduledRepayment, 0, len(entries))
	for _, entry := range entries {
		schedule = append(schedule, &domain.ScheduledRepayment{
			ID:                uuid.New(),
			LoanID:            loan.ID,
			Sequence:          entry.Sequence,
			Amount:            entry.Amount,
			OutstandingAmount: entry.Amount,
			CurrencyCode:      loan.CurrencyCode,
			DueDate:           entry.DueDate,
			Status:            domain.ScheduledRepaymentStatusDue,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	uow, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, nil, customError.WrapPersistenceFailure(err)
	}
	defer s.rollback(uow)

	if err = uow.Loans().Create(ctx, loan); err != nil {
		return nil, nil, customError.WrapPersistenceFailure(err)
	}

	if err = uow.Loans().CreateSchedule(ctx, schedule); err != nil {
		return nil, nil, customError.WrapPersistenceFailure(err)
	}

	if err = uow.Commit(); err != nil {
		return nil, nil, customError.WrapPersistenceFailure(err)
	}

	s.cacheLoan(ctx, loan)
	metrics.LoansCreated.WithLabelValues(string(loan.CurrencyCode)).Inc()
	s.logger.InfoContext(ctx, "loan created",
		slog.String("loan_id", loan.ID.String()),
		slog.String("user_id", loan.UserID),
		slog.Int64("amount", loan.Amount),
		slog.String("currency", string(loan.CurrencyCode)),
		slog.Int("terms", loan.Terms),
	)

	return loan, schedule, nil
}

func (s *LoanService) validateCreateLoan(request *domain.CreateLoanRequest) error {
	if request.UserID == "" {
		return customError.WrapInvalidArgument("user is required")
	}
	if request.Amount <= 0 {
		return customError.WrapInvalidArgument("amount must be positive, got %d", request.Amount)
	}
	if request.Terms <= 0 {
		return customError.WrapInvalidArgument("terms must be positive, got %d", request.Terms)
	}
	if s.config != nil && s.config.Business.MaxTerms > 0 && request.Terms > s.config.Business.MaxTerms {
		return customError.WrapInvalidArgument("terms must not exceed %d, got %d", s.config.Business.MaxTerms, request.Terms)
	}
	if !request.CurrencyCode.IsSupported() {
		return customError.WrapInvalidArgument("unsupported currency %q, expected one of %v", request.CurrencyCode, domain.SupportedCurrencies())
	}
	if request.ProcessedAt.IsZero() {
		return customError.WrapInvalidArgument("processed date is required")
	}
	return nil
}

// RepayLoan records a received repayment and allocates it across the loan's
// open installments, earliest due first. The ledger entry, installment
// updates and loan update commit together or not at all.
func (s *LoanService) RepayLoan(ctx context.Context, request *domain.RepayLoanRequest) (repayment *domain.ReceivedRepayment, err error) {
	start := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues("repay_loan", metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	}()

	if request.Amount <= 0 {
		return nil, customError.WrapInvalidArgument("repayment amount must be positive, got %d", request.Amount)
	}
	if !request.CurrencyCode.IsSupported() {
		return nil, customError.WrapInvalidArgument("unsupported currency %q, expected one of %v", request.CurrencyCode, domain.SupportedCurrencies())
	}
	if request.ReceivedAt.IsZero() {
		return nil, customError.WrapInvalidArgument("received date is required")
	}

	unlock := s.locks.Lock(request.LoanID)
	defer unlock()

	uow, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, customError.WrapPersistenceFailure(err)
	}
	defer s.rollback(uow)

	loan, err := uow.Loans().GetByIDForUpdate(ctx, request.LoanID)
	if err != nil {
		return nil, s.loanLookupError(request.LoanID, err)
	}

	if request.CurrencyCode != loan.CurrencyCode {
		return nil, customError.WrapCurrencyMismatch(string(loan.CurrencyCode), string(request.CurrencyCode))
	}

	schedule, err := uow.Loans().GetScheduleByLoanID(ctx, loan.ID)
	if err != nil {
		return nil, customError.WrapPersistenceFailure(err)
	}

	now := s.now()
	repayment = &domain.ReceivedRepayment{
		ID:           uuid.New(),
		LoanID:       loan.ID,
		Amount:       request.Amount,
		CurrencyCode: request.CurrencyCode,
		ReceivedAt:   utils.TruncateToDate(request.ReceivedAt),
		CreatedAt:    now,
	}

	if err = uow.Repayments().Create(ctx, repayment); err != nil {
		return nil, customError.WrapPersistenceFailure(err)
	}

	alloc, err := AllocateRepayment(loan, schedule, request.Amount)
	if err != nil {
		return nil, err
	}

	for _, installment := range alloc.Touched {
		installment.UpdatedAt = now
		if err = uow.Loans().UpdateScheduledRepayment(ctx, installment); err != nil {
			return nil, customError.WrapPersistenceFailure(err)
		}
	}

	wasRepaid := loan.IsRepaid()
	loan.OutstandingAmount = alloc.Outstanding
	loan.Status = alloc.Status
	loan.UpdatedAt = now

	if err = uow.Loans().Update(ctx, loan); err != nil {
		return nil, customError.WrapPersistenceFailure(err)
	}

	if err = uow.Commit(); err != nil {
		return nil, customError.WrapPersistenceFailure(err)
	}

	s.cacheLoan(ctx, loan)

	currency := string(loan.CurrencyCode)
	metrics.RepaymentsReceived.WithLabelValues(currency).Inc()
	metrics.RepaymentAmount.WithLabelValues(currency).Add(float64(request.Amount))
	if alloc.Unallocated > 0 {
		metrics.UnallocatedAmount.WithLabelValues(currency).Add(float64(alloc.Unallocated))
	}
	if !wasRepaid && loan.IsRepaid() {
		metrics.LoansRepaid.Inc()
	}

	s.logger.InfoContext(ctx, "repayment applied",
		slog.String("loan_id", loan.ID.String()),
		slog.String("repayment_id", repayment.ID.String()),
		slog.Int64("amount", request.Amount),
		slog.Int64("allocated", alloc.Allocated),
		slog.Int64("unallocated", alloc.Unallocated),
		slog.Int64("written_off", alloc.WrittenOff),
		slog.Int64("outstanding", loan.OutstandingAmount),
		slog.String("status", string(loan.Status)),
	)

	return repayment, nil
}

// GetLoan returns a loan, served from the cache when possible. A miss is
// filled under the loan's lock so it cannot overwrite a newer balance cached
// by RepayLoan.
func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	if cached := s.cachedLoan(ctx, loanID); cached != nil {
		return cached, nil
	}

	unlock := s.locks.Lock(loanID)
	defer unlock()

	// a repayment may have refreshed the entry while we waited
	if cached := s.cachedLoan(ctx, loanID); cached != nil {
		return cached, nil
	}

	loan, err := s.LoanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, s.loanLookupError(loanID, err)
	}

	s.cacheLoan(ctx, loan)
	return loan, nil
}

// GetSchedule returns the loan's scheduled repayments ordered by due date
func (s *LoanService) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.ScheduledRepayment, error) {
	schedule, err := s.LoanRepo.GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapPersistenceFailure(err)
	}

	if len(schedule) == 0 {
		// distinguish an unknown loan from a broken one
		if _, err := s.LoanRepo.GetByID(ctx, loanID); err != nil {
			return nil, s.loanLookupError(loanID, err)
		}
		return nil, customError.WrapInvalidState("loan %s has no scheduled repayments", loanID)
	}

	return schedule, nil
}

// GetOutstanding returns the loan's outstanding amount as stored, bypassing the cache
func (s *LoanService) GetOutstanding(ctx context.Context, loanID uuid.UUID) (int64, error) {
	loan, err := s.LoanRepo.GetByID(ctx, loanID)
	if err != nil {
		return 0, s.loanLookupError(loanID, err)
	}
	return loan.OutstandingAmount, nil
}

// ListRepayments returns the ledger of repayments received for a loan
func (s *LoanService) ListRepayments(ctx context.Context, loanID uuid.UUID) ([]*domain.ReceivedRepayment, error) {
	if _, err := s.LoanRepo.GetByID(ctx, loanID); err != nil {
		return nil, s.loanLookupError(loanID, err)
	}

	repayments, err := s.RepaymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapPersistenceFailure(err)
	}
	return repayments, nil
}

// IsDelinquent reports whether the borrower has missed at least the configured
// number of installments that fell due before asOf. The caller supplies asOf.
func (s *LoanService) IsDelinquent(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*domain.DelinquencyReport, error) {
	schedule, err := s.GetSchedule(ctx, loanID)
	if err != nil {
		return nil, err
	}

	asOf = utils.TruncateToDate(asOf)
	report := &domain.DelinquencyReport{LoanID: loanID, AsOf: asOf}

	for _, installment := range schedule {
		if !installment.DueDate.Before(asOf) || !installment.IsOpen() {
			continue
		}
		report.MissedInstallments++
		report.OverdueAmount += installment.OutstandingAmount
	}

	report.IsDelinquent = report.MissedInstallments >= s.delinquencyThreshold()
	return report, nil
}

func (s *LoanService) delinquencyThreshold() int {
	if s.config != nil && s.config.Business.DelinquencyThreshold > 0 {
		return s.config.Business.DelinquencyThreshold
	}
	return defaultDelinquencyThreshold
}

// VerifyLoan re-checks the stored loan against its schedule and ledger. All
// three are read in one unit of work under the loan's lock, so a repayment
// is seen either entirely or not at all.
func (s *LoanService) VerifyLoan(ctx context.Context, loanID uuid.UUID) error {
	unlock := s.locks.Lock(loanID)
	defer unlock()

	uow, err := s.uow.Begin(ctx)
	if err != nil {
		return customError.WrapPersistenceFailure(err)
	}
	defer s.rollback(uow)

	loan, err := uow.Loans().GetByIDForUpdate(ctx, loanID)
	if err != nil {
		return s.loanLookupError(loanID, err)
	}

	schedule, err := uow.Loans().GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return customError.WrapPersistenceFailure(err)
	}

	if len(schedule) != loan.Terms {
		return customError.WrapInvalidState("loan %s has %d scheduled repayments for %d terms", loanID, len(schedule), loan.Terms)
	}

	if err := CheckLedger(loan, schedule); err != nil {
		return err
	}

	// everything settled must have been paid for, up to the written-off dust
	received, err := uow.Repayments().GetTotalReceived(ctx, loanID)
	if err != nil {
		return customError.WrapPersistenceFailure(err)
	}
	if settled := loan.Amount - loan.OutstandingAmount; settled > received+dustThreshold {
		return customError.WrapInvalidState("loan %s has %d settled but only %d received", loanID, settled, received)
	}

	return nil
}

// AuditResult summarises one AuditLoans run.
type AuditResult struct {
	Checked int
	Failed  map[uuid.UUID]error
}

// AuditLoans verifies every loan that is still due. A loan failing the check
// is reported in the result rather than aborting the run; only a failure to
// list loans is returned as an error.
func (s *LoanService) AuditLoans(ctx context.Context) (*AuditResult, error) {
	ids, err := s.LoanRepo.ListIDsByStatus(ctx, domain.LoanStatusDue)
	if err != nil {
		return nil, customError.WrapPersistenceFailure(err)
	}

	result := &AuditResult{Failed: make(map[uuid.UUID]error)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Checked++
		if err := s.VerifyLoan(ctx, id); err != nil {
			result.Failed[id] = err
			metrics.AuditFailures.Inc()
			s.logger.ErrorContext(ctx, "loan failed ledger audit", slog.String("loan_id", id.String()), slog.Any("error", err))
		}
	}

	s.logger.InfoContext(ctx, "ledger audit finished", slog.Int("checked", result.Checked), slog.Int("failed", len(result.Failed)))
	return result, nil
}

func (s *LoanService) loanLookupError(loanID uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return customError.WrapLoanNotFound(loanID.String())
	}
	return customError.WrapPersistenceFailure(err)
}

func (s *LoanService) rollback(uow repository.UnitOfWork) {
	if err := uow.Rollback(); err != nil {
		s.logger.Error("rollback failed", slog.Any("error", err))
	}
}

func (s *LoanService) cachedLoan(ctx context.Context, loanID uuid.UUID) *domain.Loan {
	cached, err := s.cache.GetLoan(ctx, loanID)
	if err != nil {
		s.logger.WarnContext(ctx, "loan cache read failed", slog.String("loan_id", loanID.String()), slog.Any("error", err))
		return nil
	}
	return cached
}

func (s *LoanService) cacheLoan(ctx context.Context, loan *domain.Loan) {
	err := s.cache.SetLoan(ctx, loan)
	if err == nil {
		return
	}
	s.logger.WarnContext(ctx, "loan cache write failed", slog.String("loan_id", loan.ID.String()), slog.Any("error", customError.WrapCacheError(err)))

	// a stale entry would keep serving the old balance
	if err := s.cache.Invalidate(ctx, loan.ID); err != nil {
		s.logger.WarnContext(ctx, "loan cache invalidate failed", slog.String("loan_id", loan.ID.String()), slog.Any("error", customError.WrapCacheError(err)))
	}
}
