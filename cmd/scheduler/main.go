package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/segyhp/repayment-engine/internal/config"
	"github.com/segyhp/repayment-engine/internal/database"
	"github.com/segyhp/repayment-engine/internal/logger"
	"github.com/segyhp/repayment-engine/internal/repository"
	"github.com/segyhp/repayment-engine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)
	log.Info("starting repayment scheduler")

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Error("failed to initialize database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	loanService := service.NewLoanService(
		repository.NewLoanRepository(db),
		repository.NewRepaymentRepository(db),
		repository.NewUnitOfWorkFactory(db),
		nil,
		cfg,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.GetSchedulerLocation()))
	if err := setupCronJobs(ctx, c, cfg, log, loanService); err != nil {
		log.Error("failed to schedule jobs", slog.Any("error", err))
		os.Exit(1)
	}

	c.Start()
	log.Info("scheduler started", slog.String("audit_spec", cfg.Scheduler.AuditSpec), slog.String("timezone", cfg.Scheduler.Timezone))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down scheduler")
	cancel()
	<-c.Stop().Done()
	log.Info("scheduler stopped")
}

func setupCronJobs(ctx context.Context, c *cron.Cron, cfg *config.Config, log *slog.Logger, loanService *service.LoanService) error {
	// Ledger audit: every due loan's balances must still agree with its schedule
	_, err := c.AddFunc(cfg.Scheduler.AuditSpec, func() {
		log.Info("running ledger audit")
		result, err := loanService.AuditLoans(ctx)
		if err != nil {
			log.Error("ledger audit aborted", slog.Any("error", err))
			return
		}
		if len(result.Failed) > 0 {
			log.Warn("ledger audit found inconsistent loans", slog.Int("failed", len(result.Failed)), slog.Int("checked", result.Checked))
		}
	})
	return err
}
