/**
 * @description
 * Scheduled balance reconciliation. Every account's stored balance is
 * recomputed from its completed records; any disagreement is logged and
 * published for operators. The job only reads the ledger.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/pkg/rabbitmq"
)

const reconcileTimeout = 2 * time.Minute

// DriftFinder is the read the reconciliation job needs from the store.
type DriftFinder interface {
	FindBalanceDrifts(ctx context.Context) ([]domain.BalanceDrift, error)
}

// Reconciler runs balance reconciliation on a cron schedule.
type Reconciler struct {
	repo          DriftFinder
	eventProducer rabbitmq.Publisher
	eventExchange string
	logger        *slog.Logger
	cron          *cron.Cron
	now           func() time.Time
}

// NewReconciler creates a reconciler. eventProducer may be nil.
func NewReconciler(repo DriftFinder, eventProducer rabbitmq.Publisher, eventExchange string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Reconciler{
		repo:          repo,
		eventProducer: eventProducer,
		eventExchange: eventExchange,
		logger:        logger,
		cron:          cron.New(cron.WithChain(cron.Recover(cronLogger))),
		now:           time.Now,
	}
}

// RunOnce performs one reconciliation pass and returns the drifted accounts.
func (r *Reconciler) RunOnce(ctx context.Context) ([]domain.BalanceDrift, error) {
	drifts, err := r.repo.FindBalanceDrifts(ctx)
	if err != nil {
		return nil, fmt.Errorf("find balance drifts: %w", err)
	}

	detectedAt := r.now().UTC()
	for _, drift := range drifts {
		r.logger.Error("ledger balance mismatch",
			"account_id", drift.AccountID,
			"account_number", domain.MaskAccountNumber(drift.AccountNumber),
			"stored", domain.FormatAmount(drift.Stored),
			"computed", domain.FormatAmount(drift.Computed),
		)
		if r.eventProducer == nil {
			continue
		}
		event := domain.ReconciliationMismatchEvent{
			AccountID:     drift.AccountID.String(),
			AccountNumber: drift.AccountNumber,
			Stored:        domain.FormatAmount(drift.Stored),
			Computed:      domain.FormatAmount(drift.Computed),
			DetectedAt:    detectedAt,
		}
		if err := r.eventProducer.Publish(ctx, r.eventExchange, domain.EventReconciliationMismatch, event); err != nil {
			r.logger.Warn("failed to publish reconciliation mismatch", "account_id", drift.AccountID, "error", err)
		}
	}
	return drifts, nil
}

func (r *Reconciler) runScheduled() {
	r.logger.Info("starting balance reconciliation job")
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	drifts, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error("balance reconciliation job failed", "error", err)
		return
	}
	r.logger.Info("balance reconciliation job finished", "mismatches", len(drifts))
}

// Start registers the job on schedule and starts the cron scheduler.
func (r *Reconciler) Start(schedule string) error {
	if _, err := r.cron.AddFunc(schedule, r.runScheduled); err != nil {
		return fmt.Errorf("schedule reconciliation job: %w", err)
	}
	r.logger.Info("scheduled balance reconciliation job", "schedule", schedule)
	r.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (r *Reconciler) Stop() context.Context {
	return r.cron.Stop()
}
