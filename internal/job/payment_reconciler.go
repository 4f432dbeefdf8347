package job

import (
	"context"
	"fmt"
	"time"

	"github.com/lshigami/padhoplus/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const reconcileTimeout = 4 * time.Minute

// Reconciler settles payments that the gateway never reported back on.
type Reconciler interface {
	Reconcile(ctx context.Context, olderThan time.Time) (int, error)
}

// PaymentReconciler runs Reconciler on a cron schedule.
type PaymentReconciler struct {
	reconciler Reconciler
	schedule   string
	grace      time.Duration
	cron       *cron.Cron
	now        func() time.Time
}

func NewPaymentReconciler(cfg *config.Config, reconciler Reconciler) *PaymentReconciler {
	return &PaymentReconciler{
		reconciler: reconciler,
		schedule:   cfg.Reconcile.Cron,
		grace:      cfg.Reconcile.GracePeriod,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		now:        time.Now,
	}
}

// RunOnce reconciles every payment untouched for longer than the grace period.
func (r *PaymentReconciler) RunOnce(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.grace)
	settled, err := r.reconciler.Reconcile(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("Payment reconciliation failed")
		return settled, err
	}
	if settled > 0 {
		log.Info().Int("settled", settled).Time("cutoff", cutoff).Msg("Payments reconciled")
	}
	return settled, nil
}

// Start registers the schedule and starts the cron runner. An empty
// schedule disables reconciliation.
func (r *PaymentReconciler) Start() error {
	if r.schedule == "" {
		log.Warn().Msg("RECONCILE_CRON is empty, payment reconciliation is disabled")
		return nil
	}
	_, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()
		_, _ = r.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	log.Info().Str("schedule", r.schedule).Dur("grace", r.grace).Msg("Payment reconciler started")
	return nil
}

// Stop waits for a running reconciliation to finish or ctx to expire.
func (r *PaymentReconciler) Stop(ctx context.Context) error {
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
