package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"propertyhub/internal/config"
)

// BookingSweeper is the slice of the booking manager the scheduler drives.
type BookingSweeper interface {
	AutoCheckoutSweep(ctx context.Context) (int, error)
	ExpirePendingSweep(ctx context.Context) (int, error)
}

// GatewaySweeper expires stuck gateway transactions.
type GatewaySweeper interface {
	PendingSweep(ctx context.Context, timeout time.Duration) (int, error)
}

// LedgerReconciler rederives booking payment fields from the ledger.
type LedgerReconciler interface {
	ReconcileSweep(ctx context.Context) (int, error)
}

// RegistrySyncer re-derives room and property statuses.
type RegistrySyncer interface {
	SyncAllProperties(ctx context.Context) error
}

// Scheduler owns the periodic jobs. List and read endpoints never mutate;
// every time-driven transition happens here.
type Scheduler struct {
	cron *cron.Cron
	cfg  *config.Config
	log  *logrus.Entry

	bookings BookingSweeper
	gateway  GatewaySweeper
	ledger   LedgerReconciler
	registry RegistrySyncer
}

func New(cfg *config.Config, bookings BookingSweeper, gateway GatewaySweeper, ledger LedgerReconciler, registry RegistrySyncer) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		log:      logrus.WithField("component", "scheduler"),
		bookings: bookings,
		gateway:  gateway,
		ledger:   ledger,
		registry: registry,
	}
}

func (s *Scheduler) Start() error {
	if s.cfg.AutoCheckoutEnabled {
		if _, err := s.cron.AddFunc("15 0 * * *", s.runAutoCheckout); err != nil {
			return err
		}
	}
	if _, err := s.cron.AddFunc("@every 10m", s.runGatewaySweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1h", s.runBookingExpiry); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("45 1 * * *", s.runReconcile); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("30 0 * * *", s.runRegistrySync); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runAutoCheckout() {
	ctx, cancel := jobContext()
	defer cancel()
	n, err := s.bookings.AutoCheckoutSweep(ctx)
	if err != nil {
		s.log.WithError(err).Error("auto-checkout sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("count", n).Info("auto-checkout sweep completed")
	}
}

func (s *Scheduler) runGatewaySweep() {
	ctx, cancel := jobContext()
	defer cancel()
	n, err := s.gateway.PendingSweep(ctx, s.cfg.GatewayPendingTimeout)
	if err != nil {
		s.log.WithError(err).Error("gateway pending sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("count", n).Info("gateway pending sweep completed")
	}
}

func (s *Scheduler) runBookingExpiry() {
	ctx, cancel := jobContext()
	defer cancel()
	n, err := s.bookings.ExpirePendingSweep(ctx)
	if err != nil {
		s.log.WithError(err).Error("booking expiry sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("count", n).Info("booking expiry sweep completed")
	}
}

func (s *Scheduler) runReconcile() {
	ctx, cancel := jobContext()
	defer cancel()
	n, err := s.ledger.ReconcileSweep(ctx)
	if err != nil {
		s.log.WithError(err).Error("ledger reconciliation failed")
		return
	}
	if n > 0 {
		s.log.WithField("corrected", n).Warn("ledger reconciliation corrected bookings")
	}
}

func (s *Scheduler) runRegistrySync() {
	ctx, cancel := jobContext()
	defer cancel()
	if err := s.registry.SyncAllProperties(ctx); err != nil {
		s.log.WithError(err).Error("registry sync failed")
	}
}

func jobContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Minute)
}
