package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"propertyhub/internal/config"
	"propertyhub/internal/database"
	"propertyhub/internal/modules/booking"
	"propertyhub/internal/modules/gateway"
	"propertyhub/internal/modules/ledger"
	"propertyhub/internal/modules/registry"
)

// Standalone sweep runner for deployments that keep cron outside the API
// process. Each flag selects one sweep; with no flags, all of them run.
func main() {
	runCheckout := flag.Bool("checkout", false, "run the auto-checkout sweep")
	runExpiry := flag.Bool("expiry", false, "run the booking expiration sweep")
	runGateway := flag.Bool("gateway", false, "run the pending gateway sweep")
	runReconcile := flag.Bool("reconcile", false, "run the ledger reconciliation sweep")
	runSync := flag.Bool("sync", false, "run the room/property status sync")
	flag.Parse()

	all := !*runCheckout && !*runExpiry && !*runGateway && !*runReconcile && !*runSync

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if all || *runCheckout {
		if cfg.AutoCheckoutEnabled {
			n, err := booking.NewService(db, cfg.DefaultBookingExpirationHours).AutoCheckoutSweep(ctx)
			report("auto-checkout", n, err)
		} else {
			logrus.Info("auto-checkout disabled, skipping")
		}
	}
	if all || *runExpiry {
		n, err := booking.NewService(db, cfg.DefaultBookingExpirationHours).ExpirePendingSweep(ctx)
		report("booking expiry", n, err)
	}
	if all || *runGateway {
		ledgerSvc := ledger.NewService(db, cfg.CurrencyTolerance, nil)
		client := gateway.NewAzamClient(cfg.AzamPay, cfg.GatewayHTTPTimeout)
		gatewaySvc := gateway.NewService(db, client, ledgerSvc, cfg.GatewayWebhookURL, cfg.Currency)
		n, err := gatewaySvc.PendingSweep(ctx, cfg.GatewayPendingTimeout)
		report("gateway pending", n, err)
	}
	if all || *runReconcile {
		n, err := ledger.NewService(db, cfg.CurrencyTolerance, nil).ReconcileSweep(ctx)
		report("ledger reconciliation", n, err)
	}
	if all || *runSync {
		err := registry.NewService(db).SyncAllProperties(ctx)
		report("registry sync", 0, err)
	}
}

func report(name string, n int, err error) {
	if err != nil {
		logrus.WithError(err).Errorf("%s sweep failed", name)
		return
	}
	logrus.WithField("count", n).Infof("%s sweep done", name)
}
