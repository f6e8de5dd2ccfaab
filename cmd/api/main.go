package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"propertyhub/internal/config"
	"propertyhub/internal/database"
	"propertyhub/internal/middleware"
	"propertyhub/internal/modules/auth"
	"propertyhub/internal/modules/availability"
	"propertyhub/internal/modules/booking"
	"propertyhub/internal/modules/gateway"
	"propertyhub/internal/modules/ledger"
	"propertyhub/internal/modules/notification"
	"propertyhub/internal/modules/registry"
	"propertyhub/internal/modules/visit"
	"propertyhub/internal/pkg/jwt"
	"propertyhub/internal/pkg/receipt"
	"propertyhub/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("migration failed")
	}

	jwtSvc := jwt.New(cfg.JWTSecret, cfg.JWTAccessTTL)
	receipts := receipt.NewStore(cfg.ReceiptDir)
	hub := notification.NewHub()
	defer hub.Close()

	authSvc := auth.NewService(db, jwtSvc)
	availabilitySvc := availability.NewService(db)
	registrySvc := registry.NewService(db)
	bookingSvc := booking.NewService(db, cfg.DefaultBookingExpirationHours)
	ledgerSvc := ledger.NewService(db, cfg.CurrencyTolerance, hub)

	azamClient := gateway.NewAzamClient(cfg.AzamPay, cfg.GatewayHTTPTimeout)
	gatewaySvc := gateway.NewService(db, azamClient, ledgerSvc, cfg.GatewayWebhookURL, cfg.Currency)
	visitSvc := visit.NewService(db, gatewaySvc, cfg.VisitAccessTTL)
	gatewaySvc.AddListener(visitSvc)

	sched := scheduler.New(cfg, bookingSvc, gatewaySvc, ledgerSvc, registrySvc)
	if err := sched.Start(); err != nil {
		logrus.WithError(err).Fatal("scheduler failed to start")
	}
	defer sched.Stop()

	if config.IsProdLike(cfg.AppEnv) {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.CORS())

	authHandler := auth.NewHandler(authSvc)
	availabilityHandler := availability.NewHandler(availabilitySvc)
	registryHandler := registry.NewHandler(registrySvc)
	bookingHandler := booking.NewHandler(bookingSvc)
	ledgerHandler := ledger.NewHandler(ledgerSvc, receipts)
	gatewayHandler := gateway.NewHandler(gatewaySvc)
	visitHandler := visit.NewHandler(visitSvc)
	notificationHandler := notification.NewHandler(hub, db)

	adminOnly := middleware.RequireRole("admin")
	managerUp := middleware.RequireRole("admin", "manager")
	staffUp := middleware.RequireRole("admin", "manager", "staff")

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)
		gatewayHandler.RegisterWebhook(v1)

		protected := v1.Group("/")
		protected.Use(middleware.Auth(jwtSvc))
		{
			authHandler.RegisterProtectedRoutes(protected)
			availabilityHandler.RegisterRoutes(protected)
			visitHandler.RegisterRoutes(protected)
			notificationHandler.RegisterRoutes(protected)
			bookingHandler.RegisterRoutes(protected, staffUp, adminOnly)
			gatewayHandler.RegisterRoutes(protected)

			staff := protected.Group("/")
			staff.Use(staffUp)
			{
				registryHandler.RegisterRoutes(staff, adminOnly)
				ledgerHandler.RegisterRoutes(staff, managerUp, adminOnly)
			}
		}
	}

	logrus.WithField("addr", cfg.ListenAddr).Info("api listening")
	if err := r.Run(cfg.ListenAddr); err != nil {
		logrus.WithError(err).Fatal("server exited")
	}
}
