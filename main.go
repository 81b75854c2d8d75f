package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/library-seat-app/config"
	"github.com/yeremiapane/library-seat-app/database"
	"github.com/yeremiapane/library-seat-app/hub"
	"github.com/yeremiapane/library-seat-app/obs"
	"github.com/yeremiapane/library-seat-app/router"
	"github.com/yeremiapane/library-seat-app/services"
	"github.com/yeremiapane/library-seat-app/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to load config: %v", err)
	}
	utils.InitLoggerWith(cfg.LogLevel, cfg.LogFormat)

	if cfg.GinMode == gin.ReleaseMode || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" && cfg.IsProduction() {
		utils.ErrorLogger.Fatal("JWT_SECRET is required in production")
	}
	utils.SetJWTConfig(cfg.JWTSecret, cfg.JWTTTL)

	// Initialize DB
	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	if err := database.ExecuteSQLFile(db, "database/migrations/indexes.sql"); err != nil {
		utils.ErrorLogger.Printf("Error applying indexes: %v", err)
	}
	if err := database.SeedSuperAdmin(db, cfg.SuperAdminEmail, cfg.SuperAdminPassword); err != nil {
		utils.ErrorLogger.Printf("Error seeding super admin: %v", err)
	}

	rdb := config.NewRedisClient(cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	publisher := services.NewPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
	defer publisher.Close()

	store, err := newStorage(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to initialize storage: %v", err)
	}

	var gateway services.PaymentGateway
	if g := services.NewMidtransGateway(cfg.MidtransServerKey, cfg.MidtransEnv); g != nil {
		gateway = g
	} else {
		utils.InfoLogger.Println("MIDTRANS_SERVER_KEY not set, online payments disabled")
	}

	liveHub := hub.NewHub()
	bookings := services.NewBookingService(db, services.BookingRules{
		MaxAdvanceDays: cfg.BookingMaxAdvanceDays,
		MaxHours:       cfg.BookingMaxHours,
	}, publisher, liveHub)
	memberships := services.NewMembershipService(db, gateway, publisher, liveHub)

	scheduler := services.NewScheduler(bookings, memberships, cfg.PaymentPendingTTL)
	if err := scheduler.Start(); err != nil {
		utils.ErrorLogger.Fatalf("Failed to start scheduler: %v", err)
	}

	shutdownTracer, err := obs.InitTracer(context.Background(), cfg.ServiceName, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		utils.ErrorLogger.Printf("Tracing disabled: %v", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	r := router.SetupRouter(router.Deps{
		Config:      cfg,
		DB:          db,
		Redis:       rdb,
		Hub:         liveHub,
		Bookings:    bookings,
		Memberships: memberships,
		Dashboard:   services.NewDashboardService(db),
		Images:      services.NewImageUploader(store),
		Google:      services.GoogleVerifier{ClientID: cfg.GoogleClientID},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.InfoLogger.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Printf("Server forced to shutdown: %v", err)
	}
	<-scheduler.Stop().Done()
	if err := shutdownTracer(ctx); err != nil {
		utils.ErrorLogger.Printf("Tracer shutdown: %v", err)
	}
	utils.InfoLogger.Println("Server exited")
}

func newStorage(cfg config.Config) (services.Storage, error) {
	if cfg.StorageDriver == "oss" {
		return services.NewOSSStorage(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey, cfg.OSSBucket, cfg.OSSPublicDomain)
	}
	return services.NewLocalStorage(cfg.UploadDir, cfg.PublicBaseURL)
}
