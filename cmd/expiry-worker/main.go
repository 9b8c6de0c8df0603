package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/config"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/database"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/repository"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/pkg/logging"
)

const sweepInterval = time.Minute

// The worker cancels consultations that stayed pending past the configured
// expiry window, freeing their slots for new bookings. With the window set
// to zero the worker exits immediately and pending bookings never expire.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.PendingExpiryHours <= 0 {
		log.Println("PENDING_EXPIRY_HOURS is not set, nothing to do")
		return
	}

	appLogger := logging.New(cfg.LogLevel)

	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	consultationRepo := repository.NewConsultationRepository(repository.NewRetryingDB(database.DB))
	expiry := time.Duration(cfg.PendingExpiryHours) * time.Hour

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	appLogger.Info("expiry worker started", "expiry_hours", cfg.PendingExpiryHours)

	for {
		cutoff := time.Now().UTC().Add(-expiry)
		ids, err := consultationRepo.CancelExpiredPending(ctx, cutoff)
		if err != nil {
			appLogger.Error("expire pending consultations", "error", err)
		} else if len(ids) > 0 {
			appLogger.Info("expired pending consultations", "count", len(ids), "ids", ids)
		}

		select {
		case <-ctx.Done():
			appLogger.Info("expiry worker stopping")
			return
		case <-ticker.C:
		}
	}
}
