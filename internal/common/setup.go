package common

import (
	"context"
	"log"
	"strings"

	"group-shipment-go/internal/cache"
	"group-shipment-go/internal/database"
	"group-shipment-go/internal/earnings"
	"group-shipment-go/internal/formance"
	"group-shipment-go/internal/groups"
	"group-shipment-go/internal/handoff"
	"group-shipment-go/internal/models"
	"group-shipment-go/internal/notify"
	"group-shipment-go/internal/payment"
	"group-shipment-go/internal/payouts"
	"group-shipment-go/internal/reconciler"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services is the wired domain: one store shared by every component.
type Services struct {
	DbService   *database.Service
	Notifier    notify.Notifier
	Mirror      *formance.Service
	Guard       reconciler.OnceGuard
	Registry    *groups.Registry
	Ledger      *earnings.Ledger
	Payouts     *payouts.Service
	Coordinator *handoff.Coordinator
	Payments    *payment.EventHandler

	redisGuard *cache.RedisGuard
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and wires every component. Optional
// collaborators (SNS, Twilio, Redis, payment, Formance) are only connected
// when configured.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	s := &Services{DbService: dbService}

	notifier, err := initializeNotifier(ctx, cfg.Notification)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Notifier = notifier

	var mirror earnings.Mirror
	if cfg.Formance.StackURL != "" {
		s.Mirror, err = formance.NewService(ctx, cfg.Formance)
		if err != nil {
			s.Close()
			return nil, err
		}
		mirror = s.Mirror
	}

	var refunder groups.Refunder = payment.NoopClient{}
	if cfg.Payment.RefundURL != "" {
		client, err := payment.NewHTTPClient(cfg.Payment)
		if err != nil {
			s.Close()
			return nil, err
		}
		refunder = client
	}

	s.Guard = cache.NewStoreGuard(dbService)
	if cfg.Redis.Enabled {
		redisGuard, err := cache.NewRedisGuard(ctx, cfg.Redis)
		if err != nil {
			zap.L().Warn("Redis unavailable, urgency guard falls back to the database", zap.Error(err))
		} else {
			s.redisGuard = redisGuard
			s.Guard = redisGuard
		}
	}

	s.Registry = groups.NewRegistry(dbService, refunder, notifier, cfg.Policy)
	s.Ledger = earnings.NewLedger(dbService, notifier, mirror, cfg.Policy)
	s.Payouts = payouts.NewService(dbService, notifier, mirror, cfg.Policy)
	s.Coordinator = handoff.NewCoordinator(dbService, s.Ledger, notifier)
	s.Payments = payment.NewEventHandler(dbService, s.Ledger)

	zap.L().Info("Services initialized",
		zap.Bool("formance_mirror", s.Mirror != nil),
		zap.Bool("redis_guard", s.redisGuard != nil),
		zap.Bool("payment_client", cfg.Payment.RefundURL != ""))
	return s, nil
}

// NewReconciler builds the background sweeps over the wired services.
func (cs *Services) NewReconciler(cfg *models.Config) (*reconciler.Reconciler, error) {
	return reconciler.New(reconciler.Config{
		Groups:            cs.DbService,
		Finalizer:         cs.Registry,
		Earnings:          cs.Ledger,
		Guard:             cs.Guard,
		Notifier:          cs.Notifier,
		Policy:            cfg.Policy,
		DeadlineInterval:  cfg.Sweeps.DeadlineInterval,
		UrgencyInterval:   cfg.Sweeps.UrgencyInterval,
		ClearanceInterval: cfg.Sweeps.ClearanceInterval,
		BatchSize:         cfg.Sweeps.BatchSize,
	})
}

func initializeNotifier(ctx context.Context, cfg models.NotificationConfig) (notify.Notifier, error) {
	notifiers := notify.Multi{notify.LogNotifier{}}

	if cfg.SNSTopicArn != "" {
		sns, err := notify.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.SNSTopicArn)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, sns)
	}
	if cfg.TwilioAccountSid != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		notifiers = append(notifiers, notify.NewTwilioNotifier(cfg.TwilioAccountSid, cfg.TwilioAuthToken, cfg.TwilioFromNumber))
	}

	zap.L().Info("Notifiers configured", zap.Int("count", len(notifiers)))
	return notifiers, nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.redisGuard != nil {
		if err := cs.redisGuard.Close(); err != nil {
			zap.L().Warn("Failed to close redis guard", zap.Error(err))
		}
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
