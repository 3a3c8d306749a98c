package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/partyfinder/internal/api"
	"github.com/charlesng35/partyfinder/internal/app"
	"github.com/charlesng35/partyfinder/internal/app/maintenance"
	iauth "github.com/charlesng35/partyfinder/internal/auth"
	"github.com/charlesng35/partyfinder/internal/cache"
	"github.com/charlesng35/partyfinder/internal/database"
	"github.com/charlesng35/partyfinder/internal/events"
	"github.com/charlesng35/partyfinder/internal/monitoring"
	"github.com/charlesng35/partyfinder/internal/monitoring/checks"
	"github.com/charlesng35/partyfinder/internal/realtime"
	"github.com/charlesng35/partyfinder/internal/services"
	"github.com/charlesng35/partyfinder/internal/storage"
	"github.com/charlesng35/partyfinder/pkg/logger"
)

const (
	healthCheckTimeout = 3 * time.Second
	maxPendingOutbox   = 1000
	maintenanceGrace   = 2 * time.Minute
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	Kafka     *events.KafkaPublisher
	Hub       *realtime.Hub
	Parties   *services.PartyService
	Scheduler *maintenance.Scheduler
	Health    *monitoring.HealthManager
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, cache, event pipeline, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore, err := cache.NewDatabaseStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise database cache: %w", err)
	}

	var sharedCache cache.Store = dbStore
	var cachePurger maintenance.CachePurger = dbStore
	var cachePinger checks.Pinger
	if cfg.Cache.Redis.Enabled {
		stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
			sharedCache = stack.Redis
			cachePurger = nil
			cachePinger = stack.Redis
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	partyStore, err := storage.NewPartyStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise party store: %w", err)
	}
	outboxStore, err := storage.NewOutboxStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise outbox store: %w", err)
	}

	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	stack.Hub = realtime.NewHub()
	notificationSvc, err := services.NewNotificationService(stack.DB, stack.Hub)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}
	notifier, err := services.NewPartyNotifier(notificationSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise party notifier: %w", err)
	}

	stack.Parties, err = services.NewPartyService(partyStore, sharedCache, auditSvc, cfg.Party.PartyServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise party service: %w", err)
	}

	sinks := events.Fanout{
		notifier,
		events.NewRealtimePublisher(stack.Hub),
		events.PublisherFunc(stack.Parties.InvalidateEvents),
	}
	if cfg.Events.Kafka.Enabled {
		stack.Kafka, err = events.NewKafkaPublisher(cfg.Events.KafkaPublisherConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise kafka publisher: %w", err)
		}
		sinks = append(sinks, stack.Kafka)
		log.Info("kafka event sink enabled", zap.Strings("brokers", cfg.Events.Kafka.Brokers), zap.String("topic", cfg.Events.Kafka.Topic))
	}

	relay, err := events.NewRelay(outboxStore, sinks, cfg.Events.RelayOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise outbox relay: %w", err)
	}

	deps := maintenance.Dependencies{
		Relay:  relay,
		Expiry: stack.Parties.Engine(),
		Slots:  partyStore,
		Audit:  auditSvc,
		Outbox: outboxStore,
		Cache:  cachePurger,
	}
	stack.Scheduler = maintenance.NewScheduler(deps, cfg.SchedulerOptions()...)
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Health = monitoring.NewHealthManager(healthCheckTimeout)
	stack.Health.RegisterReadiness(checks.Database(stack.DB))
	stack.Health.RegisterReadiness(checks.Cache(cachePinger))
	stack.Health.RegisterReadiness(checks.Outbox(outboxStore, maxPendingOutbox))
	stack.Health.RegisterReadiness(checks.Maintenance(stack.Scheduler, maintenanceGrace))

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:        cfg,
		Tokens:        jwtSvc,
		Parties:       stack.Parties,
		Notifications: notificationSvc,
		Hub:           stack.Hub,
		Health:        stack.Health,
		RateStore:     sharedCache,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, delivers queued events and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		<-s.Scheduler.Stop().Done()
		if err := s.Scheduler.FlushOutbox(ctx); err != nil {
			log.Warn("final outbox flush failed", zap.Error(err))
		}
	}

	if s.Kafka != nil {
		if err := s.Kafka.Close(); err != nil {
			log.Warn("kafka shutdown", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Prepare(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("prepare database: %w", err)
	}

	driver := strings.ToLower(strings.TrimSpace(dbCfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}
	logger.WithModule("database").Info("database connected", zap.String("driver", driver))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
