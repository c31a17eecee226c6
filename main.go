package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"sjsage522/listingwatcher/config"
	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/internal"
	"sjsage522/listingwatcher/logger"
	"sjsage522/listingwatcher/services/cache"
	"sjsage522/listingwatcher/services/notifier"
	"sjsage522/listingwatcher/services/publisher"
	"sjsage522/listingwatcher/services/store"
	"sjsage522/listingwatcher/services/worker"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 when every topic succeeded, 1 otherwise
func run() int {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("store", cfg.StoreBackend).
		Int("topics", len(cfg.Topics)).
		Str("schedule", cfg.ScanSchedule).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	}()

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize services")
		return 1
	}
	defer services.Cleanup()

	w := worker.NewWorker(cfg.Topics, services.Deps, helpers.NewLogger(cfg.ErrorLogFile), cfg.ScanSchedule)
	if err := w.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Scan finished with failures")
		return 1
	}

	log.Info().Msg("Shutting down gracefully...")
	return 0
}

// Services holds all the initialized services
type Services struct {
	Redis *redis.Client
	Deps  internal.Dependencies
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Redis != nil {
		s.Redis.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Memcache backs the rate limit blocks and optionally the seen store
	var memcacheSvc *cache.MemcacheService
	var cacheSvc cache.CacheService
	if cfg.MemcacheAddr != "" {
		memcacheSvc = cache.NewMemcacheService(cfg.MemcacheAddr, 2*time.Second)
		if err := memcacheSvc.Client().Ping(); err != nil {
			return nil, fmt.Errorf("failed to reach memcache at %s: %w", cfg.MemcacheAddr, err)
		}
		cacheSvc = memcacheSvc
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	if cfg.StoreBackend == config.StoreRedis || cfg.RedisStream != "" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		services.Redis = client
		logger.Info("Connected to Redis at %s (DB: %d)", cfg.RedisAddr, cfg.RedisDB)
	}

	var seenStore store.SeenStore
	switch cfg.StoreBackend {
	case config.StoreRedis:
		seenStore = store.NewRedisStore(services.Redis, cfg.RedisKeyPrefix)
	case config.StoreMemcache:
		seenStore = store.NewMemcacheStore(memcacheSvc.Client(), cfg.RedisKeyPrefix)
	default:
		seenStore = store.NewFileStore(cfg.DataDir)
	}

	tg, err := notifier.NewTelegramNotifier(cfg.APIToken, cfg.ChatID, cfg.FetchTimeout)
	if err != nil {
		services.Cleanup()
		return nil, err
	}

	services.Deps = internal.Dependencies{
		Fetcher:  helpers.NewFetcher(cfg.FetchTimeout, cacheSvc, cfg.RateLimitBlock),
		Store:    seenStore,
		Flag:     store.NewFileFlag(cfg.DirtyFlagPath),
		Notifier: tg,
	}

	if cfg.RedisStream != "" {
		services.Deps.Publisher = publisher.NewRedisPublisher(services.Redis, cfg.RedisStream, cfg.RedisStreamMaxLength)
		logger.Info("Publishing listing events to stream %s", cfg.RedisStream)
	}

	return services, nil
}
