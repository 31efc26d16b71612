package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/covid-dashboard/internal/api/http"
	"github.com/i474232898/covid-dashboard/internal/cache"
	"github.com/i474232898/covid-dashboard/internal/config"
	"github.com/i474232898/covid-dashboard/internal/covid"
	"github.com/i474232898/covid-dashboard/internal/covid/providers"
	"github.com/i474232898/covid-dashboard/internal/logging"
	"github.com/i474232898/covid-dashboard/internal/scheduler"
	"github.com/i474232898/covid-dashboard/internal/store"
)

func main() {
	envErr := godotenv.Load()

	log, err := logging.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Info("no .env file loaded", zap.Error(envErr))
	}

	if err := run(log); err != nil {
		log.Fatal("covid-dashboard stopped", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	countries, err := covid.NewCountrySet(covid.DefaultCountries)
	if err != nil {
		return err
	}
	if countries, err = countries.Subset(cfg.Countries); err != nil {
		return err
	}

	pops, err := covid.LoadPopulations(cfg.PopulationFile)
	if err != nil {
		return fmt.Errorf("failed to load population reference: %w", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancelStartup()

	backend, err := newCacheBackend(startupCtx, cfg)
	if err != nil {
		return err
	}
	responseCache := cache.New(backend, log.Named("cache"))
	defer responseCache.Close()

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	source := providers.NewCovidAPIProvider(httpClient, responseCache, countries, providers.CovidAPIOptions{
		BaseURL:    cfg.SourceBaseURL,
		CacheTTL:   cfg.CacheTTL,
		MaxRetries: cfg.FetchMaxRetries,
	})

	// The aggregate table is built exactly once; a failure here is fatal.
	tables, err := covid.BuildAggregate(startupCtx, log, source, pops, countries, cfg.Variant, cfg.FetchWorkers)
	if err != nil {
		return fmt.Errorf("failed to build aggregate table: %w", err)
	}
	snapshot, err := store.NewSnapshot(tables)
	if err != nil {
		return err
	}
	log.Info("snapshot ready",
		zap.String("id", snapshot.ID()),
		zap.Int("rows", snapshot.Len()),
		zap.Any("cache", responseCache.Stats()))

	service := covid.NewService(snapshot, countries, cfg.Variant)

	sched := scheduler.New(responseCache, cfg.CachePurgeInterval, log.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "covid-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "covid-dashboard",
			"snapshot": snapshot.ID(),
			"built_at": snapshot.BuiltAt(),
			"variant":  cfg.Variant.Name,
			"cache":    responseCache.Stats(),
		})
	})

	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", zap.Error(err))
		}
	}()
	log.Info("listening", zap.String("port", cfg.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn("error during shutdown", zap.Error(err))
	}
	return nil
}

func newCacheBackend(ctx context.Context, cfg *config.AppConfig) (cache.Backend, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		return cache.NewRedisBackend(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return cache.NewSQLiteBackend(cfg.CachePath)
	}
}
