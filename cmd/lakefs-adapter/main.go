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
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/lakefs-adapter/internal/api"
	"github.com/Checker-Finance/lakefs-adapter/internal/audit"
	"github.com/Checker-Finance/lakefs-adapter/internal/jobs"
	"github.com/Checker-Finance/lakefs-adapter/internal/lakefs"
	"github.com/Checker-Finance/lakefs-adapter/internal/publisher"
	"github.com/Checker-Finance/lakefs-adapter/internal/rate"
	"github.com/Checker-Finance/lakefs-adapter/internal/store"
	"github.com/Checker-Finance/lakefs-adapter/pkg/config"
	"github.com/Checker-Finance/lakefs-adapter/pkg/logger"
	"github.com/Checker-Finance/lakefs-adapter/pkg/secrets"
	"github.com/Checker-Finance/lakefs-adapter/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [lakefs-adapter]...")

	// --- Secrets provider ---
	var provider secrets.Provider
	switch cfg.SecretsSource {
	case config.SecretsSourceEnv:
		name := fmt.Sprintf("%s/%s/%s", cfg.Env, cfg.LocalClientID, lakefs.ServiceName)
		provider = secrets.NewEnvProvider(name, "LAKEFS")
		logg.Infow("using environment secrets provider", "secret", name)
	default:
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		provider = awsProvider
	}

	// --- Per-client config resolver (secrets cached in-memory) ---
	configCache := secrets.NewCache[lakefs.ClientConfig](cfg.CacheTTL)
	stopCleaner := make(chan struct{})
	go configCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

	resolver := lakefs.NewSecretsResolver(
		logg.Desugar(),
		cfg.Env,
		cfg.LakeFSBaseURL,
		provider,
		configCache,
	)

	// --- Discover configured clients ---
	clients, err := resolver.DiscoverClients(ctx)
	if err != nil {
		logg.Warnw("failed to discover lakeFS clients", "error", err)
	} else {
		logg.Infow("discovered lakeFS clients", "count", len(clients), "clients", clients)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	pub, err := publisher.New(nc, cfg.EventSubject, cfg.ServiceName)
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}
	if err := pub.EnsureStream(cfg.EventStream); err != nil {
		logg.Warnw("failed to ensure event stream", "stream", cfg.EventStream, "error", err)
	}

	// --- Session store (Redis) ---
	st, err := store.NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Login audit trail (optional) ---
	var auditWriter *audit.Writer
	if cfg.DatabaseURL != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
		pool, err := audit.NewPool(ctx, cfg.DatabaseURL, audit.PoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		})
		if err != nil {
			logg.Fatalw("failed to init audit pool", "error", err)
		}
		auditWriter = audit.NewWriter(pool, logger.L(), cfg.ServiceName)
		if err := auditWriter.EnsureSchema(ctx); err != nil {
			logg.Fatalw("failed to ensure audit schema", "error", err)
		}
	}

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
		Cooldown:          1 * time.Second,
	})

	// --- lakeFS HTTP client ---
	lakefsClient := lakefs.NewClient(
		logg.Desugar(),
		rateMgr,
		&http.Client{Timeout: cfg.HTTPClientTimeout},
		cfg.HTTPRetryMax,
	)

	// --- Session manager ---
	opts := lakefs.SessionOptions{
		Resolver:      resolver,
		Client:        lakefsClient,
		Store:         st,
		Publisher:     pub,
		RefreshBuffer: cfg.SessionRefreshBuffer,
		DefaultTTL:    cfg.DefaultTokenTTL,
	}
	auditCheck := api.NamedCheck{Name: "audit"}
	if auditWriter != nil {
		opts.Audit = auditWriter
		auditCheck.Checker = auditWriter
	}
	sessions := lakefs.NewSessionManager(logg.Desugar(), opts)

	// --- Session refresher ---
	refresher := jobs.NewSessionRefresher(logg.Desugar(), sessions, pub, cfg.SessionRefreshInterval)
	refresher.SetThrottleChecker(rateMgr)
	go refresher.Start(ctx)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	clientValidator := api.NewResolverValidator(resolver)
	lakefsHandler := api.NewLakeFSHandler(logg.Desugar(), sessions, clientValidator)

	api.RegisterRoutes(app, []api.NamedCheck{
		{Name: "nats", Checker: pub},
		{Name: "store", Checker: st},
		auditCheck,
	}, lakefsHandler)

	// Start HTTP server
	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[lakefs-adapter] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"refresh_interval", cfg.SessionRefreshInterval,
		"discovered_clients", len(clients))

	<-ctx.Done()
	logg.Info("shutting down [lakefs-adapter]...")

	close(stopCleaner)
	refresher.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	pub.Close()
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
	auditWriter.Close()
}
