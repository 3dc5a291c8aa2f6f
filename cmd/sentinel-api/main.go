package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/CyberSentinel/internal/analysis"
	"github.com/jmerrifield20/CyberSentinel/internal/api/handler"
	"github.com/jmerrifield20/CyberSentinel/internal/cache"
	"github.com/jmerrifield20/CyberSentinel/internal/cases"
	"github.com/jmerrifield20/CyberSentinel/internal/config"
	"github.com/jmerrifield20/CyberSentinel/internal/events"
	"github.com/jmerrifield20/CyberSentinel/internal/health"
	"github.com/jmerrifield20/CyberSentinel/internal/inference"
	"github.com/jmerrifield20/CyberSentinel/internal/ledger"
	"github.com/jmerrifield20/CyberSentinel/internal/report"
	"github.com/jmerrifield20/CyberSentinel/internal/retrieval"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("CYBERSENTINEL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	if cfg.Log.Development {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("sentinel-api exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	if cfg.File == "" {
		logger.Warn("no config file found, using defaults and env vars")
	} else {
		logger.Info("config loaded", zap.String("file", cfg.File))
	}
	if cfg.EnvFile != "" {
		logger.Info("env file loaded", zap.String("file", cfg.EnvFile))
	}

	startCtx := context.Background()

	// ── Persistence (case history + audit ledger) ────────────────────────────
	var (
		caseRepo cases.Repository
		audit    ledger.Ledger
	)
	if cfg.Database.URL != "" {
		db, err := pgxpool.New(startCtx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer db.Close()

		if err := db.Ping(startCtx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")

		caseRepo = cases.NewPostgresRepository(db)
		audit = ledger.NewPostgresLedger(db, logger)
	} else {
		logger.Info("case history: in-memory (set database.url to persist)")
		caseRepo = cases.NewMemoryRepository()
		audit = ledger.NewMemoryLedger()
	}

	if err := audit.Verify(startCtx); err != nil {
		logger.Warn("case audit trail integrity check FAILED", zap.Error(err))
	} else if head, err := audit.Head(startCtx); err == nil {
		logger.Info("case audit trail verified",
			zap.Int("entries", head.Length),
			zap.String("root", head.Root),
		)
	}

	// ── Events ───────────────────────────────────────────────────────────────
	var publisher events.Publisher
	if cfg.Events.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.Events.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		publisher = np
	} else {
		publisher = events.NewNoopPublisher(logger)
		logger.Info("events: noop (set events.nats_url to enable NATS)")
	}
	defer publisher.Close()

	// ── Inference ────────────────────────────────────────────────────────────
	model, err := inference.New(inference.Config{
		Provider: cfg.Inference.Provider,
		URL:      cfg.Inference.URL,
		Model:    cfg.Inference.Model,
		APIKey:   cfg.Inference.APIKey,
		Timeout:  cfg.Inference.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("inference client: %w", err)
	}
	logger.Info("inference configured",
		zap.String("provider", cfg.Inference.Provider),
		zap.String("url", cfg.Inference.URL),
		zap.String("model", model.Model()),
	)

	// ── Retrieval ────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan os.Signal)

	var store retrieval.DocumentStore
	if cfg.Retrieval.Enabled {
		lazy := retrieval.NewLazyStore(retrieval.OpenWeaviate(retrieval.WeaviateConfig{
			Endpoint: cfg.Retrieval.URL,
			APIKey:   cfg.Retrieval.APIKey,
			Class:    cfg.Retrieval.Class,
			Timeout:  cfg.Retrieval.Timeout,
		}), logger)
		lazy.SetOpenTimeout(cfg.Retrieval.Timeout)
		store = lazy

		provider, err := newCacheProvider(startCtx, cfg.Cache, logger, done)
		if err != nil {
			return err
		}
		if provider != nil {
			defer provider.Close() //nolint:errcheck
			store = retrieval.NewCachedStore(store, provider, cfg.Retrieval.Class, cfg.Cache.TTL)
		}
		logger.Info("retrieval enabled",
			zap.String("url", cfg.Retrieval.URL),
			zap.String("class", cfg.Retrieval.Class),
			zap.String("cache", cfg.Cache.Backend),
		)
	} else {
		logger.Info("retrieval disabled (set retrieval.enabled to ground analyses)")
	}

	retriever := retrieval.NewRetriever(store, retrieval.Config{
		Limit:   cfg.Retrieval.Limit,
		Timeout: cfg.Retrieval.Timeout,
	}, logger)
	retriever.SetResultRecord(handler.RecordRetrieval)

	// ── Wire up layers ───────────────────────────────────────────────────────
	renderer := report.NewRenderer(cfg.Reports.Dir, logger)
	renderer.SetCompression(cfg.Reports.Compress)
	logger.Info("reports configured",
		zap.String("dir", renderer.Dir()),
		zap.Bool("compress", cfg.Reports.Compress),
	)

	orch := analysis.NewOrchestrator(retriever, model, logger)
	svc := analysis.NewService(orch, renderer, logger)
	svc.SetCaseStore(caseRepo)
	svc.SetAuditLog(audit)
	svc.SetActor(cfg.Audit.Actor)
	svc.SetEventPublisher(publisher)
	svc.SetMetricsRecord(handler.RecordAnalysis, handler.RecordReport)

	checker := health.New(model, model.Model(), retriever, health.Config{
		CheckInterval: cfg.Health.CheckInterval,
		ProbeTimeout:  cfg.Health.ProbeTimeout,
		FailThreshold: cfg.Health.FailThreshold,
	}, logger)
	checker.SetMetricsRecord(handler.RecordDependency)
	checker.SetDegradedHook(events.DegradedHook(publisher, logger))
	go checker.Start(done)

	analysisHandler := handler.NewAnalysisHandler(svc, logger)
	analysisHandler.SetHealthReporter(checker)
	caseHandler := handler.NewCaseHandler(caseRepo, svc, logger)
	ledgerHandler := handler.NewLedgerHandler(audit, caseRepo, logger)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.CORS(cfg.Server.CORSOrigins))
	router.Use(handler.SecurityHeaders())
	router.Use(handler.BodyLimit(cfg.Server.MaxBodyBytes))
	if rps := cfg.Server.RateLimitRPS; rps > 0 {
		router.Use(handler.RateLimiter(rps, rps*2))
	}
	router.Use(handler.PrometheusMiddleware())
	router.Use(handler.RequestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	handler.Mount(router, cfg.Server.LegacyRoutes, analysisHandler, caseHandler, ledgerHandler)

	// The completion call may take the full inference timeout, so the write
	// deadline has to outlast it.
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Inference.Timeout + cfg.Retrieval.Timeout + 30*time.Second,
	}

	go func() {
		logger.Info("sentinel-api HTTP listening", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-quit
	close(done)
	logger.Info("shutting down sentinel-api...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("sentinel-api stopped")
	return nil
}

// newCacheProvider builds the retrieval cache for the configured backend.
// It returns nil when caching is off. The memory backend is swept until
// done is closed.
func newCacheProvider(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger, done <-chan os.Signal) (cache.Provider, error) {
	switch cfg.Backend {
	case config.CacheRedis:
		p, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			Prefix:   "cybersentinel:",
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return p, nil

	case config.CacheMemory:
		p := cache.NewMemoryProvider()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n := p.Evict(); n > 0 {
						logger.Debug("retrieval cache: evicted expired entries",
							zap.Int("count", n),
							zap.Int("remaining", p.Len()),
						)
					}
				case <-done:
					return
				}
			}
		}()
		return p, nil

	default:
		return nil, nil
	}
}
