// Package server builds the application's dependency graph from config and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/api"
	"github.com/JakeFAU/jobcrawler/internal/ats"
	"github.com/JakeFAU/jobcrawler/internal/browser"
	"github.com/JakeFAU/jobcrawler/internal/clock/system"
	"github.com/JakeFAU/jobcrawler/internal/config"
	"github.com/JakeFAU/jobcrawler/internal/extract"
	"github.com/JakeFAU/jobcrawler/internal/hash/sha256"
	"github.com/JakeFAU/jobcrawler/internal/id/uuid"
	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/listing"
	"github.com/JakeFAU/jobcrawler/internal/metrics"
	"github.com/JakeFAU/jobcrawler/internal/orchestrator"
	"github.com/JakeFAU/jobcrawler/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/jobcrawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/jobcrawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/jobcrawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/jobcrawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/jobcrawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/jobcrawler/internal/storage/postgres"
	"github.com/JakeFAU/jobcrawler/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store     jobs.Store
	pgStore   *pgstore.Store
	crawls    *orchestrator.Service
	listings  *listing.Service
	browser   *browser.Crawler
	apiServer *api.Server

	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	gcsStore        *gcsstorage.BlobStore
	tracer          *sdktrace.TracerProvider
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.Bool("snapshots", cfg.Snapshots.Enabled))

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			ProjectID:   cfg.Telemetry.ProjectID,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("telemetry init failed: %w", err)
		}
		app.tracer = tp
	}
	if err := app.setupStore(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	snapshots, err := app.setupSnapshots(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if cfg.Headless.Enabled {
		app.browser = NewBrowserCrawler(cfg, snapshots, logger)
	} else {
		logger.Warn("headless disabled, browser-only companies will be skipped or must be pushed")
	}

	deps := orchestrator.Deps{
		Store:     app.store,
		Registry:  NewRegistry(cfg, logger),
		Publisher: publisher,
		Clock:     system.New(),
		IDs:       uuid.New(),
		Logger:    logger,
	}
	if app.browser != nil {
		deps.Browser = app.browser
	}
	app.crawls, err = orchestrator.New(deps, orchestrator.Config{
		APIConcurrency: cfg.Crawl.APIConcurrency,
		PacingDelay:    cfg.Crawl.PacingDelay,
		NewJobsTopic:   cfg.Crawl.NewJobsTopic,
	})
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}
	app.listings = listing.New(app.store, system.New(), logger)
	app.apiServer = api.NewServer(app.crawls, app.listings, app.ready, cfg, logger.Named("api"))
	return app, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() config.Config { return a.cfg }

// Crawls exposes the orchestrator for CLI commands.
func (a *App) Crawls() *orchestrator.Service { return a.crawls }

// Listings exposes listing maintenance for CLI commands.
func (a *App) Listings() *listing.Service { return a.listings }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// NewRegistry builds the vendor parser registry with per-host throttling.
func NewRegistry(cfg config.Config, logger *zap.Logger) *ats.Registry {
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.HTTP.PerHostRPS,
		DefaultBurst: cfg.HTTP.PerHostBurst,
	})
	client := ats.NewClient(ats.ClientConfig{
		Timeout:   cfg.VendorTimeout(),
		UserAgent: cfg.HTTP.UserAgent,
	}, limiter, logger.Named("ats"))
	return ats.NewDefaultRegistry(client, ats.BaseURLs{
		Greenhouse:      cfg.Vendors.Greenhouse,
		Lever:           cfg.Vendors.Lever,
		Ashby:           cfg.Vendors.Ashby,
		SmartRecruiters: cfg.Vendors.SmartRecruiters,
	})
}

// NewBrowserCrawler builds the browser crawler selected by headless.renderer.
// snapshots may be nil.
func NewBrowserCrawler(cfg config.Config, snapshots jobs.BlobStore, logger *zap.Logger) *browser.Crawler {
	var launcher browser.Launcher
	switch cfg.Headless.Renderer {
	case "static":
		launcher = browser.NewStaticLauncher(browser.StaticConfig{
			UserAgent:     cfg.HTTP.UserAgent,
			RespectRobots: cfg.Headless.RespectRobots,
			Timeout:       cfg.Headless.NavTimeout,
		})
	default:
		launcher = browser.NewChromedpLauncher(browser.ChromeConfig{
			ExecPath:          cfg.Headless.ExecPath,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
			NetworkIdle:       cfg.Headless.NetworkIdle,
			NetworkIdleMax:    cfg.Headless.NetworkIdleMax,
			LoadMoreAttempts:  cfg.Headless.LoadMoreAttempts,
			LoadMoreTimeout:   cfg.Headless.LoadMoreTimeout,
		})
	}
	logger.Info("browser crawler configured",
		zap.String("renderer", cfg.Headless.Renderer),
		zap.Int("recycle_after", cfg.Crawl.RecycleAfter))
	manager := browser.NewManager(launcher, cfg.Crawl.RecycleAfter, logger)
	return browser.NewCrawler(manager, extract.New(sha256.NewTruncated(16)), browser.CrawlerOptions{
		Snapshots:      snapshots,
		SnapshotPrefix: cfg.Snapshots.Prefix,
		Clock:          system.New(),
		Logger:         logger,
	})
}

func (a *App) setupStore(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no DSN specified for database, using in-memory store")
		a.store = memorystorage.NewStore()
		return nil
	}
	s, err := pgstore.New(ctx, pgstore.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("postgres store init failed: %w", err)
	}
	a.pgStore = s
	a.store = s
	if a.cfg.DB.Migrate {
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("postgres migrate failed: %w", err)
		}
		a.logger.Info("postgres schema applied")
	}
	return nil
}

// setupSnapshots returns nil when snapshots are disabled.
func (a *App) setupSnapshots(ctx context.Context) (jobs.BlobStore, error) {
	if !a.cfg.Snapshots.Enabled {
		return nil, nil
	}
	switch a.cfg.Snapshots.Backend {
	case "gcs":
		a.logger.Info("using GCS snapshot backend", zap.String("bucket", a.cfg.Snapshots.Bucket))
		s, err := gcsstorage.New(ctx, gcsstorage.Config{Bucket: a.cfg.Snapshots.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.gcsStore = s
		return s, nil
	case "local":
		a.logger.Info("using local snapshot backend", zap.String("path", a.cfg.Snapshots.Local.BaseDir))
		s, err := localstorage.New(a.cfg.Snapshots.Local)
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return s, nil
	default:
		a.logger.Info("using in-memory snapshot backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (jobs.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubPublisher, err = gcppublisher.NewFromClient(a.pubsubClient, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName))
	return a.pubsubPublisher, nil
}

func (a *App) ready(ctx context.Context) error {
	if a.pgStore == nil {
		return nil
	}
	return a.pgStore.Ping(ctx)
}

// Run serves HTTP and the retention ticker until ctx is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.listings.RunRetention(ctx, a.cfg.Retention.CleanupInterval, a.cfg.RetentionWindow())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return a.Close()
}

// Close gracefully releases every owned resource.
func (a *App) Close() error {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Warn("browser close failed", zap.Error(err))
		}
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsStore != nil {
		if err := a.gcsStore.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}
