// Package server builds the console's dependencies and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/boamp-console/internal/api"
	"github.com/JakeFAU/boamp-console/internal/app"
	"github.com/JakeFAU/boamp-console/internal/clock/system"
	"github.com/JakeFAU/boamp-console/internal/config"
	"github.com/JakeFAU/boamp-console/internal/geo"
	"github.com/JakeFAU/boamp-console/internal/id/uuid"
	"github.com/JakeFAU/boamp-console/internal/jobs"
	"github.com/JakeFAU/boamp-console/internal/logging"
	"github.com/JakeFAU/boamp-console/internal/progress"
	progresssinks "github.com/JakeFAU/boamp-console/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/boamp-console/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/boamp-console/internal/publisher/pubsub"
	"github.com/JakeFAU/boamp-console/internal/render"
	"github.com/JakeFAU/boamp-console/internal/storage"
	gcsstorage "github.com/JakeFAU/boamp-console/internal/storage/gcs"
	localstorage "github.com/JakeFAU/boamp-console/internal/storage/local"
	memorystorage "github.com/JakeFAU/boamp-console/internal/storage/memory"
	"github.com/JakeFAU/boamp-console/internal/telemetry"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	backend        *jobs.Client
	console        *app.Controller
	apiServer      *api.Server
	progressHub    *progress.Hub
	pubsubClient   *pubsub.Client
	gcpPublisher   *gcppublisher.Publisher
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("events_provider", cfg.Events.Provider),
	)

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Version:     Version,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		a.tracerShutdown = tp.Shutdown
	}

	a.backend, err = NewBackendClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	emitter, err := a.setupProgress(ctx)
	if err != nil {
		return nil, err
	}

	a.console = app.New(app.Config{
		Predefined:  cfg.Selection.Predefined,
		AutoSelect:  cfg.Selection.AutoSelect,
		Keywords:    cfg.Keywords,
		GeometryURL: cfg.Geometry.URL,
		Map: geo.View{
			CenterLat:   cfg.Map.CenterLat,
			CenterLng:   cfg.Map.CenterLng,
			Zoom:        cfg.Map.Zoom,
			TileURL:     cfg.Map.TileURL,
			Attribution: cfg.Map.Attribution,
		},
		ReadyDelay:      cfg.AutoSelectDelay(),
		FallbackDelay:   cfg.FallbackDelay(),
		NotificationTTL: cfg.NotificationTTL(),
		Loader: geo.NewFetcher(geo.FetcherConfig{
			UserAgent:    cfg.Geometry.UserAgent,
			Timeout:      cfg.GeometryTimeout(),
			MaxBodyBytes: cfg.Geometry.MaxBodyBytes,
		}),
		Sender: a.backend,
		Poller: NewPoller(cfg, a.backend, logger),
		Events: emitter,
		Clock:  system.New(time.Local),
		IDs:    uuid.New(),
		Logger: logger,
	})

	renderer, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("template init failed: %w", err)
	}
	a.apiServer = api.NewServer(a.console, a.backend, renderer, api.Config{
		RequestTimeout: cfg.RequestTimeout(),
		AuthEnabled:    cfg.Auth.Enabled,
		APIKey:         cfg.Auth.APIKey,
		Logger:         logger,
	})
	return a, nil
}

// NewBackendClient builds the rate-limited backend client.
func NewBackendClient(cfg *config.Config, logger *zap.Logger) (*jobs.Client, error) {
	var limiter *rate.Limiter
	if cfg.Backend.RequestsPerSec > 0 {
		burst := cfg.Backend.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Backend.RequestsPerSec), burst)
	}
	client, err := jobs.NewClient(jobs.ClientConfig{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.BackendTimeout(),
		Limiter: limiter,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("backend client init failed: %w", err)
	}
	return client, nil
}

// NewPoller builds a progress poller from the poll settings.
func NewPoller(cfg *config.Config, source jobs.Source, logger *zap.Logger) *jobs.Poller {
	return jobs.NewPoller(source, jobs.PollerConfig{
		Interval:    cfg.PollInterval(),
		BackoffMax:  cfg.PollBackoffMax(),
		MaxDuration: cfg.PollMaxDuration(),
		Logger:      logger,
	})
}

// NewExportStore opens the configured export destination. The returned
// closer is never nil.
func NewExportStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.BlobStore, io.Closer, error) {
	switch cfg.Exports.Provider {
	case "gcs":
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: cfg.Exports.GCSBucket})
		if err != nil {
			return nil, nil, fmt.Errorf("gcs export store init failed: %w", err)
		}
		logger.Info("using GCS export store", zap.String("bucket", cfg.Exports.GCSBucket))
		return store, store, nil
	case "local":
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.Exports.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local export store init failed: %w", err)
		}
		logger.Info("using local export store", zap.String("path", cfg.Exports.BaseDir))
		return store, noopCloser{}, nil
	case "memory":
		logger.Info("using in-memory export store")
		return memorystorage.NewBlobStore(), noopCloser{}, nil
	default:
		return nil, nil, errors.New("exports are disabled")
	}
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

func (a *App) setupProgress(ctx context.Context) (progress.Emitter, error) {
	sinkList := make([]progress.Sink, 0, 3)
	if a.cfg.Events.LogEvents {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("job_events")))
	}
	promSink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList = append(sinkList, promSink)

	switch a.cfg.Events.Provider {
	case "pubsub":
		a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.Events.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		a.gcpPublisher = gcppublisher.New(a.pubsubClient)
		sinkList = append(sinkList, progresssinks.NewPublisherSink(a.gcpPublisher, a.cfg.Events.Topic, a.logger))
		a.logger.Info("Pub/Sub job events enabled",
			zap.String("project", a.cfg.Events.ProjectID),
			zap.String("topic", a.cfg.Events.Topic),
		)
	case "memory":
		sinkList = append(sinkList, progresssinks.NewPublisherSink(memorypublisher.New(), a.cfg.Events.Topic, a.logger))
		a.logger.Info("in-memory job events enabled")
	}

	hubCfg := progress.Config{
		BufferSize:     a.cfg.Events.BufferSize,
		MaxBatchEvents: a.cfg.Events.MaxBatchEvents,
		MaxBatchWait:   time.Duration(a.cfg.Events.MaxBatchWaitMs) * time.Millisecond,
		BaseContext:    ctx,
		Logger:         a.logger.Named("job_events_hub"),
	}
	a.progressHub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Info("job event hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Int("sinks", len(sinkList)),
	)
	return a.progressHub, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.console.Start(ctx)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.console != nil {
		a.console.Close()
	}
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("job event hub close failed", zap.Error(err))
		}
	}
	if a.gcpPublisher != nil {
		a.gcpPublisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	// Sync fails on terminals; the error carries no information.
	_ = a.logger.Sync()
}
