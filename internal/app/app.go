// Package app initializes and holds long-lived application services, acting
// as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/refhq/sourcescout/internal/api"
	"github.com/refhq/sourcescout/internal/clock/system"
	"github.com/refhq/sourcescout/internal/config"
	"github.com/refhq/sourcescout/internal/extract"
	"github.com/refhq/sourcescout/internal/fetch"
	"github.com/refhq/sourcescout/internal/id/uuid"
	"github.com/refhq/sourcescout/internal/logging"
	"github.com/refhq/sourcescout/internal/metrics"
	"github.com/refhq/sourcescout/internal/progress"
	"github.com/refhq/sourcescout/internal/progress/sinks"
	pubmem "github.com/refhq/sourcescout/internal/publisher/memory"
	pubgcp "github.com/refhq/sourcescout/internal/publisher/pubsub"
	"github.com/refhq/sourcescout/internal/review"
	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/storage/gcs"
	"github.com/refhq/sourcescout/internal/storage/local"
	"github.com/refhq/sourcescout/internal/storage/memory"
	"github.com/refhq/sourcescout/internal/storage/postgres"
	"github.com/refhq/sourcescout/internal/store"
	"github.com/refhq/sourcescout/internal/sweep"
	"github.com/refhq/sourcescout/internal/telemetry"
)

// Repos bundles the five repositories the pipeline needs, regardless of which
// backend provides them.
type Repos struct {
	Sources    store.SourceRegistryRepo
	Runs       store.RunRepo
	Records    store.RecordRepo
	Candidates store.CandidateRepo
	Entities   store.EntityRepo
}

// App holds all shared, long-lived services. It is initialized once at
// startup and handed to the commands that need it.
type App struct {
	Cfg          config.Config
	Logger       *zap.Logger
	Repos        Repos
	Blobs        scout.BlobStore
	Publisher    scout.Publisher
	Orchestrator *sweep.Orchestrator
	Review       *review.Service
	Server       *api.Server

	pool         postgres.DB
	pubsubClient *pubsub.Client
	pubsubPub    *pubgcp.Publisher
	progressHub  *progress.Hub
	tracer       *sdktrace.TracerProvider
}

// New builds the full service graph from configuration. It fails fast if any
// critical dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{Cfg: cfg, Logger: logger}

	a.tracer, err = telemetry.Init(ctx, "sourcescout")
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	if err := a.initRepos(ctx); err != nil {
		return nil, err
	}
	if err := a.initBlobs(ctx); err != nil {
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		return nil, err
	}

	fetcher := fetch.New(fetch.Config{
		UserAgent:     cfg.Fetch.UserAgent,
		Timeout:       cfg.FetchTimeout(),
		MaxRedirects:  cfg.Fetch.MaxRedirects,
		MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
		MinHTMLBytes:  cfg.Fetch.MinHTMLBytes,
		RespectRobots: cfg.Fetch.RespectRobots,
		PerHostRPS:    cfg.Fetch.PerHostRPS,
		PerHostBurst:  cfg.Fetch.PerHostBurst,
	})
	clock := system.New()
	idGen := uuid.New()

	a.progressHub = progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		sinks.NewPrometheusSink(),
	)

	a.Orchestrator, err = sweep.New(sweep.Config{
		DefaultLimit:    cfg.Sweep.DefaultLimit,
		CooldownDays:    cfg.Sweep.CooldownDays,
		MaxPages:        cfg.Sweep.MaxPages,
		EnrichmentWidth: cfg.Sweep.EnrichmentWidth,
		Topic:           cfg.Sweep.Topic,
	}, sweep.Deps{
		Fetcher:    fetcher,
		Engine:     extract.NewEngine(logger.Named("extract")),
		Sources:    a.Repos.Sources,
		Runs:       a.Repos.Runs,
		Records:    a.Repos.Records,
		Candidates: a.Repos.Candidates,
		Entities:   a.Repos.Entities,
		Blobs:      a.Blobs,
		Publisher:  a.Publisher,
		Clock:      clock,
		IDs:        idGen,
		Progress:   a.progressHub,
		Logger:     logger.Named("sweep"),
	})
	if err != nil {
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	a.Review, err = review.New(
		a.Repos.Sources,
		a.Repos.Candidates,
		a.Repos.Entities,
		clock,
		logger.Named("review"),
	)
	if err != nil {
		return nil, fmt.Errorf("init review service: %w", err)
	}

	a.Server = api.NewServer(
		a.Orchestrator,
		a.Review,
		a.Repos.Sources,
		a.Repos.Candidates,
		idGen,
		clock,
		cfg,
		logger.Named("api"),
	)

	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.Bool("pubsub", cfg.PubSub.ProjectID != ""),
	)
	return a, nil
}

func (a *App) initRepos(ctx context.Context) error {
	if a.Cfg.DB.DSN == "" {
		a.Logger.Warn("db.dsn not set, using in-memory stores")
		stores := memory.NewStores()
		a.Repos = Repos{
			Sources:    stores.Sources(),
			Runs:       stores.Runs(),
			Records:    stores.Records(),
			Candidates: stores.Candidates(),
			Entities:   stores.Entities(),
		}
		return nil
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             a.Cfg.DB.DSN,
		MaxConns:        int32(a.Cfg.DB.MaxConns),
		MinConns:        int32(a.Cfg.DB.MinConns),
		MaxConnLifetime: time.Duration(a.Cfg.DB.ConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	sources, err := postgres.NewSourceStore(pool)
	if err != nil {
		return err
	}
	runs, err := postgres.NewRunStore(pool)
	if err != nil {
		return err
	}
	records, err := postgres.NewRecordStore(pool)
	if err != nil {
		return err
	}
	candidates, err := postgres.NewCandidateStore(pool)
	if err != nil {
		return err
	}
	entities, err := postgres.NewEntityStore(pool)
	if err != nil {
		return err
	}
	a.Repos = Repos{
		Sources:    sources,
		Runs:       runs,
		Records:    records,
		Candidates: candidates,
		Entities:   entities,
	}
	return nil
}

func (a *App) initBlobs(ctx context.Context) error {
	switch a.Cfg.Storage.Backend {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		blobs, err := gcs.New(client, gcs.Config{Bucket: a.Cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs blob store: %w", err)
		}
		a.Blobs = blobs
	case "local":
		blobs, err := local.New(local.Config{BaseDir: a.Cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local blob store: %w", err)
		}
		a.Blobs = blobs
	case "memory":
		a.Blobs = memory.NewBlobStore()
	default:
		return fmt.Errorf("unknown storage backend %q", a.Cfg.Storage.Backend)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.Cfg.PubSub.ProjectID == "" {
		a.Logger.Warn("pubsub.project_id not set, staged-candidate notifications stay in process")
		a.Publisher = pubmem.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.Cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPub = pubgcp.New(client)
	a.Publisher = a.pubsubPub
	return nil
}

// Close gracefully shuts down all services in the container.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.Logger.Warn("close progress hub", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.Logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}
	if a.pubsubPub != nil {
		a.pubsubPub.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.Logger.Warn("close pubsub client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.Logger.Sync(); err != nil {
		// Best effort; stderr may be gone already.
		_ = err
	}
}
