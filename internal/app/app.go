package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/handlers"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/jobs"
	"github.com/ternarybob/quill/internal/services/events"
	"github.com/ternarybob/quill/internal/services/export"
	"github.com/ternarybob/quill/internal/services/facts"
	"github.com/ternarybob/quill/internal/services/llm"
	"github.com/ternarybob/quill/internal/services/pipeline"
	"github.com/ternarybob/quill/internal/services/scheduler"
	"github.com/ternarybob/quill/internal/services/sections"
	"github.com/ternarybob/quill/internal/services/sources"
	"github.com/ternarybob/quill/internal/services/transcripts"
	"github.com/ternarybob/quill/internal/services/workspace"
	"github.com/ternarybob/quill/internal/storage"
	"github.com/ternarybob/quill/internal/worker"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Stores    *storage.Stores
	Workspace *workspace.Workspace
	Catalog   *sections.Catalog

	// Section pipeline
	Provider     *llm.Provider
	Pipeline     *pipeline.Runner
	Orchestrator *sections.Orchestrator

	// Job execution
	WorkerPool       *worker.WorkerPool
	Dispatcher       *jobs.Dispatcher
	Events           interfaces.EventPublisher
	SchedulerService *scheduler.Service

	// HTTP handlers
	JobHandler *handlers.JobHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	stores, err := storage.NewStores(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.Stores = stores

	if err := app.initServices(ctx); err != nil {
		stores.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.JobHandler = handlers.NewJobHandler(app.Dispatcher, app.Catalog, logger)

	app.WorkerPool.Start()
	if app.SchedulerService != nil {
		if err := app.SchedulerService.Start(); err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	logger.Info().
		Str("job_store", cfg.Jobs.Store).
		Str("provider", string(cfg.LLM.DefaultProvider)).
		Str("sources", cfg.Sources.Type).
		Int("workers", cfg.Workers.Concurrency).
		Int("report_types", len(app.Catalog.ReportTypes())).
		Msg("Application initialization complete")

	return app, nil
}

// initServices builds the section pipeline and job execution in dependency order
func (a *App) initServices(ctx context.Context) error {
	cfg := a.Config
	var err error

	a.Workspace = workspace.New(cfg.Storage.Artifacts.Dir)

	a.Catalog = sections.DefaultCatalog()
	if cfg.Sections.CatalogFile != "" {
		if a.Catalog, err = sections.LoadCatalog(cfg.Sections.CatalogFile); err != nil {
			return err
		}
		a.Logger.Info().Str("file", cfg.Sections.CatalogFile).Msg("Section catalog loaded")
	}

	a.Provider, err = llm.NewProvider(ctx, cfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create text provider: %w", err)
	}

	source, err := sources.NewDocumentSource(cfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create document source: %w", err)
	}

	loader := transcripts.NewLoader(source, transcripts.NewExtractor("", a.Logger), a.Workspace, cfg.Sources.MaxBytes, a.Logger)
	extractor := facts.NewExtractor(a.Provider, a.Workspace, a.Logger)
	a.Pipeline = pipeline.NewRunner(a.Stores.Sessions, loader, extractor, cfg.Jobs.FailFast, a.Logger)

	var exporter interfaces.SectionExporter
	if cfg.Export.PDF {
		exporter = export.NewService(a.Logger)
	}
	a.Orchestrator = sections.NewOrchestrator(a.Provider, a.Catalog, a.Workspace, exporter, a.Logger)

	a.Events = events.NewPublisher(cfg.Events, a.Logger)
	a.WorkerPool = worker.NewWorkerPool(a.Logger, cfg.Workers.Concurrency, cfg.Workers.QueueSize)
	a.Dispatcher = jobs.NewDispatcher(a.Stores.Jobs, a.WorkerPool, a.Pipeline, a.Orchestrator, a.Events, a.Logger)

	// Only stores without native expiry need the sweep
	if reaper, ok := a.Stores.Jobs.(interfaces.JobReaper); ok && cfg.Scheduler.Enabled {
		a.SchedulerService = scheduler.NewService(a.Logger)
		maxAge := common.ParseDurationOr(cfg.Jobs.MaxAge, time.Hour)
		if err := a.SchedulerService.RegisterCleanup(reaper, cfg.Scheduler.CleanupSchedule, maxAge); err != nil {
			return fmt.Errorf("failed to register job cleanup: %w", err)
		}
	}

	return nil
}

// Close drains in-flight jobs, then stops the scheduler, events and storage
func (a *App) Close(ctx context.Context) error {
	if a.WorkerPool != nil {
		if err := a.WorkerPool.Stop(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Worker pool did not drain before shutdown deadline")
		}
	}

	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}

	if a.Stores != nil {
		if err := a.Stores.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
