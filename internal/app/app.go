package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"whiteboard/internal/action"
	"whiteboard/internal/ai"
	"whiteboard/internal/canvas"
	"whiteboard/internal/config"
	"whiteboard/internal/httpapi"
	mcpserver "whiteboard/internal/mcp"
	"whiteboard/internal/observability"
	"whiteboard/internal/placement"
	"whiteboard/internal/service"
	"whiteboard/internal/storage"
	"whiteboard/internal/syncbus"
	"whiteboard/internal/template"
)

// Options controls how the App is assembled.
type Options struct {
	// ConfigPath is the TOML file to load. Empty means config.DefaultPath().
	ConfigPath string
	// Watch reloads the configuration when the file changes.
	Watch bool
	// Logger overrides the logger built from the [log] section.
	Logger *zap.Logger
	// LLM replaces the HTTP language model client.
	LLM ai.Client
}

// App owns every long-lived component of the whiteboard process.
type App struct {
	opts Options
	ctx  context.Context

	loader  *config.Loader
	cfg     *config.Config
	log     *zap.Logger
	metrics *observability.Collector
	hub     *service.Hub

	db       *storage.DB
	history  *storage.HistoryStore
	bus      *syncbus.Collaborator
	doc      *canvas.Document
	llm      *ai.HTTPClient
	orch     *ai.Orchestrator
	canvas   *service.CanvasService
	sessions *service.SessionService
	chat     *service.ChatService
	pruner   *service.HistoryPruner
	mcp      *mcpserver.Server

	schedule string
}

// New creates a new App. Nothing is opened until Startup.
func New(opts Options) *App {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.DefaultPath()
	}
	return &App{opts: opts, hub: &service.Hub{}}
}

// Startup loads the configuration and builds the document, the AI stack,
// the services and the MCP server. On error everything opened so far is
// released.
func (a *App) Startup(ctx context.Context) (err error) {
	a.ctx = ctx
	defer func() {
		if err != nil {
			a.Shutdown(context.Background())
		}
	}()

	a.loader = config.NewLoader(a.opts.ConfigPath, a.opts.Logger)
	if a.cfg, err = a.loader.Load(); err != nil {
		return err
	}

	a.log = a.opts.Logger
	if a.log == nil {
		if a.log, err = NewLogger(a.cfg.Log); err != nil {
			return err
		}
	}

	a.metrics = observability.NewCollector("whiteboard")
	a.hub.Attach(a.metrics)
	a.hub.Attach(logEmitter{log: a.log.With(zap.String("component", "events"))})

	a.db, err = storage.New(a.cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	a.history = storage.NewHistoryStore(a.db)

	var collab canvas.Collaborator
	if url := a.cfg.Sync.NATSURL; url != "" {
		a.bus, err = syncbus.Connect(url, a.cfg.Sync.DocumentID, canvas.SeedElements(), a.log)
		if err != nil {
			return err
		}
		collab = a.bus
		a.log.Info("joined shared document",
			zap.String("nats", url),
			zap.String("document", a.cfg.Sync.DocumentID))
	} else {
		collab = canvas.NewMemoryCollaborator(canvas.SeedElements()...)
	}
	a.doc = canvas.NewDocument(collab, a.hub, a.log)

	catalog := template.Builtin()
	interp := action.NewInterpreter(catalog, placement.NewEngine(), a.metrics)

	client := a.opts.LLM
	if client == nil {
		a.llm = ai.NewHTTPClient(llmSettings(a.cfg), breakerSettings(a.cfg), a.log)
		client = a.llm
	}
	a.orch = ai.NewOrchestrator(client, ai.Options{
		TemplateIDs:   catalog.IDs(),
		ContextBudget: a.cfg.LLM.ContextBudget,
		Metrics:       a.metrics,
		Logger:        a.log,
	})

	a.canvas = service.NewCanvasService(a.doc, interp, catalog, a.log)
	a.sessions = service.NewSessionService(a.canvas, a.hub, a.log)
	a.chat = service.NewChatService(a.orch, a.canvas, a.history, a.hub, a.log)

	a.pruner = service.NewHistoryPruner(a.history, a.cfg.History.KeepPerSession, a.hub, a.log)
	if err = a.pruner.Start(a.cfg.History.PruneSchedule); err != nil {
		return err
	}
	a.schedule = a.cfg.History.PruneSchedule

	a.mcp, err = mcpserver.New(ctx, mcpserver.Deps{
		Canvas:   a.canvas,
		Sessions: a.sessions,
		Chat:     a.chat,
		Emitter:  a.hub,
		Logger:   a.log,
	})
	if err != nil {
		return err
	}
	a.hub.Attach(a.mcp)

	a.loader.OnChange(a.applyConfig)
	if a.opts.Watch {
		if err = a.loader.Watch(); err != nil {
			return err
		}
		go a.reportReloadErrors()
	}
	return nil
}

// Shutdown waits for in-flight assistant requests and closes everything
// Startup opened.
func (a *App) Shutdown(ctx context.Context) {
	if a.pruner != nil {
		a.pruner.Stop(ctx)
	}
	if a.sessions != nil {
		a.sessions.Wait(ctx)
	}
	if a.doc != nil {
		a.doc.Close()
	}
	if a.bus != nil {
		a.bus.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.loader != nil {
		a.loader.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *App) Config() *config.Config { return a.loader.Config() }

func (a *App) Logger() *zap.Logger { return a.log }

func (a *App) Canvas() *service.CanvasService { return a.canvas }

func (a *App) Sessions() *service.SessionService { return a.sessions }

func (a *App) Chat() *service.ChatService { return a.chat }

func (a *App) MCP() *mcpserver.Server { return a.mcp }

// Handler is the full HTTP surface: REST API, MCP transport and metrics.
func (a *App) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Canvas:   a.canvas,
		Sessions: a.sessions,
		Chat:     a.chat,
		MCP:      a.mcp,
		Metrics:  a.metrics,
		Logger:   a.log,
	}).Setup()
}

// Serve runs the HTTP server on the configured address until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config().HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// ── Config reload ──────────────────────────────────────────

// applyConfig pushes the hot-reloadable settings into the running
// components. Breaker, sync, HTTP and log settings need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	if a.llm != nil {
		a.llm.Configure(llmSettings(cfg))
	}
	a.orch.SetContextBudget(cfg.LLM.ContextBudget)
	a.pruner.SetKeep(cfg.History.KeepPerSession)

	if cfg.History.PruneSchedule != a.schedule {
		if err := a.pruner.Start(cfg.History.PruneSchedule); err != nil {
			a.log.Warn("keeping previous prune schedule", zap.Error(err))
		} else {
			a.schedule = cfg.History.PruneSchedule
		}
	}

	prev := a.cfg
	a.cfg = cfg
	if prev.Breaker != cfg.Breaker || prev.Sync != cfg.Sync || prev.HTTP != cfg.HTTP || prev.Log != cfg.Log {
		a.log.Warn("some configuration changes take effect after a restart")
	}
	a.log.Info("configuration reloaded", zap.String("model", cfg.LLM.Model))
}

func (a *App) reportReloadErrors() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case err, ok := <-a.loader.Errors():
			if !ok {
				return
			}
			a.log.Warn("config reload failed", zap.Error(err))
		}
	}
}

func llmSettings(cfg *config.Config) ai.Settings {
	return ai.Settings{
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	}
}

func breakerSettings(cfg *config.Config) ai.BreakerSettings {
	return ai.BreakerSettings{
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     cfg.Breaker.Interval,
		Timeout:      cfg.Breaker.Timeout,
		FailureRatio: cfg.Breaker.FailureRatio,
		MinRequests:  cfg.Breaker.MinRequests,
	}
}
