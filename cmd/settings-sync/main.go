package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexjbarnes/settings-sync/internal/auth"
	"github.com/alexjbarnes/settings-sync/internal/config"
	"github.com/alexjbarnes/settings-sync/internal/i18n"
	"github.com/alexjbarnes/settings-sync/internal/logging"
	"github.com/alexjbarnes/settings-sync/internal/mcpserver"
	"github.com/alexjbarnes/settings-sync/internal/metrics"
	"github.com/alexjbarnes/settings-sync/internal/remote"
	"github.com/alexjbarnes/settings-sync/internal/server"
	"github.com/alexjbarnes/settings-sync/internal/settings"
	"github.com/alexjbarnes/settings-sync/internal/state"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var Version = "dev"

const usage = `usage: settings-sync [command]

commands:
  run              run the sync daemon (default)
  export <file>    write a backup of the current settings
  restore <file>   restore settings from a backup file
  sync-now         pull from the sync backend once
  push             push the current settings to the sync backend
  factory-reset    replace all settings with defaults
  keygen           print a new API key for API_KEYS
`

func main() {
	// Handle keygen before config loading.
	if len(os.Args) > 1 && os.Args[1] == "keygen" {
		fmt.Println(auth.GenerateAPIKey())
		return
	}

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "run"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "run", "export", "restore", "sync-now", "push", "factory-reset":
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	if (cmd == "export" || cmd == "restore") && len(args) != 1 {
		return fmt.Errorf("%s needs exactly one file argument", cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cmd == "run" {
		if err := cfg.ValidateDaemon(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := open(cfg, logger, cmd == "run")
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.Init(ctx, cfg.SeedFile); err != nil {
		return fmt.Errorf("initializing settings: %w", err)
	}

	switch cmd {
	case "export":
		return exportBackup(a.engine, args[0])
	case "restore":
		return report(restoreBackup(ctx, a.engine, args[0]))
	case "sync-now":
		return report(a.engine.SyncNow(ctx))
	case "push":
		return report(a.engine.Push(ctx))
	case "factory-reset":
		return report(a.engine.FactoryReset(ctx))
	}

	return runDaemon(ctx, cfg, a, logger)
}

type app struct {
	state    *state.State
	engine   *settings.Engine
	registry *prometheus.Registry
}

func (a *app) close() {
	a.state.Close()
}

// open wires the engine. Metrics are only collected for the daemon;
// one-shot commands exit before anyone could scrape them.
func open(cfg *config.Config, logger *slog.Logger, daemon bool) (*app, error) {
	var opts []state.Option

	if cfg.SettingsSecret != "" {
		sealer, err := state.NewSealer(cfg.SettingsSecret)
		if err != nil {
			return nil, fmt.Errorf("creating sealer: %w", err)
		}

		opts = append(opts, state.WithSealer(sealer))
	}

	appState, err := state.LoadAt(cfg.StatePath, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	appVersion := cfg.AppVersion
	if appVersion == "" {
		appVersion = Version
	}

	a := &app{state: appState}

	var m *metrics.Metrics
	if daemon {
		a.registry = metrics.NewRegistry()
		m = metrics.New(a.registry)
	}

	a.engine = settings.NewEngine(settings.Config{
		Persister:  appState,
		KV:         remote.NewBoltKVStore(cfg.SyncStorePath, logger.With(slog.String("component", "sync-store"))),
		AppVersion: appVersion,
		Messages:   i18n.NewPrinter(cfg.Locale),
		Metrics:    m,
		Logger:     logger,
	})

	logger.Debug("engine ready",
		slog.String("state", cfg.StatePath),
		slog.String("sync_store", cfg.SyncStorePath),
		slog.Bool("sealed", cfg.SettingsSecret != ""),
	)

	return a, nil
}

func runDaemon(ctx context.Context, cfg *config.Config, a *app, logger *slog.Logger) error {
	logger.Info("settings-sync starting",
		slog.String("version", Version),
		slog.String("schedule", cfg.SyncPullSchedule),
		slog.String("import_dir", cfg.ImportDir),
		slog.String("listen", cfg.HTTPListenAddr),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(a.engine.RunSchedule(gctx, cfg.SyncPullSchedule))
	})

	g.Go(func() error {
		return ignoreCanceled(a.engine.WatchRemote(gctx))
	})

	if cfg.ImportDir != "" {
		w := settings.NewImportWatcher(cfg.ImportDir, a.engine, logger.With(slog.String("component", "import")))
		g.Go(func() error {
			return ignoreCanceled(w.Watch(gctx))
		})
	}

	if cfg.HTTPListenAddr != "" {
		g.Go(func() error {
			return runHTTP(gctx, cfg, a, logger)
		})
	}

	return g.Wait()
}

// runHTTP serves the MCP tools and metrics behind API key auth.
func runHTTP(ctx context.Context, cfg *config.Config, a *app, logger *slog.Logger) error {
	keys, err := cfg.ParseAPIKeys()
	if err != nil {
		return fmt.Errorf("parsing API keys: %w", err)
	}

	keyStore, err := auth.NewKeyStore(keys)
	if err != nil {
		return err
	}

	httpLogger := logger.With(slog.String("service", "http"))

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "settings-sync", Version: Version},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, a.engine, httpLogger)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	mux := server.NewMux(server.MuxConfig{
		Keys:           keyStore,
		MCPHandler:     mcpHandler,
		MetricsHandler: metrics.Handler(a.registry),
		Logger:         httpLogger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	httpLogger.Info("starting HTTP server",
		slog.String("listen", cfg.HTTPListenAddr),
		slog.Int("api_keys", keyStore.Len()),
	)

	// Shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		httpLogger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

func exportBackup(e *settings.Engine, path string) error {
	data, err := e.ExportBackup()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}

	fmt.Printf("backup written to %s (%d bytes)\n", path, len(data))

	return nil
}

func restoreBackup(ctx context.Context, e *settings.Engine, path string) settings.Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return settings.Result{Message: fmt.Sprintf("reading backup: %v", err)}
	}

	return e.RestoreBackup(ctx, data)
}

// report prints a result and turns a failure into a non-zero exit.
func report(res settings.Result) error {
	if !res.Success {
		return errors.New(res.Message)
	}

	fmt.Println(res.Message)

	return nil
}

// ignoreCanceled treats shutdown as a clean exit for a long-running task.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
