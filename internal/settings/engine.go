package settings

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alexjbarnes/settings-sync/internal/errors"
	"github.com/alexjbarnes/settings-sync/internal/i18n"
	"github.com/alexjbarnes/settings-sync/internal/metrics"
	"github.com/alexjbarnes/settings-sync/internal/models"
	"github.com/alexjbarnes/settings-sync/internal/remote"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config wires an Engine. Persister and Logger are required. KV is the
// platform sync store; Backends overrides backend selection in tests.
// Nil collaborators get the defaults from this package.
type Config struct {
	Persister  Persister
	KV         remote.KVStore
	Backends   BackendSelector
	AppVersion string
	Messages   *i18n.Printer
	Metrics    *metrics.Metrics
	Migrator   Migrator
	Profiles   ProfileOperations
	Integrity  IntegrityChecker
	Rules      RulesNotifier
	Scheduler  SubscriptionScheduler
	Logger     *slog.Logger
}

// Engine ties the store, reconciler and restorer together behind the
// operations the CLI and the MCP tools expose.
type Engine struct {
	store      *Store
	reconciler *Reconciler
	restorer   *Restorer
	persister  Persister
	kv         remote.KVStore
	messages   *i18n.Printer
	logger     *slog.Logger
}

// NewEngine builds an engine holding the default configuration. Call
// Init to load the persisted one.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger

	if cfg.Migrator == nil {
		cfg.Migrator = NewSemverMigrator(logger)
	}

	if cfg.Profiles == nil {
		cfg.Profiles = DefaultProfileOperations{}
	}

	if cfg.Integrity == nil {
		cfg.Integrity = DefaultIntegrityChecker{}
	}

	if cfg.Rules == nil {
		cfg.Rules = LogRulesNotifier{Logger: logger}
	}

	if cfg.Scheduler == nil {
		cfg.Scheduler = LogSubscriptionScheduler{Logger: logger}
	}

	if cfg.Backends == nil {
		storeBackend := remote.NewStoreBackend(cfg.KV)
		cfg.Backends = func(opts models.GeneralOptions) remote.Backend {
			return remote.Select(opts, storeBackend)
		}
	}

	store := NewStore(logger)
	prop := propagation{rules: cfg.Rules, scheduler: cfg.Scheduler, logger: logger}

	r := &Reconciler{
		store:     store,
		persister: cfg.Persister,
		backends:  cfg.Backends,
		migrator:  cfg.Migrator,
		propagate: prop,
		metrics:   cfg.Metrics,
		logger:    logger,
	}

	return &Engine{
		store:      store,
		reconciler: r,
		restorer: &Restorer{
			store:      store,
			reconciler: r,
			migrator:   cfg.Migrator,
			profiles:   cfg.Profiles,
			integrity:  cfg.Integrity,
			propagate:  prop,
			appVersion: cfg.AppVersion,
			messages:   cfg.Messages,
			metrics:    cfg.Metrics,
			logger:     logger,
		},
		persister: cfg.Persister,
		kv:        cfg.KV,
		messages:  cfg.Messages,
		logger:    logger,
	}
}

func (e *Engine) Store() *Store           { return e.store }
func (e *Engine) Reconciler() *Reconciler { return e.reconciler }
func (e *Engine) Restorer() *Restorer     { return e.restorer }

// Init loads the persisted configuration. On first run it applies the
// YAML seed file when one is given, otherwise it saves the defaults.
func (e *Engine) Init(ctx context.Context, seedFile string) error {
	found, err := e.store.Init(ctx, e.persister)
	if err != nil {
		return err
	}

	if found {
		return nil
	}

	if seedFile != "" {
		raw, err := loadSeed(seedFile)
		if err != nil {
			return err
		}

		res := e.restorer.ApplyRestore(ctx, raw)
		if !res.Success {
			return fmt.Errorf("applying seed file %s: %s", seedFile, res.Message)
		}

		e.logger.Info("settings seeded", slog.String("file", seedFile))

		return nil
	}

	e.store.Mutate(func(c *models.Configuration) {
		c.Version = e.restorer.appVersion
	})

	return e.reconciler.SaveAllLocal(ctx, true)
}

// loadSeed reads a YAML document and re-encodes it as JSON so that it
// enters through the same restore path as a backup file.
func loadSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding seed file: %w", err)
	}

	return raw, nil
}

// Status is a snapshot for operators.
type Status struct {
	Version             string `json:"version"`
	SyncHash            string `json:"sync_hash"`
	SyncEnabled         bool   `json:"sync_enabled"`
	Backend             string `json:"backend"`
	ActiveProfileID     string `json:"active_profile_id"`
	ActiveProfileName   string `json:"active_profile_name,omitempty"`
	DefaultProxyID      string `json:"default_proxy_id,omitempty"`
	ProxyServers        int    `json:"proxy_servers"`
	SubscribedServers   int    `json:"subscribed_servers"`
	Profiles            int    `json:"profiles"`
	Phase               string `json:"phase"`
	LastCycleOutcome    string `json:"last_cycle_outcome,omitempty"`
	LastCycleError      string `json:"last_cycle_error,omitempty"`
	LastCycleAt         string `json:"last_cycle_at,omitempty"`
	LastCycleDurationMS int64  `json:"last_cycle_duration_ms,omitempty"`
}

func (e *Engine) Status() Status {
	cfg := e.store.Current()
	active := e.store.Active()
	last := e.reconciler.LastCycle()

	st := Status{
		Version:           cfg.Version,
		SyncHash:          cfg.SyncHash,
		SyncEnabled:       cfg.Options.SyncSettings,
		Backend:           remote.NameStore,
		ActiveProfileID:   cfg.ActiveProfileID,
		DefaultProxyID:    cfg.DefaultProxyServerID,
		ProxyServers:      len(cfg.ProxyServers),
		SubscribedServers: len(AllSubscribedProxyServers(cfg)),
		Profiles:          len(cfg.ProxyProfiles),
		Phase:             e.reconciler.Phase().String(),
	}

	if cfg.Options.SyncWebDavServerEnabled {
		st.Backend = remote.NameWebDAV
	}

	if active.Profile != nil {
		st.ActiveProfileName = active.Profile.ProfileName
	}

	if last.Outcome != 0 {
		st.LastCycleOutcome = last.Outcome.String()
		st.LastCycleAt = last.StartedAt.UTC().Format(time.RFC3339)
		st.LastCycleDurationMS = last.Duration.Milliseconds()

		if last.Err != nil {
			st.LastCycleError = last.Err.Error()
		}
	}

	return st
}

// SyncNow pulls from the selected backend.
func (e *Engine) SyncNow(ctx context.Context) Result {
	outcome, err := e.reconciler.Pull(ctx)

	switch {
	case stderrors.Is(err, errors.ErrSyncDisabled):
		return Result{Message: e.messages.Message(i18n.SyncDisabled)}
	case err != nil:
		return Result{Message: e.messages.Message(i18n.SyncFailed, err.Error())}
	case outcome == OutcomeApplied:
		return Result{Success: true, Message: e.messages.Message(i18n.SyncApplied)}
	default:
		return Result{Success: true, Message: e.messages.Message(i18n.SyncSkipped)}
	}
}

// Push saves for sync and pushes to the selected backend.
func (e *Engine) Push(ctx context.Context) Result {
	cfg := e.store.Current()
	if !cfg.Options.SyncSettings {
		return Result{Message: e.messages.Message(i18n.SyncDisabled)}
	}

	if err := e.reconciler.SaveAllSync(ctx, true); err != nil {
		return Result{Message: e.messages.Message(i18n.SyncFailed, err.Error())}
	}

	return Result{Success: true, Message: e.messages.Message(i18n.SyncPushed, e.reconciler.backends(cfg.Options).Name())}
}

func (e *Engine) ExportBackup() ([]byte, error) {
	return e.restorer.ExportBackup()
}

func (e *Engine) RestoreBackup(ctx context.Context, raw []byte) Result {
	return e.restorer.ApplyRestore(ctx, raw)
}

func (e *Engine) FactoryReset(ctx context.Context) Result {
	return e.restorer.FactoryReset(ctx)
}

// WatchRemote feeds platform store change events into the reconciler
// until ctx is cancelled.
func (e *Engine) WatchRemote(ctx context.Context) error {
	if e.kv == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	return e.kv.Watch(ctx, e.reconciler.OnRemoteChanged)
}

// RunSchedule pulls on the cron schedule spec until ctx is cancelled.
// The platform store also raises change events, but WebDAV does not, so
// the schedule is what picks up changes made on other devices there.
func (e *Engine) RunSchedule(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLogger(cronLogger{e.logger}))

	_, err := c.AddFunc(spec, func() {
		outcome, err := e.reconciler.Pull(ctx)

		switch {
		case stderrors.Is(err, errors.ErrSyncDisabled):
		case err != nil:
			e.logger.Warn("scheduled sync failed", slog.String("error", err.Error()))
		default:
			e.logger.Debug("scheduled sync finished", slog.String("outcome", outcome.String()))
		}
	})
	if err != nil {
		return fmt.Errorf("parsing sync schedule %q: %w", spec, err)
	}

	c.Start()
	e.logger.Info("sync schedule started", slog.String("schedule", spec))

	<-ctx.Done()
	<-c.Stop().Done()

	return ctx.Err()
}

// cronLogger routes cron's logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
