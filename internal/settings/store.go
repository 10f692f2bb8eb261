// Package settings owns the authoritative settings document: the store
// every operation reads and swaps, the sync projection and merge rules,
// the reconciliation cycle against a remote backend, and backup restore.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alexjbarnes/settings-sync/internal/models"
	"github.com/alexjbarnes/settings-sync/internal/state"
)

// Persister is the local persistence boundary. *state.State satisfies it.
type Persister interface {
	SaveLocal(ctx context.Context, patch state.Patch) error
	LoadSettings(ctx context.Context) (*models.Configuration, bool, error)
}

// ActiveSettings is the view derived from the configuration that the
// routing side reads on every request: the selected profile and the
// resolved default proxy.
type ActiveSettings struct {
	Profile      *models.SmartProfile
	DefaultProxy *models.ProxyServer
}

// Store guards the authoritative configuration. Readers get deep copies;
// writers either swap a fully built document in or mutate under the
// lock.
type Store struct {
	mu     sync.RWMutex
	cfg    *models.Configuration
	active ActiveSettings
	logger *slog.Logger
}

// NewStore returns a store holding the default configuration.
func NewStore(logger *slog.Logger) *Store {
	s := &Store{logger: logger}
	s.set(models.DefaultConfiguration())

	return s
}

// Init loads the persisted configuration. found is false on first run,
// in which case the store keeps its defaults.
func (s *Store) Init(ctx context.Context, p Persister) (bool, error) {
	cfg, found, err := p.LoadSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("loading settings: %w", err)
	}

	if !found {
		s.logger.Info("no stored settings, starting from defaults")
		return false, nil
	}

	s.Swap(cfg)

	s.logger.Info("settings loaded",
		slog.String("version", cfg.Version),
		slog.Int("proxy_servers", len(cfg.ProxyServers)),
		slog.Int("profiles", len(cfg.ProxyProfiles)),
		slog.Bool("sync", cfg.Options.SyncSettings),
	)

	return true, nil
}

// Current returns a deep copy of the configuration.
func (s *Store) Current() *models.Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cfg.Clone()
}

// Swap replaces the configuration wholesale. The store takes ownership
// of cfg.
func (s *Store) Swap(cfg *models.Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set(cfg)
}

// Mutate runs fn against the live configuration under the write lock
// and returns a copy of the result.
func (s *Store) Mutate(fn func(cfg *models.Configuration)) *models.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.cfg)
	s.set(s.cfg)

	return s.cfg.Clone()
}

// Active returns a copy of the derived active settings.
func (s *Store) Active() ActiveSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := ActiveSettings{}

	if s.active.Profile != nil {
		p := s.active.Profile.Clone()
		out.Profile = &p
	}

	if s.active.DefaultProxy != nil {
		p := s.active.DefaultProxy.Clone()
		out.DefaultProxy = &p
	}

	return out
}

// set must be called with mu held for writing.
func (s *Store) set(cfg *models.Configuration) {
	s.cfg = cfg
	s.active = ActiveSettings{}

	if p := cfg.FindProfile(cfg.ActiveProfileID); p != nil {
		c := p.Clone()
		s.active.Profile = &c
	}

	if cfg.DefaultProxyServerID != "" {
		if srv := FindProxyServerByID(cfg, cfg.DefaultProxyServerID); srv != nil {
			c := srv.Clone()
			s.active.DefaultProxy = &c
		}
	}
}
