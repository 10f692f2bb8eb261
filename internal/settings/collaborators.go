package settings

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/alexjbarnes/settings-sync/internal/models"
	"github.com/google/uuid"
)

//go:generate mockgen -source=collaborators.go -destination=mock_collaborators_test.go -package=settings

// Migrator moves a decoded document forward from the version it was
// written by. Migrating an already current document changes nothing.
type Migrator interface {
	Migrate(cfg *models.Configuration, fromVersion string) error
}

// ProfileOperations copies profiles and resets their type capabilities.
type ProfileOperations interface {
	CopyProfile(src models.SmartProfile, deep bool) models.SmartProfile
	ResetProfileTypeConfig(p *models.SmartProfile)
}

// IntegrityChecker repairs cross-entity invariants in place.
type IntegrityChecker interface {
	EnsureIntegrity(cfg *models.Configuration)
}

// RulesNotifier is told when the rule set may have changed so the
// routing engine can recompile.
type RulesNotifier interface {
	NotifyRulesChanged(ctx context.Context) error
}

// SubscriptionScheduler is told to reset its refresh timers and fetch
// any subscription whose content is empty.
type SubscriptionScheduler interface {
	ResetRefreshTimers(ctx context.Context) error
}

// migration is one forward step applied to documents older than since.
type migration struct {
	since *semver.Version
	name  string
	apply func(cfg *models.Configuration)
}

// SemverMigrator applies every step newer than the document's version.
// Versions that do not parse are treated as older than every step.
type SemverMigrator struct {
	steps  []migration
	logger *slog.Logger
}

// NewSemverMigrator returns the migrator with the built-in steps.
func NewSemverMigrator(logger *slog.Logger) *SemverMigrator {
	return &SemverMigrator{
		logger: logger,
		steps: []migration{
			{
				since: semver.MustParse("0.9.0"),
				name:  "normalize proxy protocols",
				apply: normalizeProtocols,
			},
			{
				since: semver.MustParse("1.0.0"),
				name:  "rule proxy ids from embedded proxy",
				apply: ruleProxyIDsFromEmbedded,
			},
			{
				since: semver.MustParse("1.1.0"),
				name:  "default themes",
				apply: defaultThemes,
			},
		},
	}
}

func (m *SemverMigrator) Migrate(cfg *models.Configuration, fromVersion string) error {
	from, err := semver.NewVersion(strings.TrimSpace(fromVersion))
	if err != nil {
		from = nil
	}

	for _, step := range m.steps {
		if from != nil && !from.LessThan(step.since) {
			continue
		}

		step.apply(cfg)

		m.logger.Debug("applied settings migration",
			slog.String("from", fromVersion),
			slog.String("step", step.name),
		)
	}

	return nil
}

func normalizeProtocols(cfg *models.Configuration) {
	for i := range cfg.ProxyServers {
		if p, ok := models.NormalizeProtocol(cfg.ProxyServers[i].Protocol); ok {
			cfg.ProxyServers[i].Protocol = p
		}
	}

	for i := range cfg.ProxyServerSubscriptions {
		proxies := cfg.ProxyServerSubscriptions[i].Proxies
		for j := range proxies {
			if p, ok := models.NormalizeProtocol(proxies[j].Protocol); ok {
				proxies[j].Protocol = p
			}
		}
	}
}

func ruleProxyIDsFromEmbedded(cfg *models.Configuration) {
	for i := range cfg.ProxyProfiles {
		rules := cfg.ProxyProfiles[i].ProxyRules
		for j := range rules {
			if rules[j].ProxyServerID == "" && rules[j].Proxy != nil {
				rules[j].ProxyServerID = rules[j].Proxy.ID
			}
		}
	}
}

func defaultThemes(cfg *models.Configuration) {
	defaults := models.DefaultOptions()

	if cfg.Options.ThemesLight == "" {
		cfg.Options.ThemesLight = defaults.ThemesLight
	}

	if cfg.Options.ThemesDark == "" {
		cfg.Options.ThemesDark = defaults.ThemesDark
	}
}

// DefaultProfileOperations implements ProfileOperations with the
// capability table from models.
type DefaultProfileOperations struct{}

func (DefaultProfileOperations) CopyProfile(src models.SmartProfile, deep bool) models.SmartProfile {
	if deep {
		return src.Clone()
	}

	return src
}

func (DefaultProfileOperations) ResetProfileTypeConfig(p *models.SmartProfile) {
	p.ProfileTypeConfig = models.DefaultProfileTypeConfig(p.ProfileType)
}

// DefaultIntegrityChecker fills nil collections, drops duplicate ids,
// re-adds missing built-in profiles and repairs rule proxies. An empty
// active profile falls back to Direct. Non-empty active and default ids
// are left alone even if they do not resolve.
type DefaultIntegrityChecker struct{}

func (DefaultIntegrityChecker) EnsureIntegrity(cfg *models.Configuration) {
	if cfg.ProxyServers == nil {
		cfg.ProxyServers = []models.ProxyServer{}
	}

	if cfg.ProxyServerSubscriptions == nil {
		cfg.ProxyServerSubscriptions = []models.ProxyServerSubscription{}
	}

	if cfg.ProxyProfiles == nil {
		cfg.ProxyProfiles = []models.SmartProfile{}
	}

	cfg.ProxyServers = dedupe(cfg.ProxyServers, func(p models.ProxyServer) string { return p.ID })
	cfg.ProxyProfiles = dedupe(cfg.ProxyProfiles, func(p models.SmartProfile) string { return p.ProfileID })

	for i := range cfg.ProxyServers {
		if cfg.ProxyServers[i].ID == "" {
			cfg.ProxyServers[i].ID = uuid.NewString()
		}
	}

	for i := range cfg.ProxyServerSubscriptions {
		if cfg.ProxyServerSubscriptions[i].Proxies == nil {
			cfg.ProxyServerSubscriptions[i].Proxies = []models.ProxyServer{}
		}
	}

	for i := range cfg.ProxyProfiles {
		p := &cfg.ProxyProfiles[i]

		if p.ProxyRules == nil {
			p.ProxyRules = []models.ProxyRule{}
		}

		if p.RulesSubscriptions == nil {
			p.RulesSubscriptions = []models.RulesSubscription{}
		}
	}

	for _, builtin := range models.BuiltinProfiles() {
		if cfg.FindProfile(builtin.ProfileID) == nil {
			cfg.ProxyProfiles = append(cfg.ProxyProfiles, builtin)
		}
	}

	UpdateSmartProfilesRulesProxyServer(cfg)

	if cfg.ActiveProfileID == "" {
		cfg.ActiveProfileID = models.ProfileIDDirect
	}
}

// dedupe keeps the first element for each non-empty key.
func dedupe[T any](in []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]

	for _, v := range in {
		k := key(v)
		if k != "" {
			if _, dup := seen[k]; dup {
				continue
			}

			seen[k] = struct{}{}
		}

		out = append(out, v)
	}

	return out
}

// LogRulesNotifier and LogSubscriptionScheduler stand in for the routing
// engine and the subscription refresher when the daemon runs without
// them.
type LogRulesNotifier struct{ Logger *slog.Logger }

func (n LogRulesNotifier) NotifyRulesChanged(context.Context) error {
	n.Logger.Info("proxy rules changed")
	return nil
}

type LogSubscriptionScheduler struct{ Logger *slog.Logger }

func (s LogSubscriptionScheduler) ResetRefreshTimers(context.Context) error {
	s.Logger.Info("subscription refresh timers reset")
	return nil
}

// propagation fans a configuration change out to the sinks. Sink errors
// are logged and never fail the caller.
type propagation struct {
	rules     RulesNotifier
	scheduler SubscriptionScheduler
	logger    *slog.Logger
}

func (p propagation) run(ctx context.Context) {
	if p.rules != nil {
		if err := p.rules.NotifyRulesChanged(ctx); err != nil {
			p.logger.Warn("notifying rules change", slog.String("error", err.Error()))
		}
	}

	if p.scheduler != nil {
		if err := p.scheduler.ResetRefreshTimers(ctx); err != nil {
			p.logger.Warn("resetting subscription timers", slog.String("error", err.Error()))
		}
	}
}
