package settings

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alexjbarnes/settings-sync/internal/i18n"
	"github.com/alexjbarnes/settings-sync/internal/models"
	"github.com/alexjbarnes/settings-sync/internal/remote"
	"github.com/alexjbarnes/settings-sync/internal/state"
	"github.com/stretchr/testify/require"
)

const testAppVersion = "3.0.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEngineOpts struct {
	backend   remote.Backend
	kv        remote.KVStore
	rules     RulesNotifier
	scheduler SubscriptionScheduler
	statePath string
}

// newTestEngine builds an engine over a fresh bbolt state. The returned
// State is the engine's persister.
func newTestEngine(t *testing.T, o testEngineOpts) (*Engine, *state.State) {
	t.Helper()

	path := o.statePath
	if path == "" {
		path = filepath.Join(t.TempDir(), "state.db")
	}

	st, err := state.LoadAt(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := Config{
		Persister:  st,
		KV:         o.kv,
		AppVersion: testAppVersion,
		Messages:   i18n.NewPrinter("en"),
		Rules:      o.rules,
		Scheduler:  o.scheduler,
		Logger:     discardLogger(),
	}

	if o.backend != nil {
		backend := o.backend
		cfg.Backends = func(models.GeneralOptions) remote.Backend { return backend }
	}

	return NewEngine(cfg), st
}

// sampleConfig is a sync-enabled configuration with fetched content in
// one enabled and one disabled server subscription and in one rules
// subscription.
func sampleConfig() *models.Configuration {
	cfg := models.DefaultConfiguration()
	cfg.Version = testAppVersion
	cfg.SyncHash = "h1"
	cfg.Options.SyncSettings = true
	cfg.Options.SyncWebDavServerURL = "https://dav.example.com/remote.php"
	cfg.Options.SyncWebDavServerUser = "alice"
	cfg.Options.SyncWebDavServerPassword = "hunter2"
	cfg.Options.SyncWebDavBackupFilename = "laptop.json"

	cfg.ProxyServers = []models.ProxyServer{
		{ID: "p1", Name: "one", Host: "10.0.0.1", Port: 8080, Protocol: models.ProtocolHTTP},
		{ID: "p2", Name: "two", Host: "10.0.0.2", Port: 1080, Protocol: models.ProtocolSOCKS5},
	}

	cfg.ProxyServerSubscriptions = []models.ProxyServerSubscription{
		{
			Name:    "fast",
			URL:     "https://lists.example.com/fast.txt",
			Enabled: true,
			Proxies: []models.ProxyServer{
				{ID: "s1", Name: "sub-one", Host: "10.1.0.1", Port: 3128, Protocol: models.ProtocolHTTP},
				{ID: "s2", Name: "sub-two", Host: "10.1.0.2", Port: 3128, Protocol: models.ProtocolHTTP},
			},
		},
		{
			Name:    "paused",
			URL:     "https://lists.example.com/paused.txt",
			Enabled: false,
			Proxies: []models.ProxyServer{
				{ID: "s9", Name: "sub-nine", Host: "10.9.0.1", Port: 3128, Protocol: models.ProtocolHTTP},
			},
		},
	}

	smart := cfg.FindProfile(models.ProfileIDSmartRules)
	smart.ProxyRules = []models.ProxyRule{
		{RuleID: "r1", HostName: "example.com", ProxyServerID: "p1", Enabled: true},
		{RuleID: "r2", HostName: "example.org", ProxyServerID: "s1", Enabled: true},
	}
	smart.RulesSubscriptions = []models.RulesSubscription{
		{
			ID:             "rs1",
			Name:           "ads",
			URL:            "https://rules.example.com/ads.txt",
			Enabled:        true,
			ProxyRules:     []models.SubscriptionRule{{Name: "a", Regex: "^ads\\."}},
			WhitelistRules: []models.SubscriptionRule{{Name: "w", Search: "safe.example.com"}},
		},
	}

	cfg.DefaultProxyServerID = "p1"
	cfg.ActiveProfileID = models.ProfileIDSmartRules

	UpdateSmartProfilesRulesProxyServer(cfg)

	return cfg
}

// remoteDoc returns the syncable projection of sampleConfig with hash,
// after mod is applied, as the JSON a backend would return.
func remoteDoc(t *testing.T, hash string, mod func(c *models.Configuration)) []byte {
	t.Helper()

	c := StripSyncable(sampleConfig())
	c.SyncHash = hash

	if mod != nil {
		mod(c)
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	return data
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return string(data)
}

func loadStored(t *testing.T, st *state.State) (*models.Configuration, bool) {
	t.Helper()

	cfg, found, err := st.LoadSettings(context.Background())
	require.NoError(t, err)

	return cfg, found
}
