package settings

import (
	"testing"

	"github.com/alexjbarnes/settings-sync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNonSyncable_RestoresStrippedContent(t *testing.T) {
	cfg := sampleConfig()

	dest := StripSyncable(cfg)
	MergeNonSyncable(dest, cfg)

	assert.Equal(t, cfg.ProxyServerSubscriptions[0].Proxies, dest.ProxyServerSubscriptions[0].Proxies)

	want := cfg.FindProfile(models.ProfileIDSmartRules).RulesSubscriptions[0]
	got := dest.FindProfile(models.ProfileIDSmartRules).RulesSubscriptions[0]
	assert.Equal(t, want.ProxyRules, got.ProxyRules)
	assert.Equal(t, want.WhitelistRules, got.WhitelistRules)
}

func TestMergeNonSyncable_CopiesNotAliases(t *testing.T) {
	cfg := sampleConfig()

	dest := StripSyncable(cfg)
	MergeNonSyncable(dest, cfg)

	dest.ProxyServerSubscriptions[0].Proxies[0].Host = "changed"
	assert.Equal(t, "10.1.0.1", cfg.ProxyServerSubscriptions[0].Proxies[0].Host)
}

func TestMergeNonSyncable_DisabledLeftAsReceived(t *testing.T) {
	cfg := sampleConfig()

	dest := StripSyncable(cfg)
	MergeNonSyncable(dest, cfg)

	paused := dest.ProxyServerSubscriptions[1]
	require.False(t, paused.Enabled)
	assert.Empty(t, paused.Proxies)

	smart := dest.FindProfile(models.ProfileIDSmartRules)
	smart.RulesSubscriptions[0].Enabled = false
	smart.RulesSubscriptions[0].ProxyRules = nil

	MergeNonSyncable(dest, cfg)
	assert.Nil(t, dest.FindProfile(models.ProfileIDSmartRules).RulesSubscriptions[0].ProxyRules)
}

func TestMergeNonSyncable_ServerSubscriptionMatchesNameAndURL(t *testing.T) {
	cfg := sampleConfig()

	dest := StripSyncable(cfg)
	dest.ProxyServerSubscriptions[0].URL = "https://lists.example.com/moved.txt"
	dest.ProxyServerSubscriptions[0].Proxies = []models.ProxyServer{{ID: "stale"}}

	MergeNonSyncable(dest, cfg)

	assert.NotNil(t, dest.ProxyServerSubscriptions[0].Proxies)
	assert.Empty(t, dest.ProxyServerSubscriptions[0].Proxies, "an unknown subscription starts empty")
}

func TestMergeNonSyncable_UnknownRulesSubscriptionInitialized(t *testing.T) {
	cfg := sampleConfig()

	dest := StripSyncable(cfg)
	smart := dest.FindProfile(models.ProfileIDSmartRules)
	smart.RulesSubscriptions = append(smart.RulesSubscriptions, models.RulesSubscription{
		ID: "new", Enabled: true,
	})

	MergeNonSyncable(dest, cfg)

	added := dest.FindProfile(models.ProfileIDSmartRules).RulesSubscriptions[1]
	assert.NotNil(t, added.ProxyRules)
	assert.NotNil(t, added.WhitelistRules)
	assert.Empty(t, added.ProxyRules)
}

func TestMergeNonSyncable_SourceEmptyKeepsDest(t *testing.T) {
	cfg := sampleConfig()

	src := StripSyncable(cfg)
	dest := cfg.Clone()

	MergeNonSyncable(dest, src)

	assert.Equal(t, cfg.ProxyServerSubscriptions[0].Proxies, dest.ProxyServerSubscriptions[0].Proxies)
}

func TestRevertSyncOptions(t *testing.T) {
	local := sampleConfig()
	local.Options.SyncActiveProxy = false
	local.Options.SyncActiveProfile = true

	remote := StripSyncable(sampleConfig())
	remote.Options.SyncSettings = false
	remote.Options.SyncActiveProxy = true
	remote.Options.SyncWebDavServerEnabled = true
	remote.DefaultProxyServerID = "p2"
	remote.ActiveProfileID = models.ProfileIDDirect

	revertSyncOptions(remote, local)

	assert.True(t, remote.Options.SyncSettings)
	assert.False(t, remote.Options.SyncActiveProxy)
	assert.False(t, remote.Options.SyncWebDavServerEnabled)
	assert.Equal(t, local.Options.SyncWebDavServerURL, remote.Options.SyncWebDavServerURL)
	assert.Equal(t, local.Options.SyncWebDavServerPassword, remote.Options.SyncWebDavServerPassword)
	assert.Equal(t, local.Options.SyncWebDavBackupFilename, remote.Options.SyncWebDavBackupFilename)
	assert.Equal(t, "p1", remote.DefaultProxyServerID, "proxy sync is off locally")
	assert.Equal(t, models.ProfileIDDirect, remote.ActiveProfileID, "profile sync is on locally")
}
