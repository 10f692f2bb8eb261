package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfiguration_AbsentFieldsKeepDefaults(t *testing.T) {
	cfg, err := DecodeConfiguration([]byte(`{"version":"2.0","options":{"syncSettings":true}}`))
	require.NoError(t, err)

	assert.Equal(t, "2.0", cfg.Version)
	assert.True(t, cfg.Options.SyncSettings)
	assert.True(t, cfg.Options.DetectRequestFailures, "options absent from the document keep defaults")
	assert.Equal(t, ProfileIDDirect, cfg.ActiveProfileID)
	assert.NotNil(t, cfg.ProxyServers)
	assert.Len(t, cfg.ProxyProfiles, len(BuiltinProfiles()))
}

func TestDecodeConfiguration_NullFieldsKeepDefaults(t *testing.T) {
	cfg, err := DecodeConfiguration([]byte(`{"proxyServers":null,"options":null,"activeProfileId":null}`))
	require.NoError(t, err)

	assert.NotNil(t, cfg.ProxyServers)
	assert.Equal(t, DefaultOptions(), cfg.Options)
	assert.Equal(t, ProfileIDDirect, cfg.ActiveProfileID)
}

func TestDecodeConfiguration_CollectionsReplaceNotMerge(t *testing.T) {
	cfg, err := DecodeConfiguration([]byte(`{"proxyProfiles":[{"profileId":"custom","profileName":"Mine"}]}`))
	require.NoError(t, err)

	require.Len(t, cfg.ProxyProfiles, 1)
	assert.Equal(t, "custom", cfg.ProxyProfiles[0].ProfileID)
	assert.Equal(t, ProfileType(0), cfg.ProxyProfiles[0].ProfileType, "no field leaks from the default profile at the same index")
	assert.False(t, cfg.ProxyProfiles[0].ProfileTypeConfig.Builtin)
}

func TestDecodeConfiguration_UnknownKeysIgnored(t *testing.T) {
	cfg, err := DecodeConfiguration([]byte(`{"legacyRules":[1,2],"options":{"injected":"x"}}`))
	require.NoError(t, err)

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "legacyRules")
	assert.NotContains(t, string(data), "injected")
}

func TestDecodeConfiguration_Errors(t *testing.T) {
	_, err := DecodeConfiguration([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeConfiguration([]byte(`null`))
	assert.Error(t, err)

	_, err = DecodeConfiguration([]byte(`{"proxyServers":"nope"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding proxyServers")
}
