package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AssignFrom decodes every top-level field present in raw over c.
// Absent or null fields keep their current value. Collections are
// replaced wholesale, never merged element by element. Unknown keys
// are ignored.
func (c *Configuration) AssignFrom(raw map[string]json.RawMessage) error {
	assign := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok || isNull(v) {
			return nil
		}

		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}

		return nil
	}

	var (
		version, syncHash, defaultProxy, activeProfile *string
		servers                                        *[]ProxyServer
		subs                                           *[]ProxyServerSubscription
		profiles                                       *[]SmartProfile
		updateInfo                                     *UpdateInfo
	)

	opts := c.Options

	steps := []struct {
		key string
		dst any
	}{
		{"version", &version},
		{"syncHash", &syncHash},
		{"options", &opts},
		{"defaultProxyServerId", &defaultProxy},
		{"activeProfileId", &activeProfile},
		{"proxyServers", &servers},
		{"proxyServerSubscriptions", &subs},
		{"proxyProfiles", &profiles},
		{"updateInfo", &updateInfo},
	}
	for _, s := range steps {
		if err := assign(s.key, s.dst); err != nil {
			return err
		}
	}

	c.Options = opts

	if version != nil {
		c.Version = *version
	}

	if syncHash != nil {
		c.SyncHash = *syncHash
	}

	if defaultProxy != nil {
		c.DefaultProxyServerID = *defaultProxy
	}

	if activeProfile != nil {
		c.ActiveProfileID = *activeProfile
	}

	if servers != nil {
		c.ProxyServers = *servers
	}

	if subs != nil {
		c.ProxyServerSubscriptions = *subs
	}

	if profiles != nil {
		c.ProxyProfiles = *profiles
	}

	if updateInfo != nil {
		c.UpdateInfo = updateInfo
	}

	return nil
}

// DecodeConfiguration decodes a JSON document over the defaults.
func DecodeConfiguration(data []byte) (*Configuration, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, fmt.Errorf("settings document is null")
	}

	cfg := DefaultConfiguration()
	if err := cfg.AssignFrom(raw); err != nil {
		return nil, err
	}

	return cfg, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
