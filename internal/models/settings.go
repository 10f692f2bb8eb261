// Package models defines the settings document shared across internal
// packages. JSON tags follow the camelCase shape of the persisted and
// synced document.
package models

import (
	"fmt"
	"strings"

	"github.com/alexjbarnes/settings-sync/internal/errors"
)

// DefaultBackupFilename is the WebDAV file and export name used when the
// options do not name one.
const DefaultBackupFilename = "smartproxy_settings.json"

// Configuration is the root settings document.
type Configuration struct {
	Version                  string                    `json:"version,omitempty"`
	SyncHash                 string                    `json:"syncHash,omitempty"`
	Options                  GeneralOptions            `json:"options"`
	DefaultProxyServerID     string                    `json:"defaultProxyServerId,omitempty"`
	ActiveProfileID          string                    `json:"activeProfileId,omitempty"`
	ProxyServers             []ProxyServer             `json:"proxyServers"`
	ProxyServerSubscriptions []ProxyServerSubscription `json:"proxyServerSubscriptions"`
	ProxyProfiles            []SmartProfile            `json:"proxyProfiles"`
	UpdateInfo               *UpdateInfo               `json:"updateInfo,omitempty"`
}

// GeneralOptions is the flat record of user preferences, including the
// sync toggles and the WebDAV credentials.
type GeneralOptions struct {
	SyncSettings      bool `json:"syncSettings"`
	SyncActiveProfile bool `json:"syncActiveProfile"`
	SyncActiveProxy   bool `json:"syncActiveProxy"`

	SyncWebDavServerEnabled  bool   `json:"syncWebDavServerEnabled"`
	SyncWebDavServerURL      string `json:"syncWebDavServerUrl"`
	SyncWebDavBackupFilename string `json:"syncWebDavBackupFilename"`
	SyncWebDavServerUser     string `json:"syncWebDavServerUser"`
	SyncWebDavServerPassword string `json:"syncWebDavServerPassword"`

	DetectRequestFailures      bool   `json:"detectRequestFailures"`
	DisplayFailedOnBadge       bool   `json:"displayFailedOnBadge"`
	DisplayAppliedProxyOnBadge bool   `json:"displayAppliedProxyOnBadge"`
	DisplayMatchedRuleOnBadge  bool   `json:"displayMatchedRuleOnBadge"`
	RefreshTabOnConfigChanges  bool   `json:"refreshTabOnConfigChanges"`
	ProxyPerOrigin             bool   `json:"proxyPerOrigin"`
	EnableShortcuts            bool   `json:"enableShortcuts"`
	ShortcutNotification       bool   `json:"shortcutNotification"`
	ThemeType                  int    `json:"themeType"`
	ThemesLight                string `json:"themesLight"`
	ThemesDark                 string `json:"themesDark"`
}

// BackupFilename returns the configured WebDAV file name or the default.
func (o GeneralOptions) BackupFilename() string {
	if name := strings.TrimSpace(o.SyncWebDavBackupFilename); name != "" {
		return name
	}

	return DefaultBackupFilename
}

// Proxy protocols accepted for a ProxyServer.
const (
	ProtocolHTTP   = "HTTP"
	ProtocolHTTPS  = "HTTPS"
	ProtocolSOCKS4 = "SOCKS4"
	ProtocolSOCKS5 = "SOCKS5"
)

// NormalizeProtocol upper-cases a protocol name and reports whether it
// is one of the supported protocols.
func NormalizeProtocol(p string) (string, bool) {
	p = strings.ToUpper(strings.TrimSpace(p))

	switch p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolSOCKS4, ProtocolSOCKS5:
		return p, true
	}

	return p, false
}

// ProxyServer is a single upstream proxy.
type ProxyServer struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Protocol        string `json:"protocol"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"password,omitempty"`
	ProxyDNS        bool   `json:"proxyDNS"`
	FailoverTimeout *int   `json:"failoverTimeout,omitempty"`
	Order           *int   `json:"order,omitempty"`
}

// SortOrder returns Order with nil treated as 0.
func (p ProxyServer) SortOrder() int {
	if p.Order == nil {
		return 0
	}

	return *p.Order
}

// Validate checks the structural fields a server needs to be usable.
func (p ProxyServer) Validate() error {
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("%w: proxy server %q: host is required", errors.ErrValidation, p.ID)
	}

	if _, ok := NormalizeProtocol(p.Protocol); !ok {
		return fmt.Errorf("%w: proxy server %q: unsupported protocol %q", errors.ErrValidation, p.ID, p.Protocol)
	}

	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("%w: proxy server %q: port %d out of range", errors.ErrValidation, p.ID, p.Port)
	}

	return nil
}

// IsValid reports whether Validate passes.
func (p ProxyServer) IsValid() bool {
	return p.Validate() == nil
}

// Clone returns a deep copy.
func (p ProxyServer) Clone() ProxyServer {
	p.FailoverTimeout = cloneInt(p.FailoverTimeout)
	p.Order = cloneInt(p.Order)

	return p
}

// ProxyServerFromSubscription is a subscribed server tagged with the
// name of the subscription that supplied it.
type ProxyServerFromSubscription struct {
	ProxyServer
	SubscriptionName string `json:"subscriptionName"`
}

// ProxyServerSubscription is a remote list of proxy servers. Name and
// URL together identify a subscription across devices. Proxies is
// fetched content and never leaves the device.
type ProxyServerSubscription struct {
	Name        string        `json:"name"`
	URL         string        `json:"url"`
	Enabled     bool          `json:"enabled"`
	RefreshRate int           `json:"refreshRate"`
	Obfuscation string        `json:"obfuscation,omitempty"`
	Format      int           `json:"format"`
	Username    string        `json:"username,omitempty"`
	Password    string        `json:"password,omitempty"`
	ProxyDNS    bool          `json:"proxyDNS"`
	Proxies     []ProxyServer `json:"proxies"`
}

// SameSource reports whether two subscriptions share the name+URL key.
func (s ProxyServerSubscription) SameSource(other ProxyServerSubscription) bool {
	return s.Name == other.Name && s.URL == other.URL
}

// Clone returns a deep copy.
func (s ProxyServerSubscription) Clone() ProxyServerSubscription {
	s.Proxies = cloneServers(s.Proxies)
	return s
}

// ProfileType enumerates the kinds of SmartProfile.
type ProfileType int

const (
	ProfileTypeDirect ProfileType = iota + 1
	ProfileTypeSmartRules
	ProfileTypeAlwaysEnabledBypassRules
	ProfileTypeSystemProxy
	ProfileTypeIgnoreFailureRules
)

func (t ProfileType) String() string {
	switch t {
	case ProfileTypeDirect:
		return "Direct"
	case ProfileTypeSmartRules:
		return "SmartRules"
	case ProfileTypeAlwaysEnabledBypassRules:
		return "AlwaysEnabledBypassRules"
	case ProfileTypeSystemProxy:
		return "SystemProxy"
	case ProfileTypeIgnoreFailureRules:
		return "IgnoreFailureRules"
	default:
		return fmt.Sprintf("ProfileType(%d)", int(t))
	}
}

// Known reports whether t is one of the defined profile types.
func (t ProfileType) Known() bool {
	return t >= ProfileTypeDirect && t <= ProfileTypeIgnoreFailureRules
}

// ProfileTypeConfig describes what a profile type allows.
type ProfileTypeConfig struct {
	Builtin                      bool `json:"builtin"`
	Editable                     bool `json:"editable"`
	Selectable                   bool `json:"selectable"`
	SupportsSubscriptions        bool `json:"supportsSubscriptions"`
	SupportsProfileProxy         bool `json:"supportsProfileProxy"`
	CustomProxyPerRule           bool `json:"customProxyPerRule"`
	CanBeDisabled                bool `json:"canBeDisabled"`
	SupportsRuleActionWhitelist  bool `json:"supportsRuleActionWhitelist"`
	DefaultRuleActionIsWhitelist bool `json:"defaultRuleActionIsWhitelist"`
}

// SmartProfile groups rules under one selectable routing mode.
type SmartProfile struct {
	ProfileID            string              `json:"profileId"`
	ProfileName          string              `json:"profileName"`
	ProfileType          ProfileType         `json:"profileType"`
	ProfileTypeConfig    ProfileTypeConfig   `json:"profileTypeConfig"`
	Enabled              bool                `json:"enabled"`
	ProfileProxyServerID string              `json:"profileProxyServerId,omitempty"`
	ProxyRules           []ProxyRule         `json:"proxyRules"`
	RulesSubscriptions   []RulesSubscription `json:"rulesSubscriptions"`
}

// Clone returns a deep copy.
func (p SmartProfile) Clone() SmartProfile {
	if p.ProxyRules != nil {
		rules := make([]ProxyRule, len(p.ProxyRules))
		for i := range p.ProxyRules {
			rules[i] = p.ProxyRules[i].Clone()
		}

		p.ProxyRules = rules
	}

	if p.RulesSubscriptions != nil {
		subs := make([]RulesSubscription, len(p.RulesSubscriptions))
		for i := range p.RulesSubscriptions {
			subs[i] = p.RulesSubscriptions[i].Clone()
		}

		p.RulesSubscriptions = subs
	}

	return p
}

// ProxyRule routes matching requests. Proxy is a denormalized copy of
// the server referenced by ProxyServerID.
type ProxyRule struct {
	RuleID              string       `json:"ruleId"`
	RuleType            int          `json:"ruleType"`
	HostName            string       `json:"hostName,omitempty"`
	AutoGeneratePattern bool         `json:"autoGeneratePattern"`
	RulePattern         string       `json:"rulePattern,omitempty"`
	RuleRegex           string       `json:"ruleRegex,omitempty"`
	RuleExact           string       `json:"ruleExact,omitempty"`
	RuleSearch          string       `json:"ruleSearch,omitempty"`
	ProxyServerID       string       `json:"proxyServerId,omitempty"`
	Proxy               *ProxyServer `json:"proxy,omitempty"`
	WhiteList           bool         `json:"whiteList"`
	Enabled             bool         `json:"enabled"`
}

// Clone returns a deep copy.
func (r ProxyRule) Clone() ProxyRule {
	if r.Proxy != nil {
		p := r.Proxy.Clone()
		r.Proxy = &p
	}

	return r
}

// SubscriptionRule is a compiled rule fetched from a rules subscription.
type SubscriptionRule struct {
	Name             string `json:"name,omitempty"`
	Regex            string `json:"regex,omitempty"`
	Search           string `json:"search,omitempty"`
	ImportedRuleType int    `json:"importedRuleType"`
}

// RulesSubscription is a remote rule list attached to a profile.
// ProxyRules and WhitelistRules are fetched content.
type RulesSubscription struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	URL            string             `json:"url"`
	Enabled        bool               `json:"enabled"`
	RefreshRate    int                `json:"refreshRate"`
	Obfuscation    string             `json:"obfuscation,omitempty"`
	Format         int                `json:"format"`
	ApplyProxy     *int               `json:"applyProxy,omitempty"`
	Username       string             `json:"username,omitempty"`
	Password       string             `json:"password,omitempty"`
	ProxyRules     []SubscriptionRule `json:"proxyRules"`
	WhitelistRules []SubscriptionRule `json:"whitelistRules"`
}

// Clone returns a deep copy.
func (s RulesSubscription) Clone() RulesSubscription {
	s.ApplyProxy = cloneInt(s.ApplyProxy)
	s.ProxyRules = cloneRules(s.ProxyRules)
	s.WhitelistRules = cloneRules(s.WhitelistRules)

	return s
}

// UpdateInfo records the last update check.
type UpdateInfo struct {
	UpdateIsAvailable bool   `json:"updateIsAvailable"`
	VersionName       string `json:"versionName,omitempty"`
	VersionCode       int    `json:"versionCode"`
	DownloadPage      string `json:"downloadPage,omitempty"`
}

// Clone returns a deep copy of the whole document.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}

	out := *c
	out.ProxyServers = cloneServers(c.ProxyServers)

	if c.ProxyServerSubscriptions != nil {
		out.ProxyServerSubscriptions = make([]ProxyServerSubscription, len(c.ProxyServerSubscriptions))
		for i := range c.ProxyServerSubscriptions {
			out.ProxyServerSubscriptions[i] = c.ProxyServerSubscriptions[i].Clone()
		}
	}

	if c.ProxyProfiles != nil {
		out.ProxyProfiles = make([]SmartProfile, len(c.ProxyProfiles))
		for i := range c.ProxyProfiles {
			out.ProxyProfiles[i] = c.ProxyProfiles[i].Clone()
		}
	}

	if c.UpdateInfo != nil {
		ui := *c.UpdateInfo
		out.UpdateInfo = &ui
	}

	return &out
}

// FindProfile returns the profile with the given id, or nil.
func (c *Configuration) FindProfile(profileID string) *SmartProfile {
	for i := range c.ProxyProfiles {
		if c.ProxyProfiles[i].ProfileID == profileID {
			return &c.ProxyProfiles[i]
		}
	}

	return nil
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}

	n := *v

	return &n
}

func cloneServers(in []ProxyServer) []ProxyServer {
	if in == nil {
		return nil
	}

	out := make([]ProxyServer, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}

	return out
}

func cloneRules(in []SubscriptionRule) []SubscriptionRule {
	if in == nil {
		return nil
	}

	out := make([]SubscriptionRule, len(in))
	copy(out, in)

	return out
}
