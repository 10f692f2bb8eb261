package models

// Built-in profile ids. These profiles exist in every configuration.
const (
	ProfileIDDirect             = "InternalProfile_Direct"
	ProfileIDSmartRules         = "InternalProfile_SmartRules"
	ProfileIDAlwaysEnabled      = "InternalProfile_AlwaysEnabled"
	ProfileIDSystemProxy        = "InternalProfile_SystemProxy"
	ProfileIDIgnoreFailureRules = "InternalProfile_IgnoreFailureRules"
)

// DefaultOptions returns the preferences of a fresh install.
func DefaultOptions() GeneralOptions {
	return GeneralOptions{
		SyncSettings:               false,
		SyncActiveProfile:          true,
		SyncActiveProxy:            true,
		DetectRequestFailures:      true,
		DisplayFailedOnBadge:       true,
		DisplayAppliedProxyOnBadge: true,
		DisplayMatchedRuleOnBadge:  true,
		EnableShortcuts:            true,
		ShortcutNotification:       true,
		ThemesLight:                "themes-cosmo",
		ThemesDark:                 "themes-cyborg",
	}
}

// DefaultProfileTypeConfig returns the capabilities of a profile type.
func DefaultProfileTypeConfig(t ProfileType) ProfileTypeConfig {
	switch t {
	case ProfileTypeDirect, ProfileTypeSystemProxy:
		return ProfileTypeConfig{
			Builtin:    true,
			Selectable: true,
		}
	case ProfileTypeSmartRules:
		return ProfileTypeConfig{
			Builtin:                     true,
			Editable:                    true,
			Selectable:                  true,
			SupportsSubscriptions:       true,
			SupportsProfileProxy:        true,
			CustomProxyPerRule:          true,
			CanBeDisabled:               true,
			SupportsRuleActionWhitelist: true,
		}
	case ProfileTypeAlwaysEnabledBypassRules:
		return ProfileTypeConfig{
			Builtin:                      true,
			Editable:                     true,
			Selectable:                   true,
			SupportsSubscriptions:        true,
			SupportsProfileProxy:         true,
			CanBeDisabled:                true,
			SupportsRuleActionWhitelist:  true,
			DefaultRuleActionIsWhitelist: true,
		}
	case ProfileTypeIgnoreFailureRules:
		return ProfileTypeConfig{
			Builtin:              true,
			Editable:             true,
			Selectable:           true,
			SupportsProfileProxy: true,
			CanBeDisabled:        true,
		}
	default:
		return ProfileTypeConfig{Editable: true, Selectable: true}
	}
}

// NewSmartProfile returns an empty profile of the given type with its
// default capabilities and non-nil collections.
func NewSmartProfile(id, name string, t ProfileType) SmartProfile {
	return SmartProfile{
		ProfileID:          id,
		ProfileName:        name,
		ProfileType:        t,
		ProfileTypeConfig:  DefaultProfileTypeConfig(t),
		Enabled:            true,
		ProxyRules:         []ProxyRule{},
		RulesSubscriptions: []RulesSubscription{},
	}
}

// BuiltinProfiles returns the profiles every configuration carries.
func BuiltinProfiles() []SmartProfile {
	return []SmartProfile{
		NewSmartProfile(ProfileIDDirect, "Direct", ProfileTypeDirect),
		NewSmartProfile(ProfileIDSmartRules, "Smart Proxy", ProfileTypeSmartRules),
		NewSmartProfile(ProfileIDAlwaysEnabled, "Always Enable", ProfileTypeAlwaysEnabledBypassRules),
		NewSmartProfile(ProfileIDSystemProxy, "System Proxy", ProfileTypeSystemProxy),
		NewSmartProfile(ProfileIDIgnoreFailureRules, "Ignore Failure Rules", ProfileTypeIgnoreFailureRules),
	}
}

// DefaultConfiguration returns the configuration created at first run.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Options:                  DefaultOptions(),
		ActiveProfileID:          ProfileIDDirect,
		ProxyServers:             []ProxyServer{},
		ProxyServerSubscriptions: []ProxyServerSubscription{},
		ProxyProfiles:            BuiltinProfiles(),
	}
}
