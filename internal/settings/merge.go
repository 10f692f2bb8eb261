package settings

import "github.com/alexjbarnes/settings-sync/internal/models"

// MergeNonSyncable copies locally fetched subscription content from
// source into dest, which was just received from a remote or restored
// from a backup. Rules subscriptions match on owning profile id and
// subscription id; server subscriptions match on name and URL. Disabled
// subscriptions are left as received. Enabled ones always end with a
// non-nil collection, and an enabled server subscription unknown to
// source ends empty.
func MergeNonSyncable(dest, source *models.Configuration) {
	for i := range dest.ProxyProfiles {
		destProfile := &dest.ProxyProfiles[i]
		srcProfile := source.FindProfile(destProfile.ProfileID)

		for j := range destProfile.RulesSubscriptions {
			destSub := &destProfile.RulesSubscriptions[j]
			if !destSub.Enabled {
				continue
			}

			srcSub := findRulesSubscription(srcProfile, destSub.ID)

			if srcSub != nil && len(srcSub.ProxyRules) > 0 {
				destSub.ProxyRules = cloneSubscriptionRules(srcSub.ProxyRules)
			} else if destSub.ProxyRules == nil {
				destSub.ProxyRules = []models.SubscriptionRule{}
			}

			if srcSub != nil && len(srcSub.WhitelistRules) > 0 {
				destSub.WhitelistRules = cloneSubscriptionRules(srcSub.WhitelistRules)
			} else if destSub.WhitelistRules == nil {
				destSub.WhitelistRules = []models.SubscriptionRule{}
			}
		}
	}

	for i := range dest.ProxyServerSubscriptions {
		destSub := &dest.ProxyServerSubscriptions[i]
		if !destSub.Enabled {
			continue
		}

		srcSub := findServerSubscription(source, *destSub)

		switch {
		case srcSub == nil:
			destSub.Proxies = []models.ProxyServer{}
		case len(srcSub.Proxies) > 0:
			destSub.Proxies = srcSub.Clone().Proxies
		case destSub.Proxies == nil:
			destSub.Proxies = []models.ProxyServer{}
		}
	}
}

// revertSyncOptions enforces per-device opt-outs on a received remote
// document: the sync toggles and WebDAV settings always come from local,
// and the default proxy and active profile do too unless the local
// toggle for them is on.
func revertSyncOptions(remote, local *models.Configuration) {
	remote.Options.SyncSettings = local.Options.SyncSettings
	remote.Options.SyncActiveProxy = local.Options.SyncActiveProxy
	remote.Options.SyncActiveProfile = local.Options.SyncActiveProfile

	if !local.Options.SyncActiveProxy {
		remote.DefaultProxyServerID = local.DefaultProxyServerID
	}

	if !local.Options.SyncActiveProfile {
		remote.ActiveProfileID = local.ActiveProfileID
	}

	remote.Options.SyncWebDavServerEnabled = local.Options.SyncWebDavServerEnabled
	remote.Options.SyncWebDavServerURL = local.Options.SyncWebDavServerURL
	remote.Options.SyncWebDavBackupFilename = local.Options.SyncWebDavBackupFilename
	remote.Options.SyncWebDavServerUser = local.Options.SyncWebDavServerUser
	remote.Options.SyncWebDavServerPassword = local.Options.SyncWebDavServerPassword
}

func findRulesSubscription(profile *models.SmartProfile, id string) *models.RulesSubscription {
	if profile == nil {
		return nil
	}

	for i := range profile.RulesSubscriptions {
		if profile.RulesSubscriptions[i].ID == id {
			return &profile.RulesSubscriptions[i]
		}
	}

	return nil
}

func findServerSubscription(cfg *models.Configuration, sub models.ProxyServerSubscription) *models.ProxyServerSubscription {
	for i := range cfg.ProxyServerSubscriptions {
		if cfg.ProxyServerSubscriptions[i].SameSource(sub) {
			return &cfg.ProxyServerSubscriptions[i]
		}
	}

	return nil
}

func cloneSubscriptionRules(in []models.SubscriptionRule) []models.SubscriptionRule {
	out := make([]models.SubscriptionRule, len(in))
	copy(out, in)

	return out
}
