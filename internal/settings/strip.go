package settings

import "github.com/alexjbarnes/settings-sync/internal/models"

// StripSyncable returns a deep copy of cfg with every local-only field
// cleared: the WebDAV endpoint, credentials and file name, and the
// fetched content of every server and rules subscription. cfg is not
// modified.
func StripSyncable(cfg *models.Configuration) *models.Configuration {
	out := cfg.Clone()

	out.Options.SyncWebDavServerURL = ""
	out.Options.SyncWebDavServerUser = ""
	out.Options.SyncWebDavServerPassword = ""
	out.Options.SyncWebDavBackupFilename = ""

	for i := range out.ProxyServerSubscriptions {
		out.ProxyServerSubscriptions[i].Proxies = []models.ProxyServer{}
	}

	for i := range out.ProxyProfiles {
		subs := out.ProxyProfiles[i].RulesSubscriptions
		for j := range subs {
			subs[j].ProxyRules = []models.SubscriptionRule{}
			subs[j].WhitelistRules = []models.SubscriptionRule{}
		}
	}

	return out
}

// BackupProjection is the syncable projection without the fields a
// restore re-derives: version and syncHash.
func BackupProjection(cfg *models.Configuration) *models.Configuration {
	out := StripSyncable(cfg)
	out.Version = ""
	out.SyncHash = ""

	return out
}
