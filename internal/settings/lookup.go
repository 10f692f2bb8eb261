package settings

import (
	"cmp"
	stderrors "errors"
	"fmt"
	"slices"

	"github.com/alexjbarnes/settings-sync/internal/errors"
	"github.com/alexjbarnes/settings-sync/internal/models"
)

// FindProxyServerByIDFromList looks id up in servers first, then in the
// fetched proxies of every subscription. The result points into the
// given slices.
func FindProxyServerByIDFromList(id string, servers []models.ProxyServer, subs []models.ProxyServerSubscription) *models.ProxyServer {
	for i := range servers {
		if servers[i].ID == id {
			return &servers[i]
		}
	}

	for i := range subs {
		for j := range subs[i].Proxies {
			if subs[i].Proxies[j].ID == id {
				return &subs[i].Proxies[j]
			}
		}
	}

	return nil
}

func FindProxyServerByID(cfg *models.Configuration, id string) *models.ProxyServer {
	return FindProxyServerByIDFromList(id, cfg.ProxyServers, cfg.ProxyServerSubscriptions)
}

func FindProxyServerByName(cfg *models.Configuration, name string) *models.ProxyServer {
	for i := range cfg.ProxyServers {
		if cfg.ProxyServers[i].Name == name {
			return &cfg.ProxyServers[i]
		}
	}

	for i := range cfg.ProxyServerSubscriptions {
		proxies := cfg.ProxyServerSubscriptions[i].Proxies
		for j := range proxies {
			if proxies[j].Name == name {
				return &proxies[j]
			}
		}
	}

	return nil
}

// SortProxyServers orders servers by Order, nil counting as 0. Equal
// orders keep their relative position.
func SortProxyServers(servers []models.ProxyServer) {
	slices.SortStableFunc(servers, func(a, b models.ProxyServer) int {
		return cmp.Compare(a.SortOrder(), b.SortOrder())
	})
}

// AllSubscribedProxyServers returns the fetched servers of every enabled
// subscription, tagged with the subscription name.
func AllSubscribedProxyServers(cfg *models.Configuration) []models.ProxyServerFromSubscription {
	var out []models.ProxyServerFromSubscription

	for _, sub := range cfg.ProxyServerSubscriptions {
		if !sub.Enabled {
			continue
		}

		for _, p := range sub.Proxies {
			out = append(out, models.ProxyServerFromSubscription{
				ProxyServer:      p.Clone(),
				SubscriptionName: sub.Name,
			})
		}
	}

	return out
}

// FirstProxyServer returns the first own server, or failing that the
// first server of the first subscription that has any.
func FirstProxyServer(cfg *models.Configuration) *models.ProxyServer {
	if len(cfg.ProxyServers) > 0 {
		return &cfg.ProxyServers[0]
	}

	for i := range cfg.ProxyServerSubscriptions {
		if proxies := cfg.ProxyServerSubscriptions[i].Proxies; len(proxies) > 0 {
			return &proxies[0]
		}
	}

	return nil
}

// LastProxyServer mirrors FirstProxyServer from the end.
func LastProxyServer(cfg *models.Configuration) *models.ProxyServer {
	if n := len(cfg.ProxyServers); n > 0 {
		return &cfg.ProxyServers[n-1]
	}

	for i := len(cfg.ProxyServerSubscriptions) - 1; i >= 0; i-- {
		if proxies := cfg.ProxyServerSubscriptions[i].Proxies; len(proxies) > 0 {
			return &proxies[len(proxies)-1]
		}
	}

	return nil
}

// NextProxyServer returns the server after currentID within the same
// list. It does not wrap and does not cross from one list to another.
func NextProxyServer(cfg *models.Configuration, currentID string) *models.ProxyServer {
	if next := neighbour(cfg.ProxyServers, currentID, 1); next != nil {
		return next
	}

	for i := range cfg.ProxyServerSubscriptions {
		if next := neighbour(cfg.ProxyServerSubscriptions[i].Proxies, currentID, 1); next != nil {
			return next
		}
	}

	return nil
}

// PreviousProxyServer returns the server before currentID within the
// same list.
func PreviousProxyServer(cfg *models.Configuration, currentID string) *models.ProxyServer {
	if prev := neighbour(cfg.ProxyServers, currentID, -1); prev != nil {
		return prev
	}

	for i := range cfg.ProxyServerSubscriptions {
		if prev := neighbour(cfg.ProxyServerSubscriptions[i].Proxies, currentID, -1); prev != nil {
			return prev
		}
	}

	return nil
}

func neighbour(servers []models.ProxyServer, id string, step int) *models.ProxyServer {
	idx := slices.IndexFunc(servers, func(p models.ProxyServer) bool { return p.ID == id })
	if idx < 0 {
		return nil
	}

	at := idx + step
	if at < 0 || at >= len(servers) {
		return nil
	}

	return &servers[at]
}

// UpdateSmartProfilesRulesProxyServer refreshes the denormalized proxy
// copy on every rule. A rule without a server id gets no proxy; a rule
// whose id no longer resolves loses both.
func UpdateSmartProfilesRulesProxyServer(cfg *models.Configuration) {
	for i := range cfg.ProxyProfiles {
		rules := cfg.ProxyProfiles[i].ProxyRules
		for j := range rules {
			rule := &rules[j]

			if rule.ProxyServerID == "" {
				rule.Proxy = nil
				continue
			}

			srv := FindProxyServerByID(cfg, rule.ProxyServerID)
			if srv == nil {
				rule.Proxy = nil
				rule.ProxyServerID = ""

				continue
			}

			c := srv.Clone()
			rule.Proxy = &c
		}
	}
}

// CheckReferences reports every id in cfg that does not resolve: the
// active profile, the default proxy and each profile proxy. Each error
// matches ErrReferential.
func CheckReferences(cfg *models.Configuration) error {
	var errs []error

	if cfg.ActiveProfileID != "" && cfg.FindProfile(cfg.ActiveProfileID) == nil {
		errs = append(errs, fmt.Errorf("%w: active profile %q", errors.ErrReferential, cfg.ActiveProfileID))
	}

	if cfg.DefaultProxyServerID != "" && FindProxyServerByID(cfg, cfg.DefaultProxyServerID) == nil {
		errs = append(errs, fmt.Errorf("%w: default proxy %q", errors.ErrReferential, cfg.DefaultProxyServerID))
	}

	for _, p := range cfg.ProxyProfiles {
		if p.ProfileProxyServerID != "" && FindProxyServerByID(cfg, p.ProfileProxyServerID) == nil {
			errs = append(errs, fmt.Errorf("%w: profile %q proxy %q", errors.ErrReferential, p.ProfileID, p.ProfileProxyServerID))
		}
	}

	return stderrors.Join(errs...)
}
