package settings

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/alexjbarnes/settings-sync/internal/errors"
	"github.com/alexjbarnes/settings-sync/internal/i18n"
	"github.com/alexjbarnes/settings-sync/internal/metrics"
	"github.com/alexjbarnes/settings-sync/internal/models"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Result is the user-facing outcome of an operation: a success flag and
// a short localized message.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Restorer turns an untrusted backup into a valid configuration. Bad
// proxy server entries are skipped rather than failing the restore.
type Restorer struct {
	store      *Store
	reconciler *Reconciler
	migrator   Migrator
	profiles   ProfileOperations
	integrity  IntegrityChecker
	propagate  propagation
	appVersion string
	messages   *i18n.Printer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// backupServer accepts the legacy "type" key for the protocol.
type backupServer struct {
	models.ProxyServer
	Type string `json:"type"`
}

// Restore parses raw and builds the configuration it describes. The
// store is only read, for the active profile and default proxy that a
// backup without resolvable ids falls back to. Errors match
// ErrInvalidFormat when raw is not a backup at all and ErrRestoreFailed
// when building the configuration failed.
func (r *Restorer) Restore(raw []byte) (cfg *models.Configuration, err error) {
	var fields map[string]json.RawMessage
	if jerr := json.Unmarshal(raw, &fields); jerr != nil || fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object", errors.ErrInvalidFormat)
	}

	version := gjson.GetBytes(raw, "version")
	if !version.Exists() || version.Type == gjson.Null || version.Type == gjson.False || version.String() == "" {
		return nil, fmt.Errorf("%w: missing version field", errors.ErrInvalidFormat)
	}

	defer func() {
		if rec := recover(); rec != nil {
			cfg = nil
			err = fmt.Errorf("%w: %v", errors.ErrRestoreFailed, rec)
		}
	}()

	cfg, err = r.build(raw, fields, version.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrRestoreFailed, err)
	}

	return cfg, nil
}

func (r *Restorer) build(raw []byte, fields map[string]json.RawMessage, version string) (*models.Configuration, error) {
	current := r.store.Current()

	cfg := models.DefaultConfiguration()

	// Scalars and collections assigned over the defaults. Collection
	// entries that cannot be decoded at all are dropped here.
	if err := assignScalars(cfg, fields); err != nil {
		return nil, err
	}

	servers := r.decodeServers(fields["proxyServers"])
	subs := decodeEach[models.ProxyServerSubscription](fields["proxyServerSubscriptions"], r.logger, "proxy server subscription")
	profiles := decodeEach[models.SmartProfile](fields["proxyProfiles"], r.logger, "profile")

	if servers != nil {
		cfg.ProxyServers = servers
	}

	if subs != nil {
		cfg.ProxyServerSubscriptions = subs
	}

	if profiles != nil {
		cfg.ProxyProfiles = profiles
	}

	// Options are copied field by field over the defaults.
	if opts, ok := fields["options"]; ok && !isJSONNull(opts) {
		merged := models.DefaultOptions()
		if err := json.Unmarshal(opts, &merged); err != nil {
			return nil, fmt.Errorf("decoding options: %w", err)
		}

		cfg.Options = merged
	}

	if err := r.migrator.Migrate(cfg, version); err != nil {
		return nil, fmt.Errorf("migrating from %s: %w", version, err)
	}

	if servers != nil {
		kept := cfg.ProxyServers[:0]

		for _, srv := range cfg.ProxyServers {
			if err := srv.Validate(); err != nil {
				r.logger.Warn("skipping invalid proxy server in backup", slog.String("error", err.Error()))
				continue
			}

			kept = append(kept, srv)
		}

		cfg.ProxyServers = kept
	}

	if profiles != nil {
		builtin := builtinFlags(fields["proxyProfiles"])
		rebuilt := make([]models.SmartProfile, 0, len(cfg.ProxyProfiles))

		for _, p := range cfg.ProxyProfiles {
			if strings.TrimSpace(p.ProfileID) == "" || !p.ProfileType.Known() {
				r.logger.Warn("skipping invalid profile in backup",
					slog.String("profile_id", p.ProfileID),
					slog.String("profile_type", p.ProfileType.String()),
				)

				continue
			}

			np := r.profiles.CopyProfile(p, true)
			r.profiles.ResetProfileTypeConfig(&np)

			if b, ok := builtin[np.ProfileID]; ok && np.ProfileTypeConfig.Editable {
				np.ProfileTypeConfig.Builtin = b
			}

			rebuilt = append(rebuilt, np)
		}

		cfg.ProxyProfiles = rebuilt
	}

	cfg.ActiveProfileID = current.ActiveProfileID
	cfg.DefaultProxyServerID = current.DefaultProxyServerID

	if id := gjson.GetBytes(raw, "activeProfileId").String(); id != "" {
		if cfg.FindProfile(id) != nil {
			cfg.ActiveProfileID = id
		} else {
			r.logger.Info("backup active profile not found, keeping current", slog.String("profile_id", id))
		}
	}

	if id := gjson.GetBytes(raw, "defaultProxyServerId").String(); id != "" {
		if FindProxyServerByID(cfg, id) != nil {
			cfg.DefaultProxyServerID = id
		} else {
			r.logger.Info("backup default proxy not found, keeping current", slog.String("proxy_id", id))
		}
	}

	cfg.Version = r.appVersion
	cfg.SyncHash = ""

	r.integrity.EnsureIntegrity(cfg)

	if err := CheckReferences(cfg); err != nil {
		r.logger.Warn("restored settings keep unresolved references", slog.String("error", err.Error()))
	}

	return cfg, nil
}

// decodeServers decodes each entry on its own, mapping the legacy type
// key, normalizing the protocol and filling a missing id and name.
// Entries that do not decode are dropped. A nil result means the backup
// had no usable servers key.
func (r *Restorer) decodeServers(raw json.RawMessage) []models.ProxyServer {
	entries := decodeEach[backupServer](raw, r.logger, "proxy server")
	if entries == nil {
		return nil
	}

	out := make([]models.ProxyServer, 0, len(entries))

	for _, e := range entries {
		srv := e.ProxyServer

		if srv.Protocol == "" {
			srv.Protocol = e.Type
		}

		if p, ok := models.NormalizeProtocol(srv.Protocol); ok {
			srv.Protocol = p
		}

		if strings.TrimSpace(srv.ID) == "" {
			srv.ID = uuid.NewString()
		}

		if strings.TrimSpace(srv.Name) == "" && srv.Host != "" {
			srv.Name = net.JoinHostPort(srv.Host, strconv.Itoa(srv.Port))
		}

		out = append(out, srv)
	}

	return out
}

// decodeEach decodes a JSON array element by element. It returns nil
// when raw is absent, null, not an array or empty.
func decodeEach[T any](raw json.RawMessage, logger *slog.Logger, what string) []T {
	if len(raw) == 0 || isJSONNull(raw) {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil
	}

	out := make([]T, 0, len(items))

	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			logger.Warn("skipping undecodable "+what+" in backup",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)

			continue
		}

		out = append(out, v)
	}

	return out
}

// builtinFlags returns, per profile id, the builtin flag the backup
// stated explicitly as a boolean.
func builtinFlags(raw json.RawMessage) map[string]bool {
	out := make(map[string]bool)

	gjson.ParseBytes(raw).ForEach(func(_, p gjson.Result) bool {
		b := p.Get("profileTypeConfig.builtin")
		if b.IsBool() {
			out[p.Get("profileId").String()] = b.Bool()
		}

		return true
	})

	return out
}

func assignScalars(cfg *models.Configuration, fields map[string]json.RawMessage) error {
	scalars := make(map[string]json.RawMessage)

	for _, key := range []string{"version", "syncHash", "updateInfo"} {
		if v, ok := fields[key]; ok {
			scalars[key] = v
		}
	}

	return cfg.AssignFrom(scalars)
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// ApplyRestore restores raw and, on success, swaps the result in,
// saves it for sync and propagates the change. On failure the current
// configuration is untouched.
func (r *Restorer) ApplyRestore(ctx context.Context, raw []byte) Result {
	cfg, err := r.Restore(raw)
	if err != nil {
		r.logger.Error("backup restore failed", slog.String("error", err.Error()))

		if stderrors.Is(err, errors.ErrInvalidFormat) {
			r.metrics.ObserveRestore(metrics.OutcomeInvalid)
			return Result{Message: r.messages.Message(i18n.RestoreFailedInvalid)}
		}

		r.metrics.ObserveRestore(metrics.OutcomeFailed)

		return Result{Message: r.messages.Message(i18n.RestoreFailed)}
	}

	r.reconciler.swap(cfg)

	if err := r.reconciler.SaveAllSync(ctx, true); err != nil {
		r.logger.Warn("saving restored settings", slog.String("error", err.Error()))
	}

	r.propagate.run(ctx)
	r.metrics.ObserveRestore(metrics.OutcomeSuccess)

	r.logger.Info("backup restored",
		slog.Int("proxy_servers", len(cfg.ProxyServers)),
		slog.Int("profiles", len(cfg.ProxyProfiles)),
	)

	return Result{Success: true, Message: r.messages.Message(i18n.RestoreSuccess)}
}

// ExportBackup returns the backup projection as indented JSON, stamped
// with the running version so the file can be restored.
func (r *Restorer) ExportBackup() ([]byte, error) {
	backup := BackupProjection(r.store.Current())
	backup.Version = r.appVersion

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding backup: %w", err)
	}

	return data, nil
}

// FactoryReset replaces the configuration with defaults and saves it.
func (r *Restorer) FactoryReset(ctx context.Context) Result {
	cfg := models.DefaultConfiguration()
	cfg.Version = r.appVersion
	r.integrity.EnsureIntegrity(cfg)

	r.reconciler.swap(cfg)

	if err := r.reconciler.SaveAllSync(ctx, true); err != nil {
		r.logger.Warn("saving reset settings", slog.String("error", err.Error()))
	}

	r.propagate.run(ctx)
	r.logger.Info("settings reset to defaults")

	return Result{Success: true, Message: r.messages.Message(i18n.FactoryResetDone)}
}
