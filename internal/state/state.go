package state

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/alexjbarnes/settings-sync/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.settings-sync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

// Persisted subtree keys. Each is stored as its own JSON value so that
// callers can save only what changed.
const (
	KeyVersion                  = "version"
	KeySyncHash                 = "syncHash"
	KeyOptions                  = "options"
	KeyDefaultProxyServerID     = "defaultProxyServerId"
	KeyActiveProfileID          = "activeProfileId"
	KeyProxyServers             = "proxyServers"
	KeyProxyServerSubscriptions = "proxyServerSubscriptions"
	KeyProxyProfiles            = "proxyProfiles"
	KeyUpdateInfo               = "updateInfo"
)

var (
	settingsBucket = []byte("settings")
	metaBucket     = []byte("meta")
	savedAtKey     = []byte("saved_at")
)

// Patch is a field-scoped write. Keys are the Key* constants and values
// are the subtree to store.
type Patch map[string]any

// FullPatch returns a patch covering every persisted subtree.
func FullPatch(cfg *models.Configuration) Patch {
	return Patch{
		KeyVersion:                  cfg.Version,
		KeySyncHash:                 cfg.SyncHash,
		KeyOptions:                  cfg.Options,
		KeyDefaultProxyServerID:     cfg.DefaultProxyServerID,
		KeyActiveProfileID:          cfg.ActiveProfileID,
		KeyProxyServers:             cfg.ProxyServers,
		KeyProxyServerSubscriptions: cfg.ProxyServerSubscriptions,
		KeyProxyProfiles:            cfg.ProxyProfiles,
		KeyUpdateInfo:               cfg.UpdateInfo,
	}
}

var knownKeys = map[string]struct{}{
	KeyVersion: {}, KeySyncHash: {}, KeyOptions: {}, KeyDefaultProxyServerID: {},
	KeyActiveProfileID: {}, KeyProxyServers: {}, KeyProxyServerSubscriptions: {},
	KeyProxyProfiles: {}, KeyUpdateInfo: {},
}

// State wraps a bbolt database holding the local settings document.
type State struct {
	db     *bolt.DB
	sealer *Sealer
}

// Option configures a State.
type Option func(*State)

// WithSealer seals the WebDAV password before it reaches disk.
func WithSealer(s *Sealer) Option {
	return func(st *State) { st.sealer = s }
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string, opts ...Option) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(settingsBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(metaBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	s := &State{db: db}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// SaveLocal writes the subtrees in the patch in one transaction.
func (s *State) SaveLocal(_ context.Context, patch Patch) error {
	encoded := make(map[string][]byte, len(patch))

	for key, value := range patch {
		if _, ok := knownKeys[key]; !ok {
			return fmt.Errorf("unknown settings key %q", key)
		}

		if key == KeyOptions {
			sealed, err := s.sealOptions(value)
			if err != nil {
				return err
			}

			value = sealed
		}

		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}

		encoded[key] = data
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(settingsBucket)
		for key, data := range encoded {
			if err := b.Put([]byte(key), data); err != nil {
				return fmt.Errorf("writing %s: %w", key, err)
			}
		}

		stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))

		return tx.Bucket(metaBucket).Put(savedAtKey, stamp)
	})
}

// LoadSettings reads the stored document. found is false on first run,
// when nothing has been saved yet.
func (s *State) LoadSettings(_ context.Context) (*models.Configuration, bool, error) {
	raw := make(map[string]json.RawMessage)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).ForEach(func(k, v []byte) error {
			raw[string(k)] = append(json.RawMessage(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading settings: %w", err)
	}

	if len(raw) == 0 {
		return nil, false, nil
	}

	cfg := models.DefaultConfiguration()
	if err := cfg.AssignFrom(raw); err != nil {
		return nil, false, fmt.Errorf("decoding settings: %w", err)
	}

	if err := s.unsealOptions(&cfg.Options); err != nil {
		return nil, false, err
	}

	return cfg, true, nil
}

// SavedAt returns the time of the last successful SaveLocal, or the
// zero time if nothing has been saved.
func (s *State) SavedAt() time.Time {
	var at time.Time

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metaBucket).Get(savedAtKey)
		if v == nil {
			return nil
		}

		at, _ = time.Parse(time.RFC3339Nano, string(v))

		return nil
	})

	return at
}

func (s *State) sealOptions(value any) (any, error) {
	if s.sealer == nil {
		return value, nil
	}

	opts, ok := value.(models.GeneralOptions)
	if !ok {
		return nil, fmt.Errorf("options patch has type %T", value)
	}

	if opts.SyncWebDavServerPassword == "" {
		return opts, nil
	}

	sealed, err := s.sealer.Seal(opts.SyncWebDavServerPassword)
	if err != nil {
		return nil, fmt.Errorf("sealing webdav password: %w", err)
	}

	opts.SyncWebDavServerPassword = sealed

	return opts, nil
}

func (s *State) unsealOptions(opts *models.GeneralOptions) error {
	if !IsSealed(opts.SyncWebDavServerPassword) {
		return nil
	}

	if s.sealer == nil {
		return fmt.Errorf("webdav password is sealed but no settings secret is configured")
	}

	plain, err := s.sealer.Open(opts.SyncWebDavServerPassword)
	if err != nil {
		return fmt.Errorf("opening webdav password: %w", err)
	}

	opts.SyncWebDavServerPassword = plain

	return nil
}
