package remote

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alexjbarnes/settings-sync/internal/codec"
	"github.com/alexjbarnes/settings-sync/internal/errors"
	"github.com/fsnotify/fsnotify"
	bolt "go.etcd.io/bbolt"
)

//go:generate mockgen -source=store.go -destination=mock_kvstore_test.go -package=remote

// KVStore is the platform sync area: a flat string map shared between
// every device profile that syncs through it.
type KVStore interface {
	// Get returns the items for keys, or every item when keys is nil.
	Get(ctx context.Context, keys []string) (map[string]string, error)
	Set(ctx context.Context, items map[string]string) error
	Remove(ctx context.Context, keys []string) error

	// Watch calls fn after each change written by any process, until
	// ctx is cancelled.
	Watch(ctx context.Context, fn func(ctx context.Context)) error
}

// StoreBackend syncs through a KVStore, running the payload through the
// chunking codec on the way in and out.
type StoreBackend struct {
	kv    KVStore
	codec *codec.Codec
}

// NewStoreBackend wraps kv.
func NewStoreBackend(kv KVStore) *StoreBackend {
	return &StoreBackend{kv: kv, codec: codec.New()}
}

func (b *StoreBackend) Name() string { return NameStore }

// KV exposes the underlying store so callers can subscribe to changes.
func (b *StoreBackend) KV() KVStore { return b.kv }

// Put encodes payload, writes its items and removes chunk items left
// over from a longer previous payload.
func (b *StoreBackend) Put(ctx context.Context, payload []byte) error {
	items, err := b.codec.Encode(payload)
	if err != nil {
		return err
	}

	existing, err := b.kv.Get(ctx, nil)
	if err != nil {
		return &errors.TransportError{Backend: NameStore, Err: err}
	}

	if err := b.kv.Set(ctx, items); err != nil {
		return &errors.TransportError{Backend: NameStore, Err: err}
	}

	var stale []string

	for key := range existing {
		if _, ok := items[key]; !ok && codec.IsCodecKey(key) {
			stale = append(stale, key)
		}
	}

	if len(stale) > 0 {
		if err := b.kv.Remove(ctx, stale); err != nil {
			return &errors.TransportError{Backend: NameStore, Err: err}
		}
	}

	return nil
}

// Get reads every item and decodes the payload.
func (b *StoreBackend) Get(ctx context.Context) ([]byte, error) {
	items, err := b.kv.Get(ctx, nil)
	if err != nil {
		return nil, &errors.TransportError{Backend: NameStore, Err: err}
	}

	return b.codec.Decode(items)
}

const (
	kvFilePerm    = fs.FileMode(0o600)
	kvDirPerm     = fs.FileMode(0o700)
	kvOpenTimeout = 5 * time.Second

	// kvDebounce batches the burst of write events a single bolt commit
	// produces into one change notification.
	kvDebounce = 300 * time.Millisecond
)

var kvBucket = []byte("sync")

// BoltKVStore is a KVStore backed by a bbolt file. The file is opened
// per operation so several processes can share it; bbolt's file lock
// serializes them.
type BoltKVStore struct {
	path   string
	logger *slog.Logger
}

// NewBoltKVStore returns a store at path. The file is created on first
// write.
func NewBoltKVStore(path string, logger *slog.Logger) *BoltKVStore {
	return &BoltKVStore{path: path, logger: logger}
}

// Path returns the database file path.
func (s *BoltKVStore) Path() string { return s.path }

func (s *BoltKVStore) open(readOnly bool) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), kvDirPerm); err != nil {
		return nil, fmt.Errorf("creating sync store directory: %w", err)
	}

	db, err := bolt.Open(s.path, kvFilePerm, &bolt.Options{Timeout: kvOpenTimeout, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("opening sync store: %w", err)
	}

	return db, nil
}

func (s *BoltKVStore) Get(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string)

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return out, nil
	}

	db, err := s.open(true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvBucket)
		if b == nil {
			return nil
		}

		if keys == nil {
			return b.ForEach(func(k, v []byte) error {
				out[string(k)] = string(v)
				return nil
			})
		}

		for _, k := range keys {
			if v := b.Get([]byte(k)); v != nil {
				out[k] = string(v)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading sync store: %w", err)
	}

	return out, nil
}

func (s *BoltKVStore) Set(_ context.Context, items map[string]string) error {
	db, err := s.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(kvBucket)
		if err != nil {
			return err
		}

		for k, v := range items {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("writing sync store: %w", err)
	}

	return nil
}

func (s *BoltKVStore) Remove(_ context.Context, keys []string) error {
	db, err := s.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvBucket)
		if b == nil {
			return nil
		}

		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("removing from sync store: %w", err)
	}

	return nil
}

// Watch watches the directory holding the store file, since bbolt may
// replace the file and a watch on the file itself would be lost. It
// blocks until ctx is cancelled.
func (s *BoltKVStore) Watch(ctx context.Context, fn func(ctx context.Context)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, kvDirPerm); err != nil {
		return fmt.Errorf("creating sync store directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching sync store: %w", err)
	}

	s.logger.Info("sync store watcher started", slog.String("path", s.path))

	target := filepath.Clean(s.path)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(kvDebounce)
			} else {
				timer.Reset(kvDebounce)
			}

			timerCh = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			s.logger.Warn("sync store watcher error", slog.String("error", err.Error()))

		case <-timerCh:
			timerCh = nil

			fn(ctx)
		}
	}
}
