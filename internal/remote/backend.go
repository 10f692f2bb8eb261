// Package remote implements the two interchangeable places a settings
// document can be synced to: the platform key-value sync store shared by
// every profile on the host, and a user-configured WebDAV file.
package remote

import (
	"context"

	"github.com/alexjbarnes/settings-sync/internal/models"
)

// Backend names reported by Name and used as metric labels.
const (
	NameStore  = "store"
	NameWebDAV = "webdav"
)

// Backend stores and fetches the serialized syncable document.
type Backend interface {
	// Put overwrites the remote copy with payload.
	Put(ctx context.Context, payload []byte) error

	// Get returns the remote copy. A nil payload with a nil error means
	// the remote holds nothing yet.
	Get(ctx context.Context) ([]byte, error)

	Name() string
}

// Select returns the backend the options point at. WebDAV wins when it
// is enabled; the platform store is used otherwise. Exactly one backend
// is ever returned.
func Select(opts models.GeneralOptions, store *StoreBackend) Backend {
	if opts.SyncWebDavServerEnabled {
		return NewWebDAVBackend(opts)
	}

	return store
}
