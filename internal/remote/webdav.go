package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/alexjbarnes/settings-sync/internal/errors"
	"github.com/alexjbarnes/settings-sync/internal/models"
	"github.com/studio-b12/gowebdav"
	"github.com/tidwall/gjson"
)

const (
	webdavFilePerm = 0o644
	webdavTimeout  = 30 * time.Second
)

var errNoServerURL = stderrors.New("no WebDAV server URL configured")

// WebDAVBackend stores the document as a single JSON file on a WebDAV
// server. The payload is written as-is; no chunking codec is involved.
type WebDAVBackend struct {
	client   *gowebdav.Client
	filename string
}

// NewWebDAVBackend builds a backend from the WebDAV options. With an
// empty server URL every call fails with a transport error.
func NewWebDAVBackend(opts models.GeneralOptions) *WebDAVBackend {
	b := &WebDAVBackend{filename: opts.BackupFilename()}

	if opts.SyncWebDavServerURL != "" {
		b.client = gowebdav.NewClient(opts.SyncWebDavServerURL, opts.SyncWebDavServerUser, opts.SyncWebDavServerPassword)
		b.client.SetTimeout(webdavTimeout)
	}

	return b
}

func (b *WebDAVBackend) Name() string { return NameWebDAV }

// Filename returns the remote file name.
func (b *WebDAVBackend) Filename() string { return b.filename }

// Put overwrites the remote file.
func (b *WebDAVBackend) Put(ctx context.Context, payload []byte) error {
	if err := b.ready(ctx); err != nil {
		return err
	}

	if err := b.client.Write(b.filename, payload, webdavFilePerm); err != nil {
		return &errors.TransportError{Backend: NameWebDAV, Err: err}
	}

	return nil
}

// Get reads the remote file. A missing file is a transport error and
// anything other than a settings object is a decode error; neither is
// reported as an empty remote.
func (b *WebDAVBackend) Get(ctx context.Context) ([]byte, error) {
	if err := b.ready(ctx); err != nil {
		return nil, err
	}

	data, err := b.client.Read(b.filename)
	if err != nil {
		return nil, &errors.TransportError{Backend: NameWebDAV, Err: err}
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", errors.ErrDecode, b.filename)
	}

	if !gjson.ParseBytes(data).IsObject() || !gjson.GetBytes(data, "options").IsObject() {
		return nil, fmt.Errorf("%w: %s is not a settings document", errors.ErrDecode, b.filename)
	}

	return data, nil
}

func (b *WebDAVBackend) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &errors.TransportError{Backend: NameWebDAV, Err: err}
	}

	if b.client == nil {
		return &errors.TransportError{Backend: NameWebDAV, Err: errNoServerURL}
	}

	return nil
}
