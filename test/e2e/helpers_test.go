package e2e_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexjbarnes/settings-sync/internal/auth"
	"github.com/alexjbarnes/settings-sync/internal/i18n"
	"github.com/alexjbarnes/settings-sync/internal/mcpserver"
	"github.com/alexjbarnes/settings-sync/internal/metrics"
	"github.com/alexjbarnes/settings-sync/internal/remote"
	"github.com/alexjbarnes/settings-sync/internal/server"
	"github.com/alexjbarnes/settings-sync/internal/settings"
	"github.com/alexjbarnes/settings-sync/internal/state"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"
)

const (
	testUser    = "testuser"
	testVersion = "3.0.0"
	davUser     = "dav"
	davPassword = "dav-secret"
	davSecret   = "correct horse battery staple"
	backupFile  = "e2e_settings.json"
)

var testKey = auth.APIKeyPrefix + strings.Repeat("5a", 20)

// device is one settings-sync instance: its own state database, engine
// and HTTP stack with the MCP tools and metrics behind API key auth.
type device struct {
	URL    string
	State  *state.State
	Engine *settings.Engine
	Client *http.Client
}

// newWebDAV starts an in-memory WebDAV server with basic auth.
func newWebDAV(t *testing.T) *httptest.Server {
	t.Helper()

	h := &webdav.Handler{
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != davUser || pass != davPassword {
			w.Header().Set("WWW-Authenticate", `Basic realm="dav"`)
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv
}

// newDevice wires a device the way the daemon does. syncStore is the
// shared platform store path; every device on the host uses the same
// one.
func newDevice(t *testing.T, syncStore string) *device {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	sealer, err := state.NewSealer(davSecret)
	require.NoError(t, err)

	st, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"), state.WithSealer(sealer))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := metrics.NewRegistry()

	e := settings.NewEngine(settings.Config{
		Persister:  st,
		KV:         remote.NewBoltKVStore(syncStore, logger),
		AppVersion: testVersion,
		Messages:   i18n.NewPrinter("en"),
		Metrics:    metrics.New(reg),
		Logger:     logger,
	})
	require.NoError(t, e.Init(context.Background(), ""))

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "settings-sync-e2e", Version: "test"},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, e, logger)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	keys, err := auth.NewKeyStore([]auth.APIKey{{UserID: testUser, Key: testKey}})
	require.NoError(t, err)

	mux := server.NewMux(server.MuxConfig{
		Keys:           keys,
		MCPHandler:     mcpHandler,
		MetricsHandler: metrics.Handler(reg),
		Logger:         logger,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &device{URL: srv.URL, State: st, Engine: e, Client: srv.Client()}
}

// webdavBackup returns a backup document that turns on sync through the
// given WebDAV server.
func webdavBackup(davURL string, servers string) string {
	return fmt.Sprintf(`{
		"version": "2.0.0",
		"options": {
			"syncSettings": true,
			"syncWebDavServerEnabled": true,
			"syncWebDavServerUrl": %q,
			"syncWebDavServerUser": %q,
			"syncWebDavServerPassword": %q,
			"syncWebDavBackupFilename": %q
		},
		"proxyServers": %s
	}`, davURL, davUser, davPassword, backupFile, servers)
}

// mcpSession creates an MCP client session authenticated with the given
// API key. Uses the MCP SDK's StreamableClientTransport with a custom
// HTTP RoundTripper that injects the Authorization header.
func (d *device) mcpSession(t *testing.T, key string) *mcp.ClientSession {
	t.Helper()

	transport := &mcp.StreamableClientTransport{
		Endpoint: d.URL + "/mcp",
		HTTPClient: &http.Client{
			Transport: &bearerTransport{
				token: key,
				base:  d.Client.Transport,
			},
		},
		DisableStandaloneSSE: true,
	}

	client := mcp.NewClient(
		&mcp.Implementation{Name: "e2e-test-client", Version: "test"},
		nil,
	)

	session, err := client.Connect(t.Context(), transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

// call runs a tool and returns its first text content.
func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()

	result, err := session.CallTool(t.Context(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)

	return result, extractTextContent(t, result)
}

// bearerTransport is an http.RoundTripper that injects a Bearer token
// into every request's Authorization header.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (bt *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+bt.token)

	return bt.base.RoundTrip(req)
}

// extractTextContent pulls the text from the first TextContent in a
// CallToolResult. MCP tools return JSON-serialized results as TextContent.
func extractTextContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content, "tool result has no content")

	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}

	t.Fatal("no TextContent found in tool result")

	return ""
}
