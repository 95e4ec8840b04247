package testsupport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"

	"github.com/karloscodes/httpwire"
	"github.com/karloscodes/httpwire/uri"
)

// TestServerOptions configures test server creation.
type TestServerOptions struct {
	// Route mounting function
	RouteMountFunc func(*httpwire.Server)

	// Custom server configuration (optional)
	ServerConfig *httpwire.ServerConfig

	// Disable middleware for simpler testing
	DisableMiddleware bool
}

// TestServer wraps a server whose uploads spool into an in-memory filesystem.
type TestServer struct {
	t        *testing.T
	Server   *httpwire.Server
	App      *fiber.App
	Logger   httpwire.Logger
	Config   *TestConfig
	UploadFs afero.Fs
}

// NewTestServer creates a test server.
func NewTestServer(t *testing.T, opts ...TestServerOptions) *TestServer {
	t.Helper()

	var options TestServerOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	logger := NewTestLogger()
	config := NewTestConfig()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll(config.GetUploadTempDir(), 0o755); err != nil {
		t.Fatalf("testsupport: failed to create upload dir: %v", err)
	}

	serverCfg := options.ServerConfig
	if serverCfg == nil {
		serverCfg = httpwire.DefaultServerConfig()
	}
	serverCfg.Config = config
	serverCfg.Logger = logger
	serverCfg.UploadFs = fs

	if options.DisableMiddleware {
		serverCfg.EnableRequestLogger = false
		serverCfg.EnableCompress = false
		serverCfg.EnableHelmet = false
	}

	server, err := httpwire.NewServer(serverCfg)
	if err != nil {
		t.Fatalf("testsupport: failed to create test server: %v", err)
	}
	if options.RouteMountFunc != nil {
		options.RouteMountFunc(server)
	}

	return &TestServer{
		t:        t,
		Server:   server,
		App:      server.App(),
		Logger:   logger,
		Config:   config,
		UploadFs: fs,
	}
}

// Do performs req against the server.
func (ts *TestServer) Do(req *http.Request) *http.Response {
	ts.t.Helper()

	resp, err := ts.App.Test(req, -1)
	if err != nil {
		ts.t.Fatalf("testsupport: request failed: %v", err)
	}
	return resp
}

// Request performs a request with an optional body of the given content type.
func (ts *TestServer) Request(method, path, contentType string, body ...string) *http.Response {
	ts.t.Helper()

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = strings.NewReader(body[0])
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return ts.Do(req)
}

// Get performs a GET request.
func (ts *TestServer) Get(path string) *http.Response {
	return ts.Request("GET", path, "")
}

// PostForm performs a POST request with an urlencoded body.
func (ts *TestServer) PostForm(path string, values uri.Values) *http.Response {
	return ts.Request("POST", path, fiber.MIMEApplicationForm, values.Encode())
}

// PostMultipart performs a POST request with a multipart body.
func (ts *TestServer) PostMultipart(path string, body *MultipartBody) *http.Response {
	return ts.Request("POST", path, body.ContentType(), body.String())
}

// SpooledFiles lists the upload spool files currently on disk.
func (ts *TestServer) SpooledFiles() []string {
	ts.t.Helper()

	matches, err := afero.Glob(ts.UploadFs, ts.Config.GetUploadTempDir()+"/multipart-*")
	if err != nil {
		ts.t.Fatalf("testsupport: glob spool dir: %v", err)
	}
	return matches
}

// ReadBody reads and closes the response body.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("testsupport: read body: %v", err)
	}
	return string(b)
}
