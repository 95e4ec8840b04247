package httpwire

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/httpwire/multipart"
)

const uploadBoundary = "upload-boundary"

func uploadRequest(path string, parts ...string) *http.Request {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("--" + uploadBoundary + "\r\n" + p + "\r\n")
	}
	b.WriteString("--" + uploadBoundary + "--\r\n")

	req := httptest.NewRequest("POST", path, strings.NewReader(b.String()))
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+uploadBoundary)
	return req
}

func fieldPart(name, value string) string {
	return "Content-Disposition: form-data; name=\"" + name + "\"\r\n\r\n" + value
}

func filePart(name, filename, content string) string {
	return "Content-Disposition: form-data; name=\"" + name + "\"; filename=\"" + filename + "\"\r\n" +
		"Content-Type: application/octet-stream\r\n\r\n" + content
}

// newTestServer returns a server spooling uploads of more than 4 bytes into an
// in-memory filesystem.
func newTestServer(t *testing.T) (*Server, afero.Fs, *recordingLogger) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/spool", 0o755))

	limits := multipart.DefaultLimits()
	limits.MaxMemory = 4

	logger := &recordingLogger{}
	cfg := DefaultServerConfig()
	cfg.Config = &testConfig{}
	cfg.Logger = logger
	cfg.UploadLimits = &limits
	cfg.UploadFs = fs
	cfg.UploadTempDir = "/spool"

	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s, fs, logger
}

func spooledFiles(t *testing.T, fs afero.Fs) []string {
	t.Helper()
	matches, err := afero.Glob(fs, "/spool/multipart-*")
	require.NoError(t, err)
	return matches
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil)
	assert.EqualError(t, err, "httpwire: config is required")

	_, err = NewServer(&ServerConfig{Logger: &recordingLogger{}})
	assert.EqualError(t, err, "httpwire: runtime config is required")

	_, err = NewServer(&ServerConfig{Config: &testConfig{}})
	assert.EqualError(t, err, "httpwire: logger is required")
}

func TestFormConfigResolution(t *testing.T) {
	fromConfig := multipart.Limits{MaxMemory: 10, MaxFieldsCount: 3}
	override := multipart.Limits{MaxMemory: 20}

	t.Run("defaults", func(t *testing.T) {
		fc := formConfig(&ServerConfig{Config: &testConfig{}, Logger: &recordingLogger{}})
		assert.Equal(t, multipart.DefaultLimits(), fc.Limits)
		assert.Empty(t, fc.TempDir)
	})

	t.Run("runtime config provides limits", func(t *testing.T) {
		cfg := uploadConfig{&testConfig{limits: &fromConfig, tempDir: "/var/uploads"}}
		fc := formConfig(&ServerConfig{Config: cfg, Logger: &recordingLogger{}})
		assert.Equal(t, fromConfig, fc.Limits)
		assert.Equal(t, "/var/uploads", fc.TempDir)
	})

	t.Run("server config wins", func(t *testing.T) {
		cfg := uploadConfig{&testConfig{limits: &fromConfig, tempDir: "/var/uploads"}}
		fc := formConfig(&ServerConfig{Config: cfg, Logger: &recordingLogger{}, UploadLimits: &override, UploadTempDir: "/tmp/x"})
		assert.Equal(t, override, fc.Limits)
		assert.Equal(t, "/tmp/x", fc.TempDir)
	})
}

func TestServerParseFormRoute(t *testing.T) {
	s, fs, _ := newTestServer(t)
	s.Post("/upload", func(ctx *Context) error {
		form, err := ctx.Form()
		if err != nil {
			return err
		}
		assert.Len(t, spooledFiles(t, fs), 1, "large file should be spooled while handling")

		f, err := form.File["doc"][0].Open()
		if err != nil {
			return err
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		return ctx.SendString(form.Value["title"][0] + ":" + string(content))
	}, &RouteConfig{ParseForm: true})

	resp, err := s.App().Test(uploadRequest("/upload", fieldPart("title", "report"), filePart("doc", "r.bin", "0123456789")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "report:0123456789", string(body))
	assert.Empty(t, spooledFiles(t, fs))
}

func TestContextFormParsesLazily(t *testing.T) {
	s, fs, _ := newTestServer(t)
	var sizes []int64
	s.Post("/lazy", func(ctx *Context) error {
		form, err := ctx.Form()
		if err != nil {
			return err
		}
		again, err := ctx.Form()
		if err != nil {
			return err
		}
		assert.Same(t, form, again)

		for _, fh := range form.File["doc"] {
			sizes = append(sizes, fh.Size)
		}
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	resp, err := s.App().Test(uploadRequest("/lazy", filePart("doc", "a.bin", "abcdefgh"), filePart("doc", "b.bin", "xy")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []int64{8, 2}, sizes)
	assert.Empty(t, spooledFiles(t, fs), "lazily parsed uploads are removed after the handler")
}

func TestServerMapsParseErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	limits := multipart.Limits{MaxMemory: 1 << 20, MaxFieldsCount: 1}

	cfg := DefaultServerConfig()
	cfg.Config = uploadConfig{&testConfig{limits: &limits, tempDir: "/"}}
	cfg.Logger = &recordingLogger{}
	cfg.UploadFs = fs
	s, err := NewServer(cfg)
	require.NoError(t, err)

	called := false
	s.Post("/upload", func(ctx *Context) error {
		called = true
		return nil
	}, &RouteConfig{ParseForm: true})
	s.Post("/lazy", func(ctx *Context) error {
		_, err := ctx.Form()
		return err
	})

	resp, err := s.App().Test(uploadRequest("/upload", fieldPart("a", "1"), fieldPart("b", "2")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.False(t, called)

	req := httptest.NewRequest("POST", "/lazy", strings.NewReader("--x\r\n"))
	req.Header.Set("Content-Type", "multipart/form-data")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestServerRecoversPanics(t *testing.T) {
	s, _, logger := newTestServer(t)
	s.Get("/panic", func(ctx *Context) error {
		panic("boom")
	})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/panic", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, logger.messages(), "panic recovered")
}

func TestServerConditionalGet(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.Get("/page", func(ctx *Context) error {
		return ctx.SendString("hello")
	})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/page", nil))
	require.NoError(t, err)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	req := httptest.NewRequest("GET", "/page", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotModified, resp.StatusCode)
}

func TestServerCatchAllRedirect(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.Get("/home", func(ctx *Context) error { return ctx.SendString("home") })
	s.SetCatchAllRedirect("/home")
	s.mountCatchAll()

	resp, err := s.App().Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/home", resp.Header.Get("Location"))
}
