package httpwire

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/httpwire/cookie"
	"github.com/karloscodes/httpwire/httpdate"
	"github.com/karloscodes/httpwire/response"
)

func TestContextRequestAccessors(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.Get("/search/*", func(ctx *Context) error {
		u, err := ctx.URL()
		if err != nil {
			return err
		}
		assert.Equal(t, "/search/caf%C3%A9", u.EscapedPath())
		assert.Equal(t, "/search/café", u.Path)

		q, err := ctx.QueryValues()
		if err != nil {
			return err
		}
		assert.Equal(t, "go lang", q.Get("q"))
		assert.Equal(t, []string{"1", "2"}, q["page"])

		c, ok := ctx.RequestCookie("session")
		require.True(t, ok)
		assert.Equal(t, "abc", c.Value)
		assert.Len(t, ctx.RequestCookies(), 2)

		return ctx.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/search/caf%C3%A9?q=go+lang&page=1&page=2", nil)
	req.Header.Set("Cookie", `session=abc; theme="dark"`)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestContextQueryValuesReportsBadEscapes(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.Get("/", func(ctx *Context) error {
		q, err := ctx.QueryValues()
		assert.Error(t, err)
		assert.Equal(t, "ok", q.Get("good"))
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/?bad=%zz&good=ok", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestContextRespond(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/files/report.pdf", []byte("%PDF-1.7"), 0o644))

	s, _, _ := newTestServer(t)
	s.Get("/plain", func(ctx *Context) error {
		resp, err := response.NewPlain(fiber.StatusCreated, []byte("made"), "")
		if err != nil {
			return err
		}
		c, err := cookie.New("flash", "saved", cookie.WithMaxAge(60), cookie.WithHTTPOnly(true))
		if err != nil {
			return err
		}
		resp.SetCookie(c)
		return ctx.Respond(resp)
	})
	s.Get("/stream", func(ctx *Context) error {
		resp, err := response.NewStreaming(fiber.StatusOK, strings.NewReader("chunked body"), "text/plain")
		if err != nil {
			return err
		}
		return ctx.Respond(resp)
	})
	s.Get("/file", func(ctx *Context) error {
		resp, err := response.NewFile(fs, "/files/report.pdf", "application/pdf", true)
		if err != nil {
			return err
		}
		return ctx.Respond(resp)
	})
	s.Get("/redirect", func(ctx *Context) error {
		resp, err := response.NewRedirect("https://example.com/next", fiber.StatusSeeOther)
		if err != nil {
			return err
		}
		return ctx.Respond(resp)
	})
	s.Get("/unsafe", func(ctx *Context) error {
		resp, err := response.NewRedirect("javascript:alert(1)", fiber.StatusFound)
		if err != nil {
			return err
		}
		return ctx.Respond(resp)
	})

	t.Run("plain with cookie", func(t *testing.T) {
		resp, err := s.App().Test(httptest.NewRequest("GET", "/plain", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

		setCookie := resp.Header.Get("Set-Cookie")
		assert.Contains(t, setCookie, "flash=saved")
		assert.Contains(t, setCookie, "Max-Age=60")
		assert.Contains(t, setCookie, "HttpOnly")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "made", string(body))
	})

	t.Run("streaming", func(t *testing.T) {
		resp, err := s.App().Test(httptest.NewRequest("GET", "/stream", nil))
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "chunked body", string(body))
		assert.Empty(t, resp.Header.Get("ETag"), "streamed bodies are not hashed")
	})

	t.Run("file attachment", func(t *testing.T) {
		resp, err := s.App().Test(httptest.NewRequest("GET", "/file", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Equal(t, "attachment; filename=report.pdf", resp.Header.Get("Content-Disposition"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.7", string(body))
	})

	t.Run("redirect", func(t *testing.T) {
		resp, err := s.App().Test(httptest.NewRequest("GET", "/redirect", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "https://example.com/next", resp.Header.Get("Location"))
	})

	t.Run("unsafe redirect is rejected", func(t *testing.T) {
		resp, err := s.App().Test(httptest.NewRequest("GET", "/unsafe", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestContextSetCookieRejectsInvalidValues(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.Get("/", func(ctx *Context) error {
		return ctx.SetCookie(&cookie.Cookie{Name: "bad", Value: "a;b"})
	})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestContextRespondConditional(t *testing.T) {
	modified := time.Date(2024, time.June, 3, 8, 30, 0, 0, time.UTC)

	s, _, _ := newTestServer(t)
	s.Get("/doc", func(ctx *Context) error {
		resp, err := response.NewPlain(fiber.StatusOK, []byte("document"), "")
		if err != nil {
			return err
		}
		resp.Header().Set("Last-Modified", httpdate.Format(modified))
		resp.Header().Set("Cache-Control", "max-age=300")
		return ctx.RespondConditional(resp)
	})

	first, err := s.App().Test(httptest.NewRequest("GET", "/doc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, first.StatusCode)
	etag := first.Header.Get("ETag")
	require.NotEmpty(t, etag)

	t.Run("matching etag", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/doc", nil)
		req.Header.Set("If-None-Match", etag)
		resp, err := s.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotModified, resp.StatusCode)
		assert.Equal(t, "max-age=300", resp.Header.Get("Cache-Control"))
		assert.Equal(t, etag, resp.Header.Get("ETag"))
	})

	t.Run("not modified since", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/doc", nil)
		req.Header.Set("If-Modified-Since", httpdate.Format(modified))
		resp, err := s.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotModified, resp.StatusCode)
	})

	t.Run("failed if-match", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/doc", nil)
		req.Header.Set("If-Match", `"stale"`)
		resp, err := s.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusPreconditionFailed, resp.StatusCode)
	})
}
