package testsupport

import (
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/karloscodes/httpwire"
	"github.com/karloscodes/httpwire/uri"
)

func TestTestServerForms(t *testing.T) {
	ts := NewTestServer(t, TestServerOptions{
		DisableMiddleware: true,
		RouteMountFunc: func(s *httpwire.Server) {
			s.Post("/echo", func(ctx *httpwire.Context) error {
				form, err := ctx.Form()
				if err != nil {
					return err
				}
				var names []string
				for _, fh := range form.File["f"] {
					names = append(names, fh.Filename)
				}
				return ctx.SendString(strings.Join(form.Value["v"], ",") + "|" + strings.Join(names, ","))
			}, &httpwire.RouteConfig{ParseForm: true})
		},
	})

	resp := ts.PostForm("/echo", uri.Values{"v": {"a b", "c&d"}})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "a b,c&d|", ReadBody(t, resp))

	body := NewMultipartBody().Field("v", "x").File("f", "one.txt", "text/plain", "1")
	resp = ts.PostMultipart("/echo", body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "x|one.txt", ReadBody(t, resp))
	assert.Empty(t, ts.SpooledFiles())

	assert.Equal(t, fiber.StatusNotFound, ts.Get("/missing").StatusCode)
}
