package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/httpwire/conditional"
	"github.com/karloscodes/httpwire/httpdate"
	"github.com/karloscodes/httpwire/response"
)

// ConditionalGetConfig configures ConditionalGet.
type ConditionalGetConfig struct {
	// Next skips the middleware when it returns true.
	Next func(c *fiber.Ctx) bool

	// DisableETag stops the middleware from hashing buffered bodies.
	DisableETag bool

	Logger *slog.Logger
}

// ConditionalGet evaluates If-Match, If-None-Match, If-Modified-Since and
// If-Unmodified-Since for GET and HEAD requests once the handler has produced a
// response. Buffered 2xx bodies without an ETag get one derived from their
// content, unless Cache-Control carries no-store. Matching requests are answered
// with 304 Not Modified or 412 Precondition Failed.
func ConditionalGet(config ...ConditionalGetConfig) fiber.Handler {
	var cfg ConditionalGetConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	evaluator := conditional.Evaluator{Logger: cfg.Logger}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}
		if err := c.Next(); err != nil {
			return err
		}
		method := c.Method()
		if method != fiber.MethodGet && method != fiber.MethodHead {
			return nil
		}

		res := c.Response()
		status := res.StatusCode()
		if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
			return nil
		}

		if !cfg.DisableETag && !res.IsBodyStream() && len(res.Header.Peek(fiber.HeaderETag)) == 0 &&
			len(res.Body()) > 0 && cacheable(string(res.Header.Peek(fiber.HeaderCacheControl))) {
			res.Header.Set(fiber.HeaderETag, conditional.ETagFor(res.Body()))
		}

		etag := string(res.Header.Peek(fiber.HeaderETag))
		var lastModified time.Time
		if v := res.Header.Peek(fiber.HeaderLastModified); len(v) > 0 {
			if t, err := httpdate.ParseTime(string(v)); err == nil {
				lastModified = t
			}
		}
		if etag == "" && lastModified.IsZero() {
			return nil
		}

		snapshot, err := snapshotHeaders(c)
		if err != nil {
			return err
		}
		req := conditional.RequestFromHeader(method, func(name string) string { return c.Get(name) })

		result := evaluator.Evaluate(req, etag, lastModified, snapshot)
		switch {
		case result.Kind() == response.KindNotModified:
			writeNotModified(c, result)
		case result.Status() == fiber.StatusPreconditionFailed:
			res.Reset()
			return c.SendStatus(fiber.StatusPreconditionFailed)
		}
		return nil
	}
}

// cacheable reports whether a Cache-Control value permits storing the response.
func cacheable(cacheControl string) bool {
	for _, directive := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(directive), "no-store") {
			return false
		}
	}
	return true
}

// snapshotHeaders copies the status and headers of the fiber response into a
// response.Plain the evaluator can inspect. The body is not copied.
func snapshotHeaders(c *fiber.Ctx) (*response.Plain, error) {
	res := c.Response()
	p, err := response.NewPlain(res.StatusCode(), nil, string(res.Header.ContentType()))
	if err != nil {
		return nil, err
	}
	res.Header.VisitAll(func(k, v []byte) {
		p.Header().Add(string(k), string(v))
	})
	return p, nil
}

// writeNotModified replaces the fiber response with a bodiless 304 carrying only
// the headers nm kept. Set-Cookie headers survive.
func writeNotModified(c *fiber.Ctx, nm response.Response) {
	res := c.Response()

	var cookies []string
	res.Header.VisitAllCookie(func(_, v []byte) {
		cookies = append(cookies, string(v))
	})

	res.Reset()
	res.SetStatusCode(fiber.StatusNotModified)
	for name, values := range nm.Header() {
		for _, v := range values {
			res.Header.Add(name, v)
		}
	}
	for _, v := range cookies {
		res.Header.Add(fiber.HeaderSetCookie, v)
	}
}
