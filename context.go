package httpwire

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/karloscodes/httpwire/conditional"
	"github.com/karloscodes/httpwire/cookie"
	"github.com/karloscodes/httpwire/httpdate"
	"github.com/karloscodes/httpwire/middleware"
	"github.com/karloscodes/httpwire/multipart"
	"github.com/karloscodes/httpwire/response"
	"github.com/karloscodes/httpwire/uri"
)

const contextLocalsKey = "httpwire_ctx"

// Context provides request-scoped access to application dependencies and to the
// parsed pieces of the request. It embeds fiber.Ctx for everything else.
type Context struct {
	*fiber.Ctx
	Logger Logger
	Config Config

	forms    middleware.FormConfig
	form     *multipart.Form
	ownsForm bool
}

// HandlerFunc is the signature for request handlers.
type HandlerFunc func(*Context) error

// URL parses the request target.
func (ctx *Context) URL() (*uri.URL, error) {
	return uri.ParseRequestURI(ctx.OriginalURL())
}

// QueryValues parses the raw query string. Pairs that fail to decode are reported
// through the error; the rest are still returned.
func (ctx *Context) QueryValues() (uri.Values, error) {
	return uri.ParseQuery(string(ctx.Request().URI().QueryString()))
}

// RequestCookies returns every well-formed cookie of the Cookie header.
func (ctx *Context) RequestCookies() []*cookie.Cookie {
	return cookie.Parse(ctx.Get(fiber.HeaderCookie), "")
}

// RequestCookie returns the first cookie called name.
func (ctx *Context) RequestCookie(name string) (*cookie.Cookie, bool) {
	return cookie.Get(ctx.Get(fiber.HeaderCookie), name)
}

// SetCookie appends a Set-Cookie header for c.
func (ctx *Context) SetCookie(c *cookie.Cookie) error {
	v, err := c.String()
	if err != nil {
		return err
	}
	ctx.Response().Header.Add(fiber.HeaderSetCookie, v)
	return nil
}

// Form returns the parsed request body. A form parsed by the ParseForm route
// option is reused; otherwise the body is parsed on first use and its spooled
// files are removed when the handler returns.
func (ctx *Context) Form() (*multipart.Form, error) {
	if ctx.form != nil {
		return ctx.form, nil
	}
	if form, ok := middleware.FormFrom(ctx.Ctx); ok {
		ctx.form = form
		return form, nil
	}

	form, err := middleware.ReadForm(ctx.Ctx, ctx.forms)
	if err != nil {
		return nil, err
	}
	ctx.form = form
	ctx.ownsForm = true
	return form, nil
}

func (ctx *Context) release() {
	if !ctx.ownsForm || ctx.form == nil {
		return
	}
	if err := ctx.form.RemoveAll(); err != nil && ctx.Logger != nil {
		ctx.Logger.Warn("failed to remove uploaded files", "path", ctx.Path(), "error", err)
	}
	ctx.form = nil
	ctx.ownsForm = false
}

// Respond writes resp to the client. Headers and cookies of resp are added to the
// fiber response; the body is sent according to the kind of resp.
func (ctx *Context) Respond(resp response.Response) error {
	if resp == nil {
		return errors.New("httpwire: nil response")
	}

	res := ctx.Response()
	for name, values := range resp.Header() {
		if name == fiber.HeaderContentLength {
			continue
		}
		for _, v := range values {
			res.Header.Add(name, v)
		}
	}
	for _, c := range resp.Cookies() {
		if err := ctx.SetCookie(c); err != nil {
			return err
		}
	}
	ctx.Status(resp.Status())

	switch r := resp.(type) {
	case *response.Plain:
		return ctx.Send(r.Body())
	case *response.Streaming:
		ctx.Context().SetBodyStream(r.Body(), -1)
		return nil
	case *response.File:
		f, err := r.Open()
		if err != nil {
			return errors.Wrapf(err, "httpwire: open %s", r.Path())
		}
		ctx.Context().SetBodyStream(f, int(r.Size()))
		return nil
	case *response.Redirect, *response.NotModified:
		res.ResetBody()
		return nil
	}
	return errors.Errorf("httpwire: unsupported response %T", resp)
}

// RespondConditional evaluates the request preconditions against the validators of
// resp and sends either resp, a 304 or a 412. Buffered bodies without an ETag get
// one derived from their content.
func (ctx *Context) RespondConditional(resp response.Response) error {
	if resp == nil {
		return errors.New("httpwire: nil response")
	}
	conditional.SetETag(resp)

	var lastModified time.Time
	if v := resp.Header().Get(fiber.HeaderLastModified); v != "" {
		if t, err := httpdate.ParseTime(v); err == nil {
			lastModified = t
		}
	}

	req := conditional.RequestFromHeader(ctx.Method(), func(name string) string { return ctx.Get(name) })
	evaluator := conditional.Evaluator{Logger: slogFrom(ctx.Logger)}
	return ctx.Respond(evaluator.Evaluate(req, resp.Header().Get(fiber.HeaderETag), lastModified, resp))
}
