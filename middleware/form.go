package middleware

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/karloscodes/httpwire/mediatype"
	"github.com/karloscodes/httpwire/multipart"
	"github.com/karloscodes/httpwire/uri"
)

// FormLocalsKey is the fiber.Ctx Locals key the parsed form is stored under.
const FormLocalsKey = "httpwire_form"

// FormConfig controls how request bodies are parsed into forms.
type FormConfig struct {
	// Next skips the middleware when it returns true.
	Next func(c *fiber.Ctx) bool

	Limits  multipart.Limits
	Fs      afero.Fs
	TempDir string
	Logger  *slog.Logger
}

// DefaultFormConfig returns a FormConfig with the default upload limits, spooling
// to the OS temporary directory.
func DefaultFormConfig() FormConfig {
	return FormConfig{Limits: multipart.DefaultLimits()}
}

// ReadForm parses the body of c according to its Content-Type. Multipart bodies go
// through the streaming reader with cfg's limits; urlencoded bodies are parsed as a
// query string. Any other content type yields an empty form.
func ReadForm(c *fiber.Ctx, cfg FormConfig) (*multipart.Form, error) {
	contentType := c.Get(fiber.HeaderContentType)
	if contentType == "" {
		return emptyForm(), nil
	}

	mt, _, err := mediatype.Parse(contentType)
	if err != nil && !errors.Is(err, mediatype.ErrInvalidMediaParameter) {
		return nil, err
	}

	switch mt {
	case fiber.MIMEMultipartForm:
		body, length := requestBody(c)
		br, err := multipart.FromContentType(body, contentType, length,
			multipart.WithLimits(cfg.Limits),
			multipart.WithLogger(cfg.Logger),
			multipart.WithFs(cfg.Fs),
			multipart.WithTempDir(cfg.TempDir),
		)
		if err != nil {
			return nil, err
		}
		return br.ReadForm(cfg.Limits.MaxMemory)
	case fiber.MIMEApplicationForm:
		values, err := uri.ParseQuery(string(c.Body()))
		if err != nil {
			return nil, err
		}
		form := emptyForm()
		form.Value = values
		return form, nil
	}
	return emptyForm(), nil
}

// requestBody returns the request body and its length. When the app runs with
// StreamRequestBody and fasthttp handed over a stream, the body is read from the
// connection instead of being buffered first; the length is then the declared
// Content-Length, or -1 for chunked bodies.
func requestBody(c *fiber.Ctx) (io.Reader, int64) {
	if stream := c.Context().RequestBodyStream(); stream != nil {
		length := int64(c.Request().Header.ContentLength())
		if length < 0 {
			length = -1
		}
		return stream, length
	}
	body := c.Body()
	return bytes.NewReader(body), int64(len(body))
}

func emptyForm() *multipart.Form {
	return &multipart.Form{
		Value: make(map[string][]string),
		File:  make(map[string][]*multipart.FileHeader),
	}
}

// ParseForm parses form bodies before the handler runs and stores the result under
// FormLocalsKey. Spooled uploads are removed once the rest of the chain returns.
// Parse failures are returned to the error handler unchanged.
func ParseForm(config ...FormConfig) fiber.Handler {
	cfg := DefaultFormConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		form, err := ReadForm(c, cfg)
		if err != nil {
			return err
		}
		c.Locals(FormLocalsKey, form)
		defer func() {
			if err := form.RemoveAll(); err != nil {
				log.Warn("failed to remove uploaded files", "path", c.Path(), "error", err)
			}
		}()
		return c.Next()
	}
}

// FormFrom returns the form stored by ParseForm, if any.
func FormFrom(c *fiber.Ctx) (*multipart.Form, bool) {
	form, ok := c.Locals(FormLocalsKey).(*multipart.Form)
	return form, ok && form != nil
}
