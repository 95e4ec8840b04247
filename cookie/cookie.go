// Package cookie parses Cookie request headers and serializes Set-Cookie lines.
package cookie

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/karloscodes/httpwire/httpdate"
	"github.com/karloscodes/httpwire/httperr"
)

var now = time.Now

// Cookie is a single HTTP cookie.
//
// MaxAge == 0 means no Max-Age attribute; MaxAge < 0 means "delete now" and is
// serialized as Max-Age=0. New never produces a negative MaxAge; Expire does.
type Cookie struct {
	Name     string
	Value    string
	MaxAge   int
	Expires  time.Time
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite string

	// Quoted records whether the value was double-quoted on the wire.
	Quoted bool
}

type Option func(*Cookie)

func WithMaxAge(seconds int) Option {
	return func(c *Cookie) { c.MaxAge = seconds }
}

func WithExpires(t time.Time) Option {
	return func(c *Cookie) { c.Expires = t }
}

func WithDomain(domain string) Option {
	return func(c *Cookie) { c.Domain = domain }
}

func WithPath(path string) Option {
	return func(c *Cookie) { c.Path = path }
}

func WithSecure(secure bool) Option {
	return func(c *Cookie) { c.Secure = secure }
}

func WithHTTPOnly(httpOnly bool) Option {
	return func(c *Cookie) { c.HTTPOnly = httpOnly }
}

// WithSameSite sets the SameSite attribute. The value is validated by String.
func WithSameSite(mode string) Option {
	return func(c *Cookie) { c.SameSite = mode }
}

// New builds a cookie with path "/" unless overridden. When a positive max-age is given
// without an explicit expiry, Expires is derived from it.
func New(name, value string, opts ...Option) (*Cookie, error) {
	c := &Cookie{Name: name, Value: value, Path: "/"}
	for _, opt := range opts {
		opt(c)
	}
	if c.Name == "" {
		return nil, httperr.NewValueError("cookie: name must not be empty")
	}
	if c.MaxAge < 0 {
		return nil, httperr.NewValueError("cookie: max-age must not be negative, got %d", c.MaxAge)
	}
	if c.Expires.IsZero() && c.MaxAge > 0 {
		c.Expires = now().Add(time.Duration(c.MaxAge) * time.Second)
	}
	return c, nil
}

// Expire returns a cookie that instructs the client to delete name.
func Expire(name, path, domain string) *Cookie {
	if path == "" {
		path = "/"
	}
	return &Cookie{
		Name:    name,
		MaxAge:  -1,
		Expires: time.Unix(0, 0).UTC(),
		Domain:  domain,
		Path:    path,
	}
}

// normalizeSameSite returns the canonical spelling of a SameSite mode.
func normalizeSameSite(mode string) (string, bool) {
	switch strings.ToLower(mode) {
	case "lax":
		return "Lax", true
	case "strict":
		return "Strict", true
	case "none":
		return "None", true
	}
	return "", false
}

// String serializes the cookie as the value of a Set-Cookie header. Attributes are
// always written in the order Domain, Path, Max-Age, Expires, SameSite, Secure,
// HttpOnly.
func (c *Cookie) String() (string, error) {
	if !isCookieNameValid(c.Name) {
		return "", httperr.NewValueError("cookie: invalid cookie name %q", c.Name)
	}
	for i := 0; i < len(c.Value); i++ {
		if !validCookieValueByte(c.Value[i]) {
			return "", httperr.NewValueError("cookie: invalid byte %q in value of %q", c.Value[i], c.Name)
		}
	}

	if err := checkAttributeValue("Domain", c.Domain); err != nil {
		return "", err
	}
	if err := checkAttributeValue("Path", c.Path); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	if c.Quoted {
		b.WriteByte('"')
		b.WriteString(c.Value)
		b.WriteByte('"')
	} else {
		b.WriteString(c.Value)
	}

	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(strings.TrimPrefix(c.Domain, "."))
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	switch {
	case c.MaxAge > 0:
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	case c.MaxAge < 0:
		b.WriteString("; Max-Age=0")
	}
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(httpdate.Format(c.Expires))
	}
	if c.SameSite != "" {
		mode, ok := normalizeSameSite(c.SameSite)
		if !ok {
			return "", httperr.NewValueError("cookie: invalid SameSite value %q", c.SameSite)
		}
		b.WriteString("; SameSite=")
		b.WriteString(mode)
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	return b.String(), nil
}

// MustString is like String but panics on error. It is meant for cookies built
// entirely from constants.
func (c *Cookie) MustString() string {
	s, err := c.String()
	if err != nil {
		panic(err)
	}
	return s
}

// Parse parses the value of a Cookie request header. When filter is non-empty only
// cookies with that name are returned. Malformed pairs are skipped.
func Parse(header, filter string) []*Cookie {
	var cookies []*Cookie
	for part := range strings.SplitSeq(header, ";") {
		part = trim(part)
		if part == "" {
			continue
		}
		name, val, _ := strings.Cut(part, "=")
		name = trim(name)
		if !isCookieNameValid(name) {
			continue
		}
		if filter != "" && filter != name {
			continue
		}
		val, quoted, ok := parseCookieValue(trim(val))
		if !ok {
			continue
		}
		cookies = append(cookies, &Cookie{Name: name, Value: val, Quoted: quoted})
	}
	return cookies
}

// Get returns the first cookie called name in header.
func Get(header, name string) (*Cookie, bool) {
	cookies := Parse(header, name)
	if len(cookies) == 0 {
		return nil, false
	}
	return cookies[0], true
}

func trim(s string) string {
	return strings.Trim(s, " \t")
}

func isCookieNameValid(name string) bool {
	if name == "" {
		return false
	}
	return httpguts.ValidHeaderFieldName(name)
}

// parseCookieValue strips one layer of double quotes and checks every remaining byte
// is a cookie-octet.
func parseCookieValue(raw string) (value string, quoted, ok bool) {
	if len(raw) > 1 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
		quoted = true
	}
	for i := 0; i < len(raw); i++ {
		if !validCookieValueByte(raw[i]) {
			return "", quoted, false
		}
	}
	return raw, quoted, true
}

// validCookieValueByte reports whether b is a cookie-octet of RFC 6265 §4.1.1:
// 0x21-0x7E excluding '"', ';' and '\\'. Commas are accepted since browsers send them.
func validCookieValueByte(b byte) bool {
	return 0x20 < b && b < 0x7f && b != '"' && b != ';' && b != '\\'
}

// checkAttributeValue rejects attribute values that would end the attribute early
// or smuggle in another one. Only printable ASCII other than ; is allowed.
func checkAttributeValue(attr, v string) error {
	for i := 0; i < len(v); i++ {
		if b := v[i]; b < 0x20 || b > 0x7e || b == ';' {
			return httperr.NewValueError("cookie: invalid byte %q in %s attribute %q", b, attr, v)
		}
	}
	return nil
}
