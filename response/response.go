// Package response defines the closed set of response kinds produced by handlers and
// the conditional-GET machinery: Plain, Streaming, File, Redirect and NotModified.
package response

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/spf13/afero"

	"github.com/karloscodes/httpwire/cookie"
	"github.com/karloscodes/httpwire/httperr"
	"github.com/karloscodes/httpwire/mediatype"
	"github.com/karloscodes/httpwire/uri"
)

const defaultContentType = "text/plain; charset=utf-8"

// Kind identifies a concrete Response type.
type Kind int

const (
	KindPlain Kind = iota
	KindStreaming
	KindFile
	KindRedirect
	KindNotModified
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindStreaming:
		return "streaming"
	case KindFile:
		return "file"
	case KindRedirect:
		return "redirect"
	case KindNotModified:
		return "not_modified"
	}
	return "unknown"
}

// Response is implemented only by the types of this package; callers switch on the
// concrete type or on Kind.
type Response interface {
	Kind() Kind
	Status() int
	Header() http.Header
	Cookies() []*cookie.Cookie
	SetCookie(c *cookie.Cookie)
	// IsStreaming reports whether the body is produced incrementally and has no
	// length known up front.
	IsStreaming() bool
	// WriteTo writes the body.
	WriteTo(w io.Writer) (int64, error)

	sealed()
}

type base struct {
	status  int
	header  http.Header
	cookies []*cookie.Cookie
}

func newBase(status int) (base, error) {
	if status < 100 || status > 599 {
		return base{}, httperr.NewValueError("response: status %d outside 100-599", status)
	}
	return base{status: status, header: make(http.Header)}, nil
}

func (b *base) Status() int                { return b.status }
func (b *base) Header() http.Header        { return b.header }
func (b *base) Cookies() []*cookie.Cookie  { return b.cookies }
func (b *base) SetCookie(c *cookie.Cookie) { b.cookies = append(b.cookies, c) }
func (b *base) sealed()                    {}

// Plain is a response with a fully buffered body.
type Plain struct {
	base
	body []byte
}

// NewPlain returns a buffered response. An empty contentType means plain UTF-8 text.
func NewPlain(status int, body []byte, contentType string) (*Plain, error) {
	b, err := newBase(status)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	b.header.Set("Content-Type", contentType)
	return &Plain{base: b, body: body}, nil
}

func (p *Plain) Kind() Kind        { return KindPlain }
func (p *Plain) IsStreaming() bool { return false }
func (p *Plain) Body() []byte      { return p.body }

// ContentLength returns the body length in bytes.
func (p *Plain) ContentLength() int64 { return int64(len(p.body)) }

func (p *Plain) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.body)
	return int64(n), err
}

// Streaming is a response whose body is read from an io.Reader while it is sent.
type Streaming struct {
	base
	body io.Reader
}

func NewStreaming(status int, body io.Reader, contentType string) (*Streaming, error) {
	b, err := newBase(status)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	b.header.Set("Content-Type", contentType)
	return &Streaming{base: b, body: body}, nil
}

func (s *Streaming) Kind() Kind        { return KindStreaming }
func (s *Streaming) IsStreaming() bool { return true }
func (s *Streaming) Body() io.Reader   { return s.body }

func (s *Streaming) WriteTo(w io.Writer) (int64, error) {
	if s.body == nil {
		return 0, nil
	}
	return io.Copy(w, s.body)
}

// File streams a file from a filesystem.
type File struct {
	base
	fs   afero.Fs
	path string
	size int64
}

// NewFile returns a 200 response serving path from fs. When attachment is set a
// Content-Disposition header asks the client to download the file under its base name.
func NewFile(fs afero.Fs, name, contentType string, attachment bool) (*File, error) {
	info, err := fs.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, httperr.NewValueError("response: %s is a directory", name)
	}
	b, _ := newBase(http.StatusOK)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	b.header.Set("Content-Type", contentType)
	b.header.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if attachment {
		b.header.Set("Content-Disposition", mediatype.Format("attachment", map[string]string{"filename": path.Base(name)}))
	}
	return &File{base: b, fs: fs, path: name, size: info.Size()}, nil
}

func (f *File) Kind() Kind        { return KindFile }
func (f *File) IsStreaming() bool { return true }
func (f *File) Path() string      { return f.path }
func (f *File) Size() int64       { return f.size }

// Open opens the underlying file for sending.
func (f *File) Open() (afero.File, error) {
	return f.fs.Open(f.path)
}

func (f *File) WriteTo(w io.Writer) (int64, error) {
	file, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return io.Copy(w, file)
}

var allowedRedirectSchemes = map[string]bool{"": true, "http": true, "https": true, "ftp": true}

// Redirect points the client at another location.
type Redirect struct {
	base
	location string
}

// NewRedirect returns a redirect to location. status must be one of 301, 302, 303, 307
// or 308, and location must parse as a URL with an http, https or ftp scheme, or be
// relative.
func NewRedirect(location string, status int) (*Redirect, error) {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return nil, httperr.NewValueError("response: %d is not a redirect status", status)
	}
	u, err := uri.Parse(location)
	if err != nil {
		return nil, err
	}
	if !allowedRedirectSchemes[u.Scheme] {
		return nil, httperr.NewValueError("response: unsafe redirect to URL with scheme %q", u.Scheme)
	}
	b, _ := newBase(status)
	b.header.Set("Location", location)
	return &Redirect{base: b, location: location}, nil
}

func (r *Redirect) Kind() Kind                       { return KindRedirect }
func (r *Redirect) IsStreaming() bool                { return false }
func (r *Redirect) Location() string                 { return r.location }
func (r *Redirect) WriteTo(io.Writer) (int64, error) { return 0, nil }

// NotModified is a 304 response. It never has a body.
type NotModified struct {
	base
}

func NewNotModified() *NotModified {
	b, _ := newBase(http.StatusNotModified)
	return &NotModified{base: b}
}

func (n *NotModified) Kind() Kind                       { return KindNotModified }
func (n *NotModified) IsStreaming() bool                { return false }
func (n *NotModified) WriteTo(io.Writer) (int64, error) { return 0, nil }

// Body reads a response body fully into memory. It is meant for tests and small
// responses.
func Body(r Response) ([]byte, error) {
	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	return buf.Bytes(), err
}
