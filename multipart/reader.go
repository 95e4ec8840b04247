// Package multipart implements a streaming reader for multipart/form-data bodies
// (RFC 2046, RFC 7578) and the aggregation of their parts into a Form, spooling large
// files to a filesystem.
//
// A BodyReader is not safe for concurrent use. Each Part it returns is valid only
// until the next call to NextPart.
package multipart

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"net/textproto"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/net/http/httpguts"

	"github.com/karloscodes/httpwire/httperr"
	"github.com/karloscodes/httpwire/mediatype"
)

// BodyReader iterates over the parts of a multipart body.
type BodyReader struct {
	bufReader *bufio.Reader
	limits    Limits
	logger    *slog.Logger
	fs        afero.Fs
	tempDir   string

	currentPart *Part
	partsRead   int
	done        bool

	nl               []byte // "\r\n" or "\n" once an LF-only first boundary is seen
	nlDashBoundary   []byte // nl + "--boundary"
	dashBoundaryDash []byte // "--boundary--"
	dashBoundary     []byte // "--boundary"
}

// NewBodyReader returns a reader for the multipart body r delimited by boundary.
func NewBodyReader(r io.Reader, boundary string, opts ...Option) *BodyReader {
	b := []byte("\r\n--" + boundary + "--")
	br := &BodyReader{
		bufReader:        bufio.NewReaderSize(&stickyErrorReader{r: r}, peekBufferSize),
		limits:           DefaultLimits(),
		logger:           slog.New(slog.DiscardHandler),
		fs:               afero.NewOsFs(),
		tempDir:          os.TempDir(),
		nl:               b[:2],
		nlDashBoundary:   b[:len(b)-2],
		dashBoundaryDash: b[2:],
		dashBoundary:     b[2 : len(b)-2],
	}
	for _, opt := range opts {
		opt(br)
	}
	return br
}

// FromContentType builds a BodyReader from a request's Content-Type and
// Content-Length. A negative contentLength means unknown.
func FromContentType(r io.Reader, contentType string, contentLength int64, opts ...Option) (*BodyReader, error) {
	boundary, err := mediatype.Boundary(contentType)
	if err != nil {
		return nil, err
	}
	if contentLength >= 0 {
		r = io.LimitReader(r, contentLength)
	}
	return NewBodyReader(r, boundary, opts...), nil
}

// PartsRead returns how many parts have been started so far.
func (r *BodyReader) PartsRead() int {
	return r.partsRead
}

// NextPart returns the next part of the body, or nil and io.EOF once the final
// boundary has been read. Calling NextPart invalidates the previously returned Part;
// any of its unread content is discarded.
func (r *BodyReader) NextPart() (*Part, error) {
	if r.currentPart != nil {
		r.currentPart.Close()
		r.currentPart = nil
	}
	if r.done {
		return nil, io.EOF
	}
	if string(r.dashBoundary) == "--" {
		return nil, httperr.NewParseError("multipart: boundary is empty")
	}
	expectNewPart := false
	for {
		line, err := r.bufReader.ReadSlice('\n')

		if err == io.EOF && r.isFinalBoundary(line) {
			// "--boundary--" without a trailing newline is still a valid end.
			r.done = true
			return nil, io.EOF
		}
		if err == bufio.ErrBufferFull && r.partsRead == 0 && !expectNewPart {
			// overlong preamble line
			continue
		}
		if err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, httperr.NewParseError("multipart: unexpected end of body before final boundary")
			}
			if err == bufio.ErrBufferFull {
				return nil, httperr.NewParseError("multipart: unexpected line of more than %d bytes", peekBufferSize)
			}
			return nil, errors.Wrap(err, "multipart: next part")
		}

		if r.isBoundaryDelimiterLine(line) {
			r.partsRead++
			if limit := r.limits.MaxFieldsCount; limit > 0 && r.partsRead > limit {
				return nil, httperr.NewPayloadTooLarge(int64(limit), "multipart: form has more than %d parts", limit)
			}
			p, err := r.newPart()
			if err != nil {
				return nil, err
			}
			r.currentPart = p
			return p, nil
		}

		if r.isFinalBoundary(line) {
			r.done = true
			return nil, io.EOF
		}

		if expectNewPart {
			return nil, httperr.NewParseError("multipart: expecting a new part; got line %q", string(line))
		}

		if r.partsRead == 0 {
			// preamble
			continue
		}

		// The separator between the previous body and the boundary that must follow.
		if bytes.Equal(line, r.nl) {
			expectNewPart = true
			continue
		}

		return nil, httperr.NewParseError("multipart: unexpected line in part stream: %q", string(line))
	}
}

func (r *BodyReader) isFinalBoundary(line []byte) bool {
	if !bytes.HasPrefix(line, r.dashBoundaryDash) {
		return false
	}
	rest := skipLWSPChar(line[len(r.dashBoundaryDash):])
	return len(rest) == 0 || bytes.Equal(rest, r.nl) || bytes.Equal(rest, []byte("\n"))
}

func (r *BodyReader) isBoundaryDelimiterLine(line []byte) bool {
	if !bytes.HasPrefix(line, r.dashBoundary) {
		return false
	}
	rest := skipLWSPChar(line[len(r.dashBoundary):])

	// An LF-terminated first boundary switches the whole stream to LF line endings.
	if r.partsRead == 0 && len(rest) == 1 && rest[0] == '\n' {
		r.nl = r.nl[1:]
		r.nlDashBoundary = r.nlDashBoundary[1:]
	}
	return bytes.Equal(rest, r.nl)
}

func skipLWSPChar(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	return b
}

// readHeader reads part headers up to the blank line that ends them.
func (r *BodyReader) readHeader() (textproto.MIMEHeader, error) {
	h := make(textproto.MIMEHeader)
	var lastKey string
	count := 0
	for {
		line, err := r.readHeaderLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return h, nil
		}

		if line[0] == ' ' || line[0] == '\t' {
			// obsolete line folding
			if lastKey == "" {
				return nil, httperr.NewParseError("multipart: malformed part header continuation %q", line)
			}
			vals := h[lastKey]
			v := vals[len(vals)-1] + " " + strings.Trim(line, " \t")
			if limit := r.limits.MaxHeaderLength; len(lastKey)+2+len(v) > limit {
				return nil, httperr.NewPayloadTooLarge(int64(limit), "multipart: part header %s exceeds %d bytes", lastKey, limit)
			}
			vals[len(vals)-1] = v
			continue
		}

		count++
		if limit := r.limits.MaxHeadersCount; count > limit {
			return nil, httperr.NewPayloadTooLarge(int64(limit), "multipart: part has more than %d headers", limit)
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || !httpguts.ValidHeaderFieldName(key) {
			return nil, httperr.NewParseError("multipart: malformed part header %q", line)
		}
		key = textproto.CanonicalMIMEHeaderKey(key)
		h[key] = append(h[key], strings.Trim(value, " \t"))
		lastKey = key
	}
}

// readHeaderLine returns one header line without its line terminator.
func (r *BodyReader) readHeaderLine() (string, error) {
	limit := r.limits.MaxHeaderLength
	var line []byte
	for {
		chunk, err := r.bufReader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > limit+2 {
			return "", httperr.NewPayloadTooLarge(int64(limit), "multipart: part header line exceeds %d bytes", limit)
		}
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", httperr.NewParseError("multipart: unexpected end of body in part headers")
		}
		return "", errors.Wrap(err, "multipart: read part header")
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line), nil
}

// stickyErrorReader keeps returning the first error it saw so that bufio does not
// retry a reader that has already failed.
type stickyErrorReader struct {
	r   io.Reader
	err error
}

func (r *stickyErrorReader) Read(p []byte) (n int, _ error) {
	if r.err != nil {
		return 0, r.err
	}
	n, r.err = r.r.Read(p)
	return n, r.err
}
