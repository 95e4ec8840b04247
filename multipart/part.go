package multipart

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"net/textproto"
	"strings"

	"github.com/karloscodes/httpwire/httperr"
	"github.com/karloscodes/httpwire/mediatype"
)

const contentTransferEncoding = "Content-Transfer-Encoding"

// Part is a single section of a multipart body. Its Read method returns the section's
// body, decoded when a quoted-printable or base64 transfer encoding was declared.
type Part struct {
	// Header holds the part headers. A decoded Content-Transfer-Encoding is removed.
	Header textproto.MIMEHeader

	mr *BodyReader

	disposition *mediatype.Disposition

	r io.Reader

	n       int   // known data bytes waiting in mr.bufReader
	total   int64 // data bytes read already
	err     error // error to return when n == 0
	readErr error // read error observed from mr.bufReader
	closed  bool
}

func (r *BodyReader) newPart() (*Part, error) {
	header, err := r.readHeader()
	if err != nil {
		return nil, err
	}
	p := &Part{Header: header, mr: r}
	p.r = partReader{p}

	switch enc := strings.ToLower(strings.TrimSpace(header.Get(contentTransferEncoding))); enc {
	case "", "7bit", "8bit", "binary":
	case "quoted-printable":
		header.Del(contentTransferEncoding)
		p.r = quotedprintable.NewReader(p.r)
	case "base64":
		header.Del(contentTransferEncoding)
		p.r = base64.NewDecoder(base64.StdEncoding, p.r)
	default:
		return nil, httperr.NewValueError("multipart: Content-Transfer-Encoding %q not supported", enc)
	}
	return p, nil
}

// Disposition returns the parsed Content-Disposition header. A missing or malformed
// header yields a Disposition with no type.
func (p *Part) Disposition() mediatype.Disposition {
	if p.disposition == nil {
		d, err := mediatype.ParseDisposition(p.Header.Get("Content-Disposition"))
		if err != nil || d.Params == nil {
			d = mediatype.Disposition{Type: d.Type, Params: map[string]string{}}
		}
		p.disposition = &d
	}
	return *p.disposition
}

// FormName returns the name parameter of a form-data Content-Disposition, or "".
func (p *Part) FormName() string {
	d := p.Disposition()
	if !d.IsFormData() {
		return ""
	}
	return d.Params["name"]
}

// FileName returns the base name of the filename parameter of the Content-Disposition
// header. Both slash and backslash count as path separators.
func (p *Part) FileName() string {
	filename := p.Disposition().Params["filename"]
	if filename == "" {
		return ""
	}
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	switch filename {
	case "", ".", "..":
		return ""
	}
	return filename
}

// Total returns the number of raw body bytes consumed from the part so far.
func (p *Part) Total() int64 {
	return p.total
}

// Read reads the body of the part, after its headers and before the next boundary.
func (p *Part) Read(d []byte) (int, error) {
	if p.closed {
		return 0, io.EOF
	}
	return p.r.Read(d)
}

// Close discards the rest of the part. The part cannot be read afterwards.
func (p *Part) Close() error {
	if p.closed {
		return nil
	}
	_, _ = io.Copy(io.Discard, partReader{p})
	p.closed = true
	return nil
}

// partReader reads the raw bytes of a part, stopping at the boundary.
type partReader struct {
	p *Part
}

func (pr partReader) Read(d []byte) (int, error) {
	p := pr.p
	br := p.mr.bufReader

	// Fill the buffer until some data is known to precede the boundary, or the
	// boundary or a read error is found.
	for p.n == 0 && p.err == nil {
		peek, _ := br.Peek(br.Buffered())
		p.n, p.err = scanUntilBoundary(peek, p.mr.dashBoundary, p.mr.nlDashBoundary, p.total, p.readErr)
		if p.n == 0 && p.err == nil {
			_, p.readErr = br.Peek(len(peek) + 1)
			if p.readErr == io.EOF {
				p.readErr = io.ErrUnexpectedEOF
			}
		}
	}

	if p.n == 0 {
		return 0, p.err
	}
	n := min(len(d), p.n)
	n, _ = br.Read(d[:n])
	p.total += int64(n)
	p.n -= n
	if p.n == 0 {
		return n, p.err
	}
	return n, nil
}

// scanUntilBoundary scans buf for the next boundary. It returns the number of bytes
// at the start of buf that are body data, and the error to report once those are
// consumed: io.EOF when the boundary was found, readErr when the stream ended.
func scanUntilBoundary(buf, dashBoundary, nlDashBoundary []byte, total int64, readErr error) (int, error) {
	if total == 0 {
		// An empty body puts the boundary at the very start, without a newline.
		if bytes.HasPrefix(buf, dashBoundary) {
			switch matchAfterPrefix(buf, dashBoundary, readErr) {
			case -1:
				return len(dashBoundary), nil
			case 0:
				return 0, nil
			case +1:
				return 0, io.EOF
			}
		}
		if bytes.HasPrefix(dashBoundary, buf) {
			return 0, readErr
		}
	}

	if i := bytes.Index(buf, nlDashBoundary); i >= 0 {
		switch matchAfterPrefix(buf[i:], nlDashBoundary, readErr) {
		case -1:
			return i + len(nlDashBoundary), nil
		case 0:
			return i, nil
		case +1:
			return i, io.EOF
		}
	}
	if bytes.HasPrefix(nlDashBoundary, buf) {
		return 0, readErr
	}

	// Everything before the last newline is body. So is the tail after it, unless it
	// could still grow into the boundary.
	i := bytes.LastIndexByte(buf, nlDashBoundary[0])
	if i >= 0 && bytes.HasPrefix(nlDashBoundary, buf[i:]) {
		return i, nil
	}
	return len(buf), readErr
}

// matchAfterPrefix checks whether buf, which starts with prefix, holds a real
// boundary. It returns +1 for a boundary, -1 for body data that merely looks like one,
// and 0 when more input is needed to decide.
func matchAfterPrefix(buf, prefix []byte, readErr error) int {
	if len(buf) == len(prefix) {
		if readErr != nil {
			return +1
		}
		return 0
	}
	c := buf[len(prefix)]

	if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
		return +1
	}

	// "--boundary--"
	if c == '-' {
		if len(buf) == len(prefix)+1 {
			if readErr != nil {
				return -1
			}
			return 0
		}
		if buf[len(prefix)+1] == '-' {
			return +1
		}
	}

	return -1
}
