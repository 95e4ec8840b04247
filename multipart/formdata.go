package multipart

import (
	"bytes"
	"io"
	"log/slog"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/valyala/bytebufferpool"

	"github.com/karloscodes/httpwire/httperr"
)

// Form is a parsed multipart form. Its File parts are either held in memory or
// spooled to a filesystem; call RemoveAll once the request is done to delete spooled
// files.
type Form struct {
	Value map[string][]string
	File  map[string][]*FileHeader
}

// RemoveAll removes every spooled file associated with the Form. It returns the first
// error encountered.
func (f *Form) RemoveAll() error {
	var err error
	for _, fhs := range f.File {
		for _, fh := range fhs {
			if e := fh.remove(); e != nil && err == nil {
				err = e
			}
		}
	}
	return err
}

// FileHeader describes a file part of a multipart form. Exactly one of its in-memory
// content or spooled temp file is populated.
type FileHeader struct {
	Filename string
	Header   textproto.MIMEHeader
	Size     int64

	content []byte
	tmpfile string
	fs      afero.Fs
	logger  *slog.Logger
}

// File is an opened file part.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// Open opens and returns the FileHeader's associated File.
func (fh *FileHeader) Open() (File, error) {
	if fh.tmpfile != "" {
		f, err := fh.fs.Open(fh.tmpfile)
		if err != nil {
			return nil, errors.Wrapf(err, "multipart: open spooled file for %q", fh.Filename)
		}
		return f, nil
	}
	r := io.NewSectionReader(bytes.NewReader(fh.content), 0, int64(len(fh.content)))
	return sectionReadCloser{r}, nil
}

// TmpFile returns the path of the spooled file, or "" for in-memory content.
func (fh *FileHeader) TmpFile() string {
	return fh.tmpfile
}

// Content returns the in-memory content, or nil when the file was spooled.
func (fh *FileHeader) Content() []byte {
	return fh.content
}

func (fh *FileHeader) remove() error {
	if fh.tmpfile == "" {
		return nil
	}
	if err := fh.fs.Remove(fh.tmpfile); err != nil && !os.IsNotExist(err) {
		fh.logger.Warn("failed to remove spooled upload", "file", fh.tmpfile, "error", err)
		return errors.Wrapf(err, "multipart: remove %s", fh.tmpfile)
	}
	fh.tmpfile = ""
	return nil
}

type sectionReadCloser struct {
	*io.SectionReader
}

func (rc sectionReadCloser) Close() error {
	return nil
}

// ReadForm parses the whole body. File parts are kept in memory while the total of
// in-memory file content stays within maxMemory; larger ones are spooled. Non-file
// values share a budget of maxMemory plus 10MB. Any error removes the files spooled
// so far.
func (r *BodyReader) ReadForm(maxMemory int64) (_ *Form, err error) {
	form := &Form{
		Value: make(map[string][]string),
		File:  make(map[string][]*FileHeader),
	}
	defer func() {
		if err != nil {
			if rerr := form.RemoveAll(); rerr != nil {
				r.logger.Warn("cleanup after failed form read", "error", rerr)
			}
		}
	}()

	maxMemory = max(maxMemory, 0)
	maxValueBytes := maxMemory + maxValueOverhead
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		name := p.FormName()
		if name == "" {
			continue
		}
		filename := p.FileName()

		if filename == "" {
			value, err := readValue(p, name, maxValueBytes)
			if err != nil {
				return nil, err
			}
			maxValueBytes -= int64(len(value))
			form.Value[name] = append(form.Value[name], value)
			continue
		}

		fh, err := r.readFile(p, filename, maxMemory)
		if err != nil {
			return nil, err
		}
		if fh.tmpfile == "" {
			maxMemory -= fh.Size
			maxValueBytes -= fh.Size
		}
		form.File[name] = append(form.File[name], fh)
	}
	return form, nil
}

func readValue(p *Part, name string, budget int64) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	n, err := io.CopyN(buf, p, budget+1)
	if err != nil && err != io.EOF {
		return "", partError(err, name)
	}
	if n > budget {
		return "", httperr.NewPayloadTooLarge(budget, "multipart: value of field %q exceeds the remaining budget of %d bytes", name, budget)
	}
	return buf.String(), nil
}

// readFile reads one file part, keeping it in memory when it fits in maxMemory and
// spooling it otherwise.
func (r *BodyReader) readFile(p *Part, filename string, maxMemory int64) (*FileHeader, error) {
	fh := &FileHeader{Filename: filename, Header: p.Header, fs: r.fs, logger: r.logger}

	var src io.Reader = p
	if limit := r.limits.MaxFileUploadSize; limit > 0 {
		src = &fileLimitReader{r: p, filename: filename, limit: limit}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	n, err := io.CopyN(buf, src, maxMemory+1)
	if err != nil && err != io.EOF {
		return nil, partError(err, filename)
	}
	if n <= maxMemory {
		fh.content = append([]byte(nil), buf.B...)
		fh.Size = int64(len(fh.content))
		return fh, nil
	}

	path, size, err := r.spool(io.MultiReader(bytes.NewReader(buf.B), src))
	if err != nil {
		return nil, partError(err, filename)
	}
	fh.tmpfile = path
	fh.Size = size
	r.logger.Debug("spooled upload", "filename", filename, "size", size, "file", path)
	return fh, nil
}

// spool copies src into a new uniquely named file in the temp dir. A partially
// written file is removed.
func (r *BodyReader) spool(src io.Reader) (string, int64, error) {
	path := filepath.Join(r.tempDir, "multipart-"+uuid.NewString())
	f, err := r.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", 0, errors.Wrap(err, "multipart: create spool file")
	}
	size, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "multipart: close spool file")
	}
	if err != nil {
		if rerr := r.fs.Remove(path); rerr != nil {
			r.logger.Warn("failed to remove partial spool file", "file", path, "error", rerr)
		}
		return "", 0, err
	}
	return path, size, nil
}

// partError turns a truncated body into a ParseError and passes other errors through.
func partError(err error, name string) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return httperr.NewParseError("multipart: unexpected end of body in part %q", name)
	}
	return err
}

// fileLimitReader fails as soon as more than limit bytes have been read.
type fileLimitReader struct {
	r        io.Reader
	filename string
	limit    int64
	n        int64
}

func (l *fileLimitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.limit {
		return n, httperr.NewPayloadTooLarge(l.limit, "multipart: file %q exceeds the maximum upload size of %d bytes", l.filename, l.limit)
	}
	return n, err
}
