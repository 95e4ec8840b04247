package multipart

import (
	"log/slog"

	"github.com/spf13/afero"
)

const (
	DefaultMaxMemory       int64 = 32 << 20
	DefaultMaxFileSize     int64 = 2621440 // 2.5MB
	DefaultMaxFieldsCount        = 1000
	DefaultMaxHeaderLength       = 8 << 10
	DefaultMaxHeadersCount       = 100

	// maxValueOverhead is added to maxMemory to get the budget for non-file values.
	maxValueOverhead int64 = 10 << 20

	peekBufferSize = 4096
)

// Limits bounds what a BodyReader accepts. Zero MaxFileUploadSize or MaxFieldsCount
// means unlimited; zero MaxHeaderLength or MaxHeadersCount selects the default.
// MaxMemory is the value callers pass to ReadForm.
type Limits struct {
	MaxMemory         int64
	MaxFileUploadSize int64
	MaxFieldsCount    int
	MaxHeaderLength   int
	MaxHeadersCount   int
}

// DefaultLimits returns the limits used when no WithLimits option is given.
func DefaultLimits() Limits {
	return Limits{
		MaxMemory:         DefaultMaxMemory,
		MaxFileUploadSize: DefaultMaxFileSize,
		MaxFieldsCount:    DefaultMaxFieldsCount,
		MaxHeaderLength:   DefaultMaxHeaderLength,
		MaxHeadersCount:   DefaultMaxHeadersCount,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxHeaderLength <= 0 {
		l.MaxHeaderLength = DefaultMaxHeaderLength
	}
	if l.MaxHeadersCount <= 0 {
		l.MaxHeadersCount = DefaultMaxHeadersCount
	}
	return l
}

// Option configures a BodyReader.
type Option func(*BodyReader)

func WithLimits(l Limits) Option {
	return func(r *BodyReader) { r.limits = l.withDefaults() }
}

// WithLogger sets the logger used for spooling and cleanup events. A nil logger
// discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(r *BodyReader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFs sets the filesystem large file parts are spooled to.
func WithFs(fs afero.Fs) Option {
	return func(r *BodyReader) {
		if fs != nil {
			r.fs = fs
		}
	}
}

// WithTempDir sets the directory spooled files are created in.
func WithTempDir(dir string) Option {
	return func(r *BodyReader) {
		if dir != "" {
			r.tempDir = dir
		}
	}
}
