package httpwire

import "github.com/karloscodes/httpwire/multipart"

// Logger abstracts logging operations. slog satisfies it through SlogAdapter.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
}

// Config abstracts runtime configuration access.
type Config interface {
	// IsDevelopment returns true if running in development mode.
	IsDevelopment() bool

	// IsProduction returns true if running in production mode.
	IsProduction() bool

	// IsTest returns true if running in test mode.
	IsTest() bool

	// GetPort returns the HTTP server port.
	GetPort() string
}

// UploadConfigProvider lets a Config supply the limits applied when request
// bodies are parsed into forms. Without it the multipart defaults apply and
// uploads spool to the OS temporary directory.
type UploadConfigProvider interface {
	UploadLimits() multipart.Limits
	GetUploadTempDir() string
}
