package testsupport

import (
	"log/slog"

	"github.com/karloscodes/httpwire"
	"github.com/karloscodes/httpwire/multipart"
)

// TestConfig implements httpwire.Config and httpwire.UploadConfigProvider for
// testing.
type TestConfig struct {
	port    string
	limits  multipart.Limits
	tempDir string
}

// NewTestConfig creates a test configuration with the default upload limits,
// spooling to /uploads.
func NewTestConfig() *TestConfig {
	return &TestConfig{
		port:    "0", // Random port
		limits:  multipart.DefaultLimits(),
		tempDir: "/uploads",
	}
}

// IsDevelopment returns false for test config.
func (c *TestConfig) IsDevelopment() bool { return false }

// IsProduction returns false for test config.
func (c *TestConfig) IsProduction() bool { return false }

// IsTest returns true for test config.
func (c *TestConfig) IsTest() bool { return true }

// GetPort returns the configured port.
func (c *TestConfig) GetPort() string { return c.port }

func (c *TestConfig) UploadLimits() multipart.Limits { return c.limits }
func (c *TestConfig) GetUploadTempDir() string       { return c.tempDir }

// NewTestLogger creates a Logger that discards all output.
func NewTestLogger() httpwire.Logger {
	return httpwire.NewSlogAdapter(slog.New(slog.DiscardHandler))
}
