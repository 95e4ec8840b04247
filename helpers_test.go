package httpwire

import (
	"sync"

	"github.com/karloscodes/httpwire/multipart"
)

type testConfig struct {
	env     string
	port    string
	limits  *multipart.Limits
	tempDir string
}

func (c *testConfig) IsDevelopment() bool { return c.env == "development" }
func (c *testConfig) IsProduction() bool  { return c.env == "production" }
func (c *testConfig) IsTest() bool        { return c.env == "" || c.env == "test" }
func (c *testConfig) GetPort() string     { return c.port }

// uploadConfig adds upload settings to testConfig.
type uploadConfig struct {
	*testConfig
}

func (c uploadConfig) UploadLimits() multipart.Limits { return *c.limits }
func (c uploadConfig) GetUploadTempDir() string       { return c.tempDir }

type logEntry struct {
	level string
	msg   string
	kv    []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, kv: kv})
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.record("debug", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.record("info", msg, kv) }
func (l *recordingLogger) Warn(msg string, kv ...any)  { l.record("warn", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.record("error", msg, kv) }

func (l *recordingLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		out = append(out, e.msg)
	}
	return out
}
