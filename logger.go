package httpwire

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures the logger.
type LogConfig struct {
	// Level is the minimum log level: info in development and test, error in
	// production. LOG_LEVEL overrides it.
	Level string

	// Directory for rotated log files. Only used in production. Defaults to "logs".
	Directory string

	// Rotation settings for lumberjack. Zero values mean 100MB, 3 backups and 28 days.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// AppName is used in the log filename. Defaults to "app".
	AppName string
}

// LogConfigProvider allows configuration objects to provide log settings directly.
type LogConfigProvider interface {
	GetLogLevel() string
	GetLogDirectory() string
	GetLogMaxSizeMB() int
	GetLogMaxBackups() int
	GetLogMaxAgeDays() int
	GetAppName() string
}

// LogConfigFromProvider creates a LogConfig from a LogConfigProvider.
func LogConfigFromProvider(p LogConfigProvider) *LogConfig {
	return &LogConfig{
		Level:      p.GetLogLevel(),
		Directory:  p.GetLogDirectory(),
		MaxSizeMB:  p.GetLogMaxSizeMB(),
		MaxBackups: p.GetLogMaxBackups(),
		MaxAgeDays: p.GetLogMaxAgeDays(),
		AppName:    p.GetAppName(),
	}
}

// NewLogger creates a slog.Logger for the environment of cfg. When logCfg is nil
// and cfg implements LogConfigProvider, settings come from cfg.
//
// Development and test log colored text to stdout. Production logs JSON to stdout
// and to a lumberjack-rotated file.
func NewLogger(cfg Config, logCfg *LogConfig) *slog.Logger {
	if logCfg == nil {
		if provider, ok := cfg.(LogConfigProvider); ok {
			logCfg = LogConfigFromProvider(provider)
		} else {
			logCfg = &LogConfig{}
		}
	}

	level := resolveLogLevel(cfg, logCfg.Level)
	if cfg.IsDevelopment() || cfg.IsTest() {
		return slog.New(newColorHandler(os.Stdout, level))
	}
	return newProdLogger(level, logCfg)
}

// resolveLogLevel picks LOG_LEVEL, then the configured level, then the
// environment default. Unknown names fall back to info.
func resolveLogLevel(cfg Config, configured string) slog.Level {
	name := configured
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		name = env
	}
	if name == "" {
		if cfg.IsDevelopment() || cfg.IsTest() {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if strings.EqualFold(name, "warning") {
		name = "warn"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func newProdLogger(level slog.Level, logCfg *LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}

	dir := cmp.Or(logCfg.Directory, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, cmp.Or(logCfg.AppName, "app")+".log"),
		MaxSize:    positiveOr(logCfg.MaxSizeMB, 100),
		MaxBackups: positiveOr(logCfg.MaxBackups, 3),
		MaxAge:     positiveOr(logCfg.MaxAgeDays, 28),
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, rotator), opts))
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// colorHandler writes one colored line per record:
//
//	15:04:05 INFO message key=value group.key=value
type colorHandler struct {
	w      io.Writer
	level  slog.Level
	prefix string      // dotted group path for attributes added later
	attrs  []slog.Attr // attributes from WithAttrs, keys already qualified
}

func newColorHandler(w io.Writer, level slog.Level) *colorHandler {
	return &colorHandler{w: w, level: level}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var levelColor string
	switch {
	case r.Level >= slog.LevelError:
		levelColor = colorRed
	case r.Level >= slog.LevelWarn:
		levelColor = colorYellow
	case r.Level >= slog.LevelInfo:
		levelColor = colorBlue
	default:
		levelColor = colorGray
	}

	var buf strings.Builder
	buf.WriteString(colorGray + r.Time.Format("15:04:05") + colorReset + " ")
	buf.WriteString(levelColor + r.Level.String() + colorReset + " ")
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		writeColorAttr(&buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeColorAttr(&buf, h.prefix, a)
		return true
	})

	buf.WriteString("\n")
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func writeColorAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeColorAttr(buf, p, ga)
		}
		return
	}
	buf.WriteString(" " + colorGray + prefix + a.Key + "=" + colorReset + a.Value.String())
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

// loggerHandler bridges slog records onto a Logger so parsers that expect a
// *slog.Logger can report through any Logger implementation.
type loggerHandler struct {
	logger Logger
	attrs  []any
}

func (h *loggerHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *loggerHandler) Handle(_ context.Context, r slog.Record) error {
	kv := slices.Clone(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		kv = append(kv, a.Key, a.Value.Any())
		return true
	})
	switch {
	case r.Level >= slog.LevelError:
		h.logger.Error(r.Message, kv...)
	case r.Level >= slog.LevelWarn:
		h.logger.Warn(r.Message, kv...)
	case r.Level >= slog.LevelInfo:
		h.logger.Info(r.Message, kv...)
	default:
		h.logger.Debug(r.Message, kv...)
	}
	return nil
}

func (h *loggerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	kv := slices.Clone(h.attrs)
	for _, a := range attrs {
		kv = append(kv, a.Key, a.Value.Any())
	}
	return &loggerHandler{logger: h.logger, attrs: kv}
}

func (h *loggerHandler) WithGroup(string) slog.Handler { return h }
