package httpwire

import "log/slog"

// SlogAdapter wraps slog.Logger to implement Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a Logger adapter from an slog.Logger. A nil logger
// discards everything.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SlogAdapter{logger: logger}
}

// Slog returns the wrapped logger, for the parsing packages that take a
// *slog.Logger directly.
func (a *SlogAdapter) Slog() *slog.Logger { return a.logger }

func (a *SlogAdapter) Debug(msg string, keysAndValues ...any) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a *SlogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Info(msg, keysAndValues...)
}

func (a *SlogAdapter) Warn(msg string, keysAndValues ...any) {
	a.logger.Warn(msg, keysAndValues...)
}

func (a *SlogAdapter) Error(msg string, keysAndValues ...any) {
	a.logger.Error(msg, keysAndValues...)
}

// slogFrom recovers a *slog.Logger from a Logger when it wraps one, and
// otherwise bridges the Logger through a handler.
func slogFrom(l Logger) *slog.Logger {
	switch v := l.(type) {
	case nil:
		return slog.New(slog.DiscardHandler)
	case interface{ Slog() *slog.Logger }:
		return v.Slog()
	default:
		return slog.New(&loggerHandler{logger: l})
	}
}
