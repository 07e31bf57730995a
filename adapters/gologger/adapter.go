// Package gologger backs the glog logger contracts with a slog handler so the
// CLI has a concrete sink.
package gologger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	levelTrace = slog.LevelDebug - 4
	levelFatal = slog.LevelError + 4
)

type Options struct {
	Level  string
	Format string // text | json
	Output io.Writer
}

// Logger writes glog calls to a slog logger.
type Logger struct {
	base *slog.Logger
	ctx  context.Context
}

func New(opts Options) *Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		handler = slog.NewJSONHandler(output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(output, handlerOpts)
	}
	return &Logger{base: slog.New(handler)}
}

// ParseLevel maps trace|debug|info|warn|error to a slog level. Unknown
// values resolve to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return levelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Trace(msg string, args ...any) { l.log(levelTrace, msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// Fatal logs above error. It does not exit; the caller owns shutdown.
func (l *Logger) Fatal(msg string, args ...any) { l.log(levelFatal, msg, args...) }

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if l == nil {
		return glog.Nop()
	}
	return &Logger{base: l.base, ctx: ctx}
}

// Named returns a logger tagged with a component attribute.
func (l *Logger) Named(name string) *Logger {
	if l == nil || strings.TrimSpace(name) == "" {
		return l
	}
	return &Logger{base: l.base.With("component", strings.TrimSpace(name)), ctx: l.ctx}
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if l == nil || l.base == nil {
		return
	}
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	l.base.Log(ctx, level, msg, args...)
}

// Provider hands out component loggers derived from one root.
type Provider struct {
	root *Logger
}

func NewProvider(root *Logger) *Provider {
	return &Provider{root: root}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	if p == nil || p.root == nil {
		return glog.Nop()
	}
	return p.root.Named(name)
}

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
