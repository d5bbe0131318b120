package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/lmittmann/tint"
	"github.com/rs/zerolog"
)

// New returns a console logger, or a JSON logger on stderr when json is set or
// when running inside Kubernetes. An unknown level falls back to info.
func New(level string, json bool) *zerolog.Logger {
	var output io.Writer
	if json || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02T15:04:05.999Z07:00"}
	}
	return newLogger(output, level)
}

func newLogger(output io.Writer, level string) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(output).Level(lvl).With().Timestamp().Logger()
	return &logger
}

// Tint returns a colored slog logger writing to stderr, for interactive use.
func Tint(level string) *slog.Logger {
	return slog.New(newTint(os.Stderr, level, false))
}

func newTint(w io.Writer, level string, noColor bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      slogLevel(level),
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	})
}

func slogLevel(level string) slog.Level {
	if level == "trace" {
		return slog.LevelDebug
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Slog bridges a zerolog logger to slog through logr.
func Slog(zl *zerolog.Logger) *slog.Logger {
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
	zerologr.SetMaxV(1)
	return slog.New(debugAsV1{logr.ToSlogHandler(zerologr.New(zl))})
}

// debugAsV1 maps every slog level below info to logr V(1), which zerologr
// writes at debug level. Without it slog.LevelDebug becomes V(4) and is lost.
type debugAsV1 struct {
	slog.Handler
}

func (h debugAsV1) level(l slog.Level) slog.Level {
	if l < slog.LevelInfo {
		return slog.LevelInfo - 1
	}
	return l
}

func (h debugAsV1) Enabled(ctx context.Context, l slog.Level) bool {
	return h.Handler.Enabled(ctx, h.level(l))
}

func (h debugAsV1) Handle(ctx context.Context, r slog.Record) error {
	r.Level = h.level(r.Level)
	return h.Handler.Handle(ctx, r)
}

func (h debugAsV1) WithAttrs(attrs []slog.Attr) slog.Handler {
	return debugAsV1{h.Handler.WithAttrs(attrs)}
}

func (h debugAsV1) WithGroup(name string) slog.Handler {
	return debugAsV1{h.Handler.WithGroup(name)}
}
