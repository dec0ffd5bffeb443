package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

// Options configures Init.
type Options struct {
	AppName     string
	Environment string
	Development bool
	SentryDSN   string
}

// Init installs the default slog logger.
// Development: Text format with Debug level
// Production: JSON format with Info level
// Errors are also sent to Sentry when a DSN is set. The returned func
// flushes buffered Sentry events and should run before exit.
func Init(opts Options) func() {
	console := consoleHandler(os.Stdout, opts.Development)

	flush := func() {}
	var extra []slog.Handler
	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Environment,
		})
		if err != nil {
			slog.New(console).Warn("sentry disabled", "error", err)
		} else {
			extra = append(extra, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
			flush = func() { sentry.Flush(2 * time.Second) }
		}
	}

	slog.SetDefault(New(console, opts.AppName, extra...))
	return flush
}

// New fans records out to every handler and tags them with the app name.
func New(console slog.Handler, appName string, extra ...slog.Handler) *slog.Logger {
	handler := console
	if len(extra) > 0 {
		handler = slogmulti.Fanout(append([]slog.Handler{console}, extra...)...)
	}

	l := slog.New(handler)
	if appName != "" {
		l = l.With("app", appName)
	}
	return l
}

func consoleHandler(w io.Writer, development bool) slog.Handler {
	if development {
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
}
