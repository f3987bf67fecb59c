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

// Log is the global logger instance
var Log *slog.Logger

// Init sets the default slog logger.
// Development: text at debug level. Production: JSON at info level.
// With a Sentry DSN, error records are also sent to Sentry.
// The returned func flushes pending Sentry events; call it before exit.
func Init(isDev bool, sentryDSN string) func() {
	return initWriter(os.Stdout, isDev, sentryDSN)
}

func initWriter(out io.Writer, isDev bool, sentryDSN string) func() {
	var handlers []slog.Handler

	if isDev {
		handlers = append(handlers, slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		handlers = append(handlers, slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	flush := func() {}
	if sentryDSN != "" {
		env := "production"
		if isDev {
			env = "development"
		}
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         sentryDSN,
			Environment: env,
		})
		if err == nil {
			handlers = append(handlers, slogsentry.Option{
				Level: slog.LevelError,
			}.NewSentryHandler())
			flush = func() { sentry.Flush(2 * time.Second) }
		}
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = slogmulti.Fanout(handlers...)
	} else {
		handler = handlers[0]
	}

	Log = slog.New(handler)
	slog.SetDefault(Log)

	if sentryDSN != "" && len(handlers) == 1 {
		slog.Warn("sentry init failed, errors are logged locally only")
	}
	return flush
}
