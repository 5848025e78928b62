package logger

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init configures the global logger for the service.
func Init(service, level string) {
	Setup(os.Stdout, service, level)
}

func Setup(w io.Writer, service, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// Ctx returns the logger stored in ctx, or the global one, with the trace id attached
// when ctx carries a sampled span.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &zlog.Logger
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return l
	}
	withTrace := l.With().Str("trace_id", sc.TraceID().String()).Logger()
	return &withTrace
}
