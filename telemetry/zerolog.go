package telemetry

import (
	"context"
	"io"

	"github.com/rs/zerolog"
)

// ZerologConfig configures the default Logger implementation.
type ZerologConfig struct {
	Level      string `json:"level" desc:"trace, debug, info, warn, error" default:"info"`
	PrettyMode bool   `json:"pretty_mode" desc:"human-readable console output instead of json"`
}

// New builds a zerolog-backed Logger from cfg, writing to w. When
// PrettyMode is set, w is wrapped in a zerolog.ConsoleWriter for
// human-readable output instead of line-delimited JSON.
func (cfg ZerologConfig) New(w io.Writer) *ZerologLogger {

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.PrettyMode {
		w = zerolog.ConsoleWriter{Out: w}
	}

	return &ZerologLogger{
		lgr: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// ZerologLogger adapts zerolog.Logger to the Logger interface, pulling
// a request id out of ctx when the caller has stamped one via
// WithRequestID.
type ZerologLogger struct {
	lgr zerolog.Logger
}

var _ Logger = (*ZerologLogger)(nil)

func (z *ZerologLogger) event(ctx context.Context, ev *zerolog.Event, msg string, kv ...any) {

	if reqID, ok := RequestIDFromContext(ctx); ok {
		ev = ev.Str("request_id", reqID)
	}
	ev.Fields(kvToMap(kv)).Msg(msg)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, kv ...any) {
	z.event(ctx, z.lgr.Info(), msg, kv...)
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, kv ...any) {
	z.event(ctx, z.lgr.Debug(), msg, kv...)
}

func (z *ZerologLogger) Trace(ctx context.Context, msg string, kv ...any) {
	z.event(ctx, z.lgr.Trace(), msg, kv...)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, err error, kv ...any) {
	z.event(ctx, z.lgr.Error().Err(err), msg, kv...)
}

// kvToMap pairs up an alternating key/value slice for zerolog's Fields.
// An odd trailing key with no value is logged with a nil value rather
// than dropped, so a caller mistake is visible instead of silent.
func kvToMap(kv []any) map[string]any {

	m := make(map[string]any, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if i+1 < len(kv) {
			m[key] = kv[i+1]
		} else {
			m[key] = nil
		}
	}
	return m
}
