package telemetry

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
)

// SentryConfig configures the optional panic/Internal-error reporter.
// An empty DSN leaves Sentry disabled; proxy operation never depends
// on it.
type SentryConfig struct {
	DSN         string `yaml:"dsn" json:"dsn" desc:"Sentry project DSN; empty disables reporting"`
	Environment string `yaml:"environment" json:"environment" desc:"deploy environment tag" default:"development"`
	Release     string `yaml:"release" json:"release" desc:"release/version tag attached to events"`
}

// InitSentry initializes the SDK from cfg. Safe to call with an empty
// DSN: reporting stays disabled and every other call in this file
// becomes a no-op.
func InitSentry(cfg SentryConfig) error {

	if cfg.DSN == "" {
		fmt.Fprintln(os.Stderr, "[telemetry] sentry disabled: no dsn configured")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		AttachStacktrace: true,
		Tags:             map[string]string{"service": "cachesto-proxy"},
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			return scrubPII(event)
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize sentry")
	}
	return nil
}

// CaptureError reports err to Sentry with tags, typically a failed
// bucket/key pair for a read path failure classified proxyerr.Internal.
// Safe to call when Sentry is disabled.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// FlushSentry waits for buffered events to send; call with defer in main.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// PanicRecoveryMiddleware reports a panic to Sentry with request
// context, then answers with a generic 500 rather than crashing the
// process — the read orchestrator's own goroutine is exactly the kind
// of surface this guards.
func PanicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(r)
				hub.Scope().SetTag("panic", "true")

				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = errors.Errorf("panic: %v", v)
				}
				hub.CaptureException(err)
				hub.Flush(2 * time.Second)

				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// scrubPII removes request/user fields that shouldn't leave the
// process before an event is transmitted.
func scrubPII(event *sentry.Event) *sentry.Event {
	if event == nil {
		return nil
	}

	event.User.Email = ""
	event.User.IPAddress = ""

	if event.Request != nil {
		for k := range event.Request.Headers {
			switch k {
			case "Authorization", "Cookie", "X-Api-Key", "X-Auth-Token":
				event.Request.Headers[k] = "[redacted]"
			}
		}
	}

	return event
}
