// Package server is the proxy's HTTP surface: chi-routed per-bucket
// object GET/HEAD, the signed image-transform variant, and the two
// admin cache endpoints, wired on top of package readpath's
// orchestrators.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/clarktrimble/cachesto/auth"
	"github.com/clarktrimble/cachesto/cache"
	"github.com/clarktrimble/cachesto/proxyerr"
	"github.com/clarktrimble/cachesto/readpath"
	"github.com/clarktrimble/cachesto/telemetry"
)

// BucketRoute binds one configured bucket's path prefix to its
// orchestrator and, optionally, its authenticator.
type BucketRoute struct {
	PathPrefix    string
	Orchestrator  *readpath.Orchestrator
	Authenticator auth.Authenticator // nil means the bucket requires no auth
}

// Server owns the assembled chi.Router for the whole process: every
// configured bucket's routes plus the two admin endpoints.
type Server struct {
	router chi.Router
}

// New assembles a Server from routes and the shared cache the admin
// endpoints operate on (the same instance every Orchestrator in routes
// was built with).
func New(routes []BucketRoute, adminCache cache.Cache, logger telemetry.Logger) *Server {

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(telemetry.PanicRecoveryMiddleware)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", handleHealth)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/admin/cache", func(ar chi.Router) {
		ar.Post("/purge", handlePurge(adminCache, logger))
		ar.Get("/stats", handleStats(adminCache))
	})

	for _, route := range routes {
		mountBucket(r, route, logger)
	}

	return &Server{router: r}
}

// Handler returns the process's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func mountBucket(r chi.Router, route BucketRoute, logger telemetry.Logger) {

	prefix := route.PathPrefix
	h := &objectHandler{orchestrator: route.Orchestrator, logger: logger}

	r.Route(prefix, func(br chi.Router) {
		if route.Authenticator != nil {
			br.Use(auth.Middleware(route.Authenticator, requestIDOf))
		}

		br.Get("/*", h.serveObject)
		br.Head("/*", h.serveObject)

		// Signed transform route: <signature>/<options>/<source_url>.
		br.Get("/img/{signature}/{options}/*", h.serveTransform)
		br.Head("/img/{signature}/{options}/*", h.serveTransform)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// requestIDMiddleware mints a request id (or adopts an inbound
// X-Request-Id) and stashes it on the context for logging and error
// JSON bodies.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := telemetry.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDOf(r *http.Request) string {
	id, _ := telemetry.RequestIDFromContext(r.Context())
	return id
}

func loggingMiddleware(logger telemetry.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info(r.Context(), "request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			telemetry.HTTPRequests.WithLabelValues(routePattern(r), r.Method, statusLabel(ww.Status())).Inc()
		})
	}
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func statusLabel(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	return strconv.Itoa(status)
}

// writeProxyError renders err (wrapped as a *proxyerr.Error if it
// isn't one already) as the proxy's error JSON body.
func writeProxyError(w http.ResponseWriter, r *http.Request, err error) {

	perr, ok := proxyerr.As(err)
	if !ok {
		perr = proxyerr.New(proxyerr.Internal, "unexpected error", err)
	}

	if perr.Category == proxyerr.Internal {
		tags := map[string]string{}
		if perr.Ctx.Bucket != "" {
			tags["bucket"] = perr.Ctx.Bucket
		}
		if perr.Ctx.Key != "" {
			tags["key"] = perr.Ctx.Key
		}
		telemetry.CaptureError(perr, tags)
	}

	requestID, _ := telemetry.RequestIDFromContext(r.Context())
	body, marshalErr := perr.ToJSON(requestID)

	if perr.Category == proxyerr.Auth {
		w.Header().Set("WWW-Authenticate", `Bearer realm="cachesto"`)
	}
	if perr.RetryAfter != "" {
		w.Header().Set("Retry-After", perr.RetryAfter)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(perr.HTTPStatus())
	if marshalErr != nil {
		return
	}
	_, _ = w.Write(body)
}
