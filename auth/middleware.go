package auth

import (
	"net/http"

	"github.com/clarktrimble/cachesto/proxyerr"
)

// Middleware builds the chi-compatible handler wrapper that runs authn
// ahead of every bucket route requiring it, writing a proxyerr JSON
// body and short-circuiting on failure rather than calling next.
func Middleware(a Authenticator, requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			claims, err := a.Authenticate(r.Context(), r)
			if err != nil {
				perr, ok := proxyerr.As(err)
				if !ok {
					perr = proxyerr.New(proxyerr.Auth, "authentication failed", err)
				}
				writeError(w, perr, requestID(r))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func writeError(w http.ResponseWriter, perr *proxyerr.Error, requestID string) {
	body, err := perr.ToJSON(requestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(perr.HTTPStatus())
	if err != nil {
		return
	}
	_, _ = w.Write(body)
}
