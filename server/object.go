package server

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clarktrimble/cachesto/readpath"
	"github.com/clarktrimble/cachesto/telemetry"
)

// objectHandler serves both the plain object route and the signed
// transform route for one bucket's Orchestrator.
type objectHandler struct {
	orchestrator *readpath.Orchestrator
	logger       telemetry.Logger
}

func (h *objectHandler) serveObject(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, chi.URLParam(r, "*"), readpath.Request{RawQuery: r.URL.RawQuery})
}

func (h *objectHandler) serveTransform(w http.ResponseWriter, r *http.Request) {

	objectKey := chi.URLParam(r, "*")
	extra := readpath.Request{
		ImageOptions:   chi.URLParam(r, "options"),
		ImageSignature: chi.URLParam(r, "signature"),
		SourceURL:      objectKey,
	}
	h.serve(w, r, objectKey, extra)
}

// serve builds a readpath.Request from r's headers and key, runs it
// through the Orchestrator, and writes the result (or a proxyerr JSON
// body on failure).
func (h *objectHandler) serve(w http.ResponseWriter, r *http.Request, objectKey string, extra readpath.Request) {

	req := extra
	req.Method = r.Method
	req.Key = objectKey
	req.RangeHeader = r.Header.Get("Range")
	req.IfNoneMatch = r.Header.Get("If-None-Match")
	req.IfModifiedSince = r.Header.Get("If-Modified-Since")
	req.IfRange = r.Header.Get("If-Range")
	req.AcceptEncoding = r.Header.Get("Accept-Encoding")

	resp, err := h.orchestrator.Do(r.Context(), req)
	if err != nil {
		writeProxyError(w, r, err)
		return
	}

	header := w.Header()
	for name, values := range resp.Header {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	w.WriteHeader(resp.Status)
	if r.Method == http.MethodHead {
		return
	}

	switch {
	case resp.BodyStream != nil:
		defer resp.BodyStream.Close()
		if _, err := io.Copy(w, resp.BodyStream); err != nil {
			h.logger.Error(r.Context(), "streaming response body to client failed", err, "key", objectKey)
		}
	case len(resp.Body) > 0:
		_, _ = w.Write(resp.Body)
	}
}
