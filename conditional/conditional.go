// Package conditional implements the conditional-request engine run
// after cache lookup: If-None-Match short-circuits a cache hit into
// 304, and If-Range/Range pairs are forwarded to the origin untouched
// for it to decide between 200 and 206.
package conditional

import (
	"net/http"
	"strings"
)

// MatchesAny reports whether header (an If-None-Match value) matches
// etag. A bare "*" matches any non-empty etag. Matching is weak: a
// "W/" prefix is stripped from both sides before comparison.
func MatchesAny(header, etag string) bool {

	if etag == "" {
		return false
	}

	header = strings.TrimSpace(header)
	if header == "*" {
		return true
	}

	target := stripWeak(etag)
	for _, candidate := range splitETags(header) {
		if stripWeak(candidate) == target {
			return true
		}
	}
	return false
}

// splitETags breaks a comma-separated If-None-Match value into its
// individual validators, tolerating surrounding whitespace.
func splitETags(header string) []string {

	var out []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func stripWeak(etag string) string {
	return strings.TrimPrefix(etag, "W/")
}

// NotModifiedHeaders builds the validator-only header set for a 304
// response: ETag, Last-Modified, and Cache-Control, with no body
// headers.
func NotModifiedHeaders(etag, lastModified, cacheControl string) http.Header {

	h := make(http.Header)
	if etag != "" {
		h.Set("ETag", etag)
	}
	if lastModified != "" {
		h.Set("Last-Modified", lastModified)
	}
	if cacheControl != "" {
		h.Set("Cache-Control", cacheControl)
	}
	return h
}
