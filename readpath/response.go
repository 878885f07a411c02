package readpath

import (
	"io"
	"net/http"
)

// Response is what the orchestrator produced for one Request: a
// status, response headers, and a body. Exactly one of Body and
// BodyStream is set on a body-bearing response (never either on HEAD):
// Body is a fully-materialized payload, used whenever the orchestrator
// already has the bytes in hand (a cache hit, or a fetch it buffered
// for cache population); BodyStream is a lazily-read body for the
// direct, non-coalesced path (Range requests, and origin responses too
// large to buffer), so the caller can stream it on to the client with
// bounded memory instead of waiting for it to be fully read. The
// caller must Close a non-nil BodyStream once done with it.
type Response struct {
	Status     int
	Header     http.Header
	Body       []byte
	BodyStream io.ReadCloser
}

// rangeBody trims a full-body origin stream down to one resolved
// range: it discards the first start bytes lazily on first read, then
// reads at most length more. Closing it closes the underlying stream,
// so an early client disconnect still releases the origin connection.
type rangeBody struct {
	src    io.ReadCloser
	skip   int64
	length int64
	r      io.Reader
}

func newRangeBody(src io.ReadCloser, start, length int64) io.ReadCloser {
	return &rangeBody{src: src, skip: start, length: length}
}

func (b *rangeBody) Read(p []byte) (int, error) {

	if b.skip > 0 {
		if _, err := io.CopyN(io.Discard, b.src, b.skip); err != nil {
			return 0, err
		}
		b.skip = 0
	}
	if b.r == nil {
		b.r = io.LimitReader(b.src, b.length)
	}
	return b.r.Read(p)
}

func (b *rangeBody) Close() error {
	return b.src.Close()
}
