package readpath

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/clarktrimble/cachesto/breaker"
	"github.com/clarktrimble/cachesto/cache"
	"github.com/clarktrimble/cachesto/coalesce"
	"github.com/clarktrimble/cachesto/compress"
	"github.com/clarktrimble/cachesto/conditional"
	"github.com/clarktrimble/cachesto/imageopt"
	"github.com/clarktrimble/cachesto/origin"
	"github.com/clarktrimble/cachesto/proxyerr"
	"github.com/clarktrimble/cachesto/rangehdr"
	"github.com/clarktrimble/cachesto/telemetry"
	"github.com/pkg/errors"
)

// Config tunes one bucket's orchestrator.
type Config struct {
	// MaxItemSizeBytes bounds what gets written into the cache; larger
	// responses still stream to the client, just uncached (0 means
	// unbounded).
	MaxItemSizeBytes int64 `yaml:"max_item_size_bytes" json:"max_item_size_bytes" desc:"largest response body the cache will store" default:"10485760"`

	// MaxBufferBytes bounds how much of an origin response body the
	// orchestrator will hold in memory while deciding cacheability and
	// running it through the coalescer. A plain read whose response is
	// larger than this (or than MaxItemSizeBytes, when that is smaller)
	// is refetched on the direct streaming path and served uncached; an
	// image transform whose source is larger fails with a 502.
	MaxBufferBytes int64 `yaml:"max_buffer_bytes" json:"max_buffer_bytes" desc:"largest origin response body buffered per fetch" default:"104857600"`
}

// fetchResult is the outcome of one (possibly shared) origin fetch:
// status, headers, and a fully-read body. Fan-out to concurrent
// waiters happens by value through the coalescer, so every waiter gets
// its own copy of the slice header over the same backing array.
type fetchResult struct {
	status int
	header http.Header
	body   []byte
}

// errTooLargeToBuffer signals that an origin response grew past the
// coalesced fetch's buffering bound. doPlain never surfaces it: it
// retries the same request on the direct, non-coalesced streaming path
// instead. resolveOriginal, which needs the whole image source in
// memory, wraps it in a 502 proxyerr.
var errTooLargeToBuffer = errors.New("readpath: origin response too large to buffer")

// Orchestrator is the read path for one bucket: it owns that bucket's
// cache key namespace, circuit breaker, and origin client, and is safe
// for concurrent use.
type Orchestrator struct {
	bucket      string
	cache       cache.Cache
	origin      *origin.Client
	brk         *breaker.Breaker
	coalescer   *coalesce.Group[*fetchResult]
	images      *imageopt.Pipeline
	imageSig    imageopt.SignatureConfig
	compression compress.Resolved
	cfg         Config
	logger      telemetry.Logger
}

// New builds an Orchestrator for one bucket. images may be nil when
// the bucket has no image transform route wired.
func New(
	bucket string,
	c cache.Cache,
	o *origin.Client,
	brk *breaker.Breaker,
	images *imageopt.Pipeline,
	imageSig imageopt.SignatureConfig,
	compression compress.Resolved,
	cfg Config,
	lgr telemetry.Logger,
) *Orchestrator {
	return &Orchestrator{
		bucket:      bucket,
		cache:       c,
		origin:      o,
		brk:         brk,
		coalescer:   &coalesce.Group[*fetchResult]{},
		images:      images,
		imageSig:    imageSig,
		compression: compression,
		cfg:         cfg,
		logger:      lgr,
	}
}

// Do runs req through the full read path and returns the response to
// write back to the client, or an error (typically a *proxyerr.Error)
// for the caller to map to an HTTP status.
func (o *Orchestrator) Do(ctx context.Context, req Request) (*Response, error) {

	rng, hasRange := rangehdr.Parse(req.RangeHeader)

	params, hasImage, err := o.resolveImageParams(req)
	if err != nil {
		return nil, err
	}

	// Range wins over a transform requested on the same URL: a byte
	// range of a re-encoded artifact the proxy hasn't produced yet is
	// not a coherent request.
	if hasRange {
		hasImage = false
	}

	if hasImage {
		return o.doTransformed(ctx, req, params)
	}
	return o.doPlain(ctx, req, rng, hasRange)
}

func (o *Orchestrator) resolveImageParams(req Request) (imageopt.Params, bool, error) {

	if o.images == nil {
		return imageopt.Params{}, false, nil
	}

	if req.ImageOptions != "" {
		params, err := imageopt.ParsePathSegment(req.ImageOptions)
		if err != nil {
			return imageopt.Params{}, false, proxyerr.New(proxyerr.S3, "invalid image transform parameters", err).WithStatus(http.StatusBadRequest)
		}
		if !params.HasAny() {
			return imageopt.Params{}, false, nil
		}

		if o.imageSig.Enabled {
			ok, err := o.imageSig.Verify(req.ImageSignature, req.ImageOptions, req.SourceURL)
			if err != nil {
				return imageopt.Params{}, false, proxyerr.Authf("image url signature verification failed").WithStatus(http.StatusUnauthorized)
			}
			if !ok {
				return imageopt.Params{}, false, proxyerr.Authf("invalid image url signature").WithStatus(http.StatusUnauthorized)
			}
		}

		return params, true, nil
	}

	// Query-string transforms (?w=800&h=600&q=80&f=webp) ride on the
	// plain object route. When url signing is enforced, the signed
	// path route is the only transform interface and bare query
	// parameters serve the untransformed object.
	if req.RawQuery == "" || o.imageSig.Enabled {
		return imageopt.Params{}, false, nil
	}

	values, err := url.ParseQuery(req.RawQuery)
	if err != nil {
		return imageopt.Params{}, false, nil
	}
	params, err := imageopt.ParseQuery(values)
	if err != nil {
		return imageopt.Params{}, false, proxyerr.New(proxyerr.S3, "invalid image transform parameters", err).WithStatus(http.StatusBadRequest)
	}
	if !params.HasAny() {
		return imageopt.Params{}, false, nil
	}

	return params, true, nil
}

// doPlain implements the untransformed read path: cache lookup,
// conditional short-circuit, coalesced origin fetch, cache population,
// and compression.
//
// A Range request never touches the cache in either direction
// and, since there is exactly one caller for it, has
// nothing to gain from coalescing either: it goes straight to the
// direct streaming path. An origin response that turns out too large
// to buffer takes the same path for the same reason: it was never
// going to be cached, so there is no shared state worth protecting
// with the coalescer.
func (o *Orchestrator) doPlain(ctx context.Context, req Request, rng rangehdr.Parsed, skipCache bool) (*Response, error) {

	key := cache.Key{Bucket: o.bucket, ObjectKey: req.Key}

	if skipCache {
		return o.doStreamed(ctx, req, rng, true)
	}

	if entry, ok, err := o.cache.Get(ctx, key); err == nil && ok {
		telemetry.CacheHits.WithLabelValues("memory", "hit").Inc()
		return o.respondFromCache(entry, req)
	}
	telemetry.CacheHits.WithLabelValues("memory", "miss").Inc()

	fwd := origin.ForwardedHeaders{
		IfNoneMatch:     req.IfNoneMatch,
		IfModifiedSince: req.IfModifiedSince,
		IfRange:         req.IfRange,
	}

	outcome, err := o.fetchOrigin(ctx, req.Method, req.Key, fwd, key.String())
	if err != nil {
		if errors.Is(err, errTooLargeToBuffer) {
			return o.doStreamed(ctx, req, rangehdr.Parsed{}, false)
		}
		return nil, err
	}

	if outcome.status == http.StatusNotModified {
		return &Response{
			Status: http.StatusNotModified,
			Header: conditional.NotModifiedHeaders(outcome.header.Get("ETag"), outcome.header.Get("Last-Modified"), outcome.header.Get("Cache-Control")),
		}, nil
	}

	entry := entryFromOutcome(outcome)
	o.maybePopulate(ctx, key, entry)

	return o.finishResponse(entry, req)
}

// doStreamed runs a single, breaker-guarded origin fetch outside the
// coalescer and streams the body straight through to the client
// without ever buffering it: the cache-bypassing Range path and the
// too-large-to-buffer retry from doPlain both land here, since neither
// populates the cache and neither benefits from being deduplicated
// against other callers.
//
// The origin normally decides 206 vs 200 vs 416 for a Range request
// and its answer is forwarded intact. An origin that ignores the
// Range header altogether answers 200 with the full body; in that
// case the range is resolved here against the declared size, so the
// client still gets the 206 (or 416) it asked for.
func (o *Orchestrator) doStreamed(ctx context.Context, req Request, rng rangehdr.Parsed, hasRange bool) (*Response, error) {

	fwd := origin.ForwardedHeaders{
		IfNoneMatch:     req.IfNoneMatch,
		IfModifiedSince: req.IfModifiedSince,
		IfRange:         req.IfRange,
		Range:           req.RangeHeader,
	}

	resp, err := o.fetchOriginDirect(ctx, req.Method, req.Key, fwd)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusNotModified {
		_ = resp.Body.Close()
		return &Response{
			Status: http.StatusNotModified,
			Header: conditional.NotModifiedHeaders(resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), resp.Header.Get("Cache-Control")),
		}, nil
	}

	if resp.Status == http.StatusRequestedRangeNotSatisfiable {
		_ = resp.Body.Close()
		header := http.Header{}
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			header.Set("Content-Range", cr)
		}
		header.Set("Accept-Ranges", "bytes")
		return &Response{Status: http.StatusRequestedRangeNotSatisfiable, Header: header}, nil
	}

	header := http.Header{}
	for _, h := range []string{"Content-Type", "ETag", "Last-Modified", "Cache-Control", "Content-Range", "Content-Length", "Retry-After"} {
		if v := resp.Header.Get(h); v != "" {
			header.Set(h, v)
		}
	}
	header.Set("Accept-Ranges", "bytes")

	if hasRange && resp.Status == http.StatusOK && len(rng.Units) == 1 {
		return o.applyRange(req, resp, rng, header)
	}

	if req.Method == http.MethodHead {
		_ = resp.Body.Close()
		return &Response{Status: resp.Status, Header: header}, nil
	}

	return &Response{Status: resp.Status, Header: header, BodyStream: resp.Body}, nil
}

// applyRange resolves a single-unit Range against an origin 200 that
// ignored the header, emitting the 206 (sliced from the full-body
// stream) or 416 the origin should have produced. A response with no
// usable Content-Length cannot be resolved and streams through as 200.
func (o *Orchestrator) applyRange(req Request, resp *origin.Response, rng rangehdr.Parsed, header http.Header) (*Response, error) {

	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil || size < 0 {
		if req.Method == http.MethodHead {
			_ = resp.Body.Close()
			return &Response{Status: resp.Status, Header: header}, nil
		}
		return &Response{Status: resp.Status, Header: header, BodyStream: resp.Body}, nil
	}

	resolved := rangehdr.Resolve(rng, size)[0]
	if resolved.Kind == rangehdr.Unsatisfiable {
		_ = resp.Body.Close()
		h := http.Header{}
		h.Set("Content-Range", rangehdr.UnsatisfiableContentRange(size))
		h.Set("Accept-Ranges", "bytes")
		return &Response{Status: http.StatusRequestedRangeNotSatisfiable, Header: h}, nil
	}

	header.Set("Content-Range", rangehdr.ContentRange(resolved, size))
	header.Set("Content-Length", strconv.FormatInt(resolved.Length(), 10))

	if req.Method == http.MethodHead {
		_ = resp.Body.Close()
		return &Response{Status: http.StatusPartialContent, Header: header}, nil
	}

	return &Response{
		Status:     http.StatusPartialContent,
		Header:     header,
		BodyStream: newRangeBody(resp.Body, resolved.Start, resolved.Length()),
	}, nil
}

// fetchOriginDirect runs one breaker-guarded origin call without the
// coalescer, for the streaming path where there is exactly one caller
// and nothing to deduplicate against. ctx is the inbound request's own
// context, so a client disconnect cancels this fetch promptly; unlike
// the coalesced path, no other waiter depends on it staying alive.
func (o *Orchestrator) fetchOriginDirect(ctx context.Context, method, objectKey string, fwd origin.ForwardedHeaders) (*origin.Response, error) {

	if !o.brk.ShouldAllowRequest() {
		return nil, proxyerr.New(proxyerr.S3, "circuit open for bucket", nil).
			WithContext(proxyerr.Context{Bucket: o.bucket, Key: objectKey}).
			WithStatus(http.StatusServiceUnavailable)
	}
	if o.brk.State() == breaker.HalfOpen {
		o.brk.StartHalfOpenRequest()
	}

	var resp *origin.Response
	var err error
	if method == http.MethodHead {
		resp, err = o.origin.Head(ctx, objectKey, fwd)
	} else {
		resp, err = o.origin.Get(ctx, objectKey, fwd)
	}
	if err != nil {
		if perr, ok := proxyerr.As(err); ok && perr.HTTPStatus() >= 500 {
			o.brk.RecordFailure()
		}
		return nil, err
	}

	switch {
	case resp.Status >= 200 && resp.Status < 300:
		o.brk.RecordSuccess()
	case resp.Status >= 500:
		o.brk.RecordFailure()
	}

	telemetry.BreakerState.WithLabelValues(o.bucket).Set(float64(o.brk.State()))
	return resp, nil
}

// doTransformed implements the image-variant read path: the
// transformed artifact is cached under its own variant key,
// independent of the untransformed original's entry.
func (o *Orchestrator) doTransformed(ctx context.Context, req Request, params imageopt.Params) (*Response, error) {

	variant := imageopt.Fingerprint(params)
	key := cache.Key{Bucket: o.bucket, ObjectKey: req.Key, Variant: variant}

	if entry, ok, err := o.cache.Get(ctx, key); err == nil && ok {
		telemetry.CacheHits.WithLabelValues("memory", "hit").Inc()
		return o.respondFromCache(entry, req)
	}
	telemetry.CacheHits.WithLabelValues("memory", "miss").Inc()

	src, err := o.resolveOriginal(ctx, req.Key)
	if err != nil {
		return nil, err
	}

	out, err := o.images.Run(ctx, src.Payload, params)
	if err != nil {
		return nil, proxyerr.New(proxyerr.Internal, "image transform failed", err).
			WithContext(proxyerr.Context{Bucket: o.bucket, Key: req.Key})
	}

	entry := cache.NewEntry(out.Payload, out.ContentType, src.ETag)
	if src.HasLastMod {
		entry = entry.WithLastModified(src.LastModified)
	}
	entry = entry.WithCacheControl(src.CacheControl)

	o.maybePopulate(ctx, key, entry)

	return o.finishResponse(entry, req)
}

// resolveOriginal fetches the untransformed object through the same
// cache-aware path as a plain GET, ignoring the outer request's
// conditionals: the transform variant's own freshness is governed by
// its own cache entry, not by conditionals meant for the original.
func (o *Orchestrator) resolveOriginal(ctx context.Context, objectKey string) (cache.Entry, error) {

	key := cache.Key{Bucket: o.bucket, ObjectKey: objectKey}

	if entry, ok, err := o.cache.Get(ctx, key); err == nil && ok {
		return entry, nil
	}

	outcome, err := o.fetchOrigin(ctx, http.MethodGet, objectKey, origin.ForwardedHeaders{}, key.String())
	if err != nil {
		if errors.Is(err, errTooLargeToBuffer) {
			return cache.Entry{}, proxyerr.New(proxyerr.S3, "image source exceeds buffering bound for transform", err).
				WithContext(proxyerr.Context{Bucket: o.bucket, Key: objectKey}).
				WithStatus(http.StatusBadGateway)
		}
		return cache.Entry{}, err
	}
	if outcome.status != http.StatusOK {
		return cache.Entry{}, proxyerr.New(proxyerr.S3, fmt.Sprintf("unexpected origin status %d fetching image source", outcome.status), nil).
			WithContext(proxyerr.Context{Bucket: o.bucket, Key: objectKey}).
			WithStatus(http.StatusBadGateway)
	}

	entry := entryFromOutcome(outcome)
	o.maybePopulate(ctx, key, entry)
	return entry, nil
}

// maybePopulate writes entry into the cache when its Cache-Control and
// size both permit it, logging (never failing the request) on error.
func (o *Orchestrator) maybePopulate(ctx context.Context, key cache.Key, entry cache.Entry) {

	if !entry.PermitsStorage() {
		return
	}
	if o.cfg.MaxItemSizeBytes > 0 && entry.SizeBytes > o.cfg.MaxItemSizeBytes {
		return
	}

	if err := o.cache.Set(ctx, key, entry); err != nil && !errors.Is(err, cache.ErrStorageFull) {
		o.logger.Error(ctx, "cache populate failed", err, "bucket", o.bucket, "key", key.ObjectKey, "variant", key.Variant)
	}
}

// fetchOrigin runs the breaker-guarded, coalesced origin fetch shared
// by doPlain and resolveOriginal. The leader's context carries ctx's
// deadline but not its cancellation: one caller canceling its own
// request must not cancel the fetch while other callers are still
// waiting on it, but a real deadline still bounds the fetch.
func (o *Orchestrator) fetchOrigin(ctx context.Context, method, objectKey string, fwd origin.ForwardedHeaders, fingerprint string) (*fetchResult, error) {

	leaderCtx, cancel := detachedDeadline(ctx)
	defer cancel()

	bufferLimit := o.cfg.MaxBufferBytes
	if o.cfg.MaxItemSizeBytes > 0 && o.cfg.MaxItemSizeBytes < bufferLimit {
		// nothing over the cacheable bound will ever be populated, so
		// there is no reason to buffer past it either.
		bufferLimit = o.cfg.MaxItemSizeBytes
	}

	result := o.coalescer.Do(leaderCtx, fingerprint, func(leaderCtx context.Context) (*fetchResult, error) {

		if !o.brk.ShouldAllowRequest() {
			return nil, proxyerr.New(proxyerr.S3, "circuit open for bucket", nil).
				WithContext(proxyerr.Context{Bucket: o.bucket, Key: objectKey}).
				WithStatus(http.StatusServiceUnavailable)
		}
		halfOpen := o.brk.State() == breaker.HalfOpen
		if halfOpen {
			o.brk.StartHalfOpenRequest()
		}

		var resp *origin.Response
		var err error
		if method == http.MethodHead {
			resp, err = o.origin.Head(leaderCtx, objectKey, fwd)
		} else {
			resp, err = o.origin.Get(leaderCtx, objectKey, fwd)
		}
		if err != nil {
			if perr, ok := proxyerr.As(err); ok && perr.HTTPStatus() >= 500 {
				o.brk.RecordFailure()
			}
			return nil, err
		}
		defer resp.Body.Close()

		body, rerr := io.ReadAll(io.LimitReader(resp.Body, bufferLimit+1))
		if rerr != nil {
			o.brk.RecordFailure()
			return nil, proxyerr.New(proxyerr.Internal, "failed to read origin response body", rerr)
		}
		if int64(len(body)) > bufferLimit {
			return nil, errTooLargeToBuffer
		}

		switch {
		case resp.Status >= 200 && resp.Status < 300:
			o.brk.RecordSuccess()
		case resp.Status >= 500:
			o.brk.RecordFailure()
		}

		return &fetchResult{status: resp.Status, header: resp.Header, body: body}, nil
	})

	telemetry.CoalescedRequests.WithLabelValues(strconv.FormatBool(result.Shared)).Inc()
	telemetry.BreakerState.WithLabelValues(o.bucket).Set(float64(o.brk.State()))

	if result.Err != nil {
		return nil, result.Err
	}
	return result.Value, nil
}

// detachedDeadline derives a context carrying ctx's deadline, if any,
// but not its cancellation: used for a coalesced fetch's leader, which
// must keep running for every waiter even if the particular caller
// that happened to become leader disconnects.
func detachedDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, dl)
	}
	return detached, func() {}
}

func entryFromOutcome(outcome *fetchResult) cache.Entry {

	entry := cache.NewEntry(outcome.body, outcome.header.Get("Content-Type"), outcome.header.Get("ETag"))
	entry = entry.WithCacheControl(outcome.header.Get("Cache-Control"))
	if lm := outcome.header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry = entry.WithLastModified(t)
		}
	}
	return entry
}

// respondFromCache applies the conditional engine to a cache hit
// before falling through to the shared response-building path.
func (o *Orchestrator) respondFromCache(entry cache.Entry, req Request) (*Response, error) {

	if req.IfNoneMatch != "" && conditional.MatchesAny(req.IfNoneMatch, entry.ETag) {
		return &Response{
			Status: http.StatusNotModified,
			Header: conditional.NotModifiedHeaders(entry.ETag, formatLastModified(entry), entry.CacheControl),
		}, nil
	}
	return o.finishResponse(entry, req)
}

// finishResponse negotiates compression and builds the final 200
// response from a cache entry (cached or freshly populated).
func (o *Orchestrator) finishResponse(entry cache.Entry, req Request) (*Response, error) {

	header := http.Header{}
	if entry.ContentType != "" {
		header.Set("Content-Type", entry.ContentType)
	}
	if entry.ETag != "" {
		header.Set("ETag", entry.ETag)
	}
	if entry.HasLastMod {
		header.Set("Last-Modified", formatLastModified(entry))
	}
	if entry.CacheControl != "" {
		header.Set("Cache-Control", entry.CacheControl)
	}
	header.Set("Accept-Ranges", "bytes")

	payload := entry.Payload
	if algo, ok := compress.Negotiate(req.AcceptEncoding, o.compression); ok && o.compression.ShouldCompress(int64(len(payload)), entry.ContentType) {
		compressed, err := compress.Compress(payload, algo, algoLevel(o.compression, algo))
		if err != nil {
			o.logger.Error(context.Background(), "response compression failed", err, "bucket", o.bucket)
		} else {
			payload = compressed
			header.Set("Content-Encoding", algo.ContentEncoding())
			header.Add("Vary", "Accept-Encoding")
		}
	}

	header.Set("Content-Length", strconv.Itoa(len(payload)))

	body := payload
	if req.Method == http.MethodHead {
		body = nil
	}

	return &Response{Status: http.StatusOK, Header: header, Body: body}, nil
}

func algoLevel(r compress.Resolved, algo compress.Algorithm) int {
	if cfg, ok := r.Algorithms[algo]; ok {
		return cfg.Level
	}
	return 6
}

func formatLastModified(entry cache.Entry) string {
	if !entry.HasLastMod {
		return ""
	}
	return entry.LastModified.UTC().Format(http.TimeFormat)
}
