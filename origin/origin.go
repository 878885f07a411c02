// Package origin is the S3-compatible client the read path fetches
// from: path-style requests, SigV4-signed, streaming responses, with
// origin error codes mapped onto the statuses the proxy surfaces.
package origin

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clarktrimble/cachesto/proxyerr"
	"github.com/clarktrimble/cachesto/sigv4"
	"github.com/clarktrimble/cachesto/telemetry"
)

// Config is one bucket's origin configurables, tagged for envconfig
// and nested under the `buckets[].s3` key in YAML config.
type Config struct {
	Region    string           `yaml:"region" json:"region" desc:"provider region" required:"true"`
	Scheme    string           `yaml:"scheme" json:"scheme" desc:"http or https" default:"https"`
	Host      string           `yaml:"endpoint" json:"endpoint" desc:"endpoint hostname" required:"true"`
	Bucket    string           `yaml:"bucket" json:"bucket" desc:"bucket name" required:"true"`
	AccessKey string           `yaml:"access_key" json:"access_key" desc:"credential identifier" required:"true"`
	SecretKey telemetry.Redact `yaml:"secret_key" json:"secret_key" desc:"credential secret" required:"true"`
}

// HttpDoer performs HTTP requests. *http.Client satisfies this interface.
type HttpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client fetches objects from one S3-compatible bucket.
type Client struct {
	region    string
	scheme    string
	host      string
	bucket    string
	accessKey string
	secretKey string
	client    HttpDoer
	logger    telemetry.Logger
}

// New creates a Client from cfg.
func (cfg Config) New(client HttpDoer, lgr telemetry.Logger) *Client {
	return &Client{
		region:    cfg.Region,
		scheme:    cfg.Scheme,
		host:      cfg.Host,
		bucket:    cfg.Bucket,
		accessKey: cfg.AccessKey,
		secretKey: string(cfg.SecretKey),
		client:    client,
		logger:    lgr,
	}
}

// ForwardedHeaders is the subset of the caller's request the origin
// client forwards unchanged.
type ForwardedHeaders struct {
	Range           string
	IfNoneMatch     string
	IfModifiedSince string
	IfRange         string
}

// Response is what the origin returned: status, case-insensitive
// headers, and a lazily-read body the client never fully buffers.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Get fetches an object by key, preserving it byte-for-byte in the
// path (slashes, dots, spaces, and other characters all survive).
func (c *Client) Get(ctx context.Context, key string, fwd ForwardedHeaders) (*Response, error) {
	return c.do(ctx, http.MethodGet, key, fwd)
}

// Head fetches only an object's metadata.
func (c *Client) Head(ctx context.Context, key string, fwd ForwardedHeaders) (*Response, error) {
	return c.do(ctx, http.MethodHead, key, fwd)
}

func (c *Client) do(ctx context.Context, method, key string, fwd ForwardedHeaders) (*Response, error) {

	if key == "" {
		return nil, proxyerr.New(proxyerr.S3, "object key cannot be blank", nil).WithStatus(400)
	}

	req, err := c.buildRequest(ctx, method, key, fwd)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		telemetry.OriginRequestDuration.WithLabelValues(c.bucket, "error").Observe(elapsed.Seconds())
		return nil, proxyerr.New(proxyerr.S3, "origin request failed", err).
			WithContext(proxyerr.Context{Bucket: c.bucket, Key: key, Operation: method})
	}

	statusLabel := strconv.Itoa(resp.StatusCode)
	telemetry.OriginRequestDuration.WithLabelValues(c.bucket, statusLabel).Observe(elapsed.Seconds())

	// 304 is a valid outcome of a conditional request and 416 of a
	// Range request, not origin errors: the read path needs both to
	// build its own response.
	passthrough := (resp.StatusCode >= 200 && resp.StatusCode < 300) ||
		resp.StatusCode == http.StatusNotModified ||
		resp.StatusCode == http.StatusRequestedRangeNotSatisfiable
	if passthrough {
		if resp.ContentLength >= 0 && resp.Header.Get("Content-Length") == "" {
			resp.Header.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
		}
		c.logger.Info(ctx, "origin response", "status", resp.StatusCode, "elapsed", elapsed, "bucket", c.bucket, "key", key)
		return &Response{Status: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
	}

	defer resp.Body.Close()
	return nil, c.mapError(resp, key)
}

func (c *Client) buildRequest(ctx context.Context, method, key string, fwd ForwardedHeaders) (*http.Request, error) {

	path := fmt.Sprintf("/%s/%s", c.bucket, key)
	uri := fmt.Sprintf("%s://%s", c.scheme, c.host)
	now := time.Now().UTC()

	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, proxyerr.New(proxyerr.Internal, "failed to build origin request", err)
	}
	// set the path directly rather than parsing it out of a URL string,
	// so percent sequences in the key are not decoded
	req.URL.Path = path

	amzDate := now.Format("20060102T150405Z")
	payloadHash := sigv4.EmptyPayloadHash

	headers := map[string]string{
		"host":                 c.host,
		"x-amz-date":           amzDate,
		"x-amz-content-sha256": payloadHash,
	}

	// forwarded conditional/range headers are added before signing,
	// since sigv4 covers every header present at sign time.
	if fwd.Range != "" {
		req.Header.Set("Range", fwd.Range)
		headers["range"] = fwd.Range
	}
	if fwd.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", fwd.IfNoneMatch)
		headers["if-none-match"] = fwd.IfNoneMatch
	}
	if fwd.IfModifiedSince != "" {
		req.Header.Set("If-Modified-Since", fwd.IfModifiedSince)
		headers["if-modified-since"] = fwd.IfModifiedSince
	}
	if fwd.IfRange != "" {
		req.Header.Set("If-Range", fwd.IfRange)
		headers["if-range"] = fwd.IfRange
	}

	sig := sigv4.Sign(sigv4.Request{
		Method:      method,
		URI:         path,
		Query:       "",
		Headers:     headers,
		PayloadHash: payloadHash,
	}, sigv4.Credentials{AccessKey: c.accessKey, SecretKey: c.secretKey}, c.region, now)

	req.Header.Set("x-amz-date", amzDate)
	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("Authorization", sig)
	req.Host = c.host

	return req, nil
}

// s3Error is the XML error body shape S3-compatible origins return.
type s3Error struct {
	Code      string `xml:"Code"`
	Message   string `xml:"Message"`
	RequestID string `xml:"RequestId"`
}

// originStatus maps an origin error code to the HTTP status surfaced
// to the proxy's caller.
func originStatus(code string) int {
	switch code {
	case "NoSuchKey", "NoSuchBucket":
		return 404
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return 403
	case "InvalidArgument", "InvalidBucketName", "InvalidRange", "MalformedXML":
		return 400
	case "BucketAlreadyExists", "BucketNotEmpty":
		return 409
	case "SlowDown", "ServiceUnavailable":
		return 503
	default:
		return 500
	}
}

func (c *Client) mapError(resp *http.Response, key string) error {

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))

	var code, message string
	if strings.Contains(resp.Header.Get("Content-Type"), "xml") {
		var parsed s3Error
		if err := xml.Unmarshal(bodyBytes, &parsed); err == nil {
			code, message = parsed.Code, parsed.Message
		}
	}

	status := originStatus(code)
	if status == 0 {
		status = 500
	}

	// a 503 carries Retry-After forward verbatim; other statuses are
	// re-derived from the origin code table above rather than trusted
	// directly, since the origin's own status may be imprecise.
	perr := proxyerr.New(proxyerr.S3, fmt.Sprintf("origin error %q: %s", code, message), nil).
		WithContext(proxyerr.Context{Bucket: c.bucket, Key: key, Details: message}).
		WithStatus(status)

	if status == 503 {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			perr = perr.WithRetryAfter(ra)
		}
	}

	return perr
}
