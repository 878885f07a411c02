// Package sigv4 computes AWS Signature Version 4 request signatures.
//
// It is deliberately stateless: given a method, URI, query string,
// header set, payload hash, credentials, region, service and
// timestamp, it produces the same Authorization value every time.
// Callers must finish mutating headers (including Range) before
// calling Sign, since every signed header is covered by the signature.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

const (
	algorithm = "AWS4-HMAC-SHA256"
	service   = "s3"
	aws4Req   = "aws4_request"
)

// Credentials identifies the signing principal.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Request is the subset of an HTTP request sigv4 needs to sign. Headers
// keys are case-insensitive; Sign lower-cases and sorts them.
type Request struct {
	Method      string
	URI         string
	Query       string
	Headers     map[string]string
	PayloadHash string
}

// EmptyPayloadHash is hex(SHA256("")), used for GET/HEAD requests.
var EmptyPayloadHash = sha256Hex(nil)

// Sign computes the Authorization header value for req at time t using
// creds, scoped to region. amzDate and dateStamp are derived from t.
func Sign(req Request, creds Credentials, region string, t time.Time) string {

	amzDate := t.UTC().Format("20060102T150405Z")
	dateStamp := t.UTC().Format("20060102")

	signedHeaders, canonicalHeaders := canonicalizeHeaders(req.Headers)

	canonicalRequest := strings.Join([]string{
		req.Method,
		req.URI,
		req.Query,
		canonicalHeaders,
		signedHeaders,
		req.PayloadHash,
	}, "\n")

	credentialScope := dateStamp + "/" + region + "/" + service + "/" + aws4Req
	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := derivedKey(creds.SecretKey, dateStamp, region)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	return algorithm + " Credential=" + creds.AccessKey + "/" + credentialScope +
		", SignedHeaders=" + signedHeaders + ", Signature=" + signature
}

// canonicalizeHeaders lowercases and trims header names/values, sorts
// them, and returns the semicolon-joined signed-header list alongside
// the newline-terminated canonical header block.
func canonicalizeHeaders(headers map[string]string) (signedHeaders, canonicalHeaders string) {

	names := make([]string, 0, len(headers))
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(strings.TrimSpace(k))
		names = append(names, lk)
		lower[lk] = strings.TrimSpace(v)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte(':')
		sb.WriteString(lower[name])
		sb.WriteByte('\n')
	}

	return strings.Join(names, ";"), sb.String()
}

func derivedKey(secret, dateStamp, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, aws4Req)
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
