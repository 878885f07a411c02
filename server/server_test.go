package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/breaker"
	"github.com/clarktrimble/cachesto/cache"
	"github.com/clarktrimble/cachesto/compress"
	"github.com/clarktrimble/cachesto/imageopt"
	"github.com/clarktrimble/cachesto/origin"
	"github.com/clarktrimble/cachesto/proxyerr"
	"github.com/clarktrimble/cachesto/readpath"
	"github.com/clarktrimble/cachesto/server"
	"github.com/clarktrimble/cachesto/telemetry"
)

func TestServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Server Suite")
}

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...any)         {}
func (nopLogger) Debug(context.Context, string, ...any)        {}
func (nopLogger) Trace(context.Context, string, ...any)        {}
func (nopLogger) Error(context.Context, string, error, ...any) {}

var _ telemetry.Logger = nopLogger{}

var _ = Describe("Server", func() {

	var (
		backend *httptest.Server
		orch    *readpath.Orchestrator
		srv     *server.Server
	)

	BeforeEach(func() {
		backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Header().Set("ETag", `"abc"`)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Hello, World!"))
		}))

		originCfg := origin.Config{
			Region:    "us-east-1",
			Scheme:    "http",
			Host:      backend.Listener.Addr().String(),
			Bucket:    "products",
			AccessKey: "AKIDEXAMPLE",
			SecretKey: "secretkey",
		}
		o := originCfg.New(backend.Client(), nopLogger{})
		brk := breaker.Config{FailureThreshold: 5, SuccessThreshold: 2, HalfOpenMaxRequest: 3}.New()
		c := cache.MemoryConfig{MaxItemSizeMB: 10, MaxCacheSizeMB: 100, DefaultTTLSeconds: 3600}.New()
		images := imageopt.NewPipeline(imageopt.DefaultSecurityConfig())
		comp := compress.Resolve(compress.GlobalConfig{Enabled: false}, compress.BucketConfig{})

		orch = readpath.New("products", c, o, brk, images, imageopt.SignatureConfig{},
			comp, readpath.Config{MaxItemSizeBytes: 10 << 20, MaxBufferBytes: 10 << 20}, nopLogger{})

		routes := []server.BucketRoute{
			{PathPrefix: "/products", Orchestrator: orch},
		}
		srv = server.New(routes, c, nopLogger{})
	})

	AfterEach(func() {
		backend.Close()
	})

	It("serves an object GET through the mounted bucket route", func() {
		req := httptest.NewRequest(http.MethodGet, "/products/file.txt", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("Hello, World!"))
		Expect(rec.Header().Get("ETag")).To(Equal(`"abc"`))
	})

	It("serves HEAD with headers but no body", func() {
		req := httptest.NewRequest(http.MethodHead, "/products/file.txt", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(Equal(0))
	})

	It("purges the cache via POST /admin/cache/purge", func() {
		get := httptest.NewRequest(http.MethodGet, "/products/file.txt", nil)
		srv.Handler().ServeHTTP(httptest.NewRecorder(), get)

		req := httptest.NewRequest(http.MethodPost, "/admin/cache/purge", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))

		var body map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body["status"]).To(Equal("success"))
	})

	It("reports stats via GET /admin/cache/stats", func() {
		get := httptest.NewRequest(http.MethodGet, "/products/file.txt", nil)
		srv.Handler().ServeHTTP(httptest.NewRecorder(), get)

		req := httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))

		var body map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body["status"]).To(Equal("success"))

		stats, ok := body["stats"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(stats).To(HaveKey("hits"))
		Expect(stats).To(HaveKey("misses"))
		Expect(stats).To(HaveKey("evictions"))
		Expect(stats).To(HaveKey("current_size_bytes"))
		Expect(stats).To(HaveKey("current_item_count"))
		Expect(stats).To(HaveKey("max_size_bytes"))
		Expect(stats["misses"]).To(BeNumerically(">=", float64(1)))
	})

	It("surfaces a 404 as the proxyerr JSON body", func() {
		notFoundBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
		}))
		defer notFoundBackend.Close()

		originCfg := origin.Config{
			Region: "us-east-1", Scheme: "http", Host: notFoundBackend.Listener.Addr().String(),
			Bucket: "products", AccessKey: "AKIDEXAMPLE", SecretKey: "secretkey",
		}
		o := originCfg.New(notFoundBackend.Client(), nopLogger{})
		brk := breaker.Config{FailureThreshold: 5, SuccessThreshold: 2, HalfOpenMaxRequest: 3}.New()
		c := cache.MemoryConfig{MaxItemSizeMB: 10, MaxCacheSizeMB: 100, DefaultTTLSeconds: 3600}.New()
		comp := compress.Resolve(compress.GlobalConfig{Enabled: false}, compress.BucketConfig{})
		missOrch := readpath.New("products", c, o, brk, nil, imageopt.SignatureConfig{},
			comp, readpath.Config{MaxItemSizeBytes: 10 << 20, MaxBufferBytes: 10 << 20}, nopLogger{})

		missSrv := server.New([]server.BucketRoute{{PathPrefix: "/products", Orchestrator: missOrch}}, c, nopLogger{})

		req := httptest.NewRequest(http.MethodGet, "/products/missing.txt", nil)
		rec := httptest.NewRecorder()
		missSrv.Handler().ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNotFound))

		var body struct {
			Error string `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Error).To(Equal(string(proxyerr.S3)))
	})
})
