// Command cachesto-proxy is the process entrypoint: it loads YAML
// configuration, wires one Orchestrator per configured bucket atop a
// shared cache and per-bucket origin clients/circuit breakers, and
// serves the result over HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/clarktrimble/cachesto/auth"
	"github.com/clarktrimble/cachesto/cache"
	"github.com/clarktrimble/cachesto/compress"
	"github.com/clarktrimble/cachesto/config"
	"github.com/clarktrimble/cachesto/imageopt"
	"github.com/clarktrimble/cachesto/readpath"
	"github.com/clarktrimble/cachesto/server"
	"github.com/clarktrimble/cachesto/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cachesto-proxy:", err)
		os.Exit(1)
	}
}

func run() error {

	path := "config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger := telemetry.ZerologConfig{Level: cfg.Observability.LogLevel}.New(os.Stdout)

	ctx := context.Background()

	if err := telemetry.InitSentry(cfg.Observability.Sentry); err != nil {
		logger.Error(ctx, "sentry init failed", err)
	}
	defer telemetry.FlushSentry()

	sharedCache := buildCache(cfg.Cache)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var routes []server.BucketRoute
	for _, b := range cfg.Buckets {
		route, err := buildBucketRoute(b, cfg, sharedCache, httpClient, logger)
		if err != nil {
			return err
		}
		routes = append(routes, route)
	}

	srv := server.New(routes, sharedCache, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info(ctx, "cachesto-proxy starting", "addr", addr, "buckets", len(cfg.Buckets))
	return httpServer.ListenAndServe()
}

// buildCache assembles the shared Cache from the configured layers, in
// fallback order, composed with Chain.
func buildCache(cfg config.CacheConfig) cache.Cache {

	if !cfg.Enabled || len(cfg.Layers) == 0 {
		return cache.Null{}
	}

	var tiers []cache.Cache
	for _, layer := range cfg.Layers {
		switch layer {
		case "memory":
			tiers = append(tiers, cfg.Memory.New())
		case "disk":
			tiers = append(tiers, cfg.Disk.New())
		case "redis":
			tiers = append(tiers, cfg.Redis.New())
		}
	}
	if len(tiers) == 1 {
		return tiers[0]
	}
	return cache.NewChain(tiers...)
}

// buildBucketRoute wires one bucket's origin client, circuit breaker,
// optional image pipeline, resolved compression, and authenticator
// into an Orchestrator and its server.BucketRoute.
func buildBucketRoute(
	b config.BucketConfig,
	cfg config.Config,
	sharedCache cache.Cache,
	httpClient *http.Client,
	logger telemetry.Logger,
) (server.BucketRoute, error) {

	originClient := b.S3.New(httpClient, logger)
	brk := b.Breaker.New()

	var pipeline *imageopt.Pipeline
	var sigCfg imageopt.SignatureConfig
	if b.ImageOptimizer.Enabled {
		security := cfg.ImageOptimizer.Security
		if security == (imageopt.SecurityConfig{}) {
			security = imageopt.DefaultSecurityConfig()
		}
		pipeline = imageopt.NewPipeline(security)
		sigCfg = b.ImageOptimizer.Signature
	}

	resolved := compress.Resolve(cfg.Compression, b.Compression)

	orchestrator := readpath.New(b.Name, sharedCache, originClient, brk, pipeline, sigCfg, resolved, b.Read, logger)

	var authenticator auth.Authenticator
	if cfg.JWT.Enabled {
		authenticator = cfg.JWT.New()
	}

	return server.BucketRoute{
		PathPrefix:    b.PathPrefix,
		Orchestrator:  orchestrator,
		Authenticator: authenticator,
	}, nil
}
