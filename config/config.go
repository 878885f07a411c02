// Package config loads and validates the proxy's YAML configuration:
// server settings, the bucket list, and the optional
// cache/compression/jwt/image_optimizer/observability sections, with
// ${VAR} environment substitution ahead of unmarshal.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	yaml "go.yaml.in/yaml/v3"

	"github.com/clarktrimble/cachesto/auth"
	"github.com/clarktrimble/cachesto/breaker"
	"github.com/clarktrimble/cachesto/cache"
	"github.com/clarktrimble/cachesto/compress"
	"github.com/clarktrimble/cachesto/imageopt"
	"github.com/clarktrimble/cachesto/origin"
	"github.com/clarktrimble/cachesto/readpath"
	"github.com/clarktrimble/cachesto/telemetry"
)

// ServerConfig is the `server` YAML section.
type ServerConfig struct {
	Address      string        `yaml:"address" json:"address" default:"0.0.0.0"`
	Port         int           `yaml:"port" json:"port" default:"8080"`
	Threads      int           `yaml:"threads" json:"threads" desc:"0 selects GOMAXPROCS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" default:"30s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout" default:"120s"`
}

// ImageOptimizerBucketConfig is a bucket's optional image transform route.
type ImageOptimizerBucketConfig struct {
	Enabled   bool                     `yaml:"enabled" json:"enabled"`
	Signature imageopt.SignatureConfig `yaml:"signature" json:"signature"`
}

// BucketConfig is one entry of the `buckets` YAML list.
type BucketConfig struct {
	Name           string                     `yaml:"name" json:"name"`
	PathPrefix     string                     `yaml:"path_prefix" json:"path_prefix"`
	S3             origin.Config              `yaml:"s3" json:"s3"`
	Breaker        breaker.Config             `yaml:"breaker" json:"breaker"`
	Read           readpath.Config            `yaml:"read" json:"read"`
	Compression    compress.BucketConfig      `yaml:"compression" json:"compression"`
	ImageOptimizer ImageOptimizerBucketConfig `yaml:"image_optimizer" json:"image_optimizer"`
}

// CacheConfig is the optional top-level `cache` section: which tiers
// are active, in fallback order, and each tier's own sizing.
type CacheConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled" default:"true"`
	Layers  []string `yaml:"layers" json:"layers"`

	Memory cache.MemoryConfig `yaml:"memory" json:"memory"`
	Disk   cache.DiskConfig   `yaml:"disk" json:"disk"`
	Redis  cache.RedisConfig  `yaml:"redis" json:"redis"`
}

// knownLayers is the set CacheConfig.Layers entries may name.
var knownLayers = map[string]bool{"memory": true, "disk": true, "redis": true}

// ImageOptimizerConfig is the optional top-level `image_optimizer` section.
type ImageOptimizerConfig struct {
	Security imageopt.SecurityConfig `yaml:"security" json:"security"`
}

// ObservabilityConfig is the optional top-level `observability` section.
type ObservabilityConfig struct {
	LogLevel string                 `yaml:"log_level" json:"log_level" default:"info"`
	Sentry   telemetry.SentryConfig `yaml:"sentry" json:"sentry"`
}

// Config is the full process configuration loaded from YAML.
type Config struct {
	Server         ServerConfig          `yaml:"server" json:"server"`
	Buckets        []BucketConfig        `yaml:"buckets" json:"buckets"`
	JWT            auth.Config           `yaml:"jwt" json:"jwt"`
	Cache          CacheConfig           `yaml:"cache" json:"cache"`
	Compression    compress.GlobalConfig `yaml:"compression" json:"compression"`
	ImageOptimizer ImageOptimizerConfig  `yaml:"image_optimizer" json:"image_optimizer"`
	Observability  ObservabilityConfig   `yaml:"observability" json:"observability"`
}

// Load reads the YAML file at path, substitutes ${VAR} references from
// the environment, unmarshals it, and validates the result.
func Load(path string) (Config, error) {

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config file %q", path)
	}

	expanded, err := expandEnv(string(raw))
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config yaml")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// expandEnv substitutes every ${VAR} in raw from the environment,
// erroring on any variable that is unset rather than silently
// substituting an empty string.
func expandEnv(raw string) (string, error) {

	var missing []string
	expanded := os.Expand(raw, func(name string) string {
		v, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return ""
		}
		return v
	})

	if len(missing) > 0 {
		return "", errors.Errorf("config: unset environment variable(s): %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

// Validate checks the cross-field structural constraints.
func (cfg Config) Validate() error {

	if len(cfg.Buckets) == 0 {
		return errors.New("config: at least one bucket is required")
	}

	seenPrefix := make(map[string]bool, len(cfg.Buckets))
	for _, b := range cfg.Buckets {
		if b.Name == "" {
			return errors.New("config: bucket name must not be empty")
		}
		if !strings.HasPrefix(b.PathPrefix, "/") {
			return errors.Errorf("config: bucket %q path_prefix must start with \"/\"", b.Name)
		}
		if seenPrefix[b.PathPrefix] {
			return errors.Errorf("config: duplicate path_prefix %q", b.PathPrefix)
		}
		seenPrefix[b.PathPrefix] = true

		if err := b.Compression.Validate(); err != nil {
			return errors.Wrapf(err, "config: bucket %q compression", b.Name)
		}
	}

	if err := cfg.JWT.Validate(); err != nil {
		return err
	}

	for _, layer := range cfg.Cache.Layers {
		if !knownLayers[layer] {
			return errors.Errorf("config: unrecognized cache layer %q", layer)
		}
	}

	if cfg.Compression.MinResponseSizeBytes >= cfg.Compression.MaxResponseSizeBytes && cfg.Compression.MaxResponseSizeBytes != 0 {
		return errors.New("config: compression min_response_size_bytes must be less than max_response_size_bytes")
	}

	return nil
}
