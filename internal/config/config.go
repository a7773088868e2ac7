// File path: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Scope thresholds applied when the environment provides no overrides.
const (
	DefaultDownloadLimit = 60
	DefaultPollLimit     = 90
	DefaultLimitWindow   = time.Minute
	DefaultSignedURLTTL  = 15 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultListenAddr    = ":8084"
	DefaultCatalogPath   = "opsgate.db"
	DefaultKnowledgeRoot = "knowledge"
)

// LimitRule is a per-scope fixed-window threshold.
type LimitRule struct {
	Max    int
	Window time.Duration
}

// Config carries the environment-level settings for the gateway.
type Config struct {
	ListenAddr string

	// CatalogPath locates the SQLite metadata catalog.
	CatalogPath string

	// ArtifactRoot is the directory local artifact locators resolve under.
	ArtifactRoot string

	// KnowledgeRoot is the directory for per-project knowledge ledgers.
	KnowledgeRoot string

	// RedisAddr is the optional distributed limiter backend. Empty means
	// the in-process counter is the only backend.
	RedisAddr     string
	RedisPassword string

	// Remote object storage for s3:// locators.
	ObjectRegion string
	ObjectBucket string

	SignedURLTTL time.Duration

	DownloadLimit LimitRule
	PollLimit     LimitRule
}

// Load reads configuration from the environment and applies defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:    envString("OPSGATE_ADDR", DefaultListenAddr),
		CatalogPath:   envString("OPSGATE_CATALOG", DefaultCatalogPath),
		ArtifactRoot:  strings.TrimSpace(os.Getenv("OPSGATE_ARTIFACT_ROOT")),
		KnowledgeRoot: envString("OPSGATE_KNOWLEDGE_ROOT", DefaultKnowledgeRoot),
		RedisAddr:     strings.TrimSpace(os.Getenv("OPSGATE_REDIS_ADDR")),
		RedisPassword: os.Getenv("OPSGATE_REDIS_PASSWORD"),
		ObjectRegion:  strings.TrimSpace(os.Getenv("OPSGATE_OBJECT_REGION")),
		ObjectBucket:  strings.TrimSpace(os.Getenv("OPSGATE_OBJECT_BUCKET")),
		SignedURLTTL:  DefaultSignedURLTTL,
		DownloadLimit: LimitRule{Max: DefaultDownloadLimit, Window: DefaultLimitWindow},
		PollLimit:     LimitRule{Max: DefaultPollLimit, Window: DefaultLimitWindow},
	}
	if cfg.ArtifactRoot == "" {
		return Config{}, fmt.Errorf("OPSGATE_ARTIFACT_ROOT required")
	}
	ttl, err := envDuration("OPSGATE_SIGNED_URL_TTL", cfg.SignedURLTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.SignedURLTTL = ttl
	if cfg.DownloadLimit, err = envLimit("OPSGATE_DOWNLOAD_LIMIT", cfg.DownloadLimit); err != nil {
		return Config{}, err
	}
	if cfg.PollLimit, err = envLimit("OPSGATE_POLL_LIMIT", cfg.PollLimit); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("parse %s: must be positive", key)
	}
	return parsed, nil
}

// envLimit parses "max/window" rules such as "60/60s" or a bare count which
// keeps the fallback window.
func envLimit(key string, fallback LimitRule) (LimitRule, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	rule := fallback
	maxPart := raw
	if idx := strings.IndexByte(raw, '/'); idx >= 0 {
		maxPart = strings.TrimSpace(raw[:idx])
		windowPart := strings.TrimSpace(raw[idx+1:])
		window, err := time.ParseDuration(windowPart)
		if err != nil {
			return LimitRule{}, fmt.Errorf("parse %s window: %w", key, err)
		}
		if window <= 0 {
			return LimitRule{}, fmt.Errorf("parse %s window: must be positive", key)
		}
		rule.Window = window
	}
	max, err := strconv.Atoi(maxPart)
	if err != nil {
		return LimitRule{}, fmt.Errorf("parse %s max: %w", key, err)
	}
	if max <= 0 {
		return LimitRule{}, fmt.Errorf("parse %s max: must be positive", key)
	}
	rule.Max = max
	return rule, nil
}
