// File path: cmd/opsgate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/launchbase/opsgate/internal/access"
	"github.com/launchbase/opsgate/internal/api"
	"github.com/launchbase/opsgate/internal/artifact"
	"github.com/launchbase/opsgate/internal/audit"
	"github.com/launchbase/opsgate/internal/common"
	"github.com/launchbase/opsgate/internal/config"
	"github.com/launchbase/opsgate/internal/knowledge"
	"github.com/launchbase/opsgate/internal/livestate"
	"github.com/launchbase/opsgate/internal/ratelimit"
	"github.com/launchbase/opsgate/internal/sqlite"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("opsgate: .env file not loaded", "error", err)
	} else {
		logger.Info("opsgate: environment loaded from .env")
	}

	addrFlag := flag.String("addr", "", "listen address (overrides OPSGATE_ADDR)")
	catalogFlag := flag.String("catalog", "", "path to the SQLite metadata catalog (overrides OPSGATE_CATALOG)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("opsgate: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*addrFlag); trimmed != "" {
		cfg.ListenAddr = trimmed
	}
	if trimmed := strings.TrimSpace(*catalogFlag); trimmed != "" {
		cfg.CatalogPath = trimmed
	}
	logger.Info("opsgate: startup initiated", "addr", cfg.ListenAddr, "catalog", cfg.CatalogPath)

	catalog, err := sqlite.Open(cfg.CatalogPath)
	if err != nil {
		logger.Error("opsgate: catalog open failed", "error", err)
		fmt.Println("catalog error:", err)
		os.Exit(1)
	}
	defer catalog.Close()

	var primary ratelimit.Backend
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("opsgate: redis unreachable at startup, in-process counters will cover until it recovers", "addr", cfg.RedisAddr, "error", err)
		} else {
			logger.Info("opsgate: redis limiter backend ready", "addr", cfg.RedisAddr)
		}
		primary = ratelimit.NewRedisBackend(client)
	} else {
		logger.Info("opsgate: no redis configured, in-process limiter only")
	}
	limiter := ratelimit.New(primary, config.DefaultSweepInterval)
	limiter.Start()
	defer limiter.Stop()

	recorder := audit.NewRecorder(catalog)
	verifier := access.NewVerifier(catalog)

	var signer artifact.URLSigner
	if cfg.ObjectBucket != "" {
		s3signer, err := artifact.NewS3Signer(ctx, cfg.ObjectRegion)
		if err != nil {
			logger.Error("opsgate: signer construction failed", "error", err)
			fmt.Println("signer error:", err)
			os.Exit(1)
		}
		signer = s3signer
		logger.Info("opsgate: signed-url delivery enabled", "bucket", cfg.ObjectBucket, "region", cfg.ObjectRegion, "ttl", cfg.SignedURLTTL)
	} else {
		logger.Info("opsgate: no object bucket configured, local delivery only")
	}

	gateway, err := artifact.NewGateway(catalog, verifier, recorder, signer, cfg.ArtifactRoot, cfg.SignedURLTTL)
	if err != nil {
		logger.Error("opsgate: gateway construction failed", "error", err)
		fmt.Println("gateway error:", err)
		os.Exit(1)
	}

	projector := livestate.NewProjector(catalog, verifier, limiter, recorder, cfg.PollLimit)

	ledger, err := knowledge.NewStore(cfg.KnowledgeRoot)
	if err != nil {
		logger.Error("opsgate: knowledge store open failed", "error", err)
		fmt.Println("knowledge store error:", err)
		os.Exit(1)
	}

	server := api.NewServer(catalog, verifier, limiter, gateway, projector, ledger, cfg)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("opsgate: server listening", "addr", cfg.ListenAddr, "health", "/healthz")
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("opsgate: shutdown requested", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("opsgate: shutdown error", "error", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("opsgate: server stopped", "error", err)
			fmt.Println("server stopped:", err)
			os.Exit(1)
		}
	}
}
