package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/scanorch/internal/config"
	"github.com/bryanwahyu/scanorch/internal/downloader"
	"github.com/bryanwahyu/scanorch/internal/downloader/archivedownloader"
	"github.com/bryanwahyu/scanorch/internal/downloader/vcsdownloader"
	"github.com/bryanwahyu/scanorch/internal/httpserver"
	"github.com/bryanwahyu/scanorch/internal/middleware"
	"github.com/bryanwahyu/scanorch/internal/orchestrator"
	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
	"github.com/bryanwahyu/scanorch/internal/scanner/aibackend"
	"github.com/bryanwahyu/scanorch/internal/scanner/clearlydefined"
	"github.com/bryanwahyu/scanorch/internal/scanner/dockerscan"
	"github.com/bryanwahyu/scanorch/internal/scanner/licensescan"
	mysqlp "github.com/bryanwahyu/scanorch/internal/storage/mysql"
	"github.com/bryanwahyu/scanorch/internal/storage/objectstore"
	pgstore "github.com/bryanwahyu/scanorch/internal/storage/postgres"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	pgDB, err := pgstore.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres connect error: %v", err)
	}
	defer pgDB.Close()
	pgRepo := pgstore.New(pgDB)
	if err := pgRepo.EnsureSchema(ctx); err != nil {
		log.Fatalf("postgres schema error: %v", err)
	}

	mysqlDB, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
	if err != nil {
		log.Fatalf("mysql connect error: %v", err)
	}
	defer mysqlDB.Close()
	mysqlRepo := mysqlp.New(mysqlDB)
	if err := mysqlRepo.EnsureSchema(ctx); err != nil {
		log.Fatalf("mysql schema error: %v", err)
	}

	objStore, err := objectstore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("object store init error: %v", err)
	}

	scratchRoot := cfg.Downloader.ScratchRoot
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}

	dl := downloader.NewComposite(archivedownloader.New(), vcsdownloader.New())
	resolver := provenance.NewStaticResolver(provenance.NewGitRevisionResolver())
	nestedResolver := provenance.NewGitSubmoduleResolver(scratchRoot)

	scanners := buildScanners(cfg, resolver)

	logf := func(format string, args ...any) { log.Printf(format, args...) }

	orch, err := orchestrator.New(
		orchestrator.Config{ScratchRoot: scratchRoot},
		resolver,
		nestedResolver,
		scanners,
		[]any{pgRepo, objStore, mysqlRepo},
		[]any{pgRepo, objStore, mysqlRepo},
		dl,
		logf,
	)
	if err != nil {
		log.Fatalf("orchestrator init error: %v", err)
	}

	checkers := map[string]middleware.HealthChecker{
		"postgres": &middleware.DatabaseHealthChecker{DB: pgDB},
		"mysql":    &middleware.DatabaseHealthChecker{DB: mysqlDB},
	}

	mux := httpserver.NewRouter(orch, checkers, httpserver.Options{
		APIKeys:                  cfg.Server.APIKeys,
		RateLimitCapacity:        cfg.Server.RateLimitCapacity,
		RateLimitRefillPerSecond: cfg.Server.RateLimitRefillPerSecond,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// buildScanners wires every configured scanner backend. cfg.Scanners entries
// matching a backend's name feed two independent things, per SPEC_FULL.md §6:
// the backend's own ConfigFingerprint identity stamp (fingerprint), and the
// cache-lookup ScannerCriteria overrides that decide whether a cached result
// is fresh enough to reuse (criteria).
func buildScanners(cfg *config.Config, resolver provenance.PackageResolver) []scanner.Backend {
	fingerprint := func(name string) string {
		if o, ok := cfg.Scanners[name]; ok {
			return o.Configuration
		}
		return ""
	}
	criteria := func(name string) scanner.CriteriaOverride {
		if o, ok := cfg.Scanners[name]; ok {
			return scanner.CriteriaOverride{
				NamePattern:   o.NamePattern,
				MinVersion:    o.MinVersion,
				MaxVersion:    o.MaxVersion,
				Configuration: o.Configuration,
			}
		}
		return scanner.CriteriaOverride{}
	}

	backends := []scanner.Backend{
		licensescan.New(fingerprint(licensescan.Name), criteria(licensescan.Name)),
		dockerscan.New("1.0.0", fingerprint(dockerscan.Name), criteria(dockerscan.Name)),
		clearlydefined.New("1.0.0", fingerprint(clearlydefined.Name), criteria(clearlydefined.Name)),
	}

	if cfg.AI.APIKey != "" {
		backends = append(backends, aibackend.New(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Version, fingerprint(aibackend.Name), resolver, criteria(aibackend.Name)))
	}

	return backends
}
