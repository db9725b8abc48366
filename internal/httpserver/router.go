// Package httpserver exposes the orchestrator over HTTP, grounded on the
// teacher's internal/infra/httpserver.Router (wrap/handlerFunc dispatch,
// chi sub-routing) generalized to the package-scan domain.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/bryanwahyu/scanorch/internal/middleware"
	"github.com/bryanwahyu/scanorch/internal/orchestrator"
	"github.com/bryanwahyu/scanorch/internal/pkgmodel"
)

// scanTimeout bounds an end-to-end /v1/scan request when the caller sets no
// deadline of their own.
const scanTimeout = 10 * time.Minute

// Router wires the orchestrator to chi routes.
type Router struct {
	orch *orchestrator.Orchestrator
}

// Options carries the ambient HTTP concerns that are optional in a
// deployment: API key auth is skipped when APIKeys is empty, rate limiting
// is skipped when RateLimitCapacity is zero.
type Options struct {
	APIKeys                  map[string]string // tenant -> key
	RateLimitCapacity        int
	RateLimitRefillPerSecond int
}

// NewRouter builds the HTTP surface for a scan run: POST /v1/scan triggers
// an orchestration pass over the submitted packages, health/ready/live
// mirror the teacher's middleware.HealthHandler family.
func NewRouter(orch *orchestrator.Orchestrator, checkers map[string]middleware.HealthChecker, opts Options) http.Handler {
	rt := &Router{orch: orch}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(opts.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	}
	if opts.RateLimitCapacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimitCapacity, opts.RateLimitRefillPerSecond))
	}

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(r chi.Router) {
		r.Post("/scan", rt.wrap(rt.handleScan))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (rt *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var cfgErr *orchestrator.ConfigurationError
			if errors.As(err, &cfgErr) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// scanRequest is the wire shape of a POST /v1/scan body: a flat list of
// packages, each carrying whichever source descriptors it has available.
type scanRequest struct {
	Packages []packageWire `json:"packages"`
}

type packageWire struct {
	ID           string `json:"id"`
	ArtifactURL  string `json:"artifactUrl,omitempty"`
	ArtifactHash string `json:"artifactHash,omitempty"`
	VcsType      string `json:"vcsType,omitempty"`
	VcsURL       string `json:"vcsUrl,omitempty"`
	VcsRevision  string `json:"vcsRevision,omitempty"`
	VcsPath      string `json:"vcsPath,omitempty"`
}

func (w packageWire) toPackage() pkgmodel.Package {
	return pkgmodel.Package{
		ID:       pkgmodel.ID(middleware.SanitizeString(w.ID)),
		Artifact: pkgmodel.ArtifactDescriptor{URL: w.ArtifactURL, Hash: w.ArtifactHash},
		Vcs: pkgmodel.VcsDescriptor{
			Type:     w.VcsType,
			URL:      w.VcsURL,
			Revision: w.VcsRevision,
			Path:     w.VcsPath,
		},
	}
}

// POST /v1/scan
// Body: {"packages": [{"id": "...", "vcsUrl": "...", "vcsRevision": "..."}]}
func (rt *Router) handleScan(w http.ResponseWriter, req *http.Request) error {
	var body scanRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	if len(body.Packages) == 0 {
		http.Error(w, "packages must be non-empty", http.StatusBadRequest)
		return nil
	}

	packages := make([]pkgmodel.Package, len(body.Packages))
	for i, p := range body.Packages {
		packages[i] = p.toPackage()
	}

	runID := uuid.New().String()
	log.Printf("run_id=%s step=scan-start packages=%d", runID, len(packages))

	ctx := req.Context()
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scanTimeout)
		defer cancel()
	}

	middleware.IncrementScans()
	middleware.IncrementScansRunning()
	defer middleware.DecrementScansRunning()

	out, err := rt.orch.Run(ctx, packages)
	if err != nil {
		middleware.IncrementScansFailed()
		log.Printf("run_id=%s step=scan-failed issue=%v", runID, err)
		return err
	}
	log.Printf("run_id=%s step=scan-complete", runID)

	w.Header().Set("X-Scan-Run-Id", runID)

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(out)
}
