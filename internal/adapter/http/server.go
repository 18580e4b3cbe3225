package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// ResultProvider exposes the most recent successful run.
type ResultProvider interface {
	sharedobs.ReadinessChecker
	Latest() (*domain.RunResult, error)
}

// Server exposes health, readiness, metrics, and read-only result endpoints.
type Server struct {
	httpServer   *http.Server
	results      ResultProvider
	logger       *slog.Logger
	defaultLimit int
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1 result routes. defaultLimit caps /v1/rankings when no limit is given.
func NewServer(addr string, results ResultProvider, defaultLimit int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results:      results,
		logger:       logger,
		defaultLimit: defaultLimit,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(results))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/rankings", s.withResult(s.handleRankings))
	mux.HandleFunc("GET /v1/annual", s.withResult(s.handleAnnual))
	mux.HandleFunc("GET /v1/wide", s.withResult(s.handleWide))
	mux.HandleFunc("GET /v1/sites", s.withResult(s.handleSites))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type resultHandler func(w http.ResponseWriter, r *http.Request, result *domain.RunResult)

// withResult answers 503 until the first run has completed.
func (s *Server) withResult(next resultHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.results.Latest()
		if err != nil {
			sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		next(w, r, result)
	}
}

type rankedFit struct {
	Rank int `json:"rank"`
	domain.FitStats
}

type rankingsResponse struct {
	RunID     string      `json:"run_id"`
	CreatedAt time.Time   `json:"created_at"`
	Total     int         `json:"total"`
	Rankings  []rankedFit `json:"rankings"`
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request, result *domain.RunResult) {
	limit := s.defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit <= 0 || limit > len(result.Ranking) {
		limit = len(result.Ranking)
	}

	out := make([]rankedFit, limit)
	for i := range out {
		out[i] = rankedFit{Rank: i + 1, FitStats: result.Ranking[i]}
	}
	sharedobs.WriteJSON(w, http.StatusOK, rankingsResponse{
		RunID:     result.RunID,
		CreatedAt: result.CreatedAt,
		Total:     len(result.Ranking),
		Rankings:  out,
	})
}

type annualResponse struct {
	RunID string                 `json:"run_id"`
	Rows  []domain.AnnualSummary `json:"rows"`
}

func (s *Server) handleAnnual(w http.ResponseWriter, r *http.Request, result *domain.RunResult) {
	site := r.URL.Query().Get("site")
	parameter := r.URL.Query().Get("parameter")

	rows := make([]domain.AnnualSummary, 0, len(result.Annual))
	for _, a := range result.Annual {
		if site != "" && a.Site != site {
			continue
		}
		if parameter != "" && a.Parameter != parameter {
			continue
		}
		rows = append(rows, a)
	}
	sharedobs.WriteJSON(w, http.StatusOK, annualResponse{RunID: result.RunID, Rows: rows})
}

type wideResponse struct {
	RunID string `json:"run_id"`
	domain.WideTable
}

func (s *Server) handleWide(w http.ResponseWriter, _ *http.Request, result *domain.RunResult) {
	sharedobs.WriteJSON(w, http.StatusOK, wideResponse{RunID: result.RunID, WideTable: result.Wide})
}

type sitesResponse struct {
	RunID string        `json:"run_id"`
	Sites []domain.Site `json:"sites"`
}

func (s *Server) handleSites(w http.ResponseWriter, _ *http.Request, result *domain.RunResult) {
	sites := result.Sites
	if sites == nil {
		sites = []domain.Site{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, sitesResponse{RunID: result.RunID, Sites: sites})
}
