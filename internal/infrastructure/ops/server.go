package ops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"SentimentScanner/internal/domain"
	"SentimentScanner/internal/ports"
	"SentimentScanner/internal/tier"
)

// Runner triggers one refresh run; implemented by the orchestrator.
type Runner interface {
	RunNow(ctx context.Context, limit int, dryRun bool) (domain.RunSummary, error)
}

// Server is the thin operational surface: a run-now trigger and read-only
// reporting, both pass-through to the orchestrator and store.
type Server struct {
	runner         Runner
	store          ports.CatalogStore
	logger         *slog.Logger
	costPerRequest float64
}

// NewServer wires the ops endpoints.
func NewServer(runner Runner, store ports.CatalogStore, costPerRequest float64, logger *slog.Logger) *Server {
	return &Server{runner: runner, store: store, logger: logger, costPerRequest: costPerRequest}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleRunNow)
		r.Get("/runs", s.handleListRuns)
		r.Get("/tiers", s.handleTiers)
	})
	return r
}

type runRequest struct {
	Limit  int  `json:"limit"`
	DryRun bool `json:"dryRun"`
}

type runSummaryView struct {
	Date          string  `json:"date"`
	StartedAt     string  `json:"startedAt"`
	FinishedAt    string  `json:"finishedAt"`
	DurationSec   float64 `json:"durationSec"`
	Processed     int     `json:"processed"`
	Updated       int     `json:"updated"`
	Unchanged     int     `json:"unchanged"`
	Failed        int     `json:"failed"`
	Requests      int     `json:"requests"`
	EstimatedCost float64 `json:"estimatedCost"`
	ErrorDetail   string  `json:"errorDetail,omitempty"`
	DryRun        bool    `json:"dryRun,omitempty"`
}

func toView(s domain.RunSummary) runSummaryView {
	return runSummaryView{
		Date:          s.Date.Format("2006-01-02"),
		StartedAt:     s.StartedAt.Format(time.RFC3339),
		FinishedAt:    s.FinishedAt.Format(time.RFC3339),
		DurationSec:   s.Duration().Seconds(),
		Processed:     s.Processed,
		Updated:       s.Updated,
		Unchanged:     s.Unchanged,
		Failed:        s.Failed,
		Requests:      s.Requests,
		EstimatedCost: s.EstimatedCost,
		ErrorDetail:   s.ErrorDetail,
		DryRun:        s.DryRun,
	}
}

func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	// An empty body means "defaults"; anything else malformed is a bad request.
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	summary, err := s.runner.RunNow(r.Context(), req.Limit, req.DryRun)
	status := http.StatusOK
	switch {
	case errors.Is(err, ports.ErrRunInProgress):
		http.Error(w, "a run is already in progress", http.StatusConflict)
		return
	case err != nil:
		s.logger.Error("triggered run failed", "error", err)
		// The summary still carries what happened before the failure.
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, toView(summary))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	summaries, err := s.store.ListRunSummaries(r.Context(), limit)
	if err != nil {
		s.logger.Error("list run summaries failed", "error", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	views := make([]runSummaryView, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, toView(summary))
	}
	writeJSON(w, http.StatusOK, views)
}

type tierReport struct {
	Distribution         map[int]int `json:"distribution"`
	ProjectedMonthlyCost float64     `json:"projectedMonthlyCost"`
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	dist, err := s.store.GetTierDistribution(r.Context())
	if err != nil {
		s.logger.Error("tier distribution failed", "error", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tierReport{
		Distribution:         dist,
		ProjectedMonthlyCost: s.projectMonthlyCost(dist),
	})
}

// projectMonthlyCost estimates the provider bill from how often each tier's
// items come due in a 30-day month, at two phase calls per item refresh.
func (s *Server) projectMonthlyCost(dist map[int]int) float64 {
	const month = 30 * 24 * time.Hour

	var total float64
	for t, count := range dist {
		cadence := tier.Cadence(t)
		if cadence <= 0 {
			continue
		}
		refreshes := float64(month) / float64(cadence)
		total += float64(count) * refreshes * 2 * s.costPerRequest
	}
	return total
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
