package web

import (
	"net/http"

	"github.com/ldxinsight/catalog/internal/dataset"
	"github.com/ldxinsight/catalog/internal/export"
)

const (
	defaultTopLimit = 5
	maxTopLimit     = 100
)

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.Summary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleStatsByCategory(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.CategoryStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if stats == nil {
		stats = []dataset.CategoryCount{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTopViewed(w http.ResponseWriter, r *http.Request) {
	s.writeTop(w, r, dataset.CounterViews)
}

func (s *Server) handleTopDownloaded(w http.ResponseWriter, r *http.Request) {
	s.writeTop(w, r, dataset.CounterDownloads)
}

func (s *Server) writeTop(w http.ResponseWriter, r *http.Request, by dataset.Counter) {
	limit := parseIntParam(r, "limit", defaultTopLimit, 1)
	if limit > maxTopLimit {
		limit = maxTopLimit
	}
	top, err := s.store.Top(r.Context(), by, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if top == nil {
		top = []dataset.Dataset{}
	}
	writeJSON(w, http.StatusOK, top)
}

// Health is the body of GET /healthz.
type Health struct {
	Status  string               `json:"status"`
	Exports export.LimiterStatus `json:"exports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Health{Status: "ok", Exports: s.limiter.Status()})
}
