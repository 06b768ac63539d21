package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ldxinsight/catalog/internal/logging"
)

// DownloadLink is the body of GET /datasets/{id}/download.
type DownloadLink struct {
	DownloadURL string `json:"downloadUrl"`
}

// handleExportCSV runs the export pipeline. A known dataset always gets a
// file: converted CSV, the original content or its metadata document.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	art, err := s.exporter.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeArtifact(w, art)
}

// handleDownloadRaw returns the dataset's content without conversion. Unlike
// the CSV export it reports a missing or unreachable source as 404.
func (s *Server) handleDownloadRaw(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	art, err := s.exporter.Raw(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeArtifact(w, art)
}

// handleDownloadLink counts a download and points the client at the CSV
// endpoint. Following the link counts a second time.
func (s *Server) handleDownloadLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.store.IncrementDownloads(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Debug("download link issued",
		"dataset_id", d.ID,
		"download_count", d.DownloadCount,
	)
	writeJSON(w, http.StatusOK, DownloadLink{
		DownloadURL: s.baseURL(r) + "/api/v1/datasets/" + d.ID + "/download.csv",
	})
}
