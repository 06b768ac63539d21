package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ldxinsight/catalog/internal/dataset"
	"github.com/ldxinsight/catalog/internal/logging"
)

// searchParams reads paging and sorting from the query string. Without an
// explicit dir, creation date sorts newest first and other fields ascend.
func searchParams(r *http.Request) dataset.SearchParams {
	q := r.URL.Query()
	sort := dataset.ParseSortField(q.Get("sort"))

	var desc bool
	switch strings.ToLower(strings.TrimSpace(q.Get("dir"))) {
	case "desc":
		desc = true
	case "asc":
		desc = false
	default:
		desc = sort == dataset.SortCreatedAt
	}

	return dataset.SearchParams{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Page:     parseIntParam(r, "page", 0, 0),
		Size:     parseIntParam(r, "size", dataset.DefaultPageSize, 1),
		Sort:     sort,
		Desc:     desc,
	}.Normalize()
}

// handleSearchDatasets returns one page of datasets matching q or category.
func (s *Server) handleSearchDatasets(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.Search(r.Context(), searchParams(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleDatasetsByCategory is search restricted to the path category.
func (s *Server) handleDatasetsByCategory(w http.ResponseWriter, r *http.Request) {
	p := searchParams(r)
	p.Query = ""
	p.Category = strings.TrimSpace(chi.URLParam(r, "category"))

	page, err := s.store.Search(r.Context(), p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.Categories(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var in dataset.Input
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	d, err := s.store.Create(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("dataset created", "dataset_id", d.ID, "title", d.Title)
	w.Header().Set("Location", "/api/v1/datasets/"+d.ID)
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleUpdateDataset(w http.ResponseWriter, r *http.Request) {
	var in dataset.Input
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	d, err := s.store.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("dataset updated", "dataset_id", d.ID)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("dataset deleted", "dataset_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleRecordView counts one view of the dataset.
func (s *Server) handleRecordView(w http.ResponseWriter, r *http.Request) {
	if err := s.store.IncrementViews(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
