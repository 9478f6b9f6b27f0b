package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/skilltally/internal/apperr"
	"github.com/starford/skilltally/internal/models"
	"github.com/starford/skilltally/internal/tally"
)

// Handler holds API route handlers.
type Handler struct {
	svc *tally.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *tally.Service) *Handler {
	return &Handler{svc: svc}
}

// SkillListResponse is returned by GET /api/skills.
type SkillListResponse struct {
	Skills []models.SkillCount `json:"skills"`
	Total  int                 `json:"total"`
}

// RunListResponse is returned by GET /api/runs.
type RunListResponse struct {
	Runs []models.Run `json:"runs"`
}

// intQuery parses a non-negative integer query parameter. A missing value
// yields def.
func intQuery(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrCorruptCounts):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("count file is corrupt"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListSkills handles GET /api/skills.
//
//	@Summary		List skill totals sorted by count
//	@Tags			skills
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum entries (0 = all)"
//	@Success		200		{object}	SkillListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills [get]
func (h *Handler) ListSkills(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(r, "limit", 0)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("limit must be a non-negative integer"))
		return
	}
	all, err := h.svc.Counts(0)
	if err != nil {
		writeServiceError(w, "list skills", err)
		return
	}
	skills := all
	if limit > 0 && limit < len(all) {
		skills = all[:limit]
	}
	if skills == nil {
		skills = []models.SkillCount{}
	}
	writeJSON(w, http.StatusOK, SkillListResponse{Skills: skills, Total: len(all)})
}

// GetSkill handles GET /api/skills/{name}.
//
//	@Summary		Get the total for one skill
//	@Tags			skills
//	@Produce		json
//	@Param			name	path		string	true	"Skill name"
//	@Success		200		{object}	models.SkillCount
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{name} [get]
func (h *Handler) GetSkill(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when the request carries one (e.g. an encoded
	// slash), leaving the parameter escaped; otherwise it is already decoded.
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		var err error
		if name, err = url.PathUnescape(name); err != nil {
			name = ""
		}
	}
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	sc, err := h.svc.Skill(name)
	if err != nil {
		writeServiceError(w, "get skill", err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// Chart returns a handler for GET /api/chart.{format}.
//
//	@Summary		Render the top skills chart
//	@Tags			chart
//	@Produce		png
//	@Param			top	query	int	false	"Number of bars"
//	@Success		200
//	@Security		BearerAuth
//	@Router			/chart.png [get]
func (h *Handler) Chart(format string) http.HandlerFunc {
	contentType := "image/png"
	if format == "svg" {
		contentType = "image/svg+xml"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		top, ok := intQuery(r, "top", h.svc.TopN())
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("top must be a non-negative integer"))
			return
		}
		var buf bytes.Buffer
		if err := h.svc.Chart(&buf, top, format); err != nil {
			writeServiceError(w, "render chart", err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

// Scan handles POST /api/scan.
//
//	@Summary		Run the pipeline once
//	@Tags			scan
//	@Produce		json
//	@Success		200	{object}	models.Run
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scan [post]
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Run(r.Context())
	if err != nil {
		writeServiceError(w, "scan", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recent pipeline runs, newest first
//	@Tags			scan
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum runs"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(r, "limit", 20)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("limit must be a non-negative integer"))
		return
	}
	runs, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeServiceError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}
