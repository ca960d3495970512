// Package api provides the HTTP handlers for the scheduled query REST API.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"query-scheduler/internal/domain"
	"query-scheduler/internal/middleware"
	"query-scheduler/internal/service/scheduledquery"
)

// Handler serves the /v1 routes.
type Handler struct {
	queries *scheduledquery.Service
	logger  *slog.Logger
}

// NewHandler creates a Handler backed by the scheduled query service.
func NewHandler(queries *scheduledquery.Service, logger *slog.Logger) *Handler {
	return &Handler{queries: queries, logger: logger}
}

// Mount registers the routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/healthz", h.health)

	r.Route("/queries", func(r chi.Router) {
		r.Get("/", h.listQueries)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getQuery)
			r.Put("/", h.saveQuery)
			r.Delete("/", h.deleteQuery)
			r.Post("/run", h.runQuery)
			r.Get("/audit", h.listAudit)
		})
	})

	r.Get("/tags", h.listTags)
	r.Post("/tags", h.createTag)
	r.Get("/stats/daily-calls", h.dailyCalls)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// === Queries ===

func (h *Handler) listQueries(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := domain.ScheduledQueryFilter{Page: page}
	if v := r.URL.Query().Get("owner"); v != "" {
		filter.Owner = &v
	}
	if v := r.URL.Query().Get("tag"); v != "" {
		filter.TagID = &v
	}

	items, total, err := h.queries.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := PaginatedScheduledQueries{
		Data:          make([]ScheduledQuery, len(items)),
		NextPageToken: page.Next(total),
	}
	for i, q := range items {
		out.Data[i] = ScheduledQueryToAPI(q)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getQuery(w http.ResponseWriter, r *http.Request) {
	q, err := h.queries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScheduledQueryToAPI(*q))
}

func (h *Handler) saveQuery(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req domain.SaveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if req.ID == "" {
		req.ID = id
	}
	if req.ID != id {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("body id %q does not match path id %q", req.ID, id))
		return
	}

	q, err := h.queries.Save(r.Context(), principal, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScheduledQueryToAPI(*q))
}

func (h *Handler) deleteQuery(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if err := h.queries.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) runQuery(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	q, err := h.queries.RunNow(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ScheduledQueryToAPI(*q))
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, total, err := h.queries.ListAudit(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := PaginatedAuditEntries{
		Data:          make([]AuditEntry, len(entries)),
		NextPageToken: page.Next(total),
	}
	for i, e := range entries {
		out.Data[i] = auditEntryToAPI(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// === Tags ===

func (h *Handler) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.queries.ListTags(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]Tag, len(tags))
	for i, t := range tags {
		out[i] = TagToAPI(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createTag(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req CreateTagRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tag, err := h.queries.CreateTag(r.Context(), principal, domain.CreateTagRequest{Name: req.Name, Color: req.Color})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, TagToAPI(*tag))
}

// === Stats ===

func (h *Handler) dailyCalls(w http.ResponseWriter, r *http.Request) {
	total, err := h.queries.TotalDailyCalls(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DailyCalls{Total: total})
}

// === Helpers ===

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"principal", domain.PrincipalName(r.Context()),
			"error", err,
		)
	}
	writeError(w, status, err.Error())
}

func requirePrincipal(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := domain.PrincipalName(r.Context())
	if name == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return name, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pageFromQuery extracts a PageRequest from max_results/page_token.
func pageFromQuery(r *http.Request) (domain.PageRequest, error) {
	p := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, fmt.Errorf("max_results must be a non-negative integer, got %q", v)
		}
		p.MaxResults = n
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
