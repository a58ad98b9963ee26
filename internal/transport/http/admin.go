package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"quizbot-service/internal/domain"
	"quizbot-service/internal/logger"
	"quizbot-service/internal/reporting"
)

// ReportReader is the read side the admin API serves.
type ReportReader interface {
	List(ctx context.Context) ([]domain.SessionSummary, error)
	Detail(ctx context.Context, id int64) (domain.SessionReport, error)
	Statistics(ctx context.Context) (domain.Statistics, error)
}

type AdminHandler struct {
	reports ReportReader
	log     *logger.Logger
	now     func() time.Time
}

func NewAdminHandler(reports ReportReader, log *logger.Logger) *AdminHandler {
	return &AdminHandler{reports: reports, log: log, now: time.Now}
}

// Routes mounts the read-only reporting API under /api.
func (h *AdminHandler) Routes(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"Content-Length", "Content-Disposition"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", h.health)
		api.Get("/results", h.listResults)
		api.Get("/results/export.xlsx", h.exportResults)
		api.Get("/results/{id}", h.resultDetail)
		api.Get("/statistics", h.statistics)
	})
	return r
}

func (h *AdminHandler) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": h.now().UTC()})
}

func (h *AdminHandler) listResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.reports.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *AdminHandler) resultDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	report, err := h.reports.Detail(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.reports.Statistics(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (h *AdminHandler) exportResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.reports.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := reporting.WriteResultsXLSX(&buf, results); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="results.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	h.log.Error("admin request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
