package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ppiankov/dailyreport/internal/api"
	"github.com/ppiankov/dailyreport/internal/models"
	"github.com/ppiankov/dailyreport/internal/reporter"
	"github.com/ppiankov/dailyreport/internal/store"
	"github.com/ppiankov/dailyreport/internal/summary"
	"github.com/rs/zerolog"
)

// Summarizer produces a weekly summary from reports.
type Summarizer interface {
	GenerateWeeklySummary(ctx context.Context, reports []models.Report, r models.DateRange) (string, error)
}

type Handler struct {
	store      *store.Store
	summarizer Summarizer
	now        func() time.Time
}

func NewHandler(deps Dependencies) *Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		store:      deps.Store,
		summarizer: deps.Summarizer,
		now:        now,
	}
}

// writeContext detaches store writes from the request so a client hanging up
// cannot leave the backend behind the in-memory state.
func writeContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

type errorResponse struct {
	Error string `json:"error"`
	Index *int   `json:"index,omitempty"`
}

type saveRequest struct {
	Content string `json:"content"`
}

type importResponse struct {
	Imported int `json:"imported"`
}

type weeklyRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"reports":           h.store.Count(),
		"summaryConfigured": h.summarizer != nil,
	})
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))

	if from == "" && to == "" {
		writeJSON(r, w, http.StatusOK, h.store.List())
		return
	}
	rng, err := models.OpenDateRange(from, to)
	if err != nil {
		writeError(r, w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(r, w, http.StatusOK, h.store.ListInRange(rng.Start, rng.End))
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	report, found := h.store.Get(date)
	if !found {
		writeError(r, w, http.StatusNotFound, fmt.Sprintf("no report for %s", date))
		return
	}
	writeJSON(r, w, http.StatusOK, report)
}

func (h *Handler) SaveReport(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(r, w, http.StatusRequestEntityTooLarge, "report body too large")
			return
		}
		writeError(r, w, http.StatusBadRequest, "request body must be a JSON object with a content field")
		return
	}

	report, err := h.store.Save(writeContext(r), date, req.Content)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			writeError(r, w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(r, w, http.StatusInternalServerError, "failed to save report")
		return
	}
	writeJSON(r, w, http.StatusOK, report)
}

func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	if !h.store.Delete(writeContext(r), date) {
		writeError(r, w, http.StatusNotFound, fmt.Sprintf("no report for %s", date))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearReports(w http.ResponseWriter, r *http.Request) {
	h.store.Clear(writeContext(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, h.store.Statistics())
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	data, err := h.store.Export()
	if err != nil {
		logger.Error().Err(err).Msg("failed to export reports")
		writeError(r, w, http.StatusInternalServerError, "failed to export reports")
		return
	}

	filename := fmt.Sprintf("daily-reports-%s.json", models.FormatDate(h.now()))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, data); err != nil {
		logger.Error().Err(err).Msg("failed to write export")
	}
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(r, w, http.StatusRequestEntityTooLarge, "import payload too large")
			return
		}
		writeError(r, w, http.StatusBadRequest, "failed to read request body")
		return
	}

	n, err := h.store.Import(writeContext(r), string(body))
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		var ierr *store.ImportError
		if errors.As(err, &ierr) && ierr.Index >= 0 {
			resp.Index = &ierr.Index
		}
		writeJSON(r, w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(r, w, http.StatusOK, importResponse{Imported: n})
}

func (h *Handler) Weekly(w http.ResponseWriter, r *http.Request) {
	if h.summarizer == nil {
		writeError(r, w, http.StatusServiceUnavailable, "weekly summaries are not configured (missing coze token or bot id)")
		return
	}

	var req weeklyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(r, w, http.StatusBadRequest, "request body must be a JSON object with start and end")
			return
		}
	}

	rng := models.WeekOf(h.now())
	if req.Start != "" || req.End != "" {
		var err error
		rng, err = api.ValidateRange(req.Start, req.End)
		if err != nil {
			writeError(r, w, http.StatusBadRequest, err.Error())
			return
		}
	}

	reports := h.store.ListInRange(rng.Start, rng.End)
	text, err := h.summarizer.GenerateWeeklySummary(r.Context(), reports, rng)
	if err != nil {
		msg := "failed to generate weekly report"
		var genErr *summary.GenerationError
		if errors.As(err, &genErr) {
			msg = genErr.Error()
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Str("range", rng.String()).Msg("weekly summary failed")
		writeError(r, w, http.StatusBadGateway, msg)
		return
	}

	writeJSON(r, w, http.StatusOK, reporter.WeeklySummary{
		Range:       rng,
		ReportCount: len(reports),
		GeneratedAt: models.FormatTimestamp(h.now()),
		Summary:     text,
	})
}

func dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	if err := api.ValidateDate(date); err != nil {
		writeError(r, w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return date, true
}

func writeError(r *http.Request, w http.ResponseWriter, status int, msg string) {
	writeJSON(r, w, status, errorResponse{Error: msg})
}

func writeJSON(r *http.Request, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}
