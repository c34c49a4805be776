// Package httpapi exposes the evaluation engine over a JSON REST API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/godilite/evaluation-engine/internal/rating"
	"github.com/godilite/evaluation-engine/internal/service"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
	"github.com/godilite/evaluation-engine/pkg/cache"
	"go.uber.org/zap"
)

const (
	defaultCacheDuration = 10 * time.Minute
	defaultWindow        = 30 * 24 * time.Hour
	maxBodyBytes         = 4 << 20
	dateLayout           = "2006-01-02"
)

// Evaluations is the part of the evaluation service the REST API serves.
type Evaluations interface {
	Taxonomy() *taxonomy.Taxonomy
	ScoreSubmission(sub service.Submission) (service.NormalizedEvaluation, error)
	PreviewDraft(sub service.Submission) (service.DraftPreview, error)
	ValidateEvaluation(ev service.NormalizedEvaluation) error
	ComputeDashboardMetrics(evals []service.NormalizedEvaluation) service.DashboardMetrics
	GetDashboardMetrics(ctx context.Context, q service.DashboardQuery) (service.DashboardMetrics, error)
}

type Handler struct {
	evaluations Evaluations
	cache       *cache.ReadThrough
	logger      *zap.Logger
	now         func() time.Time
}

// NewHandler builds the REST handlers. A nil store disables dashboard caching.
func NewHandler(evaluations Evaluations, store cache.Store, logger *zap.Logger, ttl time.Duration) *Handler {
	if evaluations == nil {
		panic("nil Evaluations provided to NewHandler")
	}
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http-handler")

	return &Handler{
		evaluations: evaluations,
		cache:       cache.NewReadThrough(store, ttl, logger),
		logger:      logger,
		now:         time.Now,
	}
}

// DashboardRequest carries caller-supplied evaluations. Submissions are scored first
// and pooled with the already normalized evaluations.
type DashboardRequest struct {
	Evaluations []service.NormalizedEvaluation `json:"evaluations"`
	Submissions []service.Submission           `json:"submissions"`
}

type taxonomyView struct {
	Version    string              `json:"version"`
	Categories []taxonomy.Category `json:"categories"`
	Questions  []taxonomy.Question `json:"questions"`
	LegacyKeys []string            `json:"legacyKeys,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetTaxonomy(w http.ResponseWriter, r *http.Request) {
	tax := h.evaluations.Taxonomy()

	view := taxonomyView{
		Version:    tax.Version(),
		Categories: tax.Categories(),
		LegacyKeys: tax.LegacyKeys(),
	}
	for _, qid := range tax.QuestionIDs() {
		if q, ok := tax.Question(qid); ok {
			view.Questions = append(view.Questions, q)
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) ScoreSubmission(w http.ResponseWriter, r *http.Request) {
	var sub service.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := h.evaluations.ScoreSubmission(sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *Handler) PreviewDraft(w http.ResponseWriter, r *http.Request) {
	var sub service.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	preview, err := h.evaluations.PreviewDraft(sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *Handler) ComputeDashboard(w http.ResponseWriter, r *http.Request) {
	var req DashboardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	evals := make([]service.NormalizedEvaluation, 0, len(req.Evaluations)+len(req.Submissions))
	for i, ev := range req.Evaluations {
		if err := h.evaluations.ValidateEvaluation(ev); err != nil {
			h.writeError(w, r, fmt.Errorf("evaluations[%d]: %w", i, err))
			return
		}
		evals = append(evals, ev)
	}
	for i, sub := range req.Submissions {
		ev, err := h.evaluations.ScoreSubmission(sub)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("submissions[%d]: %w", i, err))
			return
		}
		evals = append(evals, ev)
	}

	writeJSON(w, http.StatusOK, h.evaluations.ComputeDashboardMetrics(evals))
}

func (h *Handler) GetSubjectDashboard(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	if subjectID == "" {
		writeErr(w, http.StatusBadRequest, "subject id is required")
		return
	}

	start, end, err := h.parseWindow(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	q := service.DashboardQuery{SubjectIDs: []string{subjectID}, Start: start, End: end}
	key := fmt.Sprintf("http:subject_dashboard:%s:%s:%s:%s",
		h.evaluations.Taxonomy().Version(), subjectID, start.Format(dateLayout), end.Format(dateLayout))

	metrics, err := cache.Fetch(r.Context(), h.cache, key, func(ctx context.Context) (service.DashboardMetrics, error) {
		return h.evaluations.GetDashboardMetrics(ctx, q)
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// parseWindow reads start/end as dates or RFC 3339 timestamps and widens them to whole
// UTC days. Missing bounds default to the last 30 days.
func (h *Handler) parseWindow(r *http.Request) (time.Time, time.Time, error) {
	end := h.now().UTC()
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
		}
		end = t
	}

	start := end.Add(-defaultWindow)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
		}
		start = t
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end date must be after start date")
	}

	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond)
	return start, end, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("request aborted", zap.String("path", r.URL.Path), zap.Error(err))
		writeErr(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, rating.ErrSchemaMismatch), errors.Is(err, rating.ErrRatingOutOfRange),
		errors.Is(err, service.ErrInvalidSubmission), errors.Is(err, service.ErrInvalidEvaluation):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rating.ErrIncompleteSubmission):
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrNoEvaluations):
		writeErr(w, http.StatusNotFound, "no evaluations found for the given period")
	case errors.Is(err, service.ErrStorageFailure):
		h.logger.Error("storage failure", zap.String("path", r.URL.Path), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "database error")
	default:
		h.logger.Error("unexpected error", zap.String("path", r.URL.Path), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResp struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}
