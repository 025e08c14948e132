// Package audithttp exposes the audit trail query and export endpoints.
package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/stratus-ops/stratus/internal/audit"
	"github.com/stratus-ops/stratus/internal/platform/httpx"
)

const maxDateRange = 90 * 24 * time.Hour

// TimelineService defines the read contract for audit data.
type TimelineService interface {
	Query(ctx context.Context, filters audit.Filters) (audit.Result, error)
	Export(ctx context.Context, filters audit.Filters) ([]audit.Row, error)
}

// Handler serves audit trail requests.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler constructs an audit handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
		return
	}
	result, err := h.service.Query(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit query", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	data, err := audit.WriteCSV(rows)
	if err != nil {
		h.logger.Error("audit export csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="permission-audit.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) parseFilters(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()
	var filters audit.Filters

	for name, dst := range map[string]*int64{
		"role_id":  &filters.RoleID,
		"resource": &filters.ResourceID,
		"actor":    &filters.ActorUserID,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return audit.Filters{}, badParam(name)
		}
		*dst = v
	}

	now := h.now()
	filters.From = now.Add(-7 * 24 * time.Hour)
	filters.To = now
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filters{}, badParam("from")
		}
		filters.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filters{}, badParam("to")
		}
		filters.To = t
	}
	if filters.To.Before(filters.From) {
		return audit.Filters{}, badParam("to")
	}
	if filters.To.Sub(filters.From) > maxDateRange {
		filters.From = filters.To.Add(-maxDateRange)
	}

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return audit.Filters{}, badParam("page")
		}
		filters.Page = v
	}
	if raw := q.Get("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return audit.Filters{}, badParam("page_size")
		}
		filters.PageSize = v
	}
	return filters, nil
}

type paramError string

func (e paramError) Error() string {
	return "invalid query parameter: " + string(e)
}

func badParam(name string) error {
	return paramError(name)
}
