package schedules

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stratus-ops/stratus/internal/authz"
	"github.com/stratus-ops/stratus/internal/directory"
	"github.com/stratus-ops/stratus/internal/platform/httpx"
	"github.com/stratus-ops/stratus/internal/shared"
)

// UserLookup resolves the acting user's directory record.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (directory.User, error)
}

// Handler serves schedule CRUD and workflow transitions.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	users     UserLookup
	validator *validator.Validate
}

// NewHandler constructs a schedules Handler.
func NewHandler(logger *slog.Logger, service *Service, users UserLookup) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		users:     users,
		validator: validator.New(),
	}
}

// MountRoutes registers the schedule routes. Authorization happens in the
// service per object, so routes are only gated on an authenticated session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/submit", h.submit)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.CurrentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	items, err := h.service.List(r.Context(), actorID)
	if err != nil {
		h.respondErr(w, "list schedules", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schedules": items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.CurrentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req CreateScheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	actor, err := h.users.GetUser(r.Context(), actorID)
	if err != nil {
		h.respondErr(w, "load actor", err)
		return
	}
	sched, err := h.service.Create(r.Context(), actorID, actor.TeamID, req)
	if err != nil {
		h.respondErr(w, "create schedule", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sched)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.target(w, r)
	if !ok {
		return
	}
	sched, err := h.service.Get(r.Context(), actorID, id)
	if err != nil {
		h.respondErr(w, "get schedule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req UpdateScheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sched, err := h.service.Update(r.Context(), actorID, id, req)
	if err != nil {
		h.respondErr(w, "update schedule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actorID, id); err != nil {
		h.respondErr(w, "delete schedule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.target(w, r)
	if !ok {
		return
	}
	sched, err := h.service.Submit(r.Context(), actorID, id)
	if err != nil {
		h.respondErr(w, "submit schedule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.target(w, r)
	if !ok {
		return
	}
	sched, err := h.service.Approve(r.Context(), actorID, id)
	if err != nil {
		h.respondErr(w, "approve schedule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sched, err := h.service.Reject(r.Context(), actorID, id, req.Reason)
	if err != nil {
		h.respondErr(w, "reject schedule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (int64, uuid.UUID, bool) {
	actorID, ok := authz.CurrentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return 0, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "schedule id must be a UUID")
		return 0, uuid.Nil, false
	}
	return actorID, id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, shared.ErrForbidden):
		httpx.RespondError(w, httpx.ErrForbidden)
	case errors.Is(err, ErrApprovedImmutable), errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrReasonRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
