package evaluations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stratus-ops/stratus/internal/authz"
	"github.com/stratus-ops/stratus/internal/platform/httpx"
	"github.com/stratus-ops/stratus/internal/shared"
)

// Handler serves evaluation requests.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs an evaluations Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the evaluation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.CurrentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	items, err := h.service.List(r.Context(), actorID)
	if err != nil {
		h.respondErr(w, "list evaluations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"evaluations": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.CurrentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "evaluation id must be a positive integer")
		return
	}
	eval, err := h.service.Get(r.Context(), actorID, id)
	if err != nil {
		h.respondErr(w, "get evaluation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, eval)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.CurrentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var input EvaluationInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	eval, err := h.service.Create(r.Context(), actorID, input)
	if err != nil {
		h.respondErr(w, "create evaluation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, eval)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, shared.ErrForbidden):
		httpx.RespondError(w, httpx.ErrForbidden)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
