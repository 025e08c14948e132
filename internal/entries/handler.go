package entries

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stratus-ops/stratus/internal/authz"
	"github.com/stratus-ops/stratus/internal/directory"
	"github.com/stratus-ops/stratus/internal/platform/httpx"
	"github.com/stratus-ops/stratus/internal/shared"
)

// UserLookup resolves the acting user's directory record.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (directory.User, error)
}

// Handler serves entry CRUD requests.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	users     UserLookup
	validator *validator.Validate
}

// NewHandler constructs an entries Handler.
func NewHandler(logger *slog.Logger, service *Service, users UserLookup) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, users: users, validator: validator.New()}
}

// MountRoutes registers the entry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.CurrentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	items, err := h.service.List(r.Context(), actorID)
	if err != nil {
		h.respondErr(w, "list entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.CurrentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	actor, err := h.users.GetUser(r.Context(), actorID)
	if err != nil {
		h.respondErr(w, "load actor", err)
		return
	}
	entry, err := h.service.Create(r.Context(), actorID, actor.TeamID, input)
	if err != nil {
		h.respondErr(w, "create entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.target(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Get(r.Context(), actorID, id)
	if err != nil {
		h.respondErr(w, "get entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.target(w, r)
	if !ok {
		return
	}
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Update(r.Context(), actorID, id, input)
	if err != nil {
		h.respondErr(w, "update entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actorID, id); err != nil {
		h.respondErr(w, "delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (EntryInput, bool) {
	var input EntryInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return EntryInput{}, false
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return EntryInput{}, false
	}
	return input, true
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	actorID, ok := authz.CurrentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return 0, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "entry id must be a positive integer")
		return 0, 0, false
	}
	return actorID, id, true
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
