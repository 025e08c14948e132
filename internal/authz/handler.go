package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stratus-ops/stratus/internal/platform/httpx"
)

// Handler exposes the matrix administration surface: listing the current
// matrix and applying batched changes.
type Handler struct {
	logger    *slog.Logger
	store     Store
	catalog   Catalog
	mutator   *Mutator
	mw        Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, store Store, catalog Catalog, mutator *Mutator, mw Middleware) *Handler {
	return &Handler{
		logger:    logger,
		store:     store,
		catalog:   catalog,
		mutator:   mutator,
		mw:        mw,
		validator: validator.New(),
	}
}

// MountRoutes registers the permission administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(ResourceSettings, ActionRead))
		r.Get("/", h.listMatrix)
		r.Get("/catalog", h.listCatalog)
	})
	// ApplyBatch re-checks the actor internally; the route gate is a
	// fast-path rejection, not the enforcement point.
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(ResourceSettings, ActionUpdate))
		r.Post("/batch", h.applyBatch)
	})
}

func (h *Handler) listMatrix(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListMatrix(r.Context())
	if err != nil {
		h.logger.Error("list matrix", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"matrix": entries})
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roles, err := h.catalog.Roles(ctx)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resources, err := h.catalog.Resources(ctx)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actions, err := h.catalog.Actions(ctx)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"roles":     roles,
		"resources": resources,
		"actions":   actions,
	})
}

type batchRequest struct {
	Updates []PermissionUpdate `json:"updates" validate:"required,min=1,max=200,dive"`
}

func (h *Handler) applyBatch(w http.ResponseWriter, r *http.Request) {
	actorID, ok := CurrentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.mutator.ApplyBatch(r.Context(), actorID, req.Updates)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		h.logger.Error("apply batch", slog.Int64("actor", actorID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
