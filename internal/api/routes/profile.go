package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"Ensign/internal/api/handlers"
	"Ensign/internal/core/profiles"
)

// ProfileHandler handles profile resolution endpoints.
type ProfileHandler struct {
	service profiles.ProfileService
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(service profiles.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		service: service,
	}
}

// RegisterProfileRoutes mounts the profile endpoints on the router root.
// The identifier is either an Ethereum address or an ENS name.
func RegisterProfileRoutes(r chi.Router, service profiles.ProfileService) {
	h := NewProfileHandler(service)

	r.Get("/{identifier}", h.GetProfile)
	r.Post("/{identifier}", h.RefreshProfile)
}

// GetProfile handles GET /{identifier}.
// A fresh cached profile is returned verbatim; a stale or missing one is
// refreshed from the registry first.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identifier := chi.URLParam(r, "identifier")

	res, err := h.service.ResolveIdentifier(ctx, identifier)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "failed to resolve identifier")
		return
	}
	if !res.Resolved() {
		handlers.WriteError(w, http.StatusBadRequest, "Invalid address or name")
		return
	}

	if res.Profile != nil && res.Fresh {
		handlers.WriteJSON(w, http.StatusOK, res.Profile)
		return
	}

	h.refreshAndRespond(w, r, res)
}

// RefreshProfile handles POST /{identifier}.
// Always refreshes, regardless of freshness.
func (h *ProfileHandler) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identifier := chi.URLParam(r, "identifier")

	res, err := h.service.ResolveIdentifier(ctx, identifier)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "failed to resolve identifier")
		return
	}
	if !res.Resolved() {
		handlers.WriteError(w, http.StatusBadRequest, "Invalid address or name")
		return
	}

	h.refreshAndRespond(w, r, res)
}

func (h *ProfileHandler) refreshAndRespond(w http.ResponseWriter, r *http.Request, res *profiles.Resolution) {
	ctx := r.Context()

	if err := h.service.UpdateProfile(ctx, res.Address, res.Name); err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "failed to refresh profile")
		return
	}

	profile, err := h.service.FetchProfile(ctx, res.Address)
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "failed to load refreshed profile")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, profile)
}
