package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/adityamishra28203/healthvault/internal"
	"github.com/adityamishra28203/healthvault/internal/staff"
	"github.com/adityamishra28203/healthvault/internal/transport"
	"github.com/adityamishra28203/healthvault/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Engine:      engine,
	}
}

// GetUserPermissions returns the effective permission strings for a user:
// the role catalog grants plus any per-user extras.
func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	perms, err := h.Engine.GetUserPermissions(r.Context(), userID)
	if err != nil {
		if errors.Is(err, staff.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		h.Logger.Error("permission lookup failed", "error", err, "user_id", userID)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"permissions": perms,
	})
}

// GetMyPermissions is the authenticated-user variant of GetUserPermissions.
func (h *Handler) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	perms, err := h.Engine.GetUserPermissions(r.Context(), userID)
	if err != nil {
		h.Logger.Error("permission lookup failed", "error", err, "user_id", userID)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"permissions": perms,
	})
}
