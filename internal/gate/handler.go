package gate

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/adityamishra28203/healthvault/internal"
	"github.com/adityamishra28203/healthvault/internal/transport"
	"github.com/adityamishra28203/healthvault/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Gate *Gate
}

func NewHandler(g *Gate) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Gate:        g,
	}
}

// CheckAccess runs the full consent-then-RBAC-then-quota chain for the
// authenticated user and returns the structured decision. A policy deny is
// still a 200: the decision body carries the reason.
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	hospitalID := internal.HospitalIDFromContext(r.Context())
	if userID == "" {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var dto CheckAccessDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := h.Gate.Authorize(r.Context(), dto.toRequest(userID, hospitalID))
	if err != nil {
		h.Logger.Error("access check failed", "error", err, "user_id", userID)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, decision)
}

// GetAuditTrail lists the access log for one patient, newest first.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	limit := parseQueryInt(r, "limit", 50)
	offset := parseQueryInt(r, "offset", 0)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	logs, err := h.Gate.AuditTrail(r.Context(), patientID, limit, offset)
	if err != nil {
		h.Logger.Error("audit trail lookup failed", "error", err, "patient_id", patientID)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{
		"patient_id": patientID,
		"logs":       logs,
		"limit":      limit,
		"offset":     offset,
	})
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
