package consent

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/adityamishra28203/healthvault/internal/transport"
	"github.com/adityamishra28203/healthvault/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) RequestConsent(w http.ResponseWriter, r *http.Request) {
	var dto RequestConsentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.RequestConsent(r.Context(), dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) RespondToConsent(w http.ResponseWriter, r *http.Request) {
	consentID := chi.URLParam(r, "consentID")

	var dto RespondConsentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.Responder.IPAddress == "" {
		dto.Responder.IPAddress = r.RemoteAddr
	}
	if dto.Responder.UserAgent == "" {
		dto.Responder.UserAgent = r.UserAgent()
	}

	c, err := h.Service.RespondToConsent(r.Context(), consentID, dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	consentID := chi.URLParam(r, "consentID")

	var dto RevokeConsentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.RevokeConsent(r.Context(), consentID, dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) CheckConsent(w http.ResponseWriter, r *http.Request) {
	q := CheckQuery{
		PatientID:    r.URL.Query().Get("patient_id"),
		HospitalID:   r.URL.Query().Get("hospital_id"),
		ConsentType:  Type(r.URL.Query().Get("consent_type")),
		DocumentID:   r.URL.Query().Get("document_id"),
		DocumentType: r.URL.Query().Get("document_type"),
	}

	verification, err := h.Service.CheckConsent(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, verification)
}

func (h *Handler) GetConsentHistory(w http.ResponseWriter, r *http.Request) {
	consentID := chi.URLParam(r, "consentID")

	history, err := h.Service.GetConsentHistory(r.Context(), consentID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateRequest),
		errors.Is(err, ErrNotPending),
		errors.Is(err, ErrNotGranted),
		errors.Is(err, ErrStaleTransition):
		h.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrExpired):
		h.WriteError(w, http.StatusGone, err.Error())
	default:
		var vErr ValidationError
		if errors.As(err, &vErr) {
			h.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.Logger.Error("consent operation failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
