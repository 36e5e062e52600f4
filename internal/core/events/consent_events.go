package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeConsentRequested = "consent.requested"
	EventTypeConsentGranted   = "consent.granted"
	EventTypeConsentDenied    = "consent.denied"
	EventTypeConsentRevoked   = "consent.revoked"
	EventTypeConsentExpired   = "consent.expired"
	EventTypeAccessDenied     = "access.denied"
)

// ConsentEvent is published on every consent state transition. Downstream
// notification delivery (email/SMS to the patient or hospital) subscribes to
// these; delivery itself lives outside this service.
type ConsentEvent struct {
	BaseEvent
	ConsentID   string `json:"consent_id"`
	PatientID   string `json:"patient_id"`
	HospitalID  string `json:"hospital_id"`
	ConsentType string `json:"consent_type"`
	Status      string `json:"status"`
}

func NewConsentEvent(eventType, consentID, patientID, hospitalID, consentType, status string) *ConsentEvent {
	return &ConsentEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"consent_id":   consentID,
				"patient_id":   patientID,
				"hospital_id":  hospitalID,
				"consent_type": consentType,
				"status":       status,
			},
		},
		ConsentID:   consentID,
		PatientID:   patientID,
		HospitalID:  hospitalID,
		ConsentType: consentType,
		Status:      status,
	}
}

// AccessDeniedEvent feeds security tooling that watches for repeated denials.
type AccessDeniedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	ReasonCode string `json:"reason_code"`
}

func NewAccessDeniedEvent(userID, resource, action, reasonCode string) *AccessDeniedEvent {
	return &AccessDeniedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAccessDenied,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":     userID,
				"resource":    resource,
				"action":      action,
				"reason_code": reasonCode,
			},
		},
		UserID:     userID,
		Resource:   resource,
		Action:     action,
		ReasonCode: reasonCode,
	}
}
