package consent

import (
	"time"
)

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

// RequestConsentDTO is the payload a hospital submits to open a consent
// request against a patient.
type RequestConsentDTO struct {
	PatientID    string   `json:"patient_id" validate:"required"`
	HospitalID   string   `json:"hospital_id" validate:"required"`
	TenantID     string   `json:"tenant_id"`
	ConsentType  Type     `json:"consent_type" validate:"required"`
	Scope        Scope    `json:"scope" validate:"required"`
	Purpose      string   `json:"purpose" validate:"required,max=500"`
	DataTypes    []string `json:"data_types"`
	DocumentIDs  []string `json:"document_ids,omitempty"`
	DurationDays *int     `json:"duration_days,omitempty"`
}

var validTypes = map[Type]bool{
	TypeViewRecords:     true,
	TypeUploadRecords:   true,
	TypeShareData:       true,
	TypeEmergencyAccess: true,
}

var validScopes = map[Scope]bool{
	ScopeSingleDocument: true,
	ScopeDocumentType:   true,
	ScopeAllDocuments:   true,
	ScopeTimeBound:      true,
	ScopeOngoing:        true,
}

// Valid reports whether t is one of the known consent types.
func (t Type) Valid() bool {
	return validTypes[t]
}

func (dto RequestConsentDTO) Validate() error {
	if dto.PatientID == "" {
		return ValidationError{Msg: "patient_id is required"}
	}
	if dto.HospitalID == "" {
		return ValidationError{Msg: "hospital_id is required"}
	}
	if !validTypes[dto.ConsentType] {
		return ValidationError{Msg: "unknown consent type"}
	}
	if !validScopes[dto.Scope] {
		return ValidationError{Msg: "unknown consent scope"}
	}
	if dto.Purpose == "" {
		return ValidationError{Msg: "purpose is required"}
	}
	if len(dto.Purpose) > 500 {
		return ValidationError{Msg: "purpose must be less than 500 characters"}
	}
	if dto.Scope == ScopeSingleDocument && len(dto.DocumentIDs) == 0 {
		return ValidationError{Msg: "document_ids is required for single_document scope"}
	}
	if dto.Scope == ScopeDocumentType && len(dto.DataTypes) == 0 {
		return ValidationError{Msg: "data_types is required for document_type scope"}
	}
	if dto.DurationDays != nil && *dto.DurationDays <= 0 {
		return ValidationError{Msg: "duration_days must be positive"}
	}
	return nil
}

// RespondConsentDTO carries the patient's decision on a pending request.
type RespondConsentDTO struct {
	Decision  string            `json:"decision" validate:"required,oneof=granted denied"`
	Responder ResponderMetadata `json:"responder"`
}

const (
	DecisionGranted = "granted"
	DecisionDenied  = "denied"
)

func (dto RespondConsentDTO) Validate() error {
	if dto.Decision != DecisionGranted && dto.Decision != DecisionDenied {
		return ValidationError{Msg: "decision must be either 'granted' or 'denied'"}
	}
	if dto.Responder.ActorID == "" {
		return ValidationError{Msg: "responder actor_id is required"}
	}
	return nil
}

// RevokeConsentDTO withdraws a previously granted consent.
type RevokeConsentDTO struct {
	ActorID string `json:"actor_id" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

func (dto RevokeConsentDTO) Validate() error {
	if dto.ActorID == "" {
		return ValidationError{Msg: "actor_id is required"}
	}
	if dto.Reason == "" {
		return ValidationError{Msg: "reason is required when revoking a consent"}
	}
	return nil
}

// CheckQuery asks whether an active grant covers a specific access.
type CheckQuery struct {
	PatientID    string `json:"patient_id"`
	HospitalID   string `json:"hospital_id"`
	ConsentType  Type   `json:"consent_type"`
	DocumentID   string `json:"document_id,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
}

func (q CheckQuery) Validate() error {
	if q.PatientID == "" {
		return ValidationError{Msg: "patient_id is required"}
	}
	if q.HospitalID == "" {
		return ValidationError{Msg: "hospital_id is required"}
	}
	if !validTypes[q.ConsentType] {
		return ValidationError{Msg: "unknown consent type"}
	}
	return nil
}

// Verification is the structured answer to a consent check; callers get the
// matched consent id so the access gate can audit which grant was used.
type Verification struct {
	Granted   bool       `json:"granted"`
	ConsentID string     `json:"consent_id,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
