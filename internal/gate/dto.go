package gate

import (
	"github.com/adityamishra28203/healthvault/internal/consent"
)

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

// CheckAccessDTO is the request body for an explicit gate check. The
// accessor identity comes from the authenticated context, not the body.
type CheckAccessDTO struct {
	TenantID  string `json:"tenant_id"`
	PatientID string `json:"patient_id"`

	Resource   string `json:"resource"`
	Action     string `json:"action"`
	ResourceID string `json:"resource_id,omitempty"`
	AccessType string `json:"access_type"`

	ConsentType  string `json:"consent_type"`
	DocumentID   string `json:"document_id,omitempty"`
	DocumentType string `json:"document_type,omitempty"`

	QuotaResource string `json:"quota_resource,omitempty"`
}

var validAccessTypes = map[AccessType]bool{
	AccessView:     true,
	AccessDownload: true,
	AccessUpload:   true,
	AccessVerify:   true,
	AccessShare:    true,
}

func (d CheckAccessDTO) Validate() error {
	if d.PatientID == "" {
		return ValidationError{Msg: "patient_id is required"}
	}
	if d.Resource == "" {
		return ValidationError{Msg: "resource is required"}
	}
	if d.Action == "" {
		return ValidationError{Msg: "action is required"}
	}
	if !validAccessTypes[AccessType(d.AccessType)] {
		return ValidationError{Msg: "unknown access_type"}
	}
	if d.ConsentType != "" && !consent.Type(d.ConsentType).Valid() {
		return ValidationError{Msg: "unknown consent_type"}
	}
	return nil
}

func (d CheckAccessDTO) toRequest(userID, hospitalID string) AccessRequest {
	return AccessRequest{
		UserID:        userID,
		HospitalID:    hospitalID,
		TenantID:      d.TenantID,
		PatientID:     d.PatientID,
		Resource:      d.Resource,
		Action:        d.Action,
		ResourceID:    d.ResourceID,
		AccessType:    AccessType(d.AccessType),
		ConsentType:   consent.Type(d.ConsentType),
		DocumentID:    d.DocumentID,
		DocumentType:  d.DocumentType,
		QuotaResource: d.QuotaResource,
	}
}
