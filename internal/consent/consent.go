package consent

import (
	"errors"
	"time"
)

// Type classifies what the patient is allowing the hospital to do.
type Type string

const (
	TypeViewRecords     Type = "view_records"
	TypeUploadRecords   Type = "upload_records"
	TypeShareData       Type = "share_data"
	TypeEmergencyAccess Type = "emergency_access"
)

// Scope is the breadth of a grant: one document, one document category,
// everything, a time window, or an open-ended grant.
type Scope string

const (
	ScopeSingleDocument Scope = "single_document"
	ScopeDocumentType   Scope = "document_type"
	ScopeAllDocuments   Scope = "all_documents"
	ScopeTimeBound      Scope = "time_bound"
	ScopeOngoing        Scope = "ongoing"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusGranted Status = "granted"
	StatusDenied  Status = "denied"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Consent is a patient's permission grant to a hospital for one purpose.
// Rows are soft-retained for audit and never physically deleted.
type Consent struct {
	ID         string `json:"id" gorm:"primaryKey"`
	PatientID  string `json:"patient_id" gorm:"column:patient_id;not null;index"`
	HospitalID string `json:"hospital_id" gorm:"column:hospital_id;not null;index"`
	TenantID   string `json:"tenant_id" gorm:"column:tenant_id;index"`

	ConsentType Type   `json:"consent_type" gorm:"column:consent_type;not null"`
	Scope       Scope  `json:"scope" gorm:"not null"`
	Status      Status `json:"status" gorm:"not null;default:pending;index"`

	Purpose      string   `json:"purpose"`
	DataTypes    []string `json:"data_types" gorm:"column:data_types;serializer:json"`
	DocumentIDs  []string `json:"document_ids,omitempty" gorm:"column:document_ids;serializer:json"`
	DurationDays *int     `json:"duration_days,omitempty" gorm:"column:duration_days"`

	RequestedAt time.Time  `json:"requested_at" gorm:"column:requested_at;not null"`
	RespondedAt *time.Time `json:"responded_at,omitempty" gorm:"column:responded_at"`
	GrantedAt   *time.Time `json:"granted_at,omitempty" gorm:"column:granted_at"`
	DeniedAt    *time.Time `json:"denied_at,omitempty" gorm:"column:denied_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at;index"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty" gorm:"column:revoked_at"`

	ResponderID        string `json:"responder_id,omitempty" gorm:"column:responder_id"`
	ResponderIP        string `json:"responder_ip,omitempty" gorm:"column:responder_ip"`
	ResponderUserAgent string `json:"responder_user_agent,omitempty" gorm:"column:responder_user_agent"`
	Signature          string `json:"signature,omitempty"`
	ResponseNotes      string `json:"response_notes,omitempty" gorm:"column:response_notes"`
	RevocationReason   string `json:"revocation_reason,omitempty" gorm:"column:revocation_reason"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Consent) TableName() string {
	return "consents"
}

// Domain errors
var (
	ErrNotFound         = errors.New("consent not found")
	ErrDuplicateRequest = errors.New("an active consent request already exists for this patient, hospital and type")
	ErrNotPending       = errors.New("consent is not pending a decision")
	ErrNotGranted       = errors.New("consent is not in granted status")
	ErrExpired          = errors.New("consent request has expired")
	ErrStaleTransition  = errors.New("consent was modified concurrently")
)

// IsActive reports whether the consent is open: pending a decision or
// currently granted, not yet past its expiry.
func (c *Consent) IsActive(now time.Time) bool {
	if c.Status != StatusPending && c.Status != StatusGranted {
		return false
	}
	return !c.IsPastExpiry(now)
}

func (c *Consent) IsPastExpiry(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

func (c *Consent) CanRespond() bool {
	return c.Status == StatusPending
}

func (c *Consent) CanRevoke() bool {
	return c.Status == StatusGranted
}

// Grant transitions the consent to granted, recording who responded and how.
func (c *Consent) Grant(now time.Time, responder ResponderMetadata) {
	c.Status = StatusGranted
	c.RespondedAt = &now
	c.GrantedAt = &now
	c.applyResponder(responder)
	c.UpdatedAt = now
}

func (c *Consent) Deny(now time.Time, responder ResponderMetadata) {
	c.Status = StatusDenied
	c.RespondedAt = &now
	c.DeniedAt = &now
	c.applyResponder(responder)
	c.UpdatedAt = now
}

func (c *Consent) Revoke(now time.Time, actorID, reason string) {
	c.Status = StatusRevoked
	c.RevokedAt = &now
	c.RevocationReason = reason
	c.ResponderID = actorID
	c.UpdatedAt = now
}

func (c *Consent) Expire(now time.Time) {
	c.Status = StatusExpired
	c.UpdatedAt = now
}

func (c *Consent) applyResponder(r ResponderMetadata) {
	c.ResponderID = r.ActorID
	c.ResponderIP = r.IPAddress
	c.ResponderUserAgent = r.UserAgent
	c.Signature = r.Signature
	c.ResponseNotes = r.Notes
}

// ResponderMetadata captures how the patient's decision was recorded.
type ResponderMetadata struct {
	ActorID   string `json:"actor_id"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Signature string `json:"signature,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// AccessTarget identifies the resource a consent check is being run for.
type AccessTarget struct {
	DocumentID   string
	DocumentType string
}

// Covers resolves the consent's scope against a concrete target. Temporal
// validity is checked separately via IsActive; this only answers breadth.
func (c *Consent) Covers(target AccessTarget) bool {
	switch c.Scope {
	case ScopeAllDocuments, ScopeOngoing, ScopeTimeBound:
		return true
	case ScopeSingleDocument:
		if target.DocumentID == "" {
			return false
		}
		for _, id := range c.DocumentIDs {
			if id == target.DocumentID {
				return true
			}
		}
		return false
	case ScopeDocumentType:
		if target.DocumentType == "" {
			return false
		}
		for _, dt := range c.DataTypes {
			if dt == target.DocumentType {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// History is the append-only log of consent transitions. Rows are write-once.
type History struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	ConsentID   string    `json:"consent_id" gorm:"column:consent_id;not null;index"`
	Action      string    `json:"action" gorm:"not null"`
	ActorID     string    `json:"actor_id" gorm:"column:actor_id"`
	ActorType   ActorType `json:"actor_type" gorm:"column:actor_type;not null"`
	PriorStatus Status    `json:"prior_status" gorm:"column:prior_status"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
}

func (History) TableName() string {
	return "consent_history"
}

type ActorType string

const (
	ActorPatient  ActorType = "patient"
	ActorHospital ActorType = "hospital"
	ActorSystem   ActorType = "system"
)

const (
	HistoryActionCreated = "created"
	HistoryActionGranted = "granted"
	HistoryActionDenied  = "denied"
	HistoryActionRevoked = "revoked"
	HistoryActionExpired = "expired"
)
