package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adityamishra28203/healthvault/internal"
	"github.com/adityamishra28203/healthvault/internal/authz"
	"github.com/adityamishra28203/healthvault/internal/consent"
	"github.com/adityamishra28203/healthvault/internal/core/events"
	"github.com/adityamishra28203/healthvault/internal/tenant"
)

type AccessType string

const (
	AccessView     AccessType = "view"
	AccessDownload AccessType = "download"
	AccessUpload   AccessType = "upload"
	AccessVerify   AccessType = "verify"
	AccessShare    AccessType = "share"
)

// AccessLog is the append-only audit record written for every gate decision,
// granted or denied. Rows are never mutated.
type AccessLog struct {
	ID         int64      `json:"id" gorm:"primaryKey"`
	ResourceID string     `json:"resource_id" gorm:"column:resource_id;index"`
	Resource   string     `json:"resource" gorm:"not null"`
	PatientID  string     `json:"patient_id" gorm:"column:patient_id;index"`
	AccessorID string     `json:"accessor_id" gorm:"column:accessor_id;not null;index"`
	HospitalID string     `json:"hospital_id" gorm:"column:hospital_id"`
	AccessType AccessType `json:"access_type" gorm:"column:access_type;not null"`
	Granted    bool       `json:"granted" gorm:"not null"`
	ConsentID  string     `json:"consent_id,omitempty" gorm:"column:consent_id"`
	ReasonCode string     `json:"reason_code,omitempty" gorm:"column:reason_code"`
	Reason     string     `json:"reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at;index"`
}

func (AccessLog) TableName() string {
	return "access_logs"
}

// AuditRepository persists access logs and answers the daily write-count
// query the authorization engine's quota condition needs.
type AuditRepository interface {
	Append(ctx context.Context, entry *AccessLog) error
	CountDocumentWrites(ctx context.Context, userID string, day time.Time) (int, error)
	ListForResource(ctx context.Context, resourceID string, limit, offset int) ([]*AccessLog, error)
	ListForPatient(ctx context.Context, patientID string, limit, offset int) ([]*AccessLog, error)
}

// ConsentChecker is the slice of the consent service the gate needs.
type ConsentChecker interface {
	CheckConsent(ctx context.Context, q consent.CheckQuery) (*consent.Verification, error)
}

// Authorizer is the slice of the authorization engine the gate needs.
type Authorizer interface {
	CheckPermission(ctx context.Context, userID, hospitalID, resource, action string, ec authz.EvalContext) (authz.Decision, error)
}

// QuotaManager consumes tenant quota for write operations.
type QuotaManager interface {
	IncrementUsage(ctx context.Context, tenantID, resource string, by int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// AccessRequest describes one attempt by hospital staff to touch patient
// data. QuotaResource names the tenant counter a successful write consumes;
// leave it empty for reads.
type AccessRequest struct {
	UserID     string
	HospitalID string
	TenantID   string
	PatientID  string

	Resource   string
	Action     string
	ResourceID string
	AccessType AccessType

	ConsentType  consent.Type
	DocumentID   string
	DocumentType string

	QuotaResource string
}

// AccessDecision is what resource services receive: never a bare boolean, so
// the denial reason can be surfaced to the requester and to audit tooling.
type AccessDecision struct {
	Allowed   bool               `json:"allowed"`
	Code      internal.ErrorCode `json:"code,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	ConsentID string             `json:"consent_id,omitempty"`
}

// Gate is the orchestration point in front of every protected operation on
// patient data: consent first, then RBAC, then quota for writes, with one
// audit row appended regardless of outcome.
type Gate struct {
	consents  ConsentChecker
	engine    Authorizer
	quotas    QuotaManager
	audit     AuditRepository
	publisher EventPublisher
	logger    *slog.Logger
}

func NewGate(consents ConsentChecker, engine Authorizer, quotas QuotaManager, audit AuditRepository, publisher EventPublisher, logger *slog.Logger) *Gate {
	return &Gate{
		consents:  consents,
		engine:    engine,
		quotas:    quotas,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
	}
}

// Authorize runs the full chain for one access attempt. Infrastructure
// failures propagate as errors and are never reported as a deny; policy
// denials come back as a structured decision.
func (g *Gate) Authorize(ctx context.Context, req AccessRequest) (*AccessDecision, error) {
	verification, err := g.consents.CheckConsent(ctx, consent.CheckQuery{
		PatientID:    req.PatientID,
		HospitalID:   req.HospitalID,
		ConsentType:  req.ConsentType,
		DocumentID:   req.DocumentID,
		DocumentType: req.DocumentType,
	})
	if err != nil {
		return nil, err
	}
	if !verification.Granted {
		return g.deny(ctx, req, internal.ErrCodeConsentRequired, "patient has not granted consent for this access"), nil
	}

	decision, err := g.engine.CheckPermission(ctx, req.UserID, req.HospitalID, req.Resource, req.Action, authz.EvalContext{
		PatientID:    req.PatientID,
		DocumentType: req.DocumentType,
	})
	if err != nil {
		return nil, err
	}
	if !decision.Granted {
		return g.deny(ctx, req, decision.Code, decision.Reason), nil
	}

	if req.QuotaResource != "" && g.quotas != nil {
		if err := g.quotas.IncrementUsage(ctx, req.TenantID, req.QuotaResource, 1); err != nil {
			if errors.Is(err, tenant.ErrLimitExceeded) || errors.Is(err, tenant.ErrTenantSuspended) {
				return g.deny(ctx, req, internal.ErrCodeLimitExceeded, err.Error()), nil
			}
			return nil, err
		}
	}

	allowed := &AccessDecision{Allowed: true, ConsentID: verification.ConsentID}
	g.writeAudit(ctx, req, allowed)
	return allowed, nil
}

func (g *Gate) deny(ctx context.Context, req AccessRequest, code internal.ErrorCode, reason string) *AccessDecision {
	decision := &AccessDecision{Allowed: false, Code: code, Reason: reason}
	g.writeAudit(ctx, req, decision)

	if g.publisher != nil {
		ev := events.NewAccessDeniedEvent(req.UserID, req.Resource, req.Action, string(code))
		if err := g.publisher.Publish(ctx, ev); err != nil {
			g.logger.Error("failed to publish access denied event", "error", err)
		}
	}
	return decision
}

// writeAudit appends the audit row. A failed audit write is logged loudly
// but does not change the decision already made.
func (g *Gate) writeAudit(ctx context.Context, req AccessRequest, decision *AccessDecision) {
	entry := &AccessLog{
		ResourceID: req.ResourceID,
		Resource:   req.Resource,
		PatientID:  req.PatientID,
		AccessorID: req.UserID,
		HospitalID: req.HospitalID,
		AccessType: req.AccessType,
		Granted:    decision.Allowed,
		ConsentID:  decision.ConsentID,
		ReasonCode: string(decision.Code),
		Reason:     decision.Reason,
		CreatedAt:  time.Now(),
	}
	if err := g.audit.Append(ctx, entry); err != nil {
		g.logger.Error("failed to append access log",
			"error", err,
			"accessor_id", req.UserID,
			"resource", req.Resource,
			"granted", decision.Allowed)
	}
}

// AuditTrail exposes the append-only log for audit tooling.
func (g *Gate) AuditTrail(ctx context.Context, patientID string, limit, offset int) ([]*AccessLog, error) {
	return g.audit.ListForPatient(ctx, patientID, limit, offset)
}
