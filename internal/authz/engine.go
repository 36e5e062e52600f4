package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adityamishra28203/healthvault/internal"
	"github.com/adityamishra28203/healthvault/internal/staff"
)

// SubjectRepository resolves the authorization subject.
type SubjectRepository interface {
	GetByID(ctx context.Context, id string) (*staff.HospitalUser, error)
}

// WriteCounter reports how many document writes a user has already made on a
// given day, for the daily quota condition.
type WriteCounter interface {
	CountDocumentWrites(ctx context.Context, userID string, day time.Time) (int, error)
}

// Decision is the structured outcome of a permission check. Denials carry a
// machine-readable code and a human-readable reason; they are return values,
// never errors.
type Decision struct {
	Granted bool               `json:"granted"`
	Code    internal.ErrorCode `json:"code,omitempty"`
	Reason  string             `json:"reason,omitempty"`
}

func granted() Decision {
	return Decision{Granted: true}
}

func denied(code internal.ErrorCode, reason string) Decision {
	return Decision{Granted: false, Code: code, Reason: reason}
}

// EvalContext carries the contextual attributes of the attempted operation.
type EvalContext struct {
	PatientID    string
	DocumentType string
}

// Engine evaluates role, overlay, temporal and contextual conditions against
// the static catalog. It is a pure decision layer: storage failures
// propagate as errors and are never folded into a grant or a deny.
type Engine struct {
	subjects SubjectRepository
	writes   WriteCounter
	catalog  *Catalog
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(subjects SubjectRepository, writes WriteCounter, catalog *Catalog, logger *slog.Logger) *Engine {
	return &Engine{
		subjects: subjects,
		writes:   writes,
		catalog:  catalog,
		logger:   logger,
		now:      time.Now,
	}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// writeActions are the document actions counted against the daily quota.
var writeActions = map[string]bool{
	ActionCreate: true,
	ActionUpload: true,
	ActionUpdate: true,
}

// CheckPermission runs the full evaluation chain, short-circuiting on the
// first denial: subject status, temporal window, role catalog plus overlay,
// then contextual conditions.
func (e *Engine) CheckPermission(ctx context.Context, userID, hospitalID, resource, action string, ec EvalContext) (Decision, error) {
	u, err := e.subjects.GetByID(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	if u.HospitalID != hospitalID || !u.IsActive() {
		e.logger.Warn("permission denied: subject not active for hospital",
			"user_id", userID, "hospital_id", hospitalID, "status", u.Status)
		return denied(internal.ErrCodeUserInactive,
			fmt.Sprintf("user is not an active member of hospital %s", hospitalID)), nil
	}

	if !e.catalog.WithinAllowedHours(u.Role, e.now()) {
		e.logger.Warn("permission denied: outside allowed hours",
			"user_id", userID, "role", u.Role)
		return denied(internal.ErrCodeOutsideAllowedHours,
			fmt.Sprintf("role %s may not perform actions at this time", u.Role)), nil
	}

	// The overlay can only add to the role's grants, never revoke them.
	if !e.catalog.Allows(u.Role, resource, action) && !u.HasExtraPermission(resource, action) {
		e.logger.Warn("permission denied: role insufficient",
			"user_id", userID, "role", u.Role, "resource", resource, "action", action)
		return denied(internal.ErrCodeRoleInsufficient,
			fmt.Sprintf("role %s has no %s permission on %s", u.Role, action, resource)), nil
	}

	if resource == ResourceDocuments {
		if len(u.AccessControl.AllowedDocumentTypes) > 0 && !u.MayTouchDocumentType(ec.DocumentType) {
			e.logger.Warn("permission denied: document type not allowed",
				"user_id", userID, "document_type", ec.DocumentType)
			return denied(internal.ErrCodeDocumentTypeNotAllowed,
				fmt.Sprintf("document type %q is not in the user's allow-list", ec.DocumentType)), nil
		}

		if writeActions[action] && u.AccessControl.MaxDocumentsPerDay > 0 {
			count, err := e.writes.CountDocumentWrites(ctx, userID, e.now())
			if err != nil {
				return Decision{}, err
			}
			if count >= u.AccessControl.MaxDocumentsPerDay {
				e.logger.Warn("permission denied: daily document quota reached",
					"user_id", userID, "count", count, "max", u.AccessControl.MaxDocumentsPerDay)
				return denied(internal.ErrCodeDailyQuotaExceeded,
					fmt.Sprintf("daily document limit of %d reached", u.AccessControl.MaxDocumentsPerDay)), nil
			}
		}
	}

	return granted(), nil
}

// Authorize is the fail-fast wrapper: a denial becomes a forbidden error.
func (e *Engine) Authorize(ctx context.Context, userID, hospitalID, resource, action string, ec EvalContext) error {
	decision, err := e.CheckPermission(ctx, userID, hospitalID, resource, action, ec)
	if err != nil {
		return err
	}
	if !decision.Granted {
		return internal.NewForbiddenError(decision.Reason, decision.Code)
	}
	return nil
}

// GetUserPermissions returns the subject's effective permission strings: the
// role's catalog grants plus the custom overlay.
func (e *Engine) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	u, err := e.subjects.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	perms := e.catalog.PermissionsFor(u.Role)
	return append(perms, u.ExtraPermissions...), nil
}

// CanAccessPatient checks the per-user patient assignment restriction.
func (e *Engine) CanAccessPatient(ctx context.Context, userID, hospitalID, patientID string) (Decision, error) {
	u, err := e.subjects.GetByID(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if u.HospitalID != hospitalID || !u.IsActive() {
		return denied(internal.ErrCodeUserInactive,
			fmt.Sprintf("user is not an active member of hospital %s", hospitalID)), nil
	}
	if !u.IsAssignedToPatient(patientID) {
		e.logger.Warn("patient access denied: not assigned",
			"user_id", userID, "patient_id", patientID)
		return denied(internal.ErrCodePatientNotAssigned,
			"patient is not assigned to this user"), nil
	}
	return granted(), nil
}

// CanPerformEmergencyAccess reports whether the subject's role is on the
// emergency exemption list and the subject is active.
func (e *Engine) CanPerformEmergencyAccess(ctx context.Context, userID string) (bool, error) {
	u, err := e.subjects.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsActive() && (u.Role == staff.RoleAdmin || e.catalog.IsEmergencyRole(u.Role)), nil
}

// CanManageUser allows only active admins of the same hospital to manage
// another staff member.
func (e *Engine) CanManageUser(ctx context.Context, managerID, targetID string) (Decision, error) {
	manager, err := e.subjects.GetByID(ctx, managerID)
	if err != nil {
		return Decision{}, err
	}
	if !manager.IsActive() {
		return denied(internal.ErrCodeUserInactive, "manager account is not active"), nil
	}
	if manager.Role != staff.RoleAdmin {
		return denied(internal.ErrCodeRoleInsufficient, "only admins may manage users"), nil
	}

	target, err := e.subjects.GetByID(ctx, targetID)
	if err != nil {
		return Decision{}, err
	}
	if target.HospitalID != manager.HospitalID {
		return denied(internal.ErrCodeRoleInsufficient, "target user belongs to another hospital"), nil
	}
	return granted(), nil
}
