package staff

import (
	"errors"
	"strings"
	"time"
)

// Role is one of the fixed hospital staff roles. The set is closed; adding a
// role means updating the permission catalog and its tests together.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleDoctor        Role = "doctor"
	RoleNurse         Role = "nurse"
	RoleBillingClerk  Role = "billing_clerk"
	RoleLabTechnician Role = "lab_technician"
	RoleRadiologist   Role = "radiologist"
	RolePharmacist    Role = "pharmacist"
	RoleReceptionist  Role = "receptionist"
	RoleViewer        Role = "viewer"
)

// AllRoles lists every role in the closed set.
var AllRoles = []Role{
	RoleAdmin,
	RoleDoctor,
	RoleNurse,
	RoleBillingClerk,
	RoleLabTechnician,
	RoleRadiologist,
	RolePharmacist,
	RoleReceptionist,
	RoleViewer,
}

type Status string

const (
	StatusActive              Status = "active"
	StatusInactive            Status = "inactive"
	StatusSuspended           Status = "suspended"
	StatusPendingVerification Status = "pending_verification"
)

// HospitalUser is the authorization subject: a staff member of one hospital,
// with a single role, optional extra permission strings, and a per-user
// access-control block.
type HospitalUser struct {
	ID           string `json:"id" gorm:"primaryKey"`
	HospitalID   string `json:"hospital_id" gorm:"column:hospital_id;not null;index"`
	TenantID     string `json:"tenant_id" gorm:"column:tenant_id;index"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	Name         string `json:"name"`
	PasswordHash string `json:"-" gorm:"column:password_hash"`
	Role         Role   `json:"role" gorm:"not null"`
	Status       Status `json:"status" gorm:"not null;default:active"`

	// ExtraPermissions are resource:action or resource:* strings granted on
	// top of the role. They only ever add permissions.
	ExtraPermissions []string `json:"extra_permissions,omitempty" gorm:"column:extra_permissions;serializer:json"`

	AccessControl AccessControl `json:"access_control" gorm:"embedded;embeddedPrefix:ac_"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (HospitalUser) TableName() string {
	return "hospital_users"
}

// AccessControl is the per-user condition block evaluated after the role
// catalog: document-type allow-list, daily write quota, and assignment
// restrictions.
type AccessControl struct {
	AllowedDocumentTypes []string `json:"allowed_document_types,omitempty" gorm:"column:allowed_document_types;serializer:json"`
	MaxDocumentsPerDay   int      `json:"max_documents_per_day,omitempty" gorm:"column:max_documents_per_day"`
	AssignedPatients     []string `json:"assigned_patients,omitempty" gorm:"column:assigned_patients;serializer:json"`
	AssignedDepartments  []string `json:"assigned_departments,omitempty" gorm:"column:assigned_departments;serializer:json"`
	RestrictedHours      bool     `json:"restricted_hours,omitempty" gorm:"column:restricted_hours"`
}

var ErrNotFound = errors.New("hospital user not found")

func (u *HospitalUser) IsActive() bool {
	return u.Status == StatusActive
}

// HasExtraPermission checks the user's overlay strings for resource:action,
// honouring the resource:* wildcard.
func (u *HospitalUser) HasExtraPermission(resource, action string) bool {
	want := resource + ":" + action
	wildcard := resource + ":*"
	for _, p := range u.ExtraPermissions {
		if p == want || p == wildcard {
			return true
		}
	}
	return false
}

// IsAssignedToPatient reports whether the user may access the patient. An
// empty assignment list means no patient-level restriction.
func (u *HospitalUser) IsAssignedToPatient(patientID string) bool {
	if len(u.AccessControl.AssignedPatients) == 0 {
		return true
	}
	for _, id := range u.AccessControl.AssignedPatients {
		if id == patientID {
			return true
		}
	}
	return false
}

func (u *HospitalUser) MayTouchDocumentType(documentType string) bool {
	if len(u.AccessControl.AllowedDocumentTypes) == 0 {
		return true
	}
	for _, dt := range u.AccessControl.AllowedDocumentTypes {
		if strings.EqualFold(dt, documentType) {
			return true
		}
	}
	return false
}

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	for _, known := range AllRoles {
		if r == known {
			return r, true
		}
	}
	return "", false
}
