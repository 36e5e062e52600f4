package tenant

import (
	"errors"
	"time"
)

// Tier is the billing tier of a tenant. Tiers are strictly ordered; upgrades
// only ever move up the ladder and limits only ever grow.
type Tier string

const (
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
	TierCustom       Tier = "custom"
)

var tierOrdinal = map[Tier]int{
	TierBasic:        0,
	TierProfessional: 1,
	TierEnterprise:   2,
	TierCustom:       3,
}

func (t Tier) Valid() bool {
	_, ok := tierOrdinal[t]
	return ok
}

// HigherThan reports strict tier ordering.
func (t Tier) HigherThan(other Tier) bool {
	return tierOrdinal[t] > tierOrdinal[other]
}

// Countable resources tracked against tier limits.
const (
	ResourceHospitals = "hospitals"
	ResourceUsers     = "users"
	ResourceDocuments = "documents"
	ResourceStorageMB = "storage_mb"
	ResourceAPICalls  = "api_calls"
)

var TrackedResources = []string{
	ResourceHospitals,
	ResourceUsers,
	ResourceDocuments,
	ResourceStorageMB,
	ResourceAPICalls,
}

var tierLimits = map[Tier]map[string]int64{
	TierBasic: {
		ResourceHospitals: 1,
		ResourceUsers:     10,
		ResourceDocuments: 1_000,
		ResourceStorageMB: 5_120,
		ResourceAPICalls:  10_000,
	},
	TierProfessional: {
		ResourceHospitals: 3,
		ResourceUsers:     50,
		ResourceDocuments: 10_000,
		ResourceStorageMB: 51_200,
		ResourceAPICalls:  100_000,
	},
	TierEnterprise: {
		ResourceHospitals: 10,
		ResourceUsers:     500,
		ResourceDocuments: 100_000,
		ResourceStorageMB: 524_288,
		ResourceAPICalls:  1_000_000,
	},
	TierCustom: {
		ResourceHospitals: 100,
		ResourceUsers:     5_000,
		ResourceDocuments: 1_000_000,
		ResourceStorageMB: 5_242_880,
		ResourceAPICalls:  10_000_000,
	},
}

// LimitsFor returns a copy of the tier's limit table.
func LimitsFor(tier Tier) map[string]int64 {
	limits := make(map[string]int64, len(tierLimits[tier]))
	for resource, limit := range tierLimits[tier] {
		limits[resource] = limit
	}
	return limits
}

// Features are the optional capabilities gated by tier. Every flag is
// monotonically non-decreasing with tier.
type Features struct {
	SSO               bool `json:"sso" gorm:"column:feature_sso"`
	MFA               bool `json:"mfa" gorm:"column:feature_mfa"`
	CustomBranding    bool `json:"custom_branding" gorm:"column:feature_custom_branding"`
	AdvancedAnalytics bool `json:"advanced_analytics" gorm:"column:feature_advanced_analytics"`
}

var tierFeatures = map[Tier]Features{
	TierBasic:        {},
	TierProfessional: {MFA: true, AdvancedAnalytics: true},
	TierEnterprise:   {SSO: true, MFA: true, CustomBranding: true, AdvancedAnalytics: true},
	TierCustom:       {SSO: true, MFA: true, CustomBranding: true, AdvancedAnalytics: true},
}

func FeaturesFor(tier Tier) Features {
	return tierFeatures[tier]
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant is the organizational boundary owning hospitals and subject to
// tier-based quotas.
type Tenant struct {
	ID       string   `json:"id" gorm:"primaryKey"`
	Name     string   `json:"name" gorm:"not null"`
	OwnerID  string   `json:"owner_id" gorm:"column:owner_id"`
	Tier     Tier     `json:"tier" gorm:"not null;default:basic"`
	Status   Status   `json:"status" gorm:"not null;default:active"`
	Features Features `json:"features" gorm:"embedded"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// Usage is one resource counter row. The invariant used <= limit holds after
// every successful increment because the increment itself is conditional.
type Usage struct {
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;primaryKey"`
	Resource string `json:"resource" gorm:"primaryKey"`
	Used     int64  `json:"used" gorm:"not null;default:0"`
	Limit    int64  `json:"limit" gorm:"column:limit_value;not null"`
}

func (Usage) TableName() string {
	return "tenant_usage"
}

func (u Usage) Remaining() int64 {
	if u.Limit <= u.Used {
		return 0
	}
	return u.Limit - u.Used
}

// LimitStatus is the structured answer to a quota check.
type LimitStatus struct {
	CanProceed bool   `json:"can_proceed"`
	Resource   string `json:"resource"`
	Used       int64  `json:"used"`
	Limit      int64  `json:"limit"`
	Remaining  int64  `json:"remaining"`
}

// Domain errors
var (
	ErrNotFound         = errors.New("tenant not found")
	ErrUsageNotFound    = errors.New("no usage counter for resource")
	ErrLimitExceeded    = errors.New("tenant resource limit exceeded")
	ErrInvalidTier      = errors.New("unknown tenant tier")
	ErrTierNotHigher    = errors.New("target tier must be strictly higher than the current tier")
	ErrTenantSuspended  = errors.New("tenant is suspended")
	ErrUnknownResource  = errors.New("resource is not tracked")
)

func IsTrackedResource(resource string) bool {
	for _, r := range TrackedResources {
		if r == resource {
			return true
		}
	}
	return false
}
