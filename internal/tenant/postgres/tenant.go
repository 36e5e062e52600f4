package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adityamishra28203/healthvault/internal/tenant"
)

// TenantRepository implements the tenant.Repository interface using GORM
type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) tenant.Repository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, tenant.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepository) GetUsage(ctx context.Context, tenantID, resource string) (*tenant.Usage, error) {
	var u tenant.Usage
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND resource = ?", tenantID, resource).
		First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, tenant.ErrUsageNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *TenantRepository) ListUsage(ctx context.Context, tenantID string) ([]tenant.Usage, error) {
	var usage []tenant.Usage
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("resource ASC").
		Find(&usage).Error
	return usage, err
}

func (r *TenantRepository) InitUsage(ctx context.Context, tenantID string, limits map[string]int64) error {
	rows := make([]tenant.Usage, 0, len(limits))
	for resource, limit := range limits {
		rows = append(rows, tenant.Usage{
			TenantID: tenantID,
			Resource: resource,
			Used:     0,
			Limit:    limit,
		})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// IncrementUsage is a single conditional UPDATE: the counter moves only while
// the result stays within the limit, so concurrent increments serialize at
// the database and can never push used past limit.
func (r *TenantRepository) IncrementUsage(ctx context.Context, tenantID, resource string, by int64) error {
	res := r.db.WithContext(ctx).Model(&tenant.Usage{}).
		Where("tenant_id = ? AND resource = ?", tenantID, resource).
		Where("used + ? <= limit_value", by).
		Update("used", gorm.Expr("used + ?", by))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing counter from an exhausted one.
		if _, err := r.GetUsage(ctx, tenantID, resource); err != nil {
			return err
		}
		return tenant.ErrLimitExceeded
	}
	return nil
}

// RaiseLimits lifts every counter to the new tier's table. Limits are
// monotone: a row already above the new value keeps its current limit.
func (r *TenantRepository) RaiseLimits(ctx context.Context, tenantID string, limits map[string]int64) error {
	for resource, limit := range limits {
		err := r.db.WithContext(ctx).Model(&tenant.Usage{}).
			Where("tenant_id = ? AND resource = ? AND limit_value < ?", tenantID, resource, limit).
			Update("limit_value", limit).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *TenantRepository) UpdateTier(ctx context.Context, t *tenant.Tenant) error {
	res := r.db.WithContext(ctx).Model(&tenant.Tenant{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"tier":                       t.Tier,
			"feature_sso":                t.Features.SSO,
			"feature_mfa":                t.Features.MFA,
			"feature_custom_branding":    t.Features.CustomBranding,
			"feature_advanced_analytics": t.Features.AdvancedAnalytics,
			"updated_at":                 time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

func (r *TenantRepository) UpdateStatus(ctx context.Context, tenantID string, status tenant.Status) error {
	res := r.db.WithContext(ctx).Model(&tenant.Tenant{}).
		Where("id = ?", tenantID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tenant.ErrNotFound
	}
	return nil
}
