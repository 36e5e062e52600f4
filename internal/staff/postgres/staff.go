package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/adityamishra28203/healthvault/internal/staff"
)

// StaffRepository implements staff lookups over GORM.
type StaffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

func (r *StaffRepository) Create(ctx context.Context, u *staff.HospitalUser) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *StaffRepository) GetByID(ctx context.Context, id string) (*staff.HospitalUser, error) {
	var u staff.HospitalUser
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, staff.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *StaffRepository) GetByEmail(ctx context.Context, email string) (*staff.HospitalUser, error) {
	var u staff.HospitalUser
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, staff.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *StaffRepository) UpdateStatus(ctx context.Context, id string, status staff.Status) error {
	res := r.db.WithContext(ctx).Model(&staff.HospitalUser{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return staff.ErrNotFound
	}
	return nil
}

func (r *StaffRepository) UpdatePermissions(ctx context.Context, u *staff.HospitalUser) error {
	u.UpdatedAt = time.Now()
	// Struct-based update so the json serializer applies to the permission list.
	return r.db.WithContext(ctx).Model(u).
		Select("extra_permissions", "updated_at").
		Updates(u).Error
}
