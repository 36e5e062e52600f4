package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/adityamishra28203/healthvault/internal/gate"
)

// AccessLogRepository implements the gate.AuditRepository interface using GORM
type AccessLogRepository struct {
	db *gorm.DB
}

func NewAccessLogRepository(db *gorm.DB) gate.AuditRepository {
	return &AccessLogRepository{db: db}
}

func (r *AccessLogRepository) Append(ctx context.Context, entry *gate.AccessLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// CountDocumentWrites counts granted document writes for the user within the
// UTC day containing the given instant, feeding the daily quota condition.
// The day boundary is pinned to UTC so the quota window does not shift with
// the server clock's zone.
func (r *AccessLogRepository) CountDocumentWrites(ctx context.Context, userID string, day time.Time) (int, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var count int64
	err := r.db.WithContext(ctx).Model(&gate.AccessLog{}).
		Where("accessor_id = ? AND resource = ? AND granted = ?", userID, "documents", true).
		Where("access_type = ?", gate.AccessUpload).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	return int(count), err
}

func (r *AccessLogRepository) ListForResource(ctx context.Context, resourceID string, limit, offset int) ([]*gate.AccessLog, error) {
	var entries []*gate.AccessLog
	err := r.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}

func (r *AccessLogRepository) ListForPatient(ctx context.Context, patientID string, limit, offset int) ([]*gate.AccessLog, error) {
	var entries []*gate.AccessLog
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}
