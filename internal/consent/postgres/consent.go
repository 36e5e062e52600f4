package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/adityamishra28203/healthvault/internal/consent"
)

// ConsentRepository implements the consent.Repository interface using GORM
type ConsentRepository struct {
	db *gorm.DB
}

func NewConsentRepository(db *gorm.DB) consent.Repository {
	return &ConsentRepository{db: db}
}

func (r *ConsentRepository) Create(ctx context.Context, c *consent.Consent) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ConsentRepository) GetByID(ctx context.Context, id string) (*consent.Consent, error) {
	var c consent.Consent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, consent.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindActive returns pending and granted consents for the triple, used for
// the duplicate-request check.
func (r *ConsentRepository) FindActive(ctx context.Context, patientID, hospitalID string, consentType consent.Type) ([]*consent.Consent, error) {
	var consents []*consent.Consent
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND hospital_id = ? AND consent_type = ?", patientID, hospitalID, consentType).
		Where("status IN ?", []consent.Status{consent.StatusPending, consent.StatusGranted}).
		Find(&consents).Error
	return consents, err
}

func (r *ConsentRepository) FindGranted(ctx context.Context, patientID, hospitalID string, consentType consent.Type) ([]*consent.Consent, error) {
	var consents []*consent.Consent
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND hospital_id = ? AND consent_type = ? AND status = ?",
			patientID, hospitalID, consentType, consent.StatusGranted).
		Find(&consents).Error
	return consents, err
}

// TransitionStatus persists a state change conditionally: the UPDATE only
// applies while the row still holds the status the caller read. Zero
// affected rows means another transition won the race.
func (r *ConsentRepository) TransitionStatus(ctx context.Context, c *consent.Consent, from consent.Status) error {
	res := r.db.WithContext(ctx).Model(&consent.Consent{}).
		Where("id = ? AND status = ?", c.ID, from).
		Updates(map[string]interface{}{
			"status":               c.Status,
			"responded_at":         c.RespondedAt,
			"granted_at":           c.GrantedAt,
			"denied_at":            c.DeniedAt,
			"revoked_at":           c.RevokedAt,
			"responder_id":         c.ResponderID,
			"responder_ip":         c.ResponderIP,
			"responder_user_agent": c.ResponderUserAgent,
			"signature":            c.Signature,
			"response_notes":       c.ResponseNotes,
			"revocation_reason":    c.RevocationReason,
			"updated_at":           time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return consent.ErrStaleTransition
	}
	return nil
}

func (r *ConsentRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*consent.Consent, error) {
	var consents []*consent.Consent
	err := r.db.WithContext(ctx).
		Where("status IN ?", []consent.Status{consent.StatusPending, consent.StatusGranted}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&consents).Error
	return consents, err
}

func (r *ConsentRepository) AppendHistory(ctx context.Context, entry *consent.History) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ConsentRepository) HistoryForConsent(ctx context.Context, consentID string) ([]*consent.History, error) {
	var entries []*consent.History
	err := r.db.WithContext(ctx).
		Where("consent_id = ?", consentID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
