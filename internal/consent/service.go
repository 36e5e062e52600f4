package consent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adityamishra28203/healthvault/internal/core/events"
)

// Repository defines the data access methods for consents. Status changes go
// through TransitionStatus, a conditional update keyed on the expected prior
// status so racing transitions cannot both win.
type Repository interface {
	Create(ctx context.Context, c *Consent) error
	GetByID(ctx context.Context, id string) (*Consent, error)
	FindActive(ctx context.Context, patientID, hospitalID string, consentType Type) ([]*Consent, error)
	FindGranted(ctx context.Context, patientID, hospitalID string, consentType Type) ([]*Consent, error)
	TransitionStatus(ctx context.Context, c *Consent, from Status) error
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*Consent, error)
	AppendHistory(ctx context.Context, entry *History) error
	HistoryForConsent(ctx context.Context, consentID string) ([]*History, error)
}

// EventPublisher is the notification sink; delivery is fire-and-forget.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service manages the consent lifecycle: request, decision, revocation,
// expiry, and the active-grant query used by the access gate.
type Service struct {
	repo          Repository
	publisher     EventPublisher
	logger        *slog.Logger
	now           func() time.Time
	defaultExpiry time.Duration
	sweepBatch    int
}

const DefaultExpiryDays = 30

func NewService(repo Repository, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:          repo,
		publisher:     publisher,
		logger:        logger,
		now:           time.Now,
		defaultExpiry: DefaultExpiryDays * 24 * time.Hour,
		sweepBatch:    500,
	}
}

// WithClock overrides the time source, used by tests and by callers that
// need deterministic expiry behaviour.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithDefaultExpiry overrides how long a request stays open when the
// requester declares no duration.
func (s *Service) WithDefaultExpiry(d time.Duration) *Service {
	s.defaultExpiry = d
	return s
}

// WithSweepBatch caps how many overdue consents one expiry sweep touches.
func (s *Service) WithSweepBatch(n int) *Service {
	if n > 0 {
		s.sweepBatch = n
	}
	return s
}

// RequestConsent opens a pending consent on behalf of a hospital. At most one
// active (pending or granted) consent may exist per (patient, hospital, type).
func (s *Service) RequestConsent(ctx context.Context, dto RequestConsentDTO) (*Consent, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("consent request validation failed", "error", err, "patient_id", dto.PatientID)
		return nil, err
	}

	active, err := s.repo.FindActive(ctx, dto.PatientID, dto.HospitalID, dto.ConsentType)
	if err != nil {
		s.logger.Error("failed to check for active consents", "error", err, "patient_id", dto.PatientID)
		return nil, err
	}
	now := s.now()
	for _, c := range active {
		if c.IsActive(now) {
			s.logger.Warn("duplicate consent request",
				"patient_id", dto.PatientID,
				"hospital_id", dto.HospitalID,
				"consent_type", dto.ConsentType,
				"existing_consent_id", c.ID)
			return nil, ErrDuplicateRequest
		}
	}

	expiresAt := now.Add(s.defaultExpiry)
	if dto.DurationDays != nil {
		expiresAt = now.Add(time.Duration(*dto.DurationDays) * 24 * time.Hour)
	}

	c := &Consent{
		ID:           uuid.NewString(),
		PatientID:    dto.PatientID,
		HospitalID:   dto.HospitalID,
		TenantID:     dto.TenantID,
		ConsentType:  dto.ConsentType,
		Scope:        dto.Scope,
		Status:       StatusPending,
		Purpose:      dto.Purpose,
		DataTypes:    dto.DataTypes,
		DocumentIDs:  dto.DocumentIDs,
		DurationDays: dto.DurationDays,
		RequestedAt:  now,
		ExpiresAt:    &expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		s.logger.Error("failed to create consent", "error", err, "patient_id", dto.PatientID)
		return nil, err
	}

	s.appendHistory(ctx, c.ID, HistoryActionCreated, dto.HospitalID, ActorHospital, "", dto.Purpose)
	s.publish(ctx, events.EventTypeConsentRequested, c)

	s.logger.Info("consent requested",
		"consent_id", c.ID,
		"patient_id", c.PatientID,
		"hospital_id", c.HospitalID,
		"consent_type", c.ConsentType,
		"expires_at", expiresAt)

	return c, nil
}

// RespondToConsent records the patient's decision on a pending request. A
// request whose expiry has already passed is moved to expired instead.
func (s *Service) RespondToConsent(ctx context.Context, consentID string, dto RespondConsentDTO) (*Consent, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.GetByID(ctx, consentID)
	if err != nil {
		return nil, err
	}

	if !c.CanRespond() {
		s.logger.Warn("response to non-pending consent rejected",
			"consent_id", consentID, "status", c.Status)
		return nil, ErrNotPending
	}

	now := s.now()
	if c.IsPastExpiry(now) {
		prior := c.Status
		c.Expire(now)
		if err := s.repo.TransitionStatus(ctx, c, prior); err == nil {
			s.appendHistory(ctx, c.ID, HistoryActionExpired, "", ActorSystem, prior, "expired before response")
			s.publish(ctx, events.EventTypeConsentExpired, c)
		}
		return nil, ErrExpired
	}

	action := HistoryActionGranted
	eventType := events.EventTypeConsentGranted
	if dto.Decision == DecisionGranted {
		c.Grant(now, dto.Responder)
	} else {
		c.Deny(now, dto.Responder)
		action = HistoryActionDenied
		eventType = events.EventTypeConsentDenied
	}

	if err := s.repo.TransitionStatus(ctx, c, StatusPending); err != nil {
		s.logger.Warn("consent transition lost a race", "consent_id", consentID, "error", err)
		return nil, err
	}

	s.appendHistory(ctx, c.ID, action, dto.Responder.ActorID, ActorPatient, StatusPending, dto.Responder.Notes)
	s.publish(ctx, eventType, c)

	s.logger.Info("consent decision recorded",
		"consent_id", c.ID,
		"decision", dto.Decision,
		"actor_id", dto.Responder.ActorID)

	return c, nil
}

// RevokeConsent withdraws a granted consent. Only granted consents can be
// revoked; everything else is a state conflict.
func (s *Service) RevokeConsent(ctx context.Context, consentID string, dto RevokeConsentDTO) (*Consent, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.GetByID(ctx, consentID)
	if err != nil {
		return nil, err
	}

	if !c.CanRevoke() {
		s.logger.Warn("revocation of non-granted consent rejected",
			"consent_id", consentID, "status", c.Status)
		return nil, ErrNotGranted
	}

	c.Revoke(s.now(), dto.ActorID, dto.Reason)
	if err := s.repo.TransitionStatus(ctx, c, StatusGranted); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, c.ID, HistoryActionRevoked, dto.ActorID, ActorPatient, StatusGranted, dto.Reason)
	s.publish(ctx, events.EventTypeConsentRevoked, c)

	s.logger.Info("consent revoked",
		"consent_id", c.ID,
		"actor_id", dto.ActorID,
		"reason", dto.Reason)

	return c, nil
}

// CheckConsent answers whether an active, unexpired granted consent covers
// the queried access. This is the primary entry point for the access gate.
func (s *Service) CheckConsent(ctx context.Context, q CheckQuery) (*Verification, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	granted, err := s.repo.FindGranted(ctx, q.PatientID, q.HospitalID, q.ConsentType)
	if err != nil {
		// A storage failure must propagate; it is neither a grant nor a deny.
		s.logger.Error("consent lookup failed", "error", err, "patient_id", q.PatientID)
		return nil, err
	}

	now := s.now()
	target := AccessTarget{DocumentID: q.DocumentID, DocumentType: q.DocumentType}
	for _, c := range granted {
		if c.IsPastExpiry(now) {
			continue
		}
		if c.Covers(target) {
			return &Verification{
				Granted:   true,
				ConsentID: c.ID,
				ExpiresAt: c.ExpiresAt,
			}, nil
		}
	}

	return &Verification{
		Granted: false,
		Reason:  fmt.Sprintf("no active %s consent for patient", q.ConsentType),
	}, nil
}

func (s *Service) GetConsent(ctx context.Context, consentID string) (*Consent, error) {
	return s.repo.GetByID(ctx, consentID)
}

func (s *Service) GetConsentHistory(ctx context.Context, consentID string) ([]*History, error) {
	if _, err := s.repo.GetByID(ctx, consentID); err != nil {
		return nil, err
	}
	return s.repo.HistoryForConsent(ctx, consentID)
}

// ExpireConsents batch-transitions overdue pending/granted consents to
// expired. Each transition is conditional on the status the row was read
// with, so a sweep racing a response, a revocation, or another sweep changes
// nothing on the losing side; the sweep is idempotent.
func (s *Service) ExpireConsents(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.repo.ListExpirable(ctx, now, s.sweepBatch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, c := range overdue {
		prior := c.Status
		c.Expire(now)
		if err := s.repo.TransitionStatus(ctx, c, prior); err != nil {
			if err == ErrStaleTransition {
				continue
			}
			return expired, err
		}
		s.appendHistory(ctx, c.ID, HistoryActionExpired, "", ActorSystem, prior, "expiry sweep")
		s.publish(ctx, events.EventTypeConsentExpired, c)
		expired++
	}

	if expired > 0 {
		s.logger.Info("consent expiry sweep completed", "expired", expired, "scanned", len(overdue))
	}
	return expired, nil
}

func (s *Service) appendHistory(ctx context.Context, consentID, action, actorID string, actorType ActorType, prior Status, reason string) {
	entry := &History{
		ConsentID:   consentID,
		Action:      action,
		ActorID:     actorID,
		ActorType:   actorType,
		PriorStatus: prior,
		Reason:      reason,
		CreatedAt:   s.now(),
	}
	if err := s.repo.AppendHistory(ctx, entry); err != nil {
		// History writes must not mask the transition outcome.
		s.logger.Error("failed to append consent history",
			"error", err, "consent_id", consentID, "action", action)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, c *Consent) {
	if s.publisher == nil {
		return
	}
	ev := events.NewConsentEvent(eventType, c.ID, c.PatientID, c.HospitalID, string(c.ConsentType), string(c.Status))
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error("failed to publish consent event", "error", err, "event_type", eventType)
	}
}
