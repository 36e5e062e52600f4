package tenant

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository defines data access for tenants and their usage counters.
// IncrementUsage must be a single atomic conditional update: the storage
// layer applies the increment only while the result stays within the limit,
// and reports ErrLimitExceeded otherwise. Read-check-write sequences are not
// acceptable implementations.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetUsage(ctx context.Context, tenantID, resource string) (*Usage, error)
	ListUsage(ctx context.Context, tenantID string) ([]Usage, error)
	InitUsage(ctx context.Context, tenantID string, limits map[string]int64) error
	IncrementUsage(ctx context.Context, tenantID, resource string, by int64) error
	RaiseLimits(ctx context.Context, tenantID string, limits map[string]int64) error
	UpdateTier(ctx context.Context, t *Tenant) error
	UpdateStatus(ctx context.Context, tenantID string, status Status) error
}

// Service enforces tier-based resource quotas.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateTenant provisions a tenant on a tier with that tier's counters.
func (s *Service) CreateTenant(ctx context.Context, name, ownerID string, tier Tier) (*Tenant, error) {
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}

	now := time.Now()
	t := &Tenant{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		Tier:      tier,
		Status:    StatusActive,
		Features:  FeaturesFor(tier),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		s.logger.Error("failed to create tenant", "error", err, "name", name)
		return nil, err
	}
	if err := s.repo.InitUsage(ctx, t.ID, LimitsFor(tier)); err != nil {
		s.logger.Error("failed to initialize tenant usage counters", "error", err, "tenant_id", t.ID)
		return nil, err
	}

	s.logger.Info("tenant created", "tenant_id", t.ID, "tier", tier)
	return t, nil
}

// CheckLimit is a pure read of one resource counter.
func (s *Service) CheckLimit(ctx context.Context, tenantID, resource string) (*LimitStatus, error) {
	if !IsTrackedResource(resource) {
		return nil, ErrUnknownResource
	}
	usage, err := s.repo.GetUsage(ctx, tenantID, resource)
	if err != nil {
		return nil, err
	}
	return &LimitStatus{
		CanProceed: usage.Used < usage.Limit,
		Resource:   resource,
		Used:       usage.Used,
		Limit:      usage.Limit,
		Remaining:  usage.Remaining(),
	}, nil
}

// IncrementUsage consumes quota. The repository applies the increment
// atomically, so concurrent increments race safely up to the limit and the
// first increment that would cross it fails with ErrLimitExceeded.
func (s *Service) IncrementUsage(ctx context.Context, tenantID, resource string, by int64) error {
	if !IsTrackedResource(resource) {
		return ErrUnknownResource
	}
	if by <= 0 {
		return ValidationError{Msg: "increment must be positive"}
	}

	t, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if t.Status == StatusSuspended {
		return ErrTenantSuspended
	}

	if err := s.repo.IncrementUsage(ctx, tenantID, resource, by); err != nil {
		if err == ErrLimitExceeded {
			s.logger.Warn("tenant quota exhausted",
				"tenant_id", tenantID, "resource", resource, "requested", by)
		}
		return err
	}
	return nil
}

// GetUsage returns every counter for the tenant.
func (s *Service) GetUsage(ctx context.Context, tenantID string) ([]Usage, error) {
	if _, err := s.repo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.repo.ListUsage(ctx, tenantID)
}

// UpgradeTier moves the tenant to a strictly higher tier, raising all limits
// to the new tier's table and recomputing feature flags. Limits never shrink.
func (s *Service) UpgradeTier(ctx context.Context, tenantID string, target Tier) (*Tenant, error) {
	if !target.Valid() {
		return nil, ErrInvalidTier
	}

	t, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !target.HigherThan(t.Tier) {
		s.logger.Warn("tier change rejected",
			"tenant_id", tenantID, "current", t.Tier, "target", target)
		return nil, ErrTierNotHigher
	}

	t.Tier = target
	t.Features = FeaturesFor(target)
	t.UpdatedAt = time.Now()

	if err := s.repo.UpdateTier(ctx, t); err != nil {
		return nil, err
	}
	if err := s.repo.RaiseLimits(ctx, tenantID, LimitsFor(target)); err != nil {
		return nil, err
	}

	s.logger.Info("tenant tier upgraded", "tenant_id", tenantID, "tier", target)
	return t, nil
}

// SuspendTenant blocks further quota consumption. Reads remain possible.
func (s *Service) SuspendTenant(ctx context.Context, tenantID, reason string) error {
	if _, err := s.repo.GetByID(ctx, tenantID); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, tenantID, StatusSuspended); err != nil {
		return err
	}
	s.logger.Info("tenant suspended", "tenant_id", tenantID, "reason", reason)
	return nil
}
