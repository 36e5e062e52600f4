package tenant_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adityamishra28203/healthvault/internal/tenant"
)

func TestTenantService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Tenant Service Suite")
}

// Mock repository enforcing the same conditional-increment contract as the
// real storage layer.
type mockTenantRepository struct {
	tenants     map[string]*tenant.Tenant
	usage       map[string]map[string]*tenant.Usage
	createError error
}

func newMockTenantRepository() *mockTenantRepository {
	return &mockTenantRepository{
		tenants: make(map[string]*tenant.Tenant),
		usage:   make(map[string]map[string]*tenant.Usage),
	}
}

func (m *mockTenantRepository) Create(_ context.Context, t *tenant.Tenant) error {
	if m.createError != nil {
		return m.createError
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *mockTenantRepository) GetByID(_ context.Context, id string) (*tenant.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTenantRepository) GetUsage(_ context.Context, tenantID, resource string) (*tenant.Usage, error) {
	u, ok := m.usage[tenantID][resource]
	if !ok {
		return nil, tenant.ErrUsageNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockTenantRepository) ListUsage(_ context.Context, tenantID string) ([]tenant.Usage, error) {
	var out []tenant.Usage
	for _, u := range m.usage[tenantID] {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockTenantRepository) InitUsage(_ context.Context, tenantID string, limits map[string]int64) error {
	if m.usage[tenantID] == nil {
		m.usage[tenantID] = make(map[string]*tenant.Usage)
	}
	for resource, limit := range limits {
		if _, exists := m.usage[tenantID][resource]; exists {
			continue
		}
		m.usage[tenantID][resource] = &tenant.Usage{
			TenantID: tenantID,
			Resource: resource,
			Limit:    limit,
		}
	}
	return nil
}

func (m *mockTenantRepository) IncrementUsage(_ context.Context, tenantID, resource string, by int64) error {
	u, ok := m.usage[tenantID][resource]
	if !ok {
		return tenant.ErrUsageNotFound
	}
	if u.Used+by > u.Limit {
		return tenant.ErrLimitExceeded
	}
	u.Used += by
	return nil
}

func (m *mockTenantRepository) RaiseLimits(_ context.Context, tenantID string, limits map[string]int64) error {
	for resource, limit := range limits {
		if u, ok := m.usage[tenantID][resource]; ok && u.Limit < limit {
			u.Limit = limit
		}
	}
	return nil
}

func (m *mockTenantRepository) UpdateTier(_ context.Context, t *tenant.Tenant) error {
	stored, ok := m.tenants[t.ID]
	if !ok {
		return tenant.ErrNotFound
	}
	stored.Tier = t.Tier
	stored.Features = t.Features
	return nil
}

func (m *mockTenantRepository) UpdateStatus(_ context.Context, tenantID string, status tenant.Status) error {
	stored, ok := m.tenants[tenantID]
	if !ok {
		return tenant.ErrNotFound
	}
	stored.Status = status
	return nil
}

var _ = Describe("TenantService", func() {
	var (
		svc      *tenant.Service
		mockRepo *mockTenantRepository
		ctx      context.Context
	)

	BeforeEach(func() {
		mockRepo = newMockTenantRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = tenant.NewService(mockRepo, logger)
		ctx = context.Background()
	})

	Describe("CreateTenant", func() {
		It("should provision the tenant with its tier's counters and features", func() {
			t, err := svc.CreateTenant(ctx, "City Hospital Group", "user-1", tenant.TierProfessional)

			Expect(err).ToNot(HaveOccurred())
			Expect(t.ID).ToNot(BeEmpty())
			Expect(t.Status).To(Equal(tenant.StatusActive))
			Expect(t.Features.MFA).To(BeTrue())
			Expect(t.Features.SSO).To(BeFalse())

			usage, err := svc.GetUsage(ctx, t.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(usage).To(HaveLen(len(tenant.TrackedResources)))
		})

		It("should reject an unknown tier", func() {
			_, err := svc.CreateTenant(ctx, "x", "user-1", tenant.Tier("platinum"))
			Expect(err).To(MatchError(tenant.ErrInvalidTier))
		})
	})

	Describe("CheckLimit", func() {
		var tenantID string

		BeforeEach(func() {
			t, err := svc.CreateTenant(ctx, "Clinic", "user-1", tenant.TierBasic)
			Expect(err).ToNot(HaveOccurred())
			tenantID = t.ID
		})

		It("should report headroom on a fresh counter", func() {
			status, err := svc.CheckLimit(ctx, tenantID, tenant.ResourceUsers)

			Expect(err).ToNot(HaveOccurred())
			Expect(status.CanProceed).To(BeTrue())
			Expect(status.Used).To(BeZero())
			Expect(status.Limit).To(Equal(int64(10)))
			Expect(status.Remaining).To(Equal(int64(10)))
		})

		It("should report exhaustion without an error", func() {
			for i := 0; i < 10; i++ {
				Expect(svc.IncrementUsage(ctx, tenantID, tenant.ResourceUsers, 1)).To(Succeed())
			}

			status, err := svc.CheckLimit(ctx, tenantID, tenant.ResourceUsers)

			Expect(err).ToNot(HaveOccurred())
			Expect(status.CanProceed).To(BeFalse())
			Expect(status.Remaining).To(BeZero())
		})

		It("should reject an untracked resource", func() {
			_, err := svc.CheckLimit(ctx, tenantID, "gpus")
			Expect(err).To(MatchError(tenant.ErrUnknownResource))
		})
	})

	Describe("IncrementUsage", func() {
		var tenantID string

		BeforeEach(func() {
			t, err := svc.CreateTenant(ctx, "Clinic", "user-1", tenant.TierBasic)
			Expect(err).ToNot(HaveOccurred())
			tenantID = t.ID
		})

		It("should consume quota up to the limit and then fail", func() {
			Expect(svc.IncrementUsage(ctx, tenantID, tenant.ResourceHospitals, 1)).To(Succeed())

			err := svc.IncrementUsage(ctx, tenantID, tenant.ResourceHospitals, 1)
			Expect(err).To(MatchError(tenant.ErrLimitExceeded))
		})

		It("should reject an increment that would cross the limit even partially", func() {
			Expect(svc.IncrementUsage(ctx, tenantID, tenant.ResourceUsers, 8)).To(Succeed())

			err := svc.IncrementUsage(ctx, tenantID, tenant.ResourceUsers, 3)
			Expect(err).To(MatchError(tenant.ErrLimitExceeded))

			status, checkErr := svc.CheckLimit(ctx, tenantID, tenant.ResourceUsers)
			Expect(checkErr).ToNot(HaveOccurred())
			Expect(status.Used).To(Equal(int64(8)))
		})

		It("should reject a non-positive amount", func() {
			Expect(svc.IncrementUsage(ctx, tenantID, tenant.ResourceUsers, 0)).
				To(MatchError(tenant.ValidationError{Msg: "increment must be positive"}))
			Expect(svc.IncrementUsage(ctx, tenantID, tenant.ResourceUsers, -2)).
				To(MatchError(tenant.ValidationError{Msg: "increment must be positive"}))

			status, err := svc.CheckLimit(ctx, tenantID, tenant.ResourceUsers)
			Expect(err).ToNot(HaveOccurred())
			Expect(status.Used).To(BeZero())
		})

		It("should refuse consumption for a suspended tenant", func() {
			Expect(svc.SuspendTenant(ctx, tenantID, "billing dispute")).To(Succeed())

			err := svc.IncrementUsage(ctx, tenantID, tenant.ResourceUsers, 1)
			Expect(err).To(MatchError(tenant.ErrTenantSuspended))
		})

		It("should still answer reads for a suspended tenant", func() {
			Expect(svc.SuspendTenant(ctx, tenantID, "billing dispute")).To(Succeed())

			_, err := svc.CheckLimit(ctx, tenantID, tenant.ResourceUsers)
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("UpgradeTier", func() {
		var tenantID string

		BeforeEach(func() {
			t, err := svc.CreateTenant(ctx, "Clinic", "user-1", tenant.TierBasic)
			Expect(err).ToNot(HaveOccurred())
			tenantID = t.ID
		})

		It("should raise limits and recompute features", func() {
			t, err := svc.UpgradeTier(ctx, tenantID, tenant.TierEnterprise)

			Expect(err).ToNot(HaveOccurred())
			Expect(t.Tier).To(Equal(tenant.TierEnterprise))
			Expect(t.Features.SSO).To(BeTrue())

			status, err := svc.CheckLimit(ctx, tenantID, tenant.ResourceUsers)
			Expect(err).ToNot(HaveOccurred())
			Expect(status.Limit).To(Equal(int64(500)))
		})

		It("should preserve usage across an upgrade", func() {
			Expect(svc.IncrementUsage(ctx, tenantID, tenant.ResourceUsers, 5)).To(Succeed())

			_, err := svc.UpgradeTier(ctx, tenantID, tenant.TierProfessional)
			Expect(err).ToNot(HaveOccurred())

			status, err := svc.CheckLimit(ctx, tenantID, tenant.ResourceUsers)
			Expect(err).ToNot(HaveOccurred())
			Expect(status.Used).To(Equal(int64(5)))
			Expect(status.Limit).To(Equal(int64(50)))
		})

		It("should reject a downgrade", func() {
			_, err := svc.UpgradeTier(ctx, tenantID, tenant.TierProfessional)
			Expect(err).ToNot(HaveOccurred())

			_, err = svc.UpgradeTier(ctx, tenantID, tenant.TierBasic)
			Expect(err).To(MatchError(tenant.ErrTierNotHigher))
		})

		It("should reject a same-tier change", func() {
			_, err := svc.UpgradeTier(ctx, tenantID, tenant.TierBasic)
			Expect(err).To(MatchError(tenant.ErrTierNotHigher))
		})

		It("should reject an unknown target tier", func() {
			_, err := svc.UpgradeTier(ctx, tenantID, tenant.Tier("platinum"))
			Expect(err).To(MatchError(tenant.ErrInvalidTier))
		})
	})

	Describe("SuspendTenant", func() {
		It("should fail for a missing tenant", func() {
			err := svc.SuspendTenant(ctx, "missing", "reason")
			Expect(err).To(MatchError(tenant.ErrNotFound))
		})
	})
})
