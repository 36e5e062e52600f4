package gate_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adityamishra28203/healthvault/internal"
	"github.com/adityamishra28203/healthvault/internal/authz"
	"github.com/adityamishra28203/healthvault/internal/consent"
	"github.com/adityamishra28203/healthvault/internal/core/events"
	"github.com/adityamishra28203/healthvault/internal/gate"
	"github.com/adityamishra28203/healthvault/internal/tenant"
)

func TestAccessGate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Access Gate Suite")
}

type mockConsentChecker struct {
	verification *consent.Verification
	err          error
}

func (m *mockConsentChecker) CheckConsent(_ context.Context, _ consent.CheckQuery) (*consent.Verification, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.verification, nil
}

type mockAuthorizer struct {
	decision authz.Decision
	err      error
}

func (m *mockAuthorizer) CheckPermission(_ context.Context, _, _, _, _ string, _ authz.EvalContext) (authz.Decision, error) {
	if m.err != nil {
		return authz.Decision{}, m.err
	}
	return m.decision, nil
}

type mockQuotaManager struct {
	err   error
	calls int
}

func (m *mockQuotaManager) IncrementUsage(_ context.Context, _, _ string, _ int64) error {
	m.calls++
	return m.err
}

type mockAuditRepository struct {
	entries     []*gate.AccessLog
	appendError error
}

func (m *mockAuditRepository) Append(_ context.Context, entry *gate.AccessLog) error {
	if m.appendError != nil {
		return m.appendError
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) CountDocumentWrites(_ context.Context, _ string, _ time.Time) (int, error) {
	return 0, nil
}

func (m *mockAuditRepository) ListForResource(_ context.Context, resourceID string, _, _ int) ([]*gate.AccessLog, error) {
	var out []*gate.AccessLog
	for _, e := range m.entries {
		if e.ResourceID == resourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockAuditRepository) ListForPatient(_ context.Context, patientID string, _, _ int) ([]*gate.AccessLog, error) {
	var out []*gate.AccessLog
	for _, e := range m.entries {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockEventSink struct {
	published []events.Event
}

func (m *mockEventSink) Publish(_ context.Context, event events.Event) error {
	m.published = append(m.published, event)
	return nil
}

var _ = Describe("Gate", func() {
	var (
		g         *gate.Gate
		consents  *mockConsentChecker
		engine    *mockAuthorizer
		quotas    *mockQuotaManager
		audit     *mockAuditRepository
		publisher *mockEventSink
		ctx       context.Context
	)

	request := func() gate.AccessRequest {
		return gate.AccessRequest{
			UserID:      "doc-1",
			HospitalID:  "hospital-1",
			TenantID:    "tenant-1",
			PatientID:   "patient-1",
			Resource:    authz.ResourceDocuments,
			Action:      authz.ActionRead,
			ResourceID:  "doc-42",
			AccessType:  gate.AccessView,
			ConsentType: consent.TypeViewRecords,
		}
	}

	BeforeEach(func() {
		consents = &mockConsentChecker{verification: &consent.Verification{Granted: true, ConsentID: "consent-1"}}
		engine = &mockAuthorizer{decision: authz.Decision{Granted: true}}
		quotas = &mockQuotaManager{}
		audit = &mockAuditRepository{}
		publisher = &mockEventSink{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		g = gate.NewGate(consents, engine, quotas, audit, publisher, logger)
		ctx = context.Background()
	})

	Context("when consent and permission both hold", func() {
		It("should allow and record the consent used", func() {
			decision, err := g.Authorize(ctx, request())

			Expect(err).ToNot(HaveOccurred())
			Expect(decision.Allowed).To(BeTrue())
			Expect(decision.ConsentID).To(Equal("consent-1"))
		})

		It("should append a granted audit row", func() {
			_, err := g.Authorize(ctx, request())

			Expect(err).ToNot(HaveOccurred())
			Expect(audit.entries).To(HaveLen(1))
			entry := audit.entries[0]
			Expect(entry.Granted).To(BeTrue())
			Expect(entry.AccessorID).To(Equal("doc-1"))
			Expect(entry.PatientID).To(Equal("patient-1"))
			Expect(entry.ConsentID).To(Equal("consent-1"))
			Expect(entry.AccessType).To(Equal(gate.AccessView))
		})

		It("should not touch tenant quota on reads", func() {
			_, err := g.Authorize(ctx, request())

			Expect(err).ToNot(HaveOccurred())
			Expect(quotas.calls).To(BeZero())
		})

		It("should publish nothing", func() {
			_, err := g.Authorize(ctx, request())

			Expect(err).ToNot(HaveOccurred())
			Expect(publisher.published).To(BeEmpty())
		})
	})

	Context("when the patient has not granted consent", func() {
		BeforeEach(func() {
			consents.verification = &consent.Verification{Granted: false, Reason: "no active view_records consent for patient"}
		})

		It("should deny with the consent-required code before any RBAC evaluation", func() {
			decision, err := g.Authorize(ctx, request())

			Expect(err).ToNot(HaveOccurred())
			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Code).To(Equal(internal.ErrCodeConsentRequired))
		})

		It("should still append an audit row", func() {
			_, err := g.Authorize(ctx, request())

			Expect(err).ToNot(HaveOccurred())
			Expect(audit.entries).To(HaveLen(1))
			Expect(audit.entries[0].Granted).To(BeFalse())
			Expect(audit.entries[0].ReasonCode).To(Equal(string(internal.ErrCodeConsentRequired)))
		})

		It("should publish an access denied event", func() {
			_, err := g.Authorize(ctx, request())

			Expect(err).ToNot(HaveOccurred())
			Expect(publisher.published).To(HaveLen(1))
			Expect(publisher.published[0].EventType()).To(Equal(events.EventTypeAccessDenied))
		})
	})

	Context("when RBAC denies", func() {
		BeforeEach(func() {
			engine.decision = authz.Decision{
				Granted: false,
				Code:    internal.ErrCodeRoleInsufficient,
				Reason:  "role viewer has no upload permission on documents",
			}
		})

		It("should surface the engine's code and reason", func() {
			decision, err := g.Authorize(ctx, request())

			Expect(err).ToNot(HaveOccurred())
			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Code).To(Equal(internal.ErrCodeRoleInsufficient))
			Expect(decision.Reason).ToNot(BeEmpty())
		})

		It("should append a denied audit row", func() {
			_, err := g.Authorize(ctx, request())

			Expect(err).ToNot(HaveOccurred())
			Expect(audit.entries).To(HaveLen(1))
			Expect(audit.entries[0].Granted).To(BeFalse())
		})
	})

	Context("when the write consumes tenant quota", func() {
		writeRequest := func() gate.AccessRequest {
			req := request()
			req.Action = authz.ActionUpload
			req.AccessType = gate.AccessUpload
			req.ConsentType = consent.TypeUploadRecords
			req.QuotaResource = tenant.ResourceDocuments
			return req
		}

		It("should consume quota on a granted write", func() {
			decision, err := g.Authorize(ctx, writeRequest())

			Expect(err).ToNot(HaveOccurred())
			Expect(decision.Allowed).To(BeTrue())
			Expect(quotas.calls).To(Equal(1))
		})

		It("should deny when the tenant limit is exhausted", func() {
			quotas.err = tenant.ErrLimitExceeded

			decision, err := g.Authorize(ctx, writeRequest())

			Expect(err).ToNot(HaveOccurred())
			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Code).To(Equal(internal.ErrCodeLimitExceeded))
			Expect(audit.entries).To(HaveLen(1))
		})

		It("should deny when the tenant is suspended", func() {
			quotas.err = tenant.ErrTenantSuspended

			decision, err := g.Authorize(ctx, writeRequest())

			Expect(err).ToNot(HaveOccurred())
			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Code).To(Equal(internal.ErrCodeLimitExceeded))
		})

		It("should propagate a quota storage failure as an error", func() {
			quotas.err = errors.New("db down")

			_, err := g.Authorize(ctx, writeRequest())
			Expect(err).To(HaveOccurred())
		})
	})

	Context("infrastructure failures", func() {
		It("should propagate a consent lookup failure, never deny", func() {
			consents.err = errors.New("db down")

			decision, err := g.Authorize(ctx, request())

			Expect(err).To(HaveOccurred())
			Expect(decision).To(BeNil())
			Expect(audit.entries).To(BeEmpty())
		})

		It("should propagate an engine failure, never deny", func() {
			engine.err = errors.New("db down")

			decision, err := g.Authorize(ctx, request())

			Expect(err).To(HaveOccurred())
			Expect(decision).To(BeNil())
		})

		It("should keep the grant when only the audit write fails", func() {
			audit.appendError = errors.New("disk full")

			decision, err := g.Authorize(ctx, request())

			Expect(err).ToNot(HaveOccurred())
			Expect(decision.Allowed).To(BeTrue())
		})
	})

	Describe("AuditTrail", func() {
		It("should return the rows recorded for a patient", func() {
			_, err := g.Authorize(ctx, request())
			Expect(err).ToNot(HaveOccurred())

			consents.verification = &consent.Verification{Granted: false, Reason: "revoked"}
			_, err = g.Authorize(ctx, request())
			Expect(err).ToNot(HaveOccurred())

			trail, err := g.AuditTrail(ctx, "patient-1", 10, 0)
			Expect(err).ToNot(HaveOccurred())
			Expect(trail).To(HaveLen(2))
		})
	})
})
