package authz_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adityamishra28203/healthvault/internal"
	"github.com/adityamishra28203/healthvault/internal/authz"
	"github.com/adityamishra28203/healthvault/internal/staff"
)

type mockSubjectRepository struct {
	users    map[string]*staff.HospitalUser
	getError error
}

func newMockSubjectRepository() *mockSubjectRepository {
	return &mockSubjectRepository{users: make(map[string]*staff.HospitalUser)}
}

func (m *mockSubjectRepository) GetByID(_ context.Context, id string) (*staff.HospitalUser, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	u, ok := m.users[id]
	if !ok {
		return nil, staff.ErrNotFound
	}
	return u, nil
}

type mockWriteCounter struct {
	count      int
	countError error
}

func (m *mockWriteCounter) CountDocumentWrites(_ context.Context, _ string, _ time.Time) (int, error) {
	if m.countError != nil {
		return 0, m.countError
	}
	return m.count, nil
}

var _ = Describe("Engine", func() {
	var (
		engine   *authz.Engine
		subjects *mockSubjectRepository
		writes   *mockWriteCounter
		clock    time.Time
		ctx      context.Context
	)

	addUser := func(id string, role staff.Role, mutate ...func(*staff.HospitalUser)) *staff.HospitalUser {
		u := &staff.HospitalUser{
			ID:         id,
			HospitalID: "hospital-1",
			Email:      id + "@hospital.example",
			Role:       role,
			Status:     staff.StatusActive,
		}
		for _, fn := range mutate {
			fn(u)
		}
		subjects.users[id] = u
		return u
	}

	BeforeEach(func() {
		subjects = newMockSubjectRepository()
		writes = &mockWriteCounter{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		// Wednesday 10:30, inside every configured window.
		clock = time.Date(2025, 6, 11, 10, 30, 0, 0, time.UTC)
		engine = authz.NewEngine(subjects, writes, authz.NewCatalog(), logger).
			WithClock(func() time.Time { return clock })
		ctx = context.Background()
	})

	Describe("CheckPermission", func() {
		It("should grant a doctor reading documents", func() {
			addUser("doc-1", staff.RoleDoctor)

			d, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionRead, authz.EvalContext{})

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeTrue())
		})

		It("should deny an inactive user", func() {
			addUser("doc-1", staff.RoleDoctor, func(u *staff.HospitalUser) {
				u.Status = staff.StatusSuspended
			})

			d, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionRead, authz.EvalContext{})

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeFalse())
			Expect(d.Code).To(Equal(internal.ErrCodeUserInactive))
		})

		It("should deny a user from another hospital", func() {
			addUser("doc-1", staff.RoleDoctor)

			d, err := engine.CheckPermission(ctx, "doc-1", "hospital-2", authz.ResourceDocuments, authz.ActionRead, authz.EvalContext{})

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeFalse())
			Expect(d.Code).To(Equal(internal.ErrCodeUserInactive))
		})

		It("should deny outside the role's allowed hours", func() {
			addUser("clerk-1", staff.RoleBillingClerk)
			clock = time.Date(2025, 6, 11, 20, 0, 0, 0, time.UTC)

			d, err := engine.CheckPermission(ctx, "clerk-1", "hospital-1", authz.ResourceBilling, authz.ActionRead, authz.EvalContext{})

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeFalse())
			Expect(d.Code).To(Equal(internal.ErrCodeOutsideAllowedHours))
		})

		It("should deny weekend access for weekend-blocked roles", func() {
			addUser("clerk-1", staff.RoleBillingClerk)
			clock = time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC) // Saturday

			d, err := engine.CheckPermission(ctx, "clerk-1", "hospital-1", authz.ResourceBilling, authz.ActionRead, authz.EvalContext{})

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeFalse())
			Expect(d.Code).To(Equal(internal.ErrCodeOutsideAllowedHours))
		})

		It("should let doctors work at any hour", func() {
			addUser("doc-1", staff.RoleDoctor)
			clock = time.Date(2025, 6, 14, 3, 0, 0, 0, time.UTC) // Saturday 03:00

			d, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionRead, authz.EvalContext{})

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeTrue())
		})

		It("should deny an action the role does not have", func() {
			addUser("viewer-1", staff.RoleViewer)

			d, err := engine.CheckPermission(ctx, "viewer-1", "hospital-1", authz.ResourceDocuments, authz.ActionUpload, authz.EvalContext{})

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeFalse())
			Expect(d.Code).To(Equal(internal.ErrCodeRoleInsufficient))
		})

		It("should grant through the extra-permission overlay", func() {
			addUser("viewer-1", staff.RoleViewer, func(u *staff.HospitalUser) {
				u.ExtraPermissions = []string{"documents:upload"}
			})

			d, err := engine.CheckPermission(ctx, "viewer-1", "hospital-1", authz.ResourceDocuments, authz.ActionUpload, authz.EvalContext{})

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeTrue())
		})

		It("should grant through a resource wildcard overlay", func() {
			addUser("viewer-1", staff.RoleViewer, func(u *staff.HospitalUser) {
				u.ExtraPermissions = []string{"reports:*"}
			})

			d, err := engine.CheckPermission(ctx, "viewer-1", "hospital-1", authz.ResourceReports, authz.ActionCreate, authz.EvalContext{})

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeTrue())
		})

		Context("document type allow-list", func() {
			BeforeEach(func() {
				addUser("doc-1", staff.RoleDoctor, func(u *staff.HospitalUser) {
					u.AccessControl.AllowedDocumentTypes = []string{"lab_results"}
				})
			})

			It("should grant a listed document type", func() {
				d, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionRead,
					authz.EvalContext{DocumentType: "lab_results"})

				Expect(err).ToNot(HaveOccurred())
				Expect(d.Granted).To(BeTrue())
			})

			It("should deny an unlisted document type", func() {
				d, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionRead,
					authz.EvalContext{DocumentType: "imaging"})

				Expect(err).ToNot(HaveOccurred())
				Expect(d.Granted).To(BeFalse())
				Expect(d.Code).To(Equal(internal.ErrCodeDocumentTypeNotAllowed))
			})

			It("should deny a document operation with no declared type", func() {
				d, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionRead,
					authz.EvalContext{})

				Expect(err).ToNot(HaveOccurred())
				Expect(d.Granted).To(BeFalse())
				Expect(d.Code).To(Equal(internal.ErrCodeDocumentTypeNotAllowed))
			})
		})

		Context("daily document quota", func() {
			BeforeEach(func() {
				addUser("doc-1", staff.RoleDoctor, func(u *staff.HospitalUser) {
					u.AccessControl.MaxDocumentsPerDay = 5
				})
			})

			It("should grant an upload under the quota", func() {
				writes.count = 4

				d, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionUpload, authz.EvalContext{})

				Expect(err).ToNot(HaveOccurred())
				Expect(d.Granted).To(BeTrue())
			})

			It("should deny an upload at the quota", func() {
				writes.count = 5

				d, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionUpload, authz.EvalContext{})

				Expect(err).ToNot(HaveOccurred())
				Expect(d.Granted).To(BeFalse())
				Expect(d.Code).To(Equal(internal.ErrCodeDailyQuotaExceeded))
			})

			It("should not count reads against the quota", func() {
				writes.count = 5

				d, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionRead, authz.EvalContext{})

				Expect(err).ToNot(HaveOccurred())
				Expect(d.Granted).To(BeTrue())
			})

			It("should propagate a counter failure as an error", func() {
				writes.countError = errors.New("db down")

				_, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionUpload, authz.EvalContext{})

				Expect(err).To(HaveOccurred())
			})
		})

		It("should propagate a subject lookup failure as an error", func() {
			subjects.getError = errors.New("db down")

			_, err := engine.CheckPermission(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionRead, authz.EvalContext{})

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Authorize", func() {
		It("should turn a denial into a forbidden error", func() {
			addUser("viewer-1", staff.RoleViewer)

			err := engine.Authorize(ctx, "viewer-1", "hospital-1", authz.ResourceDocuments, authz.ActionUpload, authz.EvalContext{})

			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeRoleInsufficient))
		})

		It("should return nil on a grant", func() {
			addUser("doc-1", staff.RoleDoctor)

			Expect(engine.Authorize(ctx, "doc-1", "hospital-1", authz.ResourceDocuments, authz.ActionRead, authz.EvalContext{})).To(Succeed())
		})
	})

	Describe("GetUserPermissions", func() {
		It("should merge catalog grants with the overlay", func() {
			addUser("viewer-1", staff.RoleViewer, func(u *staff.HospitalUser) {
				u.ExtraPermissions = []string{"reports:read"}
			})

			perms, err := engine.GetUserPermissions(ctx, "viewer-1")

			Expect(err).ToNot(HaveOccurred())
			Expect(perms).To(ContainElements("documents:read", "patients:read", "timeline:read", "reports:read"))
		})
	})

	Describe("CanAccessPatient", func() {
		It("should allow users with no assignment list any patient", func() {
			addUser("doc-1", staff.RoleDoctor)

			d, err := engine.CanAccessPatient(ctx, "doc-1", "hospital-1", "patient-42")

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeTrue())
		})

		It("should restrict users with an assignment list to it", func() {
			addUser("doc-1", staff.RoleDoctor, func(u *staff.HospitalUser) {
				u.AccessControl.AssignedPatients = []string{"patient-1"}
			})

			assigned, err := engine.CanAccessPatient(ctx, "doc-1", "hospital-1", "patient-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(assigned.Granted).To(BeTrue())

			other, err := engine.CanAccessPatient(ctx, "doc-1", "hospital-1", "patient-2")
			Expect(err).ToNot(HaveOccurred())
			Expect(other.Granted).To(BeFalse())
			Expect(other.Code).To(Equal(internal.ErrCodePatientNotAssigned))
		})
	})

	Describe("CanPerformEmergencyAccess", func() {
		It("should allow active emergency roles and admins", func() {
			addUser("doc-1", staff.RoleDoctor)
			addUser("admin-1", staff.RoleAdmin)
			addUser("clerk-1", staff.RoleBillingClerk)

			Expect(engine.CanPerformEmergencyAccess(ctx, "doc-1")).To(BeTrue())
			Expect(engine.CanPerformEmergencyAccess(ctx, "admin-1")).To(BeTrue())
			Expect(engine.CanPerformEmergencyAccess(ctx, "clerk-1")).To(BeFalse())
		})

		It("should refuse an inactive doctor", func() {
			addUser("doc-1", staff.RoleDoctor, func(u *staff.HospitalUser) {
				u.Status = staff.StatusInactive
			})

			Expect(engine.CanPerformEmergencyAccess(ctx, "doc-1")).To(BeFalse())
		})
	})

	Describe("CanManageUser", func() {
		It("should allow an active admin over a same-hospital user", func() {
			addUser("admin-1", staff.RoleAdmin)
			addUser("doc-1", staff.RoleDoctor)

			d, err := engine.CanManageUser(ctx, "admin-1", "doc-1")

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeTrue())
		})

		It("should refuse non-admin managers", func() {
			addUser("doc-1", staff.RoleDoctor)
			addUser("nurse-1", staff.RoleNurse)

			d, err := engine.CanManageUser(ctx, "doc-1", "nurse-1")

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeFalse())
			Expect(d.Code).To(Equal(internal.ErrCodeRoleInsufficient))
		})

		It("should refuse managing a user of another hospital", func() {
			addUser("admin-1", staff.RoleAdmin)
			addUser("doc-2", staff.RoleDoctor, func(u *staff.HospitalUser) {
				u.HospitalID = "hospital-2"
			})

			d, err := engine.CanManageUser(ctx, "admin-1", "doc-2")

			Expect(err).ToNot(HaveOccurred())
			Expect(d.Granted).To(BeFalse())
		})
	})
})
