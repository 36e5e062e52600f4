package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/adityamishra28203/healthvault/internal/staff"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

// Mock StaffRepository for testing
type mockStaffRepository struct {
	byEmail       map[string]*staff.HospitalUser
	byID          map[string]*staff.HospitalUser
	returnError   bool
	errorToReturn error
}

func newMockStaffRepository() *mockStaffRepository {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.DefaultCost)

	users := []*staff.HospitalUser{
		{
			ID:           "user-1",
			HospitalID:   "hospital-central",
			Email:        "doctor@hospital.example",
			PasswordHash: string(hashedPassword),
			Role:         staff.RoleDoctor,
			Status:       staff.StatusActive,
		},
		{
			ID:           "user-2",
			HospitalID:   "hospital-central",
			Email:        "admin@hospital.example",
			PasswordHash: string(hashedPassword),
			Role:         staff.RoleAdmin,
			Status:       staff.StatusActive,
		},
		{
			ID:           "user-3",
			HospitalID:   "hospital-central",
			Email:        "suspended@hospital.example",
			PasswordHash: string(hashedPassword),
			Role:         staff.RoleNurse,
			Status:       staff.StatusSuspended,
		},
	}

	m := &mockStaffRepository{
		byEmail: make(map[string]*staff.HospitalUser),
		byID:    make(map[string]*staff.HospitalUser),
	}
	for _, u := range users {
		m.byEmail[u.Email] = u
		m.byID[u.ID] = u
	}
	return m
}

func (m *mockStaffRepository) GetByEmail(_ context.Context, email string) (*staff.HospitalUser, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if u, exists := m.byEmail[email]; exists {
		return u, nil
	}
	return nil, staff.ErrNotFound
}

func (m *mockStaffRepository) GetByID(_ context.Context, id string) (*staff.HospitalUser, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if u, exists := m.byID[id]; exists {
		return u, nil
	}
	return nil, staff.ErrNotFound
}

var _ = ginkgo.Describe("Auth Service", func() {
	var (
		service   *Service
		staffRepo *mockStaffRepository
	)

	ginkgo.BeforeEach(func() {
		staffRepo = newMockStaffRepository()
		tokenGen := NewJWTTokenGenerator("test-access-secret", "test-refresh-secret")
		service = NewService(staffRepo, tokenGen)
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return access and refresh tokens", func() {
				dto := LoginDTO{
					Email:    "doctor@hospital.example",
					Password: "correct_password",
				}

				tokens, err := service.Authenticate(dto)

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.Equal(tokens.RefreshToken))
			})

			ginkgo.It("should embed the subject and hospital in the access token", func() {
				dto := LoginDTO{
					Email:    "admin@hospital.example",
					Password: "correct_password",
				}

				tokens, err := service.Authenticate(dto)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				claims, err := service.ValidateAccessToken(tokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal("user-2"))
				gomega.Expect(claims.HospitalID).To(gomega.Equal("hospital-central"))
				gomega.Expect(claims.Email).To(gomega.Equal("admin@hospital.example"))
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should return error for unknown email", func() {
				dto := LoginDTO{
					Email:    "nobody@hospital.example",
					Password: "any_password",
				}

				tokens, err := service.Authenticate(dto)

				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should return error for wrong password", func() {
				dto := LoginDTO{
					Email:    "doctor@hospital.example",
					Password: "wrong_password",
				}

				tokens, err := service.Authenticate(dto)

				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should not reveal whether repository lookups fail", func() {
				staffRepo.returnError = true
				staffRepo.errorToReturn = errors.New("connection refused")

				_, err := service.Authenticate(LoginDTO{
					Email:    "doctor@hospital.example",
					Password: "correct_password",
				})

				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
			})
		})

		ginkgo.Context("when the account is not active", func() {
			ginkgo.It("should reject suspended staff even with valid credentials", func() {
				dto := LoginDTO{
					Email:    "suspended@hospital.example",
					Password: "correct_password",
				}

				tokens, err := service.Authenticate(dto)

				gomega.Expect(err).To(gomega.Equal(ErrUserInactive))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when input validation fails", func() {
			ginkgo.It("should return validation error for empty email", func() {
				_, err := service.Authenticate(LoginDTO{Password: "x"})

				var vErr ValidationError
				gomega.Expect(errors.As(err, &vErr)).To(gomega.BeTrue())
			})

			ginkgo.It("should return validation error for empty password", func() {
				_, err := service.Authenticate(LoginDTO{Email: "doctor@hospital.example"})

				var vErr ValidationError
				gomega.Expect(errors.As(err, &vErr)).To(gomega.BeTrue())
			})
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		ginkgo.It("should issue a new token pair for a valid refresh token", func() {
			tokens, err := service.Authenticate(LoginDTO{
				Email:    "doctor@hospital.example",
				Password: "correct_password",
			})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			refreshed, err := service.RefreshTokens(tokens.RefreshToken)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(refreshed.AccessToken).ToNot(gomega.BeEmpty())
			gomega.Expect(refreshed.RefreshToken).ToNot(gomega.BeEmpty())
		})

		ginkgo.It("should reject garbage tokens", func() {
			_, err := service.RefreshTokens("not-a-token")

			gomega.Expect(err).To(gomega.Equal(ErrInvalidToken))
		})

		ginkgo.It("should reject refresh for staff who went inactive since login", func() {
			tokens, err := service.Authenticate(LoginDTO{
				Email:    "doctor@hospital.example",
				Password: "correct_password",
			})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			staffRepo.byID["user-1"].Status = staff.StatusInactive

			_, err = service.RefreshTokens(tokens.RefreshToken)
			gomega.Expect(err).To(gomega.Equal(ErrUserInactive))
		})
	})

	ginkgo.Describe("GetSubject", func() {
		ginkgo.It("should load the hospital user by id", func() {
			u, err := service.GetSubject("user-2")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(u.Role).To(gomega.Equal(staff.RoleAdmin))
		})

		ginkgo.It("should surface not-found", func() {
			_, err := service.GetSubject("user-404")

			gomega.Expect(err).To(gomega.MatchError(staff.ErrNotFound))
		})
	})

	ginkgo.Describe("HashPassword", func() {
		ginkgo.It("should produce a hash that verifies", func() {
			hash, err := service.HashPassword("s3cret")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(VerifyPassword(hash, "s3cret")).To(gomega.Succeed())
			gomega.Expect(VerifyPassword(hash, "other")).ToNot(gomega.Succeed())
		})
	})
})
