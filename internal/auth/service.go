package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/adityamishra28203/healthvault/internal/staff"
)

// StaffRepository resolves hospital users for authentication.
type StaffRepository interface {
	GetByEmail(ctx context.Context, email string) (*staff.HospitalUser, error)
	GetByID(ctx context.Context, id string) (*staff.HospitalUser, error)
}

// Service authenticates hospital staff and issues JWTs carrying the subject
// and hospital ids the access gate needs.
type Service struct {
	staffRepo      StaffRepository
	tokenGenerator TokenGeneratorAPI
	bcryptCost     int
}

func NewService(staffRepo StaffRepository, tokenGen TokenGeneratorAPI) *Service {
	return &Service{
		staffRepo:      staffRepo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcrypt.DefaultCost,
	}
}

// Authenticate validates credentials and returns tokens. Only active staff
// may log in; suspended and pending accounts are rejected.
func (s *Service) Authenticate(dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	u, err := s.staffRepo.GetByEmail(context.Background(), dto.Email)
	if err != nil {
		return AuthTokens{}, ErrInvalidCredentials
	}

	if err := VerifyPassword(u.PasswordHash, dto.Password); err != nil {
		return AuthTokens{}, ErrInvalidCredentials
	}

	if !u.IsActive() {
		return AuthTokens{}, ErrUserInactive
	}

	accessToken, err := s.tokenGenerator.GenerateAccessToken(u.ID, u.HospitalID, u.Email)
	if err != nil {
		return AuthTokens{}, err
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(u.ID, u.HospitalID, u.Email)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// RefreshTokens validates a refresh token and returns a new token pair.
func (s *Service) RefreshTokens(refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	u, err := s.staffRepo.GetByID(context.Background(), claims.UserID)
	if err != nil {
		return AuthTokens{}, ErrInvalidToken
	}
	if !u.IsActive() {
		return AuthTokens{}, ErrUserInactive
	}

	accessToken, err := s.tokenGenerator.GenerateAccessToken(u.ID, u.HospitalID, u.Email)
	if err != nil {
		return AuthTokens{}, err
	}

	newRefreshToken, err := s.tokenGenerator.GenerateRefreshToken(u.ID, u.HospitalID, u.Email)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

// GetSubject loads the authenticated hospital user.
func (s *Service) GetSubject(userID string) (*staff.HospitalUser, error) {
	return s.staffRepo.GetByID(context.Background(), userID)
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}
