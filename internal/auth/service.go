package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	errors "github.com/reimbursehq/reimbursement-service/internal"
	"golang.org/x/crypto/bcrypt"
)

// Credential is the subset of the employee record the login flow needs.
type Credential struct {
	ID           string
	Name         string
	Email        string
	Role         string
	Active       bool
	PasswordHash string
}

// CredentialStore resolves login emails to stored credentials.
type CredentialStore interface {
	GetCredentialByEmail(ctx context.Context, email string) (*Credential, error)
}

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (dto LoginDTO) Validate() *errors.AppError {
	if strings.TrimSpace(dto.Email) == "" {
		return errors.NewValidationFieldError("email", "email is required", errors.ErrCodeValidationFailed)
	}
	if dto.Password == "" {
		return errors.NewValidationFieldError("password", "password is required", errors.ErrCodeValidationFailed)
	}
	return nil
}

type AuthTokens struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Claims carries the full actor identity so downstream handlers never
// need a second lookup to authorize a request.
type Claims struct {
	UserID      string   `json:"user_id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

type Service struct {
	store    CredentialStore
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store CredentialStore, secret string, tokenTTL time.Duration, logger *slog.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Minute
	}
	return &Service{
		store:    store,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Login validates credentials and issues a signed access token. Lookup
// failures and bad passwords both map to the same error so the response
// does not reveal which emails exist.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(dto.Email))
	cred, err := s.store.GetCredentialByEmail(ctx, email)
	if err != nil {
		s.logger.Warn("login failed: unknown email", "email", email)
		return nil, errors.ErrInvalidCredentials
	}
	if !cred.Active {
		return nil, errors.ErrEmployeeInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(dto.Password)); err != nil {
		s.logger.Warn("login failed: bad password", "employee_id", cred.ID)
		return nil, errors.ErrInvalidCredentials
	}

	token, err := s.generateToken(cred)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err, "employee_id", cred.ID)
		return nil, errors.NewInternalError("failed to issue token", err)
	}

	s.logger.Info("employee logged in", "employee_id", cred.ID, "role", cred.Role)
	return &AuthTokens{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
	}, nil
}

func (s *Service) generateToken(cred *Credential) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:      cred.ID,
		Name:        cred.Name,
		Email:       cred.Email,
		Role:        cred.Role,
		Permissions: PermissionsForRole(cred.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies an access token and rebuilds the
// Actor from its claims.
func (s *Service) ValidateToken(tokenString string) (*Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if strings.Contains(err.Error(), "expired") {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.ErrInvalidToken
	}

	return &Actor{
		ID:          claims.UserID,
		Name:        claims.Name,
		Email:       claims.Email,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	}, nil
}
