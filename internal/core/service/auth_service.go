package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/opway/opway/internal/core/domain"
	"github.com/opway/opway/internal/core/ports"
)

const minPasswordLen = 6

// AuthConfig holds the token and bootstrap settings of AuthService.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	// BootstrapAdminEmail, when set, is registered with the admin role.
	// Every other registration becomes a customer.
	BootstrapAdminEmail string
}

// AuthService implements registration, login, logout and identity lookup.
type AuthService struct {
	repo    ports.UserRepository
	revoker ports.TokenRevoker
	audit   ports.AuditSink
	cfg     AuthConfig
	log     zerolog.Logger
	now     func() time.Time
}

func NewAuthService(repo ports.UserRepository, revoker ports.TokenRevoker, audit ports.AuditSink, cfg AuthConfig, log zerolog.Logger) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if audit == nil {
		audit = noopAudit{}
	}
	cfg.BootstrapAdminEmail = domain.NormalizeEmail(cfg.BootstrapAdminEmail)
	return &AuthService{
		repo:    repo,
		revoker: revoker,
		audit:   audit,
		cfg:     cfg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", domain.ErrValidation)
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := domain.RoleCustomer
	if s.cfg.BootstrapAdminEmail != "" && email == s.cfg.BootstrapAdminEmail {
		role = domain.RoleAdmin
	}

	now := s.now()
	created, err := s.repo.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.generateToken(created)
	if err != nil {
		return nil, err
	}

	s.audit.Record(domain.AuthEvent{Kind: domain.EventRegister, UserID: created.ID, Email: created.Email, At: now})
	s.log.Info().Str("user_id", created.ID).Str("role", string(created.Role)).Msg("user registered")

	return &ports.AuthResult{Token: token, User: created}, nil
}

// Login verifies the credentials. Unknown emails and wrong passwords both
// yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.audit.Record(domain.AuthEvent{Kind: domain.EventLoginFailed, Email: email, Detail: "unknown email", At: s.now()})
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.audit.Record(domain.AuthEvent{Kind: domain.EventLoginFailed, UserID: user.ID, Email: email, Detail: "password mismatch", At: s.now()})
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	s.audit.Record(domain.AuthEvent{Kind: domain.EventLogin, UserID: user.ID, Email: user.Email, At: s.now()})
	return &ports.AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrInvalidCredentials
	}
	return s.repo.FindByID(ctx, userID)
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims ports.TokenClaims) error {
	if claims.TokenID == "" {
		return fmt.Errorf("%w: token has no id", domain.ErrValidation)
	}
	if s.revoker != nil && claims.ExpiresAt.After(s.now()) {
		if err := s.revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
	}

	s.audit.Record(domain.AuthEvent{Kind: domain.EventLogout, UserID: claims.UserID, Email: claims.Email, At: s.now()})
	return nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.TokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type noopAudit struct{}

func (noopAudit) Record(domain.AuthEvent) {}
