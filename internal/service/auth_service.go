package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/model"
)

// Common auth errors.
var (
	ErrTokenRevoked = errors.New("token has been revoked")
	ErrNoSubject    = errors.New("token subject is required")
)

// TokenType distinguishes platform services from students following their
// own attempt.
type TokenType string

const (
	TokenTypeService TokenType = "service"
	TokenTypeStudent TokenType = "student"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   TokenType `json:"token_type"`
	Permissions []string  `json:"permissions,omitempty"` // Service only
	AttemptID   string    `json:"attempt_id,omitempty"`  // Student only
}

// HasPermission reports whether the token grants p.
func (c *Claims) HasPermission(p model.Permission) bool {
	return slices.Contains(c.Permissions, string(p))
}

// RevocationStore remembers revoked token IDs until they would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthService issues and validates the JWTs guarding the API.
type AuthService struct {
	cfg     *config.Config
	revoked RevocationStore
	now     func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, revoked RevocationStore) *AuthService {
	return &AuthService{cfg: cfg, revoked: revoked, now: time.Now}
}

// GenerateServiceToken creates a JWT for a platform service with permissions embedded.
func (s *AuthService) GenerateServiceToken(subject string, permissions []model.Permission) (string, *Claims, error) {
	if subject == "" {
		return "", nil, ErrNoSubject
	}
	codes := make([]string, 0, len(permissions))
	for _, p := range permissions {
		codes = append(codes, string(p))
	}
	claims := s.newClaims(subject, TokenTypeService)
	claims.Permissions = codes
	signed, err := s.sign(claims)
	return signed, claims, err
}

// GenerateStudentToken creates a JWT that only allows following one attempt's feedback.
func (s *AuthService) GenerateStudentToken(userID string, attemptID uuid.UUID) (string, error) {
	if userID == "" {
		return "", ErrNoSubject
	}
	claims := s.newClaims(userID, TokenTypeStudent)
	claims.AttemptID = attemptID.String()
	return s.sign(claims)
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// CheckNotRevoked fails with ErrTokenRevoked when the token's ID was revoked.
func (s *AuthService) CheckNotRevoked(ctx context.Context, claims *Claims) error {
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

// RevokeToken revokes a token ID for the longest lifetime a token can have.
func (s *AuthService) RevokeToken(ctx context.Context, jti string) error {
	if jti == "" {
		return errors.New("token id is required")
	}
	return s.revoked.Revoke(ctx, jti, s.cfg.JWTExpiry)
}

func (s *AuthService) newClaims(subject string, typ TokenType) *Claims {
	now := s.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: typ,
	}
}

func (s *AuthService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
