// Package token issues and verifies the bearer tokens that authenticate API
// requests. Tokens are HMAC-SHA256 JWTs carrying the user's id, email and
// role, valid for 30 days.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/prepstack/prepstack/internal/model"
)

// TTL is the bearer token validity window.
const TTL = 30 * 24 * time.Hour

// ErrInvalidToken covers malformed, mis-signed and expired tokens alike so
// the caller cannot distinguish them.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the JWT claims embedded in every bearer token.
type Claims struct {
	UserID int64          `json:"userId"`
	Email  string         `json:"email"`
	Role   model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and verifies bearer tokens with a shared HMAC secret.
type Service struct {
	secret []byte
}

// New creates a token service. The secret must be non-empty.
func New(secret string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &Service{secret: []byte(secret)}, nil
}

// Issue signs a token for the user, expiring in TTL from now.
func (s *Service) Issue(u model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a raw token string.
func (s *Service) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
