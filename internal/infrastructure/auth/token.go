// Package auth verifies the bearer tokens issued by the identity service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eksporyuk/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the caller's role on the affiliate platform
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAffiliate Role = "affiliate"
)

// IsValid returns true for known roles
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleAffiliate
}

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

// Claims are the access token claims shared with the identity service
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// Identity is the authenticated caller
type Identity struct {
	UserID   uuid.UUID
	Role     Role
	TokenID  string
	IssuedAt time.Time
}

// IsAdmin reports whether the caller has the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// TokenVerifier validates HS256 access tokens
type TokenVerifier struct {
	secret     []byte
	issuer     string
	leeway     time.Duration
	revocation RevocationList
	now        func() time.Time
}

// VerifierOption configures a TokenVerifier
type VerifierOption func(*TokenVerifier)

// WithRevocationList rejects tokens revoked by the identity service
func WithRevocationList(r RevocationList) VerifierOption {
	return func(v *TokenVerifier) {
		v.revocation = r
	}
}

// NewTokenVerifier creates a verifier from the JWT configuration
func NewTokenVerifier(cfg config.JWTConfig, opts ...VerifierOption) *TokenVerifier {
	v := &TokenVerifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses tokenString and returns the caller identity
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil || userID == uuid.Nil {
		return nil, ErrInvalidClaims
	}
	if !claims.Role.IsValid() {
		return nil, ErrInvalidClaims
	}

	id := &Identity{UserID: userID, Role: claims.Role, TokenID: claims.ID}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}

	if v.revocation != nil {
		if err := v.checkRevoked(ctx, id); err != nil {
			return nil, err
		}
	}
	return id, nil
}

func (v *TokenVerifier) checkRevoked(ctx context.Context, id *Identity) error {
	if id.TokenID != "" {
		revoked, err := v.revocation.IsRevoked(ctx, id.TokenID)
		if err != nil {
			return fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return ErrTokenRevoked
		}
	}
	revoked, err := v.revocation.IsUserRevoked(ctx, id.UserID.String(), id.IssuedAt)
	if err != nil {
		return fmt.Errorf("check user revocation: %w", err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

// Sign issues a token for id. The identity service owns token issuance;
// this exists for local tooling and tests.
func (v *TokenVerifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    v.issuer,
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: id.UserID.String(),
		Role:   id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
