package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/eksporyuk/backend/internal/infrastructure/auth"
	"github.com/eksporyuk/backend/internal/infrastructure/logger"
	"github.com/eksporyuk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Auth context keys
const (
	IdentityKey   = "identity"
	UserIDKey     = "user_id"
	RoleKey       = "role"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenVerifier validates a bearer token and returns the caller
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

// JWTConfig holds configuration for the JWT middleware
type JWTConfig struct {
	Verifier TokenVerifier
	// SkipPaths are served without authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// JWTAuth authenticates the bearer token and stores the caller identity
// under IdentityKey, UserIDKey and RoleKey.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			abortUnauthorized(c, dto.ErrCodeUnauthorized, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Invalid authorization header format")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Missing token")
			return
		}

		id, err := cfg.Verifier.Verify(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				abortUnauthorized(c, dto.ErrCodeTokenExpired, "Token has expired")
			case errors.Is(err, auth.ErrTokenRevoked):
				abortUnauthorized(c, dto.ErrCodeTokenRevoked, "Token has been revoked")
			case errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrInvalidClaims),
				errors.Is(err, auth.ErrTokenNotYetValid):
				log.Debug("token rejected", zap.Error(err), zap.String("path", c.Request.URL.Path))
				abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Invalid token")
			default:
				log.Error("token verification failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
					dto.ErrCodeInternal, "Authentication is temporarily unavailable", GetRequestID(c),
				))
			}
			return
		}

		c.Set(IdentityKey, id)
		c.Set(UserIDKey, id.UserID.String())
		c.Set(RoleKey, string(id.Role))

		ctx := c.Request.Context()
		ctx, l := logger.WithUserID(ctx, logger.FromContext(ctx), id.UserID.String())
		ctx, _ = logger.WithRole(ctx, l, string(id.Role))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireRole lets only callers with one of roles through. It must run
// after JWTAuth.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			abortUnauthorized(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeForbidden, "Insufficient role for this operation", GetRequestID(c),
		))
	}
}

// GetIdentity returns the authenticated caller
func GetIdentity(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*auth.Identity)
	return id, ok && id != nil
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
