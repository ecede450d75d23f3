package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/response"
	"github.com/edukita/securexam-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// ContextKeyIdentity is the Gin context key for platform identity claims.
	ContextKeyIdentity = "identity"
	// ContextKeySessionClaims is the Gin context key for exam session claims.
	ContextKeySessionClaims = "session_claims"
)

// Identity roles as issued by the platform identity service.
const (
	RoleStudent = "student"
	RoleStaff   = "staff"
)

// IdentityClaims are the platform identity service's JWT claims. This service
// only verifies them; issuing and user management live elsewhere.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Role     string    `json:"role"`
	BranchID uuid.UUID `json:"branch_id"`
}

// UserID returns the platform user identifier carried in the subject.
func (c *IdentityClaims) UserID() string {
	return c.Subject
}

// RequireStudentIdentity validates a student identity JWT.
func RequireStudentIdentity(cfg *config.Config) gin.HandlerFunc {
	return requireIdentity(cfg, RoleStudent, response.ErrStudentAccessOnly)
}

// RequireStaff validates a staff identity JWT.
func RequireStaff(cfg *config.Config) gin.HandlerFunc {
	return requireIdentity(cfg, RoleStaff, response.ErrStaffAccessOnly)
}

func requireIdentity(cfg *config.Config, role string, roleErr response.ErrCode) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parseIdentity(c, cfg)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		if claims.Role != role {
			response.AbortFail(c, http.StatusForbidden, roleErr)
			return
		}
		c.Set(ContextKeyIdentity, claims)
		c.Next()
	}
}

// RequireSessionToken validates an exam session token and checks it is still
// the session's pinned token. Tokens orphaned by a resume are rejected here.
func RequireSessionToken(tokens *service.TokenService, sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if _, err := sessions.VerifySessionToken(c.Request.Context(), claims); err != nil {
			switch {
			case errors.Is(err, service.ErrTokenMismatch):
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionOwnership)
			case errors.Is(err, service.ErrSessionNotFound):
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			default:
				response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			}
			return
		}

		c.Set(ContextKeySessionClaims, claims)
		c.Next()
	}
}

// GetIdentity retrieves the identity claims from the Gin context.
func GetIdentity(c *gin.Context) *IdentityClaims {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return nil
	}
	claims, ok := val.(*IdentityClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetSessionClaims retrieves the session claims from the Gin context.
func GetSessionClaims(c *gin.Context) *service.SessionClaims {
	val, exists := c.Get(ContextKeySessionClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

func parseIdentity(c *gin.Context, cfg *config.Config) (*IdentityClaims, error) {
	tokenStr := bearerToken(c)
	if tokenStr == "" {
		return nil, errors.New("authorization header or token query required")
	}

	token, err := jwt.ParseWithClaims(tokenStr, &IdentityClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.IdentityTokenSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid identity claims")
	}
	return claims, nil
}

// bearerToken pulls the token from the Authorization header, falling back to
// the token query param for EventSource and WebSocket clients that cannot
// send headers.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}
