package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenExpiryBuffer keeps a session token usable slightly past the exam
// deadline so auto-submits and final events arriving late still authenticate.
const tokenExpiryBuffer = 10 * time.Minute

// SessionClaims binds a session token to exactly one (exam, student, session)
// triple. Every session-scoped request is checked against all three.
type SessionClaims struct {
	jwt.RegisteredClaims
	ExamID    uuid.UUID `json:"exam_id"`
	StudentID string    `json:"student_id"`
	SessionID uuid.UUID `json:"session_id"`
}

// TokenService issues and verifies the short-lived exam session tokens.
type TokenService struct {
	cfg *config.Config
}

// NewTokenService creates a new TokenService.
func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{cfg: cfg}
}

// Issue creates a session token expiring shortly after the session deadline.
// Returns the signed token and its JTI, which is pinned on the session row so
// resume can invalidate older tokens.
func (s *TokenService) Issue(session *model.ExamSession) (string, string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   session.StudentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.EndsAt.Add(tokenExpiryBuffer)),
		},
		ExamID:    session.ExamID,
		StudentID: session.StudentID,
		SessionID: session.ID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SessionTokenSecret))
	if err != nil {
		return "", "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, jti, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *TokenService) Verify(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.SessionTokenSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session token claims")
	}
	return claims, nil
}
