package service

import (
	"testing"
	"time"

	"github.com/edukita/securexam-backend/internal/config"
	"github.com/edukita/securexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(secret string) *TokenService {
	return NewTokenService(&config.Config{SessionTokenSecret: secret})
}

func newTestSession() *model.ExamSession {
	return &model.ExamSession{
		ID:        uuid.New(),
		ExamID:    uuid.New(),
		StudentID: "student-42",
		EndsAt:    time.Now().Add(45 * time.Minute),
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	tokens := newTestTokenService("test-secret")
	session := newTestSession()

	signed, jti, err := tokens.Issue(session)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.NotEmpty(t, jti)

	claims, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, jti, claims.ID)
	assert.Equal(t, session.ID, claims.SessionID)
	assert.Equal(t, session.ExamID, claims.ExamID)
	assert.Equal(t, session.StudentID, claims.StudentID)
	assert.Equal(t, session.StudentID, claims.Subject)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	session := newTestSession()

	signed, _, err := newTestTokenService("secret-a").Issue(session)
	require.NoError(t, err)

	_, err = newTestTokenService("secret-b").Verify(signed)
	assert.Error(t, err)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	tokens := newTestTokenService("test-secret")
	session := newTestSession()

	signed, _, err := tokens.Issue(session)
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"
	_, err = tokens.Verify(tampered)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tokens := newTestTokenService("test-secret")
	session := newTestSession()
	session.EndsAt = time.Now().Add(-tokenExpiryBuffer - time.Hour)

	signed, _, err := tokens.Issue(session)
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	assert.Error(t, err)
}

func TestIssueGeneratesUniqueTokenIDs(t *testing.T) {
	tokens := newTestTokenService("test-secret")
	session := newTestSession()

	_, jti1, err := tokens.Issue(session)
	require.NoError(t, err)
	_, jti2, err := tokens.Issue(session)
	require.NoError(t, err)

	assert.NotEqual(t, jti1, jti2)
}

func TestTokenOutlivesSessionDeadlineByBuffer(t *testing.T) {
	tokens := newTestTokenService("test-secret")
	session := newTestSession()

	signed, _, err := tokens.Issue(session)
	require.NoError(t, err)

	claims, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.WithinDuration(t, session.EndsAt.Add(tokenExpiryBuffer), claims.ExpiresAt.Time, time.Second)
}
