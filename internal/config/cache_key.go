package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionAnswersKey returns the cache key for a session's autosaved answers.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// ExamPayloadKey returns the cache key for an exam's student-facing payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamSecurityKey returns the cache key for an exam's security settings.
func (r *CacheKeyStruct) ExamSecurityKey(examID string) string {
	return fmt.Sprintf("exam:%s:security", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam's
// live monitoring feed.
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// GradingAttemptsKey returns the retry counter key for a submission's
// grading attempts.
func (r *CacheKeyStruct) GradingAttemptsKey(submissionID string) string {
	return fmt.Sprintf("grading:%s:attempts", submissionID)
}

var CacheKey = NewCacheKeyStruct()
