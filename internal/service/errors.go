package service

import "errors"

// Sentinel errors surfaced to handlers, which map them onto response codes.
var (
	ErrExamNotFound        = errors.New("exam not found")
	ErrExamNotAvailable    = errors.New("exam is not available")
	ErrExamNotDraft        = errors.New("exam is not in draft state")
	ErrNoQuestions         = errors.New("exam has no questions")
	ErrInvalidAccessCode   = errors.New("invalid access code")
	ErrOutsideWindow       = errors.New("exam window is closed")
	ErrAlreadyCompleted    = errors.New("session was already completed")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionTerminated   = errors.New("session was terminated")
	ErrSessionFinalized    = errors.New("session no longer accepts input")
	ErrDuplicateSubmission = errors.New("submission already exists for this session")
	ErrTokenMismatch       = errors.New("session token does not match this session")
	ErrQuestionNotInExam   = errors.New("question does not belong to this exam")
)
