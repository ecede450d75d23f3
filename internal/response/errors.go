package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired     ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid      ErrCode = "TOKEN_INVALID"
	ErrTokenExpired      ErrCode = "TOKEN_EXPIRED"
	ErrSessionOwnership  ErrCode = "SESSION_OWNERSHIP_MISMATCH"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrStaffAccessOnly   ErrCode = "STAFF_ACCESS_ONLY"
	ErrForbidden         ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Session preconditions ─────────────────────────────────────────
	ErrExamNotAvailable    ErrCode = "EXAM_NOT_AVAILABLE"
	ErrAccessCodeInvalid   ErrCode = "ACCESS_CODE_INVALID"
	ErrExamWindowClosed    ErrCode = "EXAM_WINDOW_CLOSED"
	ErrSessionCompleted    ErrCode = "SESSION_ALREADY_COMPLETED"
	ErrSessionTerminated   ErrCode = "SESSION_TERMINATED"
	ErrSessionNotMutable   ErrCode = "SESSION_NOT_MUTABLE"
	ErrDuplicateSubmission ErrCode = "DUPLICATE_SUBMISSION"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrExamNotDraft        ErrCode = "EXAM_NOT_DRAFT"

	// ─── Integrity ─────────────────────────────────────────────────────
	ErrIntegrityViolation ErrCode = "INTEGRITY_VIOLATION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server / dependencies ─────────────────────────────────────────
	ErrDependency ErrCode = "DEPENDENCY_ERROR"
	ErrInternal   ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
// Students only ever see these coarse messages; violation detail is
// reserved for staff-facing reports.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrSessionOwnership:
		return "This token does not belong to the requested session."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrStaffAccessOnly:
		return "This resource is restricted to staff."
	case ErrForbidden:
		return "You do not have permission to access this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The identifier format is not valid."
	case ErrInvalidPayload:
		return "The request payload is not valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Session preconditions ─────────────────────────────────────────
	case ErrExamNotAvailable:
		return "This exam is not currently available."
	case ErrAccessCodeInvalid:
		return "The exam access code is incorrect."
	case ErrExamWindowClosed:
		return "The exam is outside its scheduled time window."
	case ErrSessionCompleted:
		return "This exam session has already been completed."
	case ErrSessionTerminated:
		return "This exam session has been terminated."
	case ErrSessionNotMutable:
		return "This exam session no longer accepts changes."
	case ErrDuplicateSubmission:
		return "This exam has already been submitted."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrExamNotDraft:
		return "This exam is not in DRAFT status."

	// ─── Integrity ─────────────────────────────────────────────────────
	case ErrIntegrityViolation:
		return "The submission failed integrity verification and requires review."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server / dependencies ─────────────────────────────────────────
	case ErrDependency:
		return "A backing service is unavailable. The operation was not applied."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
