package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Question engine ───────────────────────────────────────────────
	ErrAuthoring       ErrCode = "AUTHORING_ERROR"
	ErrRender          ErrCode = "RENDER_ERROR"
	ErrGrade           ErrCode = "GRADE_ERROR"
	ErrMalformedAnswer ErrCode = "MALFORMED_ANSWER"
	ErrUnknownVariant  ErrCode = "UNKNOWN_VARIANT"
	ErrUnknownQuestion ErrCode = "UNKNOWN_QUESTION"
	ErrNoQuestions     ErrCode = "NO_QUESTIONS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal    ErrCode = "INTERNAL_ERROR"
	ErrUnavailable ErrCode = "SERVICE_UNAVAILABLE"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrPermissionDenied:
		return "Permission denied."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Question engine ───────────────────────────────────────────────
	case ErrAuthoring:
		return "The question is not valid."
	case ErrRender:
		return "The question could not be rendered."
	case ErrGrade:
		return "The answer could not be graded."
	case ErrMalformedAnswer:
		return "The answer does not match the question type."
	case ErrUnknownVariant:
		return "Unsupported question type."
	case ErrUnknownQuestion:
		return "The question is not part of this attempt."
	case ErrNoQuestions:
		return "No questions were found for this attempt."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	case ErrUnavailable:
		return "Service is temporarily unavailable."
	default:
		return "An unexpected error occurred."
	}
}
