package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionQuestionsRead allows fetching and rendering raw questions.
	PermissionQuestionsRead Permission = "questions:read"

	// PermissionQuestionsWrite allows validating and storing questions.
	PermissionQuestionsWrite Permission = "questions:write"

	// PermissionAttemptsWrite allows starting attempts.
	PermissionAttemptsWrite Permission = "attempts:write"

	// PermissionAttemptsGrade allows grading and submitting attempts.
	PermissionAttemptsGrade Permission = "attempts:grade"

	// PermissionResultsRead allows reading stored grading results.
	PermissionResultsRead Permission = "results:read"

	// PermissionTokensRevoke allows revoking issued tokens.
	PermissionTokensRevoke Permission = "tokens:revoke"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionQuestionsRead,
	PermissionQuestionsWrite,
	PermissionAttemptsWrite,
	PermissionAttemptsGrade,
	PermissionResultsRead,
	PermissionTokensRevoke,
}

// ParsePermissions converts raw codes, rejecting unknown ones.
func ParsePermissions(codes []string) ([]Permission, bool) {
	out := make([]Permission, 0, len(codes))
	for _, code := range codes {
		p := Permission(code)
		known := false
		for _, a := range AllPermissions {
			if a == p {
				known = true
				break
			}
		}
		if !known {
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}

// RevokeTokenRequest is the payload for revoking a token by its ID.
type RevokeTokenRequest struct {
	TokenID string `json:"token_id" binding:"required,max=128"`
}
