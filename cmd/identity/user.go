package identity

import "strings"

// Role names carried on the user snapshot.
const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// User is the account snapshot returned by credential verification and
// surfaced on session endpoints. It deliberately carries no secret material.
type User struct {
	ID        string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// NormalizeEmail lowercases and trims an email for lookup purposes.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
