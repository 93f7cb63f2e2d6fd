// Package types holds the shared vocabulary of the promptroute engine:
// message roles, the normalized chat-completion response, structured errors,
// and the per-request observability event. It has no dependencies on other
// promptroute packages so that every layer can import it freely.
package types

// Role identifies a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message in provider-neutral form.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ValidRole reports whether r is one of the three accepted roles.
func ValidRole(r Role) bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}
