package authkit

import (
	"strings"
	"time"
)

// User is the principal the backend recognizes for a credential.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the principal may use operator-only features.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Clone returns a copy so stored principals are never shared with callers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// DirectoryUser is the richer profile the identity service keeps for a user.
type DirectoryUser struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Provider   string   `json:"provider"`
	ProviderID string   `json:"providerId"`
	Avatar     string   `json:"avatar"`
	Labels     []string `json:"labels"`
	CreatedAt  string   `json:"createdAt"`
	Banned     bool     `json:"banned"`
}

// Principal reduces a directory profile to the fields the session layer uses.
func (d DirectoryUser) Principal() *User {
	role := ""
	for _, label := range d.Labels {
		if strings.EqualFold(label, RoleAdmin) {
			role = RoleAdmin
			break
		}
	}
	return &User{ID: d.ID, Email: d.Email, Role: role}
}

// Matches reports whether the profile matches a case-insensitive query over
// name, email and id.
func (d DirectoryUser) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(d.Name), q) ||
		strings.Contains(strings.ToLower(d.Email), q) ||
		strings.Contains(strings.ToLower(d.ID), q)
}

// Session is a server-tracked record of one authenticated device or browser
// instance. This core observes and revokes sessions, it never mints them.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsActive  bool      `json:"isActive"`
}

// Matches reports whether the record matches a case-insensitive substring
// query over id, user id, ip address and user agent.
func (s Session) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(s.ID), q) ||
		strings.Contains(strings.ToLower(s.UserID), q) ||
		strings.Contains(strings.ToLower(s.IPAddress), q) ||
		strings.Contains(strings.ToLower(s.UserAgent), q)
}

// ImpersonationState describes the tab-scoped "act as user" mode.
type ImpersonationState struct {
	Active bool  `json:"active"`
	User   *User `json:"user"`
}
