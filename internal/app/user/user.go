/*
Package user contains the account model and the presence snapshot broadcast to
chat clients, together with the input rules for registration and profile edits.
*/
package user

import (
	"net/url"
	"strings"
	"time"
)

// DefaultAvatarBaseURL is the generator used for accounts without an uploaded avatar.
const DefaultAvatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg"

// User is an account as persisted by the credential store.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Avatar       string
	Bio          string
	IsOnline     bool
	LastSeen     time.Time
	CreatedAt    time.Time
}

// Profile is the client-facing view of an account.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Bio      string `json:"bio"`
}

// Snapshot is the identity a connection is admitted with and the element type
// of the presence list.
type Snapshot struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	IsOnline bool   `json:"isOnline"`

	// Guest marks identities admitted without an account.
	Guest bool `json:"guest,omitempty"`
}

// Profile returns the client-facing view of u.
func (u User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Bio:      u.Bio,
	}
}

// Snapshot returns the presence identity of u.
func (u User) Snapshot() Snapshot {
	return Snapshot{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
		IsOnline: true,
	}
}

// GuestSnapshot builds the presence identity of a token-less connection.
func GuestSnapshot(id, username string) Snapshot {
	return Snapshot{
		ID:       id,
		Username: username,
		Avatar:   DefaultAvatar(username),
		IsOnline: true,
		Guest:    true,
	}
}

// DefaultAvatar returns the generated avatar URL seeded with username.
func DefaultAvatar(username string) string {
	return DefaultAvatarBaseURL + "?seed=" + url.QueryEscape(username)
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
