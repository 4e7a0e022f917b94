package model

import "time"

// Session is the acting identity. A nil *Session means the actor is anonymous.
type Session struct {
	ID          string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Guest session fields used when no account provider is configured.
const (
	GuestID          = "local_guest"
	GuestEmail       = "guest@local"
	GuestDisplayName = "Local Guest"
)

// GuestSession returns the synthetic session used in local mode.
func GuestSession() *Session {
	return &Session{ID: GuestID, Email: GuestEmail, DisplayName: GuestDisplayName}
}

// ActorID returns the id recorded as owner for actions by s.
func (s *Session) ActorID() string {
	if s == nil || s.ID == "" {
		return Anonymous
	}
	return s.ID
}

// ActorEmail returns the email recorded for items created by s.
func (s *Session) ActorEmail() string {
	if s == nil || s.Email == "" {
		return Anonymous
	}
	return s.Email
}

// Owns reports whether s may mutate item. The check is advisory only.
func (s *Session) Owns(item *Item) bool {
	return item != nil && item.OwnerID == s.ActorID()
}

// Account is a sign-in identity stored by the account provider.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	HasAvatar    bool      `json:"hasAvatar"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MinPasswordLength is the shortest accepted account password.
const MinPasswordLength = 8

// Session builds the session for a signed-in account.
func (a *Account) Session() *Session {
	s := &Session{ID: a.ID, Email: a.Email, DisplayName: a.DisplayName}
	if a.HasAvatar {
		s.PhotoURL = "/avatars/" + a.ID
	}
	return s
}
