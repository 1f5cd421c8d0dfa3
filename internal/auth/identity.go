package auth

import (
	"encoding/json"
	"strings"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusLoading       Status = "loading"
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

const roleAdmin = "admin"

// User is the identity record returned by the CMS service.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	Role        string `json:"role"`
	AdminFlag   bool   `json:"isAdmin,omitempty"`
}

// IsAdmin reports whether the identity carries the admin role flag.
func (u User) IsAdmin() bool {
	return u.AdminFlag || strings.EqualFold(strings.TrimSpace(u.Role), roleAdmin)
}

// UnmarshalJSON accepts both `id` and the service's legacy `_id` member, and
// `displayName` as an alias of `name`.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		LegacyID    string `json:"_id"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.LegacyID
	}
	if u.DisplayName == "" {
		u.DisplayName = aux.DisplayName
	}
	return nil
}

// Snapshot is a read-only projection of the session.
type Snapshot struct {
	Status Status `json:"status"`
	User   *User  `json:"user,omitempty"`
	token  string
}

// IsAdmin is pure over the loaded identity.
func (s Snapshot) IsAdmin() bool {
	return s.Status == StatusAuthenticated && s.User != nil && s.User.IsAdmin()
}

// Credential returns the bearer token held by an authenticated snapshot.
func (s Snapshot) Credential() string {
	return s.token
}
