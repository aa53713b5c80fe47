package userapi

import (
	"time"

	"github.com/MrEthical07/goPortal/session"
)

// User is an account as returned by the portal API.
type User struct {
	UserID      string       `json:"userId"`
	FullName    string       `json:"fullName"`
	Email       string       `json:"email"`
	Role        session.Role `json:"role"`
	StudentCode string       `json:"studentCode,omitempty"`
	AvatarURL   string       `json:"avatarURL,omitempty"`
	IsOnline    bool         `json:"isOnline,omitempty"`
	LastSeenAt  *time.Time   `json:"lastSeenAt,omitempty"`
}

// Session builds the persisted session for u with the given tokens.
func (u User) Session(accessToken, refreshToken string) *session.Session {
	return &session.Session{
		UserID:       u.UserID,
		FullName:     u.FullName,
		Email:        u.Email,
		Role:         session.ParseRole(string(u.Role)),
		StudentCode:  u.StudentCode,
		AvatarURL:    u.AvatarURL,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
}

// UpdateInput carries the editable account fields. Empty fields are omitted.
type UpdateInput struct {
	FullName    string `json:"fullName,omitempty"`
	Email       string `json:"email,omitempty"`
	StudentCode string `json:"studentCode,omitempty"`
}
