package session

import "strings"

// Role is the portal role carried by a [Session].
type Role string

const (
	// RoleStudent is the default portal role.
	RoleStudent Role = "Student"
	// RoleLecturer marks teaching staff.
	RoleLecturer Role = "Lecturer"
	// RoleAdmin marks portal administrators.
	RoleAdmin Role = "Admin"
)

// ParseRole maps a role string onto a known [Role] case-insensitively.
// Unknown values are returned verbatim so they survive a round trip.
func ParseRole(value string) Role {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "student":
		return RoleStudent
	case "lecturer":
		return RoleLecturer
	case "admin":
		return RoleAdmin
	default:
		return Role(value)
	}
}

// Is reports whether r equals other ignoring case.
func (r Role) Is(other Role) bool {
	return strings.EqualFold(string(r), string(other))
}

// Session is the persisted identity of the signed-in principal.
//
// The JSON field names follow the portal's storage record: the access token
// is stored under "token".
type Session struct {
	UserID      string `json:"userId"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	StudentCode string `json:"studentCode,omitempty"`
	AvatarURL   string `json:"avatarURL,omitempty"`

	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`

	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Bio     string `json:"bio,omitempty"`
}

// Renewable reports whether the session holds a refresh token. A session
// without one must re-authenticate when its access token expires.
func (s *Session) Renewable() bool {
	return s != nil && s.RefreshToken != ""
}

// SameSignIn reports whether s and other come from the same sign-in: the
// same user holding the same refresh token. Access tokens rotate on refresh
// and are compared only for non-renewable sessions.
func (s *Session) SameSignIn(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.UserID != other.UserID || s.RefreshToken != other.RefreshToken {
		return false
	}
	return s.RefreshToken != "" || s.AccessToken == other.AccessToken
}

// Clone returns a copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// ProfilePatch carries the profile fields a user may edit for themselves.
// Nil fields are left untouched.
type ProfilePatch struct {
	FullName *string
	Email    *string
	Phone    *string
	Address  *string
	Bio      *string
}

func (p ProfilePatch) apply(s *Session) {
	if p.FullName != nil {
		s.FullName = *p.FullName
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.Phone != nil {
		s.Phone = *p.Phone
	}
	if p.Address != nil {
		s.Address = *p.Address
	}
	if p.Bio != nil {
		s.Bio = *p.Bio
	}
}
