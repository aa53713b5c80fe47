package guard

import (
	"github.com/MrEthical07/goPortal/session"
)

// Class is the coarse identity a route decision is based on.
type Class uint8

const (
	ClassGuest Class = iota
	ClassStudent
	ClassLecturer
	ClassAdmin
)

func (c Class) String() string {
	switch c {
	case ClassStudent:
		return "student"
	case ClassLecturer:
		return "lecturer"
	case ClassAdmin:
		return "admin"
	default:
		return "guest"
	}
}

// Classify maps a session to its [Class]. A nil session or one without an
// access token is a guest; unknown roles are treated as students.
func Classify(s *session.Session) Class {
	if s == nil || s.AccessToken == "" {
		return ClassGuest
	}
	switch {
	case s.Role.Is(session.RoleAdmin):
		return ClassAdmin
	case s.Role.Is(session.RoleLecturer):
		return ClassLecturer
	default:
		return ClassStudent
	}
}

// Landing returns the default route for c.
func Landing(c Class) string {
	switch c {
	case ClassAdmin:
		return "/admin"
	case ClassLecturer:
		return "/lecturer"
	case ClassStudent:
		return "/group"
	default:
		return "/login"
	}
}

// Decision is the outcome of a route check. Redirect is set when Allow is false.
type Decision struct {
	Allow    bool
	Redirect string
}

// Decide returns whether the holder of s may open route.
//
//   - Public routes are always allowed.
//   - GuestOnly routes are allowed for guests; signed-in users go to their landing.
//   - Protected routes send guests to /login and users whose class is not
//     listed to their own landing.
func Decide(route Route, s *session.Session) Decision {
	class := Classify(s)
	switch route.Access {
	case Public:
		return Decision{Allow: true}
	case GuestOnly:
		if class == ClassGuest {
			return Decision{Allow: true}
		}
		return Decision{Redirect: Landing(class)}
	default:
		if class == ClassGuest {
			return Decision{Redirect: Landing(ClassGuest)}
		}
		if !route.admits(class) {
			return Decision{Redirect: Landing(class)}
		}
		return Decision{Allow: true}
	}
}

// DecidePath looks path up in the portal route table and decides it. Unknown
// paths are allowed so the application can render its not-found page.
func DecidePath(path string, s *session.Session) Decision {
	route, ok := Lookup(path)
	if !ok {
		return Decision{Allow: true}
	}
	return Decide(route, s)
}
