package guard

import "strings"

// Access is the audience of a route.
type Access uint8

const (
	// Public routes are open to everyone.
	Public Access = iota
	// GuestOnly routes are for signed-out visitors.
	GuestOnly
	// Protected routes require a session.
	Protected
)

// Route is one entry of the route table. An empty Classes list on a
// Protected route admits every signed-in user.
type Route struct {
	Name    string
	Path    string
	Access  Access
	Classes []Class
}

func (r Route) admits(c Class) bool {
	if len(r.Classes) == 0 {
		return true
	}
	for _, allowed := range r.Classes {
		if allowed == c {
			return true
		}
	}
	return false
}

var routes = []Route{
	{Name: "landing", Path: "/", Access: GuestOnly},
	{Name: "about", Path: "/about", Access: Public},
	{Name: "contact", Path: "/contact", Access: Public},
	{Name: "faq", Path: "/faq", Access: Public},
	{Name: "docs", Path: "/docs", Access: Public},
	{Name: "login", Path: "/login", Access: GuestOnly},
	{Name: "register", Path: "/register", Access: GuestOnly},
	{Name: "forgot-password", Path: "/forgot-password", Access: GuestOnly},
	{Name: "admin", Path: "/admin", Access: Protected, Classes: []Class{ClassAdmin}},
	{Name: "group", Path: "/group", Access: Protected, Classes: []Class{ClassStudent}},
	{Name: "lecturer", Path: "/lecturer", Access: Protected, Classes: []Class{ClassLecturer}},
	{Name: "profile", Path: "/profile", Access: Protected},
}

// Routes returns a copy of the portal route table.
func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

// Lookup finds the route for path. A trailing slash is ignored.
func Lookup(path string) (Route, bool) {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	for _, r := range routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// PageRoute returns the path of a named page.
func PageRoute(name string) (string, bool) {
	for _, r := range routes {
		if r.Name == name {
			return r.Path, true
		}
	}
	return "", false
}
