package guard

import (
	"testing"

	"github.com/MrEthical07/goPortal/session"
)

func sess(role session.Role) *session.Session {
	return &session.Session{UserID: "u-1", Role: role, AccessToken: "access-1", RefreshToken: "refresh-1"}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   *session.Session
		want Class
	}{
		{"nil", nil, ClassGuest},
		{"no token", &session.Session{Role: session.RoleAdmin}, ClassGuest},
		{"student", sess(session.RoleStudent), ClassStudent},
		{"lecturer", sess("lecturer"), ClassLecturer},
		{"admin", sess("ADMIN"), ClassAdmin},
		{"unknown", sess("Mentor"), ClassStudent},
	}
	for _, tc := range cases {
		if got := Classify(tc.in); got != tc.want {
			t.Fatalf("%s: Classify() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDecideTable(t *testing.T) {
	guest := (*session.Session)(nil)
	student := sess(session.RoleStudent)
	lecturer := sess(session.RoleLecturer)
	admin := sess(session.RoleAdmin)

	cases := []struct {
		path string
		s    *session.Session
		want Decision
	}{
		{"/about", guest, Decision{Allow: true}},
		{"/about", admin, Decision{Allow: true}},
		{"/", guest, Decision{Allow: true}},
		{"/", student, Decision{Redirect: "/group"}},
		{"/login", lecturer, Decision{Redirect: "/lecturer"}},
		{"/register", admin, Decision{Redirect: "/admin"}},
		{"/admin", guest, Decision{Redirect: "/login"}},
		{"/admin", student, Decision{Redirect: "/group"}},
		{"/admin", lecturer, Decision{Redirect: "/lecturer"}},
		{"/admin", admin, Decision{Allow: true}},
		{"/group", student, Decision{Allow: true}},
		{"/group", admin, Decision{Redirect: "/admin"}},
		{"/lecturer", lecturer, Decision{Allow: true}},
		{"/lecturer", student, Decision{Redirect: "/group"}},
		{"/profile", guest, Decision{Redirect: "/login"}},
		{"/profile", student, Decision{Allow: true}},
		{"/profile/", lecturer, Decision{Allow: true}},
		{"/nowhere", guest, Decision{Allow: true}},
	}
	for _, tc := range cases {
		if got := DecidePath(tc.path, tc.s); got != tc.want {
			t.Fatalf("DecidePath(%q, %v) = %+v, want %+v", tc.path, Classify(tc.s), got, tc.want)
		}
	}
}

func TestDecideIsIdempotent(t *testing.T) {
	sessions := []*session.Session{nil, sess(session.RoleStudent), sess(session.RoleLecturer), sess(session.RoleAdmin)}
	for _, route := range Routes() {
		for _, s := range sessions {
			first := Decide(route, s)
			second := Decide(route, s)
			if first != second {
				t.Fatalf("%s: decisions differ: %+v vs %+v", route.Path, first, second)
			}
		}
	}
}

func TestStudentRedirectedFromAdminRoute(t *testing.T) {
	route, ok := Lookup("/admin")
	if !ok {
		t.Fatalf("admin route missing")
	}
	got := Decide(route, sess(session.RoleStudent))
	if got.Allow || got.Redirect != "/group" {
		t.Fatalf("Decide() = %+v, want redirect to /group", got)
	}
}

func TestUnknownRoleDoesNotLoop(t *testing.T) {
	s := sess("Mentor")
	got := DecidePath("/admin", s)
	if got.Redirect != "/group" {
		t.Fatalf("Decide() = %+v", got)
	}
	if landing := DecidePath(got.Redirect, s); !landing.Allow {
		t.Fatalf("landing %s not allowed: %+v", got.Redirect, landing)
	}
}

func TestPageRoute(t *testing.T) {
	want := map[string]string{
		"landing":         "/",
		"login":           "/login",
		"register":        "/register",
		"forgot-password": "/forgot-password",
		"about":           "/about",
		"contact":         "/contact",
		"faq":             "/faq",
		"docs":            "/docs",
		"admin":           "/admin",
		"group":           "/group",
		"lecturer":        "/lecturer",
		"profile":         "/profile",
	}
	for name, path := range want {
		got, ok := PageRoute(name)
		if !ok || got != path {
			t.Fatalf("PageRoute(%q) = %q, %v", name, got, ok)
		}
	}
	if _, ok := PageRoute("settings"); ok {
		t.Fatalf("unknown page resolved")
	}
}

func TestRoutesReturnsCopy(t *testing.T) {
	rs := Routes()
	rs[0].Path = "/changed"
	if r, _ := Lookup("/"); r.Name != "landing" {
		t.Fatalf("route table mutated through Routes()")
	}
}
