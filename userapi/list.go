package userapi

import (
	"strings"
	"time"
)

// Status is the presence shown next to an account.
type Status string

const (
	StatusOnline  Status = "Online"
	StatusAway    Status = "Away"
	StatusOffline Status = "Offline"
)

// AwayWindow is how long after lastSeenAt an account still shows as away.
const AwayWindow = 5 * time.Minute

// DefaultPageSize is the admin list page size.
const DefaultPageSize = 10

// StatusOf derives the presence of u at now.
func StatusOf(u User, now time.Time) Status {
	if u.IsOnline {
		return StatusOnline
	}
	if u.LastSeenAt != nil && now.Sub(*u.LastSeenAt) < AwayWindow {
		return StatusAway
	}
	return StatusOffline
}

// Query selects accounts. Empty fields and "all" match everything.
type Query struct {
	// Search matches name or email, case-insensitively.
	Search string
	Role   string
	Status string
}

// Filter returns the accounts matching q, in input order.
func Filter(users []User, q Query, now time.Time) []User {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]User, 0, len(users))
	for _, u := range users {
		if search != "" &&
			!strings.Contains(strings.ToLower(u.FullName), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		if !matchesAll(q.Role) && !strings.EqualFold(string(u.Role), q.Role) {
			continue
		}
		if !matchesAll(q.Status) && !strings.EqualFold(string(StatusOf(u, now)), q.Status) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func matchesAll(v string) bool {
	return v == "" || strings.EqualFold(v, "all")
}

// Page is one slice of a paginated list.
type Page struct {
	Items      []User
	Page       int
	TotalPages int
	Total      int
}

// Paginate returns page (1-based) of users. The page is clamped into range
// and a non-positive size selects [DefaultPageSize]. An empty list has one
// empty page.
func Paginate(users []User, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(users)
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	return Page{
		Items:      users[start:end],
		Page:       page,
		TotalPages: pages,
		Total:      total,
	}
}
