// Package redisstore persists the portal session record in Redis, keyed by
// profile, so several processes on one machine (or one user across hosts)
// can share a signed-in session.
package redisstore
