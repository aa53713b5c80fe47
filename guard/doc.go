// Package guard derives route access decisions from the stored session.
//
// Every function here is pure: the same session value and route always give
// the same [Decision]. The HTTP adapter lives in package middleware.
package guard
