// Package internal holds helpers that are private to goPortal.
//
// # Sub-packages
//
//   - events: async lifecycle event dispatch (Dispatcher + Sink implementations)
//   - limiters: per-email OTP send cooldowns (memory and Redis)
//   - logging: zerolog construction shared by the client and portalctl
//   - portaltest: in-process fake of the portal API for tests
//
// # What this package must NOT do
//
//   - Export types that appear in the public goPortal API.
//   - Be imported by any package outside the goPortal module.
package internal
