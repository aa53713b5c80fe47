// Package session owns the persisted record of the signed-in principal: who
// they are and which access/refresh token pair they hold.
//
// # Storage
//
// A [Store] keeps exactly one JSON-encoded [Session] in a [Backend]. Three
// backends ship with the package: [MemoryBackend] (process-local),
// [FileBackend] (one file, replaced atomically via rename), and the
// Redis-backed backend in the redisstore sub-package.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does NOT issue
// HTTP calls, interpret JWT claims, or decide route access; those belong to
// the pipeline, jwt, and guard packages.
//
// # What this package must NOT do
//
//   - Import goPortal, pipeline, or guard (no upward imports).
//   - Surface decode or backend errors from [Store.Load]; an unreadable
//     record is a guest.
//   - Log token values.
package session
