// Package goPortal is a Go client SDK for the student portal REST API.
//
// A [Client] built with [Builder] owns one session store and one request
// pipeline. Every call goes through the pipeline, which attaches the stored
// access token and, on a 401/403, performs a single refresh shared by every
// concurrent caller before resubmitting the request once.
//
// # Sub-packages
//
//   - session: the persisted session record and its memory, file and redis
//     backends.
//   - pipeline: the authenticated transport and its refresh cycle.
//   - authapi, userapi: typed clients for the /auth and /users endpoints.
//   - guard, middleware: route access decisions and their net/http adapter.
//   - jwt: unverified access-token inspection.
//   - metrics/export: Prometheus and OpenTelemetry views of [Metrics].
//
// # What this package must NOT do
//
//   - Verify token signatures (the API is the authority).
//   - Log access or refresh tokens.
//   - Import any sub-package that re-imports goPortal.
package goPortal
