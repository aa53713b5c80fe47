// Package middleware exposes net/http adapters for the route guard.
//
// # Guards
//
//   - [Guard]: decides one route for every request it wraps.
//   - [Routes]: decides by request path against the portal route table.
//
// Both redirect with 302 Found when the decision is a redirect and otherwise
// inject the loaded session into the request context.
//
// # Loaders
//
// A [Loader] reads the caller's session: [StoreLoader] from a session store
// (the CLI and single-user servers), [BearerLoader] from the Authorization
// header's JWT claims (unverified; pair it with server-side verification).
//
// # What this package must NOT do
//
//   - Make access decisions itself (delegates to package guard).
//   - Verify token signatures.
package middleware
