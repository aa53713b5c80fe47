// Package pipeline executes authenticated calls against the portal REST API.
//
// Every call attaches the stored access token. When the API answers 401 or
// 403, the pipeline refreshes the access token once and resubmits the call;
// a burst of concurrently failing calls shares one refresh. Everything else
// surfaces as a normalized [*Error].
//
// # Refresh protocol
//
//   - One refresh is in flight process-wide. The check-and-set of the
//     refreshing flag and the enqueueing of waiters happen under one mutex.
//   - Callers that fail while a refresh is running wait for its outcome and
//     resubmit with the token it produced. Every waiter of one refresh sees
//     the same token or the same error.
//   - Each original request is resubmitted at most once. A resubmission is
//     terminal: a second 401/403 is returned, never refreshed again.
//   - A failed refresh, or a session without a refresh token, clears the
//     session and invokes the [Resetter].
//   - The refresh call is detached from the caller's cancellation; a caller
//     that gives up does not abort the refresh other callers depend on.
//
// # What this package must NOT do
//
//   - Import goPortal, authapi, or userapi.
//   - Log token values.
//   - Refresh on transport failures (no response).
package pipeline
