// Package limiters provides the resend cooldowns used by the auth client.
//
// # Implementations
//
//   - [MemoryCooldown]: process-local windows, the default.
//   - [RedisCooldown]: windows shared through Redis keys with a TTL, so two
//     CLI invocations against the same profile observe one cooldown.
//
// Both are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import goPortal or any sibling package.
//   - Decide what is throttled. Callers pick the key and the window.
package limiters
