// Package events dispatches client lifecycle events (sign-in, refresh,
// session reset) to a [Sink] without blocking the caller.
//
// The [Dispatcher] owns one goroutine that drains a bounded channel. With
// DropIfFull set, a full buffer drops the event and counts it; otherwise Emit
// waits for room or for ctx.
package events
