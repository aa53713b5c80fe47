package goPortal

import (
	"io"

	"github.com/MrEthical07/goPortal/internal/events"
)

// Event types emitted by a [Client]. Auth operations use the names of
// [authapi.Op].
const (
	EventLogin          = events.TypeLogin
	EventLogout         = events.TypeLogout
	EventRegister       = events.TypeRegister
	EventRefresh        = events.TypeRefresh
	EventVerifyOTP      = events.TypeVerifyOTP
	EventResetPassword  = events.TypeResetPassword
	EventChangePassword = events.TypeChangePassword
	// EventTokenRefresh is one completed pipeline refresh cycle; Waiters and
	// DurationMS are set.
	EventTokenRefresh = events.TypeTokenRefresh
	// EventSessionReset is a session teardown; Reason holds the
	// [pipeline.ResetReason].
	EventSessionReset = events.TypeSessionReset
)

type (
	// EventType names a lifecycle event.
	EventType = events.Type
	// Event is one client lifecycle event.
	Event = events.Event
	// EventSink receives events from the dispatcher goroutine.
	EventSink = events.Sink
	// NoOpSink drops events.
	NoOpSink = events.NoOpSink
	// ChannelSink delivers events on a buffered channel.
	ChannelSink = events.ChannelSink
	// JSONWriterSink writes one JSON object per line.
	JSONWriterSink = events.JSONWriterSink
)

// NewChannelSink returns a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}
