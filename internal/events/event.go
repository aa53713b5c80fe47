package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Type names a client lifecycle event.
type Type string

// Auth operation events carry the operation name; the pipeline adds its own
// two.
const (
	TypeLogin          Type = "login"
	TypeLogout         Type = "logout"
	TypeRegister       Type = "register"
	TypeRefresh        Type = "refresh"
	TypeVerifyOTP      Type = "verify_otp"
	TypeResetPassword  Type = "reset_password"
	TypeChangePassword Type = "change_password"

	TypeTokenRefresh Type = "token_refresh"
	TypeSessionReset Type = "session_reset"
)

// Event is one client lifecycle event. Waiters and DurationMS are set on
// token_refresh events, Reason on session_reset events.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`

	Waiters    int    `json:"waiters,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// AuthOutcome describes the result of one auth operation.
func AuthOutcome(op Type, userID, email string, err error) Event {
	return Event{
		Type:    op,
		UserID:  userID,
		Email:   email,
		Success: err == nil,
		Error:   errText(err),
	}
}

// RefreshCycle describes one completed token refresh shared by waiters callers.
func RefreshCycle(userID string, waiters int, took time.Duration, err error) Event {
	return Event{
		Type:       TypeTokenRefresh,
		UserID:     userID,
		Success:    err == nil,
		Error:      errText(err),
		Waiters:    waiters,
		DurationMS: took.Milliseconds(),
	}
}

// SessionReset describes a session teardown.
func SessionReset(userID, reason string, err error) Event {
	return Event{
		Type:    TypeSessionReset,
		UserID:  userID,
		Success: err == nil,
		Error:   errText(err),
		Reason:  reason,
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Sink receives emitted events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a reader through a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}
