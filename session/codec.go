package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Record versions. Version 0 is the unversioned record written by the
// browser portal; it decodes unchanged.
const (
	recordVersionCurrent = 1
	recordVersionLegacy  = 0
)

var (
	// ErrRecordVersion is returned by Decode for records newer than this package understands.
	ErrRecordVersion = errors.New("unsupported session record version")
	// ErrRecordInvalid is returned by Decode for records that are not a session.
	ErrRecordInvalid = errors.New("invalid session record")
)

type record struct {
	Version int `json:"v,omitempty"`
	Session
}

// Encode serializes s into the persisted record format.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, ErrRecordInvalid
	}
	return json.Marshal(record{Version: recordVersionCurrent, Session: *s})
}

// Decode parses a persisted record. Unversioned records are accepted.
func Decode(data []byte) (*Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordInvalid, err)
	}

	switch rec.Version {
	case recordVersionCurrent, recordVersionLegacy:
	default:
		return nil, fmt.Errorf("%w: %d", ErrRecordVersion, rec.Version)
	}

	s := rec.Session
	s.Role = ParseRole(string(s.Role))
	return &s, nil
}
