package eventstore

import (
	"encoding/json"
	"time"
)

// Event types recorded by the CLI.
const (
	TypeApplied = "document.applied"
	TypeFailed  = "document.failed"
)

// Event is one journal entry. SessionID ties it to the log lines of the
// document session that produced it.
type Event struct {
	ID        int64
	SessionID string
	Type      string
	Path      string
	Format    string
	Timestamp time.Time
	Payload   []byte
	Metadata  map[string]string
}

// Applied is the payload of TypeApplied and TypeFailed events.
type Applied struct {
	Output      string `json:"output,omitempty"`
	Alterations int    `json:"alterations"`
	TextLen     int    `json:"text_len"`
	Error       string `json:"error,omitempty"`
}

// NewApplied builds an event for one apply run. A non-nil err makes it a
// TypeFailed event.
func NewApplied(sessionID, path, format string, p Applied, err error) (Event, error) {
	typ := TypeApplied
	if err != nil {
		typ = TypeFailed
		p.Error = err.Error()
	}
	payload, merr := json.Marshal(p)
	if merr != nil {
		return Event{}, merr
	}
	return Event{SessionID: sessionID, Type: typ, Path: path, Format: format, Payload: payload}, nil
}

// Applied decodes the payload of an apply event.
func (e Event) Applied() (Applied, error) {
	var p Applied
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}
