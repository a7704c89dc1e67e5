package eventstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

// DefaultSubject is the NATS subject journal events are published on.
const DefaultSubject = "exposetext.events"

// DefaultFlushTimeout bounds the wait for the server when the caller's
// context has no deadline.
const DefaultFlushTimeout = 5 * time.Second

// wireEvent is the JSON form of an Event on the wire.
type wireEvent struct {
	ID        int64             `json:"id,omitempty"`
	SessionID string            `json:"session_id"`
	Type      string            `json:"type"`
	Path      string            `json:"path"`
	Format    string            `json:"format"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MarshalEvent encodes e for publishing. Payloads are embedded as JSON.
func MarshalEvent(e Event) ([]byte, error) {
	w := wireEvent{
		ID:        e.ID,
		SessionID: e.SessionID,
		Type:      e.Type,
		Path:      e.Path,
		Format:    e.Format,
		Timestamp: e.Timestamp.UTC(),
		Metadata:  e.Metadata,
	}
	if json.Valid(e.Payload) {
		w.Payload = e.Payload
	}
	return json.Marshal(w)
}

// NATSPublisher publishes journal events to a NATS subject.
type NATSPublisher struct {
	conn         *nats.Conn
	subject      string
	flushTimeout time.Duration
	now          func() time.Time
}

// NewNATSPublisher connects to url. An empty subject selects DefaultSubject.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url, nats.Name("exposetext"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to connect to NATS").
			WithContext("url", url).
			Build()
	}
	slog.Debug("NATS publisher connected", slog.String("url", url), slog.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject, flushTimeout: DefaultFlushTimeout, now: time.Now}, nil
}

// Publish sends e and waits until the server has it. Without a deadline on
// ctx the wait is bounded by DefaultFlushTimeout.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = p.now()
	}
	data, err := MarshalEvent(e)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal event").Build()
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to publish event").Build()
	}
	// FlushWithContext rejects contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to flush NATS connection").Build()
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
