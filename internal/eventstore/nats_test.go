package eventstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

func TestMarshalEvent(t *testing.T) {
	e, err := NewApplied("s-1", "doc.md", ".md", Applied{Output: "out.md", Alterations: 3}, nil)
	require.NoError(t, err)
	e.Timestamp = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	data, err := MarshalEvent(e)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "s-1", got["session_id"])
	assert.Equal(t, TypeApplied, got["type"])
	assert.Equal(t, "2026-05-06T07:08:09Z", got["timestamp"])
	assert.Equal(t, map[string]any{"output": "out.md", "alterations": float64(3), "text_len": float64(0)}, got["payload"])
}

func TestMarshalEventSkipsInvalidPayload(t *testing.T) {
	data, err := MarshalEvent(Event{SessionID: "s", Payload: []byte("not json")})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "payload")
}

func TestNATSPublisherConnectFailure(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
}

type published struct {
	subject string
	data    []byte
}

// natsServer speaks just enough of the NATS client protocol to accept
// connections, answer pings and record published messages.
func natsServer(t *testing.T) (string, <-chan published) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	msgs := make(chan published, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveNATS(conn, msgs)
		}
	}()
	return "nats://" + ln.Addr().String(), msgs
}

func serveNATS(conn net.Conn, msgs chan<- published) {
	defer func() { _ = conn.Close() }()
	if _, err := fmt.Fprint(conn, `INFO {"server_id":"test","version":"2.10.0","proto":1,"max_payload":1048576}`+"\r\n"); err != nil {
		return
	}
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "PING"):
			if _, err := fmt.Fprint(conn, "PONG\r\n"); err != nil {
				return
			}
		case strings.HasPrefix(line, "PUB "):
			fields := strings.Fields(line)
			size, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return
			}
			payload := make([]byte, size+2)
			if _, err := io.ReadFull(r, payload); err != nil {
				return
			}
			msgs <- published{subject: fields[1], data: payload[:size]}
		}
	}
}

func TestNATSPublisherPublish(t *testing.T) {
	url, msgs := natsServer(t)
	p, err := NewNATSPublisher(url, "")
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	e, err := NewApplied("s-1", "doc.txt", ".txt", Applied{Output: "out.txt", Alterations: 1}, nil)
	require.NoError(t, err)

	// The CLI passes contexts without a deadline.
	require.NoError(t, p.Publish(context.Background(), e))

	select {
	case m := <-msgs:
		assert.Equal(t, DefaultSubject, m.subject)
		var got map[string]any
		require.NoError(t, json.Unmarshal(m.data, &got))
		assert.Equal(t, "s-1", got["session_id"])
		assert.Equal(t, TypeApplied, got["type"])
	case <-time.After(5 * time.Second):
		t.Fatal("no message published")
	}
}

func TestNATSPublisherPublishWithDeadline(t *testing.T) {
	url, msgs := natsServer(t)
	p, err := NewNATSPublisher(url, "journal")
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Publish(ctx, Event{SessionID: "s-2", Type: TypeFailed}))

	m := <-msgs
	assert.Equal(t, "journal", m.subject)
}
