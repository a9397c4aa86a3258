package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/resilience"
)

type message struct {
	subject string
	data    []byte
}

// flakyConn reports a closed connection for the first `failures` publishes.
type flakyConn struct {
	failures int
	calls    int
	sent     []message
}

func (c *flakyConn) Publish(subject string, data []byte) error {
	c.calls++
	if c.calls <= c.failures {
		return nats.ErrConnectionClosed
	}
	c.sent = append(c.sent, message{subject: subject, data: data})
	return nil
}

func (c *flakyConn) Drain() error { return nil }
func (c *flakyConn) Close() {}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BreakerEnabled: true,
	})
}

func TestPublishRetriesClosedConnection(t *testing.T) {
	conn := &flakyConn{failures: 1}
	p := New(conn, "docreview.events", fastExecutor())
	docID, actorID := uuid.New(), uuid.New()
	at := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), events.Event{
		Type:       events.DocumentReviewed,
		DocumentID: docID,
		ActorID:    actorID,
		Status:     "approved",
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Equal(t, 2, conn.calls)
	require.Len(t, conn.sent, 1)
	require.Equal(t, "docreview.events.document.reviewed", conn.sent[0].subject)

	var got events.Event
	require.NoError(t, json.Unmarshal(conn.sent[0].data, &got))
	require.Equal(t, events.DocumentReviewed, got.Type)
	require.Equal(t, docID, got.DocumentID)
	require.Equal(t, actorID, got.ActorID)
	require.Equal(t, "approved", got.Status)
	require.True(t, at.Equal(got.OccurredAt))
}

func TestPublishGivesUpAfterMaxAttempts(t *testing.T) {
	conn := &flakyConn{failures: 10}
	p := New(conn, "docreview.events", fastExecutor())

	err := p.Publish(context.Background(), events.Event{Type: events.DocumentUploaded})
	require.ErrorIs(t, err, nats.ErrConnectionClosed)
	require.Equal(t, 3, conn.calls)
	require.Empty(t, conn.sent)
}

func TestPublishWithoutExecutorCallsOnce(t *testing.T) {
	conn := &flakyConn{failures: 1}
	p := New(conn, "docreview.events", nil)

	err := p.Publish(context.Background(), events.Event{Type: events.DocumentReviewed})
	require.ErrorIs(t, err, nats.ErrConnectionClosed)
	require.Equal(t, 1, conn.calls)
}

func TestSubjectPerEventType(t *testing.T) {
	p := New(nil, "docreview.events", nil)
	require.Equal(t, "docreview.events.document.reviewed", p.Subject(events.DocumentReviewed))
}

func TestClassify(t *testing.T) {
	require.True(t, classify(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)).Retry)
	require.True(t, classify(nats.ErrNoServers).Trip)

	canceled := classify(context.Canceled)
	require.False(t, canceled.Retry)
	require.False(t, canceled.Trip)

	other := classify(errors.New("max payload exceeded"))
	require.False(t, other.Retry)
	require.True(t, other.Trip)
}
