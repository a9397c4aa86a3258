// Package natsbus publishes workflow events to NATS.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/resilience"
)

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

type Publisher struct {
	conn     Conn
	subject  string
	executor *resilience.Executor
}

func Connect(url, subject string, executor *resilience.Executor) (*Publisher, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("docreview-backend"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return New(conn, subject, executor), nil
}

func New(conn Conn, subject string, executor *resilience.Executor) *Publisher {
	return &Publisher{conn: conn, subject: subject, executor: executor}
}

// Subject returns the per-type subject, e.g. docreview.events.document.reviewed.
func (p *Publisher) Subject(t events.Type) string {
	return p.subject + "." + string(t)
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject := p.Subject(event.Type)
	call := func(context.Context) error {
		if err := p.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if p.executor == nil {
		return call(ctx)
	}
	return p.executor.Do(ctx, "nats.publish", call, classify)
}

func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

func classify(err error) resilience.Outcome {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Outcome{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionReconnecting):
		return resilience.Outcome{Retry: true, Trip: true}
	}
	return resilience.Outcome{Trip: true}
}
