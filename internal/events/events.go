// Package events describes workflow transitions announced after commit.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	DocumentUploaded    Type = "document.uploaded"
	DocumentReviewed    Type = "document.reviewed"
	DocumentResubmitted Type = "document.resubmitted"
	DocumentAssigned    Type = "document.assigned"
	DocumentDeleted     Type = "document.deleted"
)

type Event struct {
	Type       Type       `json:"type"`
	DocumentID uuid.UUID  `json:"document_id"`
	ActorID    uuid.UUID  `json:"actor_id"`
	Status     string     `json:"status,omitempty"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, event)
	return nil
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
