package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/repository"
)

// loadActor reads the acting user from users, which may be a transaction
// handle. Authority is never cached between calls.
func loadActor(ctx context.Context, users repository.UserRepository, id uuid.UUID) (*models.User, error) {
	user, err := users.GetUser(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.ErrUnauthorized, "account no longer exists")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.ErrUnauthorized, "account is deactivated")
	}
	return user, nil
}

// announce publishes after the transaction has committed. The store stays
// the source of truth, so failures are logged only.
func announce(ctx context.Context, pub events.Publisher, event events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, event); err != nil {
		slog.Error("publish workflow event failed",
			"action", string(event.Type),
			"document_id", event.DocumentID.String(),
			"user_id", event.ActorID.String(),
			"error", err,
		)
	}
}

func ptr[T any](v T) *T { return &v }

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
