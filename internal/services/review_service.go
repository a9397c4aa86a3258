package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/access"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/repository"
)

const (
	queueSize         = 20
	recentReviewsSize = 10
	removedUser       = "removed user"
)

// openStatuses are the states a document waits in for a decision.
var openStatuses = []models.DocumentStatus{models.StatusPending, models.StatusUnderReview}

// ReviewService is the review state machine:
//
//	pending -> under_review -> approved | rejected
//	rejected -> pending (resubmission)
//
// Every transition runs in one store transaction after locking the
// document row, and re-reads the actor inside it.
type ReviewService struct {
	store   repository.Store
	events  events.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewReviewService(store repository.Store, pub events.Publisher, m *metrics.Metrics) *ReviewService {
	return &ReviewService{store: store, events: pub, metrics: m, now: time.Now}
}

type ResubmitInput struct {
	Description *string
	Tags        *string
	Note        string
}

func (s *ReviewService) conflict(operation string, err error) error {
	if apperr.Is(err, apperr.ErrStoreConflict) {
		s.metrics.StoreConflict(operation)
	}
	return err
}

func parseDecision(raw string) (models.ReviewStatus, error) {
	switch models.ReviewStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case models.ReviewApproved:
		return models.ReviewApproved, nil
	case models.ReviewRejected:
		return models.ReviewRejected, nil
	}
	return "", apperr.NewValidationError("decision must be approved or rejected",
		string(models.ReviewApproved), string(models.ReviewRejected))
}

// Submit records an approve/reject decision. A document already holding a
// decision must be resubmitted before it can be reviewed again. Review does
// not require an assignment; any active one is closed.
func (s *ReviewService) Submit(ctx context.Context, actorID, documentID uuid.UUID, decision, comments string) (*models.Document, *models.Review, error) {
	status, err := parseDecision(decision)
	if err != nil {
		return nil, nil, err
	}

	var doc *models.Document
	var review *models.Review
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		reviewer, err := loadActor(ctx, tx, actorID)
		if err != nil {
			return err
		}
		if !access.CanModerate(reviewer) {
			return apperr.New(apperr.ErrForbidden, "only moderators can review documents")
		}
		doc, err = tx.LockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.Status.Terminal() {
			return apperr.New(apperr.ErrAlreadyReviewed, "document has already been "+string(doc.Status))
		}
		latest, err := tx.LatestReview(ctx, doc.ID)
		if err != nil {
			return err
		}
		if latest != nil && latest.Status.Terminal() {
			return apperr.New(apperr.ErrAlreadyReviewed, "document has already been "+string(latest.Status))
		}

		doc.Status = models.DocumentStatus(status)
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		review = &models.Review{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			ReviewerID: ptr(reviewer.ID),
			Status:     status,
			Comments:   strings.TrimSpace(comments),
			CreatedAt:  s.now(),
		}
		if err := tx.CreateReview(ctx, review); err != nil {
			return err
		}
		_, err = tx.DeactivateAssignments(ctx, doc.ID)
		return err
	})
	if err != nil {
		return nil, nil, s.conflict("review.submit", err)
	}

	s.metrics.Review(string(status))
	announce(ctx, s.events, events.Event{
		Type:       events.DocumentReviewed,
		DocumentID: doc.ID,
		ActorID:    actorID,
		Status:     string(status),
		OccurredAt: review.CreatedAt,
	})
	slog.Info("document reviewed",
		"action", "review.submit",
		"document_id", doc.ID.String(),
		"user_id", actorID.String(),
		"decision", string(status),
	)
	return doc, review, nil
}

// Resubmit sends a rejected document back to pending. Only description and
// tags may change; the note is kept in the audit entry.
func (s *ReviewService) Resubmit(ctx context.Context, actorID, documentID uuid.UUID, in *ResubmitInput) (*models.Document, *models.Review, error) {
	var doc *models.Document
	var review *models.Review
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		owner, err := loadActor(ctx, tx, actorID)
		if err != nil {
			return err
		}
		doc, err = tx.LockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if !access.IsOwner(owner, doc) {
			return apperr.New(apperr.ErrForbidden, "only the owner can resubmit this document")
		}
		if doc.Status != models.StatusRejected {
			return apperr.New(apperr.ErrNotRejected, "only rejected documents can be resubmitted; this one is "+string(doc.Status))
		}
		note := strings.TrimSpace(in.Note)
		if note == "" {
			return apperr.NewValidationError("a resubmission note is required")
		}

		if in.Description != nil {
			doc.Description = strings.TrimSpace(*in.Description)
		}
		if in.Tags != nil {
			doc.Tags = strings.TrimSpace(*in.Tags)
		}
		doc.Status = models.StatusPending
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		review = &models.Review{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			ReviewerID: ptr(owner.ID),
			Status:     models.ReviewResubmitted,
			Comments:   "Resubmitted with note: " + note,
			CreatedAt:  s.now(),
		}
		return tx.CreateReview(ctx, review)
	})
	if err != nil {
		return nil, nil, s.conflict("review.resubmit", err)
	}

	s.metrics.Resubmission()
	announce(ctx, s.events, events.Event{
		Type:       events.DocumentResubmitted,
		DocumentID: doc.ID,
		ActorID:    actorID,
		Status:     string(doc.Status),
		OccurredAt: review.CreatedAt,
	})
	slog.Info("document resubmitted", "action", "review.resubmit", "document_id", doc.ID.String(), "user_id", actorID.String())
	return doc, review, nil
}

// Assign binds the document to a moderator. A previous active assignment is
// superseded; pending documents move to under_review, other states are
// left as they are.
func (s *ReviewService) Assign(ctx context.Context, actorID, documentID, assigneeID uuid.UUID, dueDate *time.Time) (*models.Document, *models.ReviewAssignment, error) {
	var doc *models.Document
	var assignment *models.ReviewAssignment
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		assigner, err := loadActor(ctx, tx, actorID)
		if err != nil {
			return err
		}
		if !access.CanAdminister(assigner) {
			return apperr.New(apperr.ErrForbidden, "only administrators can assign reviewers")
		}
		assignee, err := tx.GetUser(ctx, assigneeID)
		if err != nil {
			if apperr.Is(err, apperr.ErrNotFound) {
				return apperr.New(apperr.ErrNotFound, "reviewer not found")
			}
			return err
		}
		if !assignee.IsActive || !access.CanModerate(assignee) {
			return apperr.NewValidationError("assignee must be an active staff member or superuser")
		}
		doc, err = tx.LockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if _, err := tx.DeactivateAssignments(ctx, doc.ID); err != nil {
			return err
		}
		now := s.now()
		assignment = &models.ReviewAssignment{
			ID:           uuid.New(),
			DocumentID:   doc.ID,
			AssignedToID: ptr(assignee.ID),
			AssignedByID: ptr(assigner.ID),
			DueDate:      dueDate,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateAssignment(ctx, assignment); err != nil {
			return err
		}
		if doc.Status == models.StatusPending {
			doc.Status = models.StatusUnderReview
			return tx.UpdateDocument(ctx, doc)
		}
		return nil
	})
	if err != nil {
		return nil, nil, s.conflict("review.assign", err)
	}

	s.metrics.Assignment()
	announce(ctx, s.events, events.Event{
		Type:       events.DocumentAssigned,
		DocumentID: doc.ID,
		ActorID:    actorID,
		Status:     string(doc.Status),
		AssigneeID: assignment.AssignedToID,
		OccurredAt: assignment.CreatedAt,
	})
	slog.Info("reviewer assigned",
		"action", "review.assign",
		"document_id", doc.ID.String(),
		"user_id", actorID.String(),
		"assignee_id", assigneeID.String(),
	)
	return doc, assignment, nil
}

// History lists the document's reviews newest first for its owner and for
// moderators. Reviewers whose account is gone show as "removed user".
func (s *ReviewService) History(ctx context.Context, actorID, documentID uuid.UUID) ([]dto.HistoryEntry, error) {
	actor, err := loadActor(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(actor, doc) {
		return nil, apperr.New(apperr.ErrForbidden, "you do not have access to this document's history")
	}
	reviews, err := s.store.ListReviews(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for _, r := range reviews {
		if r.ReviewerID != nil {
			ids = append(ids, *r.ReviewerID)
		}
	}
	users, err := s.store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	out := make([]dto.HistoryEntry, len(reviews))
	for i, r := range reviews {
		name := removedUser
		if r.ReviewerID != nil {
			if n, ok := names[*r.ReviewerID]; ok {
				name = n
			}
		}
		out[i] = dto.HistoryEntry{
			ID:         r.ID,
			Status:     r.Status,
			Comments:   r.Comments,
			ReviewerID: r.ReviewerID,
			Reviewer:   name,
			CreatedAt:  r.CreatedAt,
		}
	}
	return out, nil
}

// Assignments lists current and superseded assignments, newest first.
func (s *ReviewService) Assignments(ctx context.Context, actorID, documentID uuid.UUID) ([]models.ReviewAssignment, error) {
	actor, err := loadActor(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	if !access.CanModerate(actor) {
		return nil, apperr.New(apperr.ErrForbidden, "only moderators can view assignments")
	}
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.store.ListAssignments(ctx, documentID)
}

// Queue is the moderator's work view.
func (s *ReviewService) Queue(ctx context.Context, actorID uuid.UUID) (*dto.QueueResponse, error) {
	actor, err := loadActor(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	if !access.CanModerate(actor) {
		return nil, apperr.New(apperr.ErrForbidden, "only moderators can view the review queue")
	}

	unreviewed, err := s.store.UnreviewedDocuments(ctx, openStatuses, queueSize)
	if err != nil {
		return nil, err
	}
	mine, err := s.store.ActiveAssignmentsFor(ctx, actor.ID, openStatuses)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentReviewsBy(ctx, actor.ID, recentReviewsSize)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.store.CountDocumentsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	approvedToday, err := s.store.CountReviewsSince(ctx, models.ReviewApproved, startOfDay(s.now()))
	if err != nil {
		return nil, err
	}

	if unreviewed == nil {
		unreviewed = []models.Document{}
	}
	if mine == nil {
		mine = []models.ReviewAssignment{}
	}
	if recent == nil {
		recent = []models.Review{}
	}
	return &dto.QueueResponse{
		Unreviewed:    unreviewed,
		MyAssignments: mine,
		RecentReviews: recent,
		Stats: dto.QueueStats{
			Pending:       byStatus[models.StatusPending],
			UnderReview:   byStatus[models.StatusUnderReview],
			ApprovedToday: approvedToday,
			MyPending:     int64(len(mine)),
		},
	}, nil
}
