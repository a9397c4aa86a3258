// Package repository is the persistence boundary of the workflow. The
// database is the only synchronization point: every read-modify-write runs
// inside Store.Transaction after LockDocument.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, username, email string) (bool, error)
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
	UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	CountUsersByRole(ctx context.Context) (map[models.Role]int64, error)
	// DetachUser clears every weak reference to the user (reviews, assignments)
	// and deletes their refresh tokens.
	DetachUser(ctx context.Context, id uuid.UUID) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// GetRefreshToken returns a non-revoked token by hash.
	GetRefreshToken(ctx context.Context, hash string) (*models.RefreshToken, error)
	// LockRefreshToken is GetRefreshToken with a write lock held until the
	// surrounding transaction ends.
	LockRefreshToken(ctx context.Context, hash string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, hash string) error
}

type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// LockDocument reads the document row with a write lock held until the
	// surrounding transaction ends.
	LockDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	DocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Document, error)
	// UpdateDocument persists the mutable columns: status, description, tags.
	UpdateDocument(ctx context.Context, doc *models.Document) error
	// DeleteDocument removes the document row with its reviews and assignments.
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	CountDocumentsByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	SearchDocuments(ctx context.Context, ownerID uuid.UUID, filter SearchFilter, limit, offset int) ([]models.Document, int64, error)
	DocumentFacets(ctx context.Context, ownerID uuid.UUID) (fileTypes []string, categories []string, err error)
	// UnreviewedDocuments lists documents in one of statuses that have no
	// review yet, newest first.
	UnreviewedDocuments(ctx context.Context, statuses []models.DocumentStatus, limit int) ([]models.Document, error)
	CountDocumentsByStatus(ctx context.Context) (map[models.DocumentStatus]int64, error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	// ListReviews returns the document's reviews newest first.
	ListReviews(ctx context.Context, documentID uuid.UUID) ([]models.Review, error)
	// LatestReview returns nil when the document has no reviews.
	LatestReview(ctx context.Context, documentID uuid.UUID) (*models.Review, error)
	RecentReviewsBy(ctx context.Context, reviewerID uuid.UUID, limit int) ([]models.Review, error)
	CountReviewsSince(ctx context.Context, status models.ReviewStatus, since time.Time) (int64, error)
}

type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, assignment *models.ReviewAssignment) error
	// DeactivateAssignments flips every active assignment of the document to
	// inactive and reports how many rows changed.
	DeactivateAssignments(ctx context.Context, documentID uuid.UUID) (int64, error)
	// ActiveAssignment returns nil when the document has no active assignment.
	ActiveAssignment(ctx context.Context, documentID uuid.UUID) (*models.ReviewAssignment, error)
	// ListAssignments returns current and superseded assignments newest first.
	ListAssignments(ctx context.Context, documentID uuid.UUID) ([]models.ReviewAssignment, error)
	ActiveAssignmentsFor(ctx context.Context, reviewerID uuid.UUID, statuses []models.DocumentStatus) ([]models.ReviewAssignment, error)
}

type Store interface {
	UserRepository
	TokenRepository
	DocumentRepository
	ReviewRepository
	AssignmentRepository

	// Transaction runs fn atomically; any error returned by fn rolls back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
