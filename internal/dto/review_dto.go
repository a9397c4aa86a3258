package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

type SubmitReviewRequest struct {
	Decision string `json:"decision"`
	Comments string `json:"comments"`
}

type ResubmitRequest struct {
	Description *string `json:"description"`
	Tags        *string `json:"tags"`
	Note        string  `json:"note"`
}

type AssignRequest struct {
	AssignedTo uuid.UUID `json:"assigned_to"`
	// DueDate accepts YYYY-MM-DD or RFC 3339.
	DueDate string `json:"due_date"`
}

type ReviewResponse struct {
	Document models.Document `json:"document"`
	Review   models.Review   `json:"review"`
}

type AssignResponse struct {
	Document   models.Document         `json:"document"`
	Assignment models.ReviewAssignment `json:"assignment"`
}

type HistoryEntry struct {
	ID         uuid.UUID           `json:"id"`
	Status     models.ReviewStatus `json:"status"`
	Comments   string              `json:"comments"`
	ReviewerID *uuid.UUID          `json:"reviewer_id"`
	Reviewer   string              `json:"reviewer"`
	CreatedAt  time.Time           `json:"created_at"`
}

type HistoryResponse struct {
	DocumentID uuid.UUID      `json:"document_id"`
	Reviews    []HistoryEntry `json:"reviews"`
}

type QueueStats struct {
	Pending       int64 `json:"pending"`
	UnderReview   int64 `json:"under_review"`
	ApprovedToday int64 `json:"approved_today"`
	MyPending     int64 `json:"my_pending"`
}

type QueueResponse struct {
	Unreviewed    []models.Document         `json:"unreviewed"`
	MyAssignments []models.ReviewAssignment `json:"my_assignments"`
	RecentReviews []models.Review           `json:"recent_reviews"`
	Stats         QueueStats                `json:"stats"`
}
