package models

import (
	"time"

	"github.com/google/uuid"
)

type ReviewStatus string

const (
	ReviewPending     ReviewStatus = "pending"
	ReviewUnderReview ReviewStatus = "under_review"
	ReviewApproved    ReviewStatus = "approved"
	ReviewRejected    ReviewStatus = "rejected"
	ReviewResubmitted ReviewStatus = "resubmitted"
)

// Terminal reports whether the review records a final decision.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewApproved || s == ReviewRejected
}

// Review is an append-only audit record. ReviewerID is a weak reference: it
// becomes NULL when the reviewer account is removed and the row survives.
type Review struct {
	ID         uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DocumentID uuid.UUID    `gorm:"type:uuid;not null;index" json:"document_id"`
	ReviewerID *uuid.UUID   `gorm:"type:uuid;index" json:"reviewer_id"`
	Status     ReviewStatus `gorm:"size:20;not null;check:chk_reviews_status,status IN ('pending','under_review','approved','rejected','resubmitted')" json:"status"`
	Comments   string       `gorm:"type:text" json:"comments"`
	CreatedAt  time.Time    `gorm:"not null;index" json:"created_at"`
	Document   Document     `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
	Reviewer   *User        `gorm:"foreignKey:ReviewerID;constraint:OnDelete:SET NULL" json:"-"`
}
