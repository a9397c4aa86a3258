package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewAssignment binds a document to a reviewer. Superseded rows are kept
// with IsActive=false; the partial unique index allows one active row per
// document.
type ReviewAssignment struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DocumentID   uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_review_assignments_active,where:is_active = true" json:"document_id"`
	AssignedToID *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to_id"`
	AssignedByID *uuid.UUID `gorm:"type:uuid" json:"assigned_by_id"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Document     Document   `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
	AssignedTo   *User      `gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL" json:"-"`
	AssignedBy   *User      `gorm:"foreignKey:AssignedByID;constraint:OnDelete:SET NULL" json:"-"`
}
