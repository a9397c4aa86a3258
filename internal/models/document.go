package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	StatusPending     DocumentStatus = "pending"
	StatusUnderReview DocumentStatus = "under_review"
	StatusApproved    DocumentStatus = "approved"
	StatusRejected    DocumentStatus = "rejected"
)

// Valid reports whether s is one of the four document states.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s is a review decision.
func (s DocumentStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

const FileTypeOther = "other"

// SupportedFileTypes is the extension whitelist enforced at upload time.
var SupportedFileTypes = []string{"pdf", "docx", "xlsx", "txt", "jpg", "png"}

// FileTypeFromName derives the file type from the lower-cased extension of
// name, falling back to FileTypeOther.
func FileTypeFromName(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, t := range SupportedFileTypes {
		if ext == t {
			return t
		}
	}
	return FileTypeOther
}

// Document is owned exclusively by OwnerID. FileType and Size are written
// once on creation.
type Document struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title            string         `gorm:"size:200;not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	BlobRef          string         `gorm:"size:255;not null" json:"-"`
	OriginalFilename string         `gorm:"size:255;not null" json:"filename"`
	FileType         string         `gorm:"size:10;not null;index" json:"file_type"`
	Size             int64          `gorm:"not null" json:"size"`
	Author           string         `gorm:"size:100" json:"author"`
	Category         string         `gorm:"size:100;index" json:"category"`
	Tags             string         `gorm:"size:255" json:"tags"`
	Status           DocumentStatus `gorm:"size:20;not null;default:'pending';index;check:chk_documents_status,status IN ('pending','under_review','approved','rejected')" json:"status"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Owner            User           `gorm:"foreignKey:OwnerID;constraint:OnDelete:RESTRICT" json:"-"`
}
