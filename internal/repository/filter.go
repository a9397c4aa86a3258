package repository

import (
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

const (
	SortTitle     = "title"
	SortCreatedAt = "created_at"
	SortSize      = "size"
)

// SearchFilter narrows an owner's documents. Zero fields do not filter.
type SearchFilter struct {
	Query    string
	DateFrom *time.Time
	// DateTo is inclusive of the whole day.
	DateTo   *time.Time
	FileType string
	Category string

	SortField string
	SortDesc  bool
}

// ParseSort accepts title, created_at and size with an optional "-" prefix,
// plus the aliases uploaded_at and file_size. Unknown keys yield
// newest-first ordering.
func ParseSort(key string) (field string, desc bool) {
	key = strings.TrimSpace(key)
	desc = strings.HasPrefix(key, "-")
	switch strings.TrimPrefix(key, "-") {
	case "title":
		return SortTitle, desc
	case "created_at", "uploaded_at":
		return SortCreatedAt, desc
	case "size", "file_size":
		return SortSize, desc
	}
	return SortCreatedAt, true
}

// Bounds returns the creation-time window as [from, until).
func (f SearchFilter) Bounds() (from, until *time.Time) {
	if f.DateFrom != nil {
		d := startOfDay(*f.DateFrom)
		from = &d
	}
	if f.DateTo != nil {
		d := startOfDay(*f.DateTo).AddDate(0, 0, 1)
		until = &d
	}
	return from, until
}

// Matches applies the filter to a single document in memory.
func (f SearchFilter) Matches(doc *models.Document) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !containsFold(doc.Title, q) && !containsFold(doc.Description, q) &&
			!containsFold(doc.Author, q) && !containsFold(doc.Tags, q) {
			return false
		}
	}
	from, until := f.Bounds()
	if from != nil && doc.CreatedAt.Before(*from) {
		return false
	}
	if until != nil && !doc.CreatedAt.Before(*until) {
		return false
	}
	if f.FileType != "" && doc.FileType != f.FileType {
		return false
	}
	if c := strings.ToLower(strings.TrimSpace(f.Category)); c != "" && !containsFold(doc.Category, c) {
		return false
	}
	return true
}

// Less orders two documents according to the filter's sort settings.
func (f SearchFilter) Less(a, b *models.Document) bool {
	field := f.SortField
	if field == "" {
		field = SortCreatedAt
	}
	var less, equal bool
	switch field {
	case SortTitle:
		less, equal = a.Title < b.Title, a.Title == b.Title
	case SortSize:
		less, equal = a.Size < b.Size, a.Size == b.Size
	default:
		less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	}
	if equal {
		return false
	}
	if f.SortDesc {
		return !less
	}
	return less
}

func containsFold(s, lowerSub string) bool {
	return strings.Contains(strings.ToLower(s), lowerSub)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
