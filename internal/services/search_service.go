package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/repository"
)

const (
	SearchPageSize = 10
	recentSize     = 5
	dateLayout     = "2006-01-02"
)

// SearchQuery carries the raw query-string values.
type SearchQuery struct {
	Q        string
	DateFrom string
	DateTo   string
	FileType string
	Category string
	Sort     string
	Page     int
}

// SearchService only ever looks at the requester's own documents,
// whatever their role.
type SearchService struct {
	store repository.Store
}

func NewSearchService(store repository.Store) *SearchService {
	return &SearchService{store: store}
}

// parseDate returns nil for empty or malformed values so they do not filter.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func sortKey(field string, desc bool) string {
	if desc {
		return "-" + field
	}
	return field
}

func (q *SearchQuery) Filter() repository.SearchFilter {
	field, desc := repository.ParseSort(q.Sort)
	return repository.SearchFilter{
		Query:     strings.TrimSpace(q.Q),
		DateFrom:  parseDate(q.DateFrom),
		DateTo:    parseDate(q.DateTo),
		FileType:  strings.ToLower(strings.TrimSpace(q.FileType)),
		Category:  strings.TrimSpace(q.Category),
		SortField: field,
		SortDesc:  desc,
	}
}

// Search filters and pages the requester's documents. Pages below 1 become
// 1 and pages past the end become the last page.
func (s *SearchService) Search(ctx context.Context, actorID uuid.UUID, q *SearchQuery) (*dto.SearchResponse, error) {
	actor, err := loadActor(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	filter := q.Filter()
	page := q.Page
	if page < 1 {
		page = 1
	}

	docs, total, err := s.store.SearchDocuments(ctx, actor.ID, filter, SearchPageSize, (page-1)*SearchPageSize)
	if err != nil {
		return nil, err
	}
	totalPages := int((total + SearchPageSize - 1) / SearchPageSize)
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
		docs, total, err = s.store.SearchDocuments(ctx, actor.ID, filter, SearchPageSize, (page-1)*SearchPageSize)
		if err != nil {
			return nil, err
		}
	}

	fileTypes, categories, err := s.store.DocumentFacets(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	if fileTypes == nil {
		fileTypes = []string{}
	}
	if categories == nil {
		categories = []string{}
	}
	return &dto.SearchResponse{
		Documents:  docs,
		Total:      total,
		Page:       page,
		PageSize:   SearchPageSize,
		TotalPages: totalPages,
		Sort:       sortKey(filter.SortField, filter.SortDesc),
		FileTypes:  fileTypes,
		Categories: categories,
	}, nil
}

// Recent returns the requester's newest documents.
func (s *SearchService) Recent(ctx context.Context, actorID uuid.UUID) ([]models.Document, error) {
	actor, err := loadActor(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	filter := repository.SearchFilter{SortField: repository.SortCreatedAt, SortDesc: true}
	docs, _, err := s.store.SearchDocuments(ctx, actor.ID, filter, recentSize, 0)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}
