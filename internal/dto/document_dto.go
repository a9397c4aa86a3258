package dto

import "github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"

type DocumentListResponse struct {
	Documents []models.Document `json:"documents"`
	Count     int               `json:"count"`
}

type SearchResponse struct {
	Documents  []models.Document `json:"documents"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
	Sort       string            `json:"sort"`
	FileTypes  []string          `json:"file_types"`
	Categories []string          `json:"categories"`
}
