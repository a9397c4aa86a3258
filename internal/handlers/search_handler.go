package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/services"
)

type SearchHandler struct {
	searchService *services.SearchService
}

func NewSearchHandler(searchService *services.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search reads q, date_from, date_to, file_type, category, sort and page
// from the query string.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}

	res, err := h.searchService.Search(c.UserContext(), userID, &services.SearchQuery{
		Q:        c.Query("q"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		FileType: c.Query("file_type"),
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
		Page:     c.QueryInt("page", 1),
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(res)
}

func (h *SearchHandler) Recent(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}

	docs, err := h.searchService.Recent(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.DocumentListResponse{Documents: docs, Count: len(docs)})
}
