package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/services"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

func (h *ReviewHandler) Queue(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}

	queue, err := h.reviewService.Queue(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(queue)
}

func (h *ReviewHandler) Submit(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.SubmitReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	doc, review, err := h.reviewService.Submit(c.UserContext(), userID, id, req.Decision, req.Comments)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.ReviewResponse{Document: *doc, Review: *review})
}

func (h *ReviewHandler) Assignments(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	assignments, err := h.reviewService.Assignments(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"document_id": id, "assignments": assignments})
}

func (h *ReviewHandler) Assign(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.AssignedTo == uuid.Nil {
		return badRequest(c, "assigned_to is required")
	}
	due, ok := parseDueDate(req.DueDate)
	if !ok {
		return badRequest(c, "due_date must be YYYY-MM-DD or RFC 3339")
	}

	doc, assignment, err := h.reviewService.Assign(c.UserContext(), userID, id, req.AssignedTo, due)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.AssignResponse{Document: *doc, Assignment: *assignment})
}

func parseDueDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}
