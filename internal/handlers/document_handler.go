package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/services"
)

type DocumentHandler struct {
	documentService *services.DocumentService
	reviewService   *services.ReviewService
}

func NewDocumentHandler(documentService *services.DocumentService, reviewService *services.ReviewService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, reviewService: reviewService}
}

// Upload accepts multipart/form-data with a "file" part and the metadata
// fields title, description, author, category and tags.
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}

	in := &services.UploadInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Author:      c.FormValue("author"),
		Category:    c.FormValue("category"),
		Tags:        c.FormValue("tags"),
		Body:        strings.NewReader(""),
	}
	if fh, err := c.FormFile("file"); err == nil {
		in.Filename = fh.Filename
		in.Size = fh.Size
		if err := services.ValidateUpload(in); err == nil {
			f, err := fh.Open()
			if err != nil {
				return respondError(c, fmt.Errorf("open upload: %w", err))
			}
			defer f.Close()
			in.Body = f
		}
	}

	doc, err := h.documentService.Upload(c.UserContext(), userID, in)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (h *DocumentHandler) List(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}

	docs, err := h.documentService.ListMine(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.DocumentListResponse{Documents: docs, Count: len(docs)})
}

func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	doc, err := h.documentService.Get(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(doc)
}

func (h *DocumentHandler) Download(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	doc, body, err := h.documentService.Download(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set(fiber.HeaderContentDisposition, contentDisposition(doc.OriginalFilename))
	return c.SendStream(body, int(doc.Size))
}

func contentDisposition(filename string) string {
	filename = strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(filename)
	return fmt.Sprintf(`attachment; filename="%s"`, filename)
}

func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.documentService.Delete(c.UserContext(), userID, id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Document deleted successfully"})
}

func (h *DocumentHandler) History(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	entries, err := h.reviewService.History(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.HistoryResponse{DocumentID: id, Reviews: entries})
}

func (h *DocumentHandler) Resubmit(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.ResubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	doc, review, err := h.reviewService.Resubmit(c.UserContext(), userID, id, &services.ResubmitInput{
		Description: req.Description,
		Tags:        req.Tags,
		Note:        req.Note,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.ReviewResponse{Document: *doc, Review: *review})
}
