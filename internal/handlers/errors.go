package handlers

import (
	"errors"
	"log/slog"

	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/identity"
)

var statusByKind = []struct {
	kind error
	code int
}{
	{apperr.ErrUnauthorized, fiber.StatusUnauthorized},
	{apperr.ErrForbidden, fiber.StatusForbidden},
	{apperr.ErrNotFound, fiber.StatusNotFound},
	{apperr.ErrValidation, fiber.StatusBadRequest},
	{apperr.ErrAlreadyReviewed, fiber.StatusConflict},
	{apperr.ErrNotRejected, fiber.StatusConflict},
	{apperr.ErrStoreConflict, fiber.StatusConflict},
	{apperr.ErrConflict, fiber.StatusConflict},
}

// respondError translates a service error into the JSON error body. Server
// errors are logged and reported to Sentry with their details hidden.
func respondError(c *fiber.Ctx, err error) error {
	for _, s := range statusByKind {
		if !apperr.Is(err, s.kind) {
			continue
		}
		resp := dto.ErrorResponse{Error: true, Message: err.Error()}
		var ve *apperr.ValidationError
		if errors.As(err, &ve) {
			resp.Message = ve.Message
			resp.Allowed = ve.Allowed
		}
		if s.kind == apperr.ErrStoreConflict {
			resp.Message = apperr.ErrStoreConflict.Error()
			resp.Retryable = true
		}
		return c.Status(s.code).JSON(resp)
	}

	slog.Error("request failed",
		"request_id", requestID(c),
		"method", c.Method(),
		"path", c.Path(),
		"error", err.Error(),
	)
	if hub := sentryfiber.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Internal server error",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

// actorID is the authenticated caller. The routes only reach handlers that
// use it through JWTProtected and CurrentUser.
func actorID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := identity.UserID(c)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	return id, nil
}

func pathID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.ErrNotFound, "resource not found")
	}
	return id, nil
}
