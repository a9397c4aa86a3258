package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/access"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CurrentUser reloads the token's user on every request so role and flag
// changes take effect immediately. Deleted or deactivated accounts get 401.
func CurrentUser(users UserLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := identity.UserIDFromToken(c)
		if err != nil {
			return unauthorized(c, "Unauthorized")
		}
		user, err := users.GetUser(c.UserContext(), userID)
		if err != nil {
			if apperr.Is(err, apperr.ErrNotFound) {
				return unauthorized(c, "Account no longer exists")
			}
			slog.Error("load current user failed", "user_id", userID.String(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}
		if !user.IsActive {
			return unauthorized(c, "Account is deactivated")
		}
		identity.SetUser(c, user)
		return c.Next()
	}
}

// ModeratorRequired admits staff and superusers.
func ModeratorRequired() fiber.Handler {
	return gate(access.CanModerate, "Moderator access required")
}

// AdminRequired admits superusers and users with the admin role.
func AdminRequired() fiber.Handler {
	return gate(access.CanAdminister, "Admin access required")
}

func gate(allowed func(*models.User) bool, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := identity.User(c)
		if !ok {
			return unauthorized(c, "Unauthorized")
		}
		if !allowed(user) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: message,
			})
		}
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}
