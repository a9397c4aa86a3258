// Package identity moves the authenticated user through fiber locals.
package identity

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

const (
	tokenLocal = "user"
	userLocal  = "current_user"
)

// UserIDFromToken extracts the subject of the verified JWT.
func UserIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals(tokenLocal).(*jwt.Token)
	if !ok || token == nil {
		return uuid.Nil, errors.New("invalid token in context")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, errors.New("missing sub claim")
	}
	return uuid.Parse(sub)
}

func SetUser(c *fiber.Ctx, user *models.User) {
	c.Locals(userLocal, user)
}

// User returns the user loaded for this request by the CurrentUser
// middleware.
func User(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(userLocal).(*models.User)
	return user, ok && user != nil
}

// UserID returns the loaded user's ID, falling back to the token subject.
func UserID(c *fiber.Ctx) (uuid.UUID, error) {
	if user, ok := User(c); ok {
		return user.ID, nil
	}
	return UserIDFromToken(c)
}
