package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/services"
)

// UserHandler serves the admin user-management endpoints.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func userList(users []models.User) []dto.UserResponse {
	out := make([]dto.UserResponse, len(users))
	for i := range users {
		out[i] = services.UserResponse(&users[i])
	}
	return out
}

func (h *UserHandler) List(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}

	users, err := h.userService.List(c.UserContext(), userID, c.Query("role"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"users": userList(users), "count": len(users)})
}

func (h *UserHandler) Create(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.userService.Create(c.UserContext(), userID, &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(services.UserResponse(user))
}

func (h *UserHandler) SetRole(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	targetID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.SetRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.userService.SetRole(c.UserContext(), userID, targetID, req.Role)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(services.UserResponse(user))
}

func (h *UserHandler) SetPermissions(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	targetID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.SetPermissionsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.userService.SetPermissions(c.UserContext(), userID, targetID, req.IsStaff, req.IsSuperuser)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(services.UserResponse(user))
}

func (h *UserHandler) SetActive(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}
	targetID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.SetActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.userService.SetActive(c.UserContext(), userID, targetID, req.IsActive)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(services.UserResponse(user))
}

func (h *UserHandler) RoleStats(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return respondError(c, err)
	}

	stats, err := h.userService.RoleStats(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(stats)
}
