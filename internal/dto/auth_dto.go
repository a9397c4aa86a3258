package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID          uuid.UUID   `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Role        models.Role `json:"role"`
	IsStaff     bool        `json:"is_staff"`
	IsSuperuser bool        `json:"is_superuser"`
	IsActive    bool        `json:"is_active"`
	CanModerate bool        `json:"can_moderate"`
	CanAdmin    bool        `json:"can_administer"`
	CreatedAt   time.Time   `json:"created_at"`
}

type ErrorResponse struct {
	Error     bool     `json:"error"`
	Message   string   `json:"message"`
	Allowed   []string `json:"allowed,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
