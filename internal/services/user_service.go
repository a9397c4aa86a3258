package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/access"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/repository"
)

// UserService is the administrative side of the identity store.
type UserService struct {
	store repository.Store
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return loadActor(ctx, s.store, userID)
}

func (s *UserService) admin(ctx context.Context, store repository.UserRepository, actorID uuid.UUID) (*models.User, error) {
	actor, err := loadActor(ctx, store, actorID)
	if err != nil {
		return nil, err
	}
	if !access.CanAdminister(actor) {
		return nil, apperr.New(apperr.ErrForbidden, "admin access required")
	}
	return actor, nil
}

func parseRole(raw string) (models.Role, error) {
	role := models.Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		allowed := make([]string, len(models.Roles))
		for i, r := range models.Roles {
			allowed[i] = string(r)
		}
		return "", apperr.NewValidationError("unknown role", allowed...)
	}
	return role, nil
}

// List returns every user, or only those holding role when it is non-empty.
func (s *UserService) List(ctx context.Context, actorID uuid.UUID, role string) ([]models.User, error) {
	if _, err := s.admin(ctx, s.store, actorID); err != nil {
		return nil, err
	}
	var filter models.Role
	if strings.TrimSpace(role) != "" {
		r, err := parseRole(role)
		if err != nil {
			return nil, err
		}
		filter = r
	}
	return s.store.ListUsers(ctx, filter)
}

func (s *UserService) Create(ctx context.Context, actorID uuid.UUID, req *dto.CreateUserRequest) (*models.User, error) {
	if _, err := s.admin(ctx, s.store, actorID); err != nil {
		return nil, err
	}
	role := models.RoleUser
	if req.Role != "" {
		r, err := parseRole(req.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}
	user, err := newAccount(req.Username, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	user.Role = role
	user.IsStaff = req.IsStaff
	user.IsSuperuser = req.IsSuperuser
	if err := createAccount(ctx, s.store, user); err != nil {
		return nil, err
	}
	slog.Info("user created", "action", "users.create", "user_id", actorID.String(), "target_id", user.ID.String(), "role", string(role))
	return user, nil
}

// update applies fn to the target user inside a transaction after
// re-checking the actor's authority.
func (s *UserService) update(ctx context.Context, actorID, userID uuid.UUID, action string, fn func(actor, target *models.User) error) (*models.User, error) {
	var out *models.User
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		actor, err := s.admin(ctx, tx, actorID)
		if err != nil {
			return err
		}
		target, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(actor, target); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, target); err != nil {
			return err
		}
		out = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("user updated", "action", action, "user_id", actorID.String(), "target_id", userID.String())
	return out, nil
}

func (s *UserService) SetRole(ctx context.Context, actorID, userID uuid.UUID, role string) (*models.User, error) {
	r, err := parseRole(role)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, actorID, userID, "users.set_role", func(_, target *models.User) error {
		target.Role = r
		return nil
	})
}

// SetPermissions changes the staff and superuser flags. Nil leaves a flag
// unchanged.
func (s *UserService) SetPermissions(ctx context.Context, actorID, userID uuid.UUID, isStaff, isSuperuser *bool) (*models.User, error) {
	return s.update(ctx, actorID, userID, "users.set_permissions", func(actor, target *models.User) error {
		if actor.ID == target.ID && isSuperuser != nil && !*isSuperuser && actor.IsSuperuser {
			return apperr.NewValidationError("you cannot remove your own superuser status")
		}
		if isStaff != nil {
			target.IsStaff = *isStaff
		}
		if isSuperuser != nil {
			target.IsSuperuser = *isSuperuser
		}
		return nil
	})
}

// SetActive deactivates or reactivates an account. Documents owned by a
// deactivated user are kept.
func (s *UserService) SetActive(ctx context.Context, actorID, userID uuid.UUID, active bool) (*models.User, error) {
	return s.update(ctx, actorID, userID, "users.set_active", func(actor, target *models.User) error {
		if actor.ID == target.ID && !active {
			return apperr.NewValidationError("you cannot deactivate your own account")
		}
		target.IsActive = active
		return nil
	})
}

// RoleStats counts users per role; roles with no users report zero.
func (s *UserService) RoleStats(ctx context.Context, actorID uuid.UUID) (*dto.RoleStatsResponse, error) {
	if _, err := s.admin(ctx, s.store, actorID); err != nil {
		return nil, err
	}
	counts, err := s.store.CountUsersByRole(ctx)
	if err != nil {
		return nil, err
	}
	out := &dto.RoleStatsResponse{Roles: make(map[string]int64, len(models.Roles))}
	for _, r := range models.Roles {
		out.Roles[string(r)] = counts[r]
		out.Total += counts[r]
	}
	return out, nil
}
