package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/access"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/repository"
)

const minPasswordLength = 8

var (
	errInvalidCredentials = apperr.New(apperr.ErrUnauthorized, "invalid email or password")
	errInvalidToken       = apperr.New(apperr.ErrUnauthorized, "invalid or expired refresh token")
)

type AuthService struct {
	store repository.Store
	cfg   *config.Config
	now   func() time.Time
}

func NewAuthService(store repository.Store, cfg *config.Config) *AuthService {
	return &AuthService{store: store, cfg: cfg, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	user, err := newAccount(req.Username, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if s.cfg.IsAdminEmail(user.Email) {
		user.Role = models.RoleAdmin
		user.IsStaff = true
		user.IsSuperuser = true
	}
	if err := createAccount(ctx, s.store, user); err != nil {
		return nil, err
	}
	slog.Info("user registered", "action", "auth.register", "user_id", user.ID.String(), "role", string(user.Role))
	return s.generateTokenPair(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if apperr.Is(err, apperr.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.ErrUnauthorized, "account is deactivated")
	}
	return s.generateTokenPair(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued in one transaction. The token row is locked, so concurrent
// rotations of the same token see it revoked and all but one fail.
func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	hash := hashToken(req.RefreshToken)
	var resp *dto.AuthResponse
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		stored, err := tx.LockRefreshToken(ctx, hash)
		if err != nil {
			if apperr.Is(err, apperr.ErrNotFound) {
				return errInvalidToken
			}
			return err
		}
		if s.now().After(stored.ExpiresAt) {
			return errInvalidToken
		}
		if err := tx.RevokeRefreshToken(ctx, hash); err != nil {
			return err
		}
		user, err := loadActor(ctx, tx, stored.UserID)
		if err != nil {
			return err
		}
		resp, err = s.issueTokenPair(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *AuthService) Logout(ctx context.Context, req *dto.LogoutRequest) error {
	if req.RefreshToken == "" {
		return apperr.NewValidationError("refresh_token is required")
	}
	return s.store.RevokeRefreshToken(ctx, hashToken(req.RefreshToken))
}

// DeleteAccount removes the caller's account. Accounts that still own
// documents are refused; reviews they wrote survive with a NULL reviewer.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID, password string) error {
	if password == "" {
		return apperr.NewValidationError("password is required")
	}
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := loadActor(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
			return apperr.New(apperr.ErrUnauthorized, "incorrect password")
		}
		owned, err := tx.CountDocumentsByOwner(ctx, user.ID)
		if err != nil {
			return err
		}
		if owned > 0 {
			return apperr.New(apperr.ErrConflict, fmt.Sprintf("account still owns %d document(s); delete them first", owned))
		}
		if err := tx.DetachUser(ctx, user.ID); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, user.ID)
	})
	if err != nil {
		return err
	}
	slog.Info("account deleted", "action", "auth.delete_account", "user_id", userID.String())
	return nil
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *models.User) (*dto.AuthResponse, error) {
	return s.issueTokenPair(ctx, s.store, user)
}

func (s *AuthService) issueTokenPair(ctx context.Context, tokens repository.TokenRepository, user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateRefreshToken(ctx, tokens, user)
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         UserResponse(user),
	}, nil
}

// generateAccessToken carries identity only. Authority is loaded from the
// store on every request.
func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTAccessExpiry)),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, tokens repository.TokenRepository, user *models.User) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	rawToken := base64.URLEncoding.EncodeToString(rawBytes)

	record := models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: s.now().Add(s.cfg.JWTRefreshExpiry),
	}
	if err := tokens.CreateRefreshToken(ctx, &record); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return rawToken, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

// newAccount validates credentials and returns an active user with the
// default role and a bcrypt password hash.
func newAccount(username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, apperr.NewValidationError("username is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.NewValidationError("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &models.User{
		ID:       uuid.New(),
		Username: username,
		Email:    email,
		Password: string(hash),
		Role:     models.RoleUser,
		IsActive: true,
	}, nil
}

func createAccount(ctx context.Context, store repository.UserRepository, user *models.User) error {
	taken, err := store.UserExists(ctx, user.Username, user.Email)
	if err != nil {
		return err
	}
	if taken {
		return apperr.New(apperr.ErrConflict, "username or email already registered")
	}
	if err := store.CreateUser(ctx, user); err != nil {
		if apperr.Is(err, apperr.ErrStoreConflict) {
			return apperr.New(apperr.ErrConflict, "username or email already registered")
		}
		return err
	}
	return nil
}

func UserResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
		CanModerate: access.CanModerate(u),
		CanAdmin:    access.CanAdminister(u),
		CreatedAt:   u.CreatedAt,
	}
}
