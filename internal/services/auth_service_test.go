package services

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	resp, err := f.auth.Register(f.ctx, &dto.RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, resp.User.Role)
	require.False(t, resp.User.CanModerate)
	require.False(t, resp.User.CanAdmin)
	require.NotEmpty(t, resp.RefreshToken)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(f.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(f.clock.Now))
	require.NoError(t, err)
	require.Equal(t, resp.User.ID.String(), claims.Subject)

	_, err = f.auth.Login(f.ctx, &dto.LoginRequest{Email: "ANA@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = f.auth.Login(f.ctx, &dto.LoginRequest{Email: "ana@example.com", Password: "wrong-password"})
	require.True(t, apperr.Is(err, apperr.ErrUnauthorized), err)
	_, err = f.auth.Login(f.ctx, &dto.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	require.True(t, apperr.Is(err, apperr.ErrUnauthorized), err)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ana")

	cases := []struct {
		name string
		req  dto.RegisterRequest
		kind error
	}{
		{"blank username", dto.RegisterRequest{Username: " ", Email: "x@example.com", Password: "password123"}, apperr.ErrValidation},
		{"bad email", dto.RegisterRequest{Username: "x", Email: "not-an-email", Password: "password123"}, apperr.ErrValidation},
		{"short password", dto.RegisterRequest{Username: "x", Email: "x@example.com", Password: "short"}, apperr.ErrValidation},
		{"taken username", dto.RegisterRequest{Username: "ana", Email: "x@example.com", Password: "password123"}, apperr.ErrConflict},
		{"taken email", dto.RegisterRequest{Username: "x", Email: "ana@example.com", Password: "password123"}, apperr.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.auth.Register(f.ctx, &tc.req)
			require.True(t, apperr.Is(err, tc.kind), err)
		})
	}
}

func TestRegisterAdminEmail(t *testing.T) {
	f := newFixture(t)

	resp, err := f.auth.Register(f.ctx, &dto.RegisterRequest{Username: "root", Email: "Root@Example.com", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, resp.User.Role)
	require.True(t, resp.User.IsStaff)
	require.True(t, resp.User.IsSuperuser)
	require.True(t, resp.User.CanModerate)
	require.True(t, resp.User.CanAdmin)
}

func TestLoginRefusesDeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ana", inactive)

	_, err := f.auth.Login(f.ctx, &dto.LoginRequest{Email: u.Email, Password: "password123"})
	require.True(t, apperr.Is(err, apperr.ErrUnauthorized), err)
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := newFixture(t)
	resp, err := f.auth.Register(f.ctx, &dto.RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "password123"})
	require.NoError(t, err)

	next, err := f.auth.Refresh(f.ctx, &dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, resp.RefreshToken, next.RefreshToken)

	_, err = f.auth.Refresh(f.ctx, &dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.True(t, apperr.Is(err, apperr.ErrUnauthorized), "reused token: %v", err)

	require.NoError(t, f.auth.Logout(f.ctx, &dto.LogoutRequest{RefreshToken: next.RefreshToken}))
	_, err = f.auth.Refresh(f.ctx, &dto.RefreshRequest{RefreshToken: next.RefreshToken})
	require.True(t, apperr.Is(err, apperr.ErrUnauthorized), "logged out token: %v", err)

	err = f.auth.Logout(f.ctx, &dto.LogoutRequest{})
	require.True(t, apperr.Is(err, apperr.ErrValidation), err)
}

func TestConcurrentRefreshRotatesOnce(t *testing.T) {
	f := newFixture(t)
	resp, err := f.auth.Register(f.ctx, &dto.RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "password123"})
	require.NoError(t, err)

	const callers = 6
	var wg sync.WaitGroup
	results := make([]*dto.AuthResponse, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.auth.Refresh(f.ctx, &dto.RefreshRequest{RefreshToken: resp.RefreshToken})
		}(i)
	}
	wg.Wait()

	var winner *dto.AuthResponse
	for i, err := range errs {
		if err == nil {
			require.Nil(t, winner, "token rotated twice")
			winner = results[i]
			continue
		}
		require.True(t, apperr.Is(err, apperr.ErrUnauthorized), err)
	}
	require.NotNil(t, winner)

	_, err = f.auth.Refresh(f.ctx, &dto.RefreshRequest{RefreshToken: winner.RefreshToken})
	require.NoError(t, err)
}

func TestRefreshExpiredToken(t *testing.T) {
	f := newFixture(t)
	resp, err := f.auth.Register(f.ctx, &dto.RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "password123"})
	require.NoError(t, err)

	f.clock.t = f.clock.t.Add(f.cfg.JWTRefreshExpiry + time.Minute)
	_, err = f.auth.Refresh(f.ctx, &dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.True(t, apperr.Is(err, apperr.ErrUnauthorized), err)
}

func TestRefreshForDeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	resp, err := f.auth.Register(f.ctx, &dto.RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "password123"})
	require.NoError(t, err)
	admin := f.user(t, "root", superuser)
	_, err = f.users.SetActive(f.ctx, admin.ID, resp.User.ID, false)
	require.NoError(t, err)

	_, err = f.auth.Refresh(f.ctx, &dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.True(t, apperr.Is(err, apperr.ErrUnauthorized), err)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "ana")
	reviewer := f.user(t, "rui", staff)
	admin := f.user(t, "root", superuser)
	doc := f.upload(t, owner, "Report", "r.pdf", "x")
	_, _, err := f.reviews.Assign(f.ctx, admin.ID, doc.ID, reviewer.ID, nil)
	require.NoError(t, err)

	err = f.auth.DeleteAccount(f.ctx, owner.ID, "")
	require.True(t, apperr.Is(err, apperr.ErrValidation), err)
	err = f.auth.DeleteAccount(f.ctx, owner.ID, "wrong-password")
	require.True(t, apperr.Is(err, apperr.ErrUnauthorized), err)
	err = f.auth.DeleteAccount(f.ctx, owner.ID, "password123")
	require.True(t, apperr.Is(err, apperr.ErrConflict), "owner of documents: %v", err)

	require.NoError(t, f.auth.DeleteAccount(f.ctx, reviewer.ID, "password123"))
	_, err = f.store.GetUser(f.ctx, reviewer.ID)
	require.True(t, apperr.Is(err, apperr.ErrNotFound), err)

	current, err := f.store.ActiveAssignment(f.ctx, doc.ID)
	require.NoError(t, err)
	require.Nil(t, current)
	all, err := f.store.ListAssignments(f.ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Nil(t, all[0].AssignedToID)

	err = f.auth.DeleteAccount(f.ctx, reviewer.ID, "password123")
	require.True(t, apperr.Is(err, apperr.ErrUnauthorized), err)
}
