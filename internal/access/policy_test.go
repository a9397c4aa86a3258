package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

func user(role models.Role, staff, super bool) *models.User {
	return &models.User{ID: uuid.New(), Role: role, IsStaff: staff, IsSuperuser: super, IsActive: true}
}

func TestCanModerate(t *testing.T) {
	require.True(t, CanModerate(user(models.RoleUser, true, false)))
	require.True(t, CanModerate(user(models.RoleUser, false, true)))
	require.False(t, CanModerate(user(models.RoleReviewer, false, false)))
	require.False(t, CanModerate(user(models.RoleAdmin, false, false)))
	require.False(t, CanModerate(nil))
}

func TestCanAdminister(t *testing.T) {
	require.True(t, CanAdminister(user(models.RoleUser, false, true)))
	require.True(t, CanAdminister(user(models.RoleAdmin, false, false)))
	require.False(t, CanAdminister(user(models.RoleManager, true, false)))
	require.False(t, CanAdminister(user(models.RoleUser, true, false)))
}

func TestCanView(t *testing.T) {
	owner := user(models.RoleUser, false, false)
	doc := &models.Document{ID: uuid.New(), OwnerID: owner.ID}

	t.Run("owner sees own document", func(t *testing.T) {
		require.True(t, CanView(owner, doc))
	})
	t.Run("staff and superusers see every document", func(t *testing.T) {
		require.True(t, CanView(user(models.RoleUser, true, false), doc))
		require.True(t, CanView(user(models.RoleUser, false, true), doc))
	})
	t.Run("anyone else is refused", func(t *testing.T) {
		require.False(t, CanView(user(models.RoleUser, false, false), doc))
		require.False(t, CanView(user(models.RoleReviewer, false, false), doc))
		require.False(t, CanView(user(models.RoleAdmin, false, false), doc))
		require.False(t, CanView(nil, doc))
	})
}

func TestCanDelete(t *testing.T) {
	owner := user(models.RoleUser, false, false)
	doc := &models.Document{OwnerID: owner.ID}

	require.True(t, CanDelete(owner, doc))
	require.True(t, CanDelete(user(models.RoleUser, true, false), doc))
	require.False(t, CanDelete(user(models.RoleAdmin, false, false), doc))
}
