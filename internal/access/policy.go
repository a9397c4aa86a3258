// Package access derives a user's authority from the role, staff and
// superuser signals. Every authorization decision in the service layer goes
// through these predicates.
package access

import "github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"

// CanModerate gates reviewing, deleting others' documents and the review queue.
func CanModerate(u *models.User) bool {
	if u == nil {
		return false
	}
	return u.IsStaff || u.IsSuperuser
}

// CanAdminister gates user management and reviewer assignment.
func CanAdminister(u *models.User) bool {
	if u == nil {
		return false
	}
	return u.IsSuperuser || u.Role == models.RoleAdmin
}

// CanView is true for the owner and for every moderator.
func CanView(u *models.User, doc *models.Document) bool {
	if u == nil || doc == nil {
		return false
	}
	return IsOwner(u, doc) || CanModerate(u)
}

func IsOwner(u *models.User, doc *models.Document) bool {
	return u != nil && doc != nil && doc.OwnerID == u.ID
}

// CanDelete is true for the owner and for every moderator.
func CanDelete(u *models.User, doc *models.Document) bool {
	return IsOwner(u, doc) || CanModerate(u)
}
