package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser     Role = "user"
	RoleReviewer Role = "reviewer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Roles lists every role in display order.
var Roles = []Role{RoleUser, RoleReviewer, RoleManager, RoleAdmin}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// User carries identity plus the three independent authority signals
// (Role, IsStaff, IsSuperuser). Role is always set when the row is created.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username    string    `gorm:"size:150;not null;uniqueIndex" json:"username"`
	Email       string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password    string    `gorm:"not null" json:"-"`
	Role        Role      `gorm:"size:20;not null;default:'user';check:chk_users_role,role IN ('user','reviewer','manager','admin')" json:"role"`
	IsStaff     bool      `gorm:"not null" json:"is_staff"`
	IsSuperuser bool      `gorm:"not null" json:"is_superuser"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
