package dto

type CreateUserRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

type SetPermissionsRequest struct {
	IsStaff     *bool `json:"is_staff"`
	IsSuperuser *bool `json:"is_superuser"`
}

type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

type RoleStatsResponse struct {
	Roles map[string]int64 `json:"roles"`
	Total int64            `json:"total"`
}
