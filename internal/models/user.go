package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleStudent   UserRole = "STUDENT"
	RoleOrganizer UserRole = "ORGANIZER"
	RoleHOD       UserRole = "HOD"
	RolePrincipal UserRole = "PRINCIPAL"
	RoleGuest     UserRole = "GUEST"
)

// User represents an application user stored in the users table.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Email        *string    `db:"email" json:"email,omitempty"`
	MobileNumber *string    `db:"mobile_number" json:"mobile_number,omitempty"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	DepartmentID *int64     `db:"department_id" json:"department_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// ContactAddress returns the address notifications should be sent to.
// Guests may only have a mobile number.
func (u *User) ContactAddress() string {
	if u == nil {
		return ""
	}
	if u.Email != nil && *u.Email != "" {
		return *u.Email
	}
	if u.MobileNumber != nil {
		return *u.MobileNumber
	}
	return ""
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
