package models

import (
	"time"
)

type User struct {
	ID                 string     `json:"id"`
	EmployeeID         string     `json:"employee_id"` // Login handle, distinct from the internal ID
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	Name               string     `json:"name"`
	Role               string     `json:"role"`   // "admin", "hr", "employee", "applicant"
	Status             string     `json:"status"` // "active", "inactive", "suspended"
	DepartmentID       *string    `json:"department_id,omitempty"` // NULL for applicants and system accounts
	MustChangePassword bool       `json:"must_change_password"`
	PasswordChangedAt  *time.Time `json:"password_changed_at,omitempty"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP        *string    `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
