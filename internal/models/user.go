package models

import (
	"time"
)

type UserRole string
type Role = UserRole // Alias for compatibility

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

// User mirrors the identity provider record; it is not persisted locally
type User struct {
	ID       string   `json:"id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`

	// Profile info
	AvatarURL *string `json:"avatar_url"`

	EmailVerified bool `json:"email_verified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Capability string

const (
	CapabilityLearn             Capability = "learn"
	CapabilityManageEnrollments Capability = "manage_enrollments"
	CapabilityManageContent     Capability = "manage_content"
	CapabilityManagePayments    Capability = "manage_payments"
	CapabilityViewReports       Capability = "view_reports"
	CapabilityBypassEnrollment  Capability = "bypass_enrollment"
)

// Capabilities is the permission set resolved once per request from the role
type Capabilities map[Capability]bool

func CapabilitiesForRole(role UserRole) Capabilities {
	caps := Capabilities{CapabilityLearn: true}
	if role == RoleAdmin {
		caps[CapabilityManageEnrollments] = true
		caps[CapabilityManageContent] = true
		caps[CapabilityManagePayments] = true
		caps[CapabilityViewReports] = true
		caps[CapabilityBypassEnrollment] = true
	}
	return caps
}

func (c Capabilities) Has(capability Capability) bool {
	return c[capability]
}
