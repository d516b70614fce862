package models

import "time"

// Tenant represents an isolated customer account that owns workflows
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TenantRole string

const (
	// Administrative roles: full visibility over every workflow in the tenant.
	TenantRoleOwner TenantRole = "owner"
	TenantRoleAdmin TenantRole = "admin"

	// Functional roles: plain members, scoped to the workflows they
	// participate in. Tenant-level listing is allowed for these roles.
	TenantRoleAuthor     TenantRole = "author"
	TenantRoleEditor     TenantRole = "editor"
	TenantRoleAgent      TenantRole = "agent"
	TenantRoleReviewer   TenantRole = "reviewer"
	TenantRoleSubscriber TenantRole = "subscriber"
	TenantRoleMember     TenantRole = "member"
)

// IsAdmin reports whether the role carries tenant-wide authority.
func (r TenantRole) IsAdmin() bool {
	return r == TenantRoleOwner || r == TenantRoleAdmin
}

// TenantMembership relates users to tenants with a role
type TenantMembership struct {
	ID        string     `json:"id" db:"id"`
	TenantID  string     `json:"tenant_id" db:"tenant_id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Role      TenantRole `json:"role" db:"role"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
