// Package domain contains organization and membership models.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Membership roles. PT managers and club managers administer a single
// location's business; trainers deliver sessions.
const (
	RoleOwner       = "OWNER"
	RoleAdmin       = "ADMIN"
	RolePTManager   = "PT_MANAGER"
	RoleClubManager = "CLUB_MANAGER"
	RoleTrainer     = "TRAINER"
)

// Organization is one personal-training business.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	IsDefault bool         `gorm:"not null;default:false" json:"is_default"`

	// CommissionMethod is the legacy organization-level calculation method,
	// kept in sync by the commission config write-through for readers that
	// predate commission profiles.
	CommissionMethod string    `gorm:"type:text;not null;default:'PROGRESSIVE'" json:"commission_method"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// OrganizationMember links a user to an organization with one role.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_members_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:ux_org_members_org_user,priority:2" json:"user_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrNotFound            = errors.New("organization_not_found")
)

// ManagerRoles are the roles allowed to mutate payments and commission settings.
func ManagerRoles() []string {
	return []string{RoleOwner, RoleAdmin, RolePTManager, RoleClubManager}
}

// IsManagerRole reports whether a role can mutate financial records.
func IsManagerRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RolePTManager, RoleClubManager:
		return true
	default:
		return false
	}
}
