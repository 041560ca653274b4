// Package domain contains trainer models.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Trainer delivers sessions and earns commission on validated ones.
type Trainer struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID  snowflake.ID `gorm:"not null;index" json:"org_id"`
	UserID snowflake.ID `gorm:"index" json:"user_id"`
	Name   string       `gorm:"type:text;not null" json:"name"`
	Email  string       `gorm:"type:text" json:"email"`

	// CommissionProfileID points at the profile governing this trainer's
	// payout. Assigned when the organization sets its default profile.
	CommissionProfileID *snowflake.ID `gorm:"index" json:"commission_profile_id,omitempty"`

	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Trainer) TableName() string { return "trainers" }

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrNotFound    = errors.New("trainer_not_found")
)
