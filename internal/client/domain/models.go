// Package domain contains client models.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Client is a person buying training packages from the organization.
type Client struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Email     string       `gorm:"type:text" json:"email"`
	Phone     string       `gorm:"type:text" json:"phone"`
	TrainerID snowflake.ID `gorm:"index" json:"trainer_id"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrNotFound    = errors.New("client_not_found")
)
