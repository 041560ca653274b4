// Package domain contains training session models and the usage oracle.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// TrainingSession is one logged training appointment against a package.
type TrainingSession struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	PackageID snowflake.ID `gorm:"not null;index" json:"package_id"`
	TrainerID snowflake.ID `gorm:"not null;index" json:"trainer_id"`
	ClientID  snowflake.ID `gorm:"not null;index" json:"client_id"`

	ScheduledAt time.Time `gorm:"not null" json:"scheduled_at"`

	// Cancelled sessions do not consume package entitlement.
	Cancelled   bool       `gorm:"not null;default:false" json:"cancelled"`
	CancelledAt *time.Time `gorm:"" json:"cancelled_at,omitempty"`

	// Validated means the client confirmed the session happened; only
	// validated sessions feed commission settlement.
	Validated   bool       `gorm:"not null;default:false" json:"validated"`
	ValidatedAt *time.Time `gorm:"" json:"validated_at,omitempty"`

	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TrainingSession) TableName() string { return "training_sessions" }

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPackage      = errors.New("invalid_package")
	ErrInvalidTrainer      = errors.New("invalid_trainer")
	ErrInvalidScheduledAt  = errors.New("invalid_scheduled_at")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("session_not_found")
	ErrAlreadyCancelled    = errors.New("session_already_cancelled")
	ErrNoSessionsUnlocked  = errors.New("no_sessions_unlocked")
)
