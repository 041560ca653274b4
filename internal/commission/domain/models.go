// Package domain contains commission profiles, tier tables, and the
// pure commission resolution math.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CalculationMethod is the profile-level method. PROGRESSIVE is a storage
// supertype covering both progressive and graduated rate application; the
// RateApplication field selects which applies.
type CalculationMethod string

const (
	MethodFlat        CalculationMethod = "FLAT"
	MethodProgressive CalculationMethod = "PROGRESSIVE"
)

// RateApplication selects how tier rates apply to the session count.
type RateApplication string

const (
	// ApplyProgressive applies the highest reached tier's rate to every session.
	ApplyProgressive RateApplication = "PROGRESSIVE"
	// ApplyGraduated applies each tier's rate only to sessions in its bracket.
	ApplyGraduated RateApplication = "GRADUATED"
)

// TriggerType gates when a profile pays out.
type TriggerType string

const (
	TriggerNone         TriggerType = "NONE"
	TriggerSessionCount TriggerType = "SESSION_COUNT"
)

// CommissionProfile is the current-schema commission configuration.
// An organization has at most one default profile at a time.
type CommissionProfile struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID      `gorm:"not null;index" json:"org_id"`
	Name              string            `gorm:"type:text;not null" json:"name"`
	IsDefault         bool              `gorm:"not null;default:false" json:"is_default"`
	CalculationMethod CalculationMethod `gorm:"type:text;not null" json:"calculation_method"`
	RateApplication   RateApplication   `gorm:"type:text;not null;default:'PROGRESSIVE'" json:"rate_application"`
	TriggerType       TriggerType       `gorm:"type:text;not null;default:'SESSION_COUNT'" json:"trigger_type"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CommissionProfile) TableName() string { return "commission_profiles" }

// CommissionProfileTier is one row of the current-schema tier table.
// Exactly one of SessionCommissionPercent and SessionFlatFee is set; the
// domain surfaces the pair as a Rate variant.
type CommissionProfileTier struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	ProfileID snowflake.ID `gorm:"not null;index" json:"profile_id"`

	TierLevel        int `gorm:"not null" json:"tier_level"`
	SessionThreshold int `gorm:"not null" json:"session_threshold"`

	// Percent is stored on a 0-100 scale.
	SessionCommissionPercent *float64 `gorm:"" json:"session_commission_percent,omitempty"`
	SessionFlatFee           *float64 `gorm:"" json:"session_flat_fee,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (CommissionProfileTier) TableName() string { return "commission_profile_tiers" }

// LegacyCommissionTier is the organization-scoped legacy schema: bounded
// session ranges with a fractional percentage and no flat-fee support.
// Kept write-through for readers that have not migrated; read as fallback
// only when no current-schema profile exists.
type LegacyCommissionTier struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"org_id"`
	MinSessions int          `gorm:"not null" json:"min_sessions"`
	MaxSessions *int         `gorm:"" json:"max_sessions,omitempty"`

	// Percentage is stored as a 0-1 fraction.
	Percentage float64 `gorm:"not null" json:"percentage"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LegacyCommissionTier) TableName() string { return "commission_tiers" }
