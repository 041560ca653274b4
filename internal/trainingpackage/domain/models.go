// Package domain contains training package models and the funding ledger math.
package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
)

// BalanceEpsilon is the absolute tolerance used for every money comparison
// against a package's total value. Amounts are stored as floating point, so
// sums of partial payments can land a fraction of a cent off.
const BalanceEpsilon = 0.01

// TrainingPackage is a sellable bundle of sessions for one client.
type TrainingPackage struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	ClientID  snowflake.ID `gorm:"not null;index" json:"client_id"`
	TrainerID snowflake.ID `gorm:"index" json:"trainer_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`

	TotalValue    float64 `gorm:"not null" json:"total_value"`
	TotalSessions int     `gorm:"not null" json:"total_sessions"`

	// SessionValueOverride replaces the derived per-session value when set.
	SessionValueOverride *float64 `gorm:"" json:"session_value_override,omitempty"`

	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TrainingPackage) TableName() string { return "training_packages" }

// SessionValue returns the per-session value used for commission math.
func (p TrainingPackage) SessionValue() float64 {
	if p.SessionValueOverride != nil && *p.SessionValueOverride > 0 {
		return *p.SessionValueOverride
	}
	if p.TotalSessions <= 0 {
		return 0
	}
	return p.TotalValue / float64(p.TotalSessions)
}

// FundingSummary is the state derived from a package's payment history.
type FundingSummary struct {
	PackageID        snowflake.ID `json:"package_id"`
	TotalValue       float64      `json:"total_value"`
	TotalSessions    int          `json:"total_sessions"`
	TotalPaid        float64      `json:"total_paid"`
	RemainingBalance float64      `json:"remaining_balance"`
	UnlockedSessions int          `json:"unlocked_sessions"`
	PaymentCount     int          `json:"payment_count"`
}

// UnlockedSessions converts the amount paid into the number of sessions the
// client is entitled to consume: floor(totalPaid / totalValue * totalSessions),
// clamped to [0, totalSessions]. A tiny guard is added before flooring so a
// package paid in full through several partial payments unlocks every session
// despite floating-point drift.
func UnlockedSessions(totalPaid, totalValue float64, totalSessions int) int {
	if totalValue <= 0 || totalSessions <= 0 || totalPaid <= 0 {
		return 0
	}
	unlocked := int(math.Floor(totalPaid/totalValue*float64(totalSessions) + 1e-9))
	if unlocked < 0 {
		return 0
	}
	if unlocked > totalSessions {
		return totalSessions
	}
	return unlocked
}

// Summarize derives the funding summary for a package given its paid total.
func (p TrainingPackage) Summarize(totalPaid float64, paymentCount int) FundingSummary {
	return FundingSummary{
		PackageID:        p.ID,
		TotalValue:       p.TotalValue,
		TotalSessions:    p.TotalSessions,
		TotalPaid:        totalPaid,
		RemainingBalance: p.TotalValue - totalPaid,
		UnlockedSessions: UnlockedSessions(totalPaid, p.TotalValue, p.TotalSessions),
		PaymentCount:     paymentCount,
	}
}
