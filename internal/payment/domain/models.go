// Package domain contains payment models and the guard's typed errors.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentMethod enumerates how a client paid.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodOther        PaymentMethod = "OTHER"
)

// Valid reports whether the method is one of the accepted values.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodOther:
		return true
	default:
		return false
	}
}

// PackagePayment is one partial payment against a training package.
type PackagePayment struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	PackageID snowflake.ID `gorm:"not null;index" json:"package_id"`

	Amount      float64       `gorm:"not null" json:"amount"`
	PaymentDate time.Time     `gorm:"not null" json:"payment_date"`
	Method      PaymentMethod `gorm:"type:text;not null" json:"method"`
	Notes       string        `gorm:"type:text" json:"notes"`

	// Up to two distinct people may be credited with the sale.
	SalesRepID  *snowflake.ID `gorm:"index" json:"sales_rep_id,omitempty"`
	SalesRep2ID *snowflake.ID `gorm:"index" json:"sales_rep2_id,omitempty"`

	CreatedBy snowflake.ID `gorm:"" json:"created_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PackagePayment) TableName() string { return "package_payments" }

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidPackage       = errors.New("invalid_package")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidMethod        = errors.New("invalid_method")
	ErrInvalidPaymentDate   = errors.New("invalid_payment_date")
	ErrDuplicateAttribution = errors.New("duplicate_attribution")
	ErrBalanceExceeded      = errors.New("balance_exceeded")
	ErrInvalidID            = errors.New("invalid_id")
	ErrPackageNotFound      = errors.New("package_not_found")
	ErrPaymentNotFound      = errors.New("payment_not_found")
	ErrForbidden            = errors.New("forbidden")

	// ErrWouldLockUsedSessions is the errors.Is target for LockedSessionsError.
	ErrWouldLockUsedSessions = errors.New("would_lock_used_sessions")
)

// LockedSessionsError rejects a mutation that would drop the unlocked session
// count below the sessions the client has already consumed.
type LockedSessionsError struct {
	UsedSessions     int
	UnlockedSessions int
}

func (e *LockedSessionsError) Error() string {
	return fmt.Sprintf(
		"would_lock_used_sessions: %d sessions already used but only %d would remain unlocked",
		e.UsedSessions, e.UnlockedSessions,
	)
}

// Is matches the ErrWouldLockUsedSessions sentinel.
func (e *LockedSessionsError) Is(target error) bool {
	return target == ErrWouldLockUsedSessions
}
