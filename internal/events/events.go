// Package events defines the outbox event types emitted by the financial core.
package events

// Event types consumed by downstream reporting and notification workers.
const (
	EventPaymentRecorded         = "payment.recorded"
	EventPaymentUpdated          = "payment.updated"
	EventPaymentDeleted          = "payment.deleted"
	EventSessionLogged           = "session.logged"
	EventCommissionConfigUpdated = "commission.config_updated"
)

// PaymentPayload captures the minimal data needed to roll up a payment event.
type PaymentPayload struct {
	PaymentID        string  `json:"payment_id"`
	PackageID        string  `json:"package_id"`
	Amount           float64 `json:"amount"`
	UnlockedSessions int     `json:"unlocked_sessions"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p PaymentPayload) ToMap() map[string]any {
	return map[string]any{
		"payment_id":        p.PaymentID,
		"package_id":        p.PackageID,
		"amount":            p.Amount,
		"unlocked_sessions": p.UnlockedSessions,
	}
}

// CommissionConfigPayload describes a commission configuration change.
type CommissionConfigPayload struct {
	ProfileID         string `json:"profile_id"`
	CalculationMethod string `json:"calculation_method"`
	TierCount         int    `json:"tier_count"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p CommissionConfigPayload) ToMap() map[string]any {
	return map[string]any{
		"profile_id":         p.ProfileID,
		"calculation_method": p.CalculationMethod,
		"tier_count":         p.TierCount,
	}
}
