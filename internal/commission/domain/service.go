package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ConfigSource records which schema an effective configuration came from.
type ConfigSource string

const (
	SourceProfile ConfigSource = "profile"
	SourceLegacy  ConfigSource = "legacy"
)

// TierConfig is the wire representation of one tier.
type TierConfig struct {
	TierLevel        int      `json:"tier_level"`
	SessionThreshold int      `json:"session_threshold"`
	Percent          *float64 `json:"percent,omitempty"`
	FlatFee          *float64 `json:"flat_fee,omitempty"`
}

// EffectiveConfig is the single tier table + method governing an organization.
type EffectiveConfig struct {
	Source            ConfigSource      `json:"source"`
	ProfileID         snowflake.ID      `json:"profile_id,omitempty"`
	CalculationMethod CalculationMethod `json:"calculation_method"`
	RateApplication   RateApplication   `json:"rate_application"`
	TriggerType       TriggerType       `json:"trigger_type"`
	Tiers             []TierConfig      `json:"tiers"`
}

// SetConfigRequest replaces the organization's commission configuration.
// For the FLAT method, FlatPercent or FlatFee defines the single implicit
// tier; for PROGRESSIVE, Tiers carries the full table.
type SetConfigRequest struct {
	CalculationMethod string       `json:"calculation_method"`
	RateApplication   string       `json:"rate_application"`
	TriggerType       string       `json:"trigger_type"`
	Tiers             []TierConfig `json:"tiers"`
	FlatPercent       *float64     `json:"flat_percent,omitempty"`
	FlatFee           *float64     `json:"flat_fee,omitempty"`
}

// StatementRequest resolves one trainer's commission for a period.
type StatementRequest struct {
	TrainerID    string    `json:"trainer_id"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	SessionValue float64   `json:"session_value"`
}

// Statement is the settled commission for a trainer and period.
type Statement struct {
	TrainerID         snowflake.ID      `json:"trainer_id"`
	PeriodStart       time.Time         `json:"period_start"`
	PeriodEnd         time.Time         `json:"period_end"`
	SessionCount      int               `json:"session_count"`
	SessionValue      float64           `json:"session_value"`
	CalculationMethod CalculationMethod `json:"calculation_method"`
	RateApplication   RateApplication   `json:"rate_application"`
	Amount            float64           `json:"amount"`
}

type Service interface {
	// GetEffectiveConfig resolves the tier table for an organization,
	// falling back to the legacy schema when no profile exists.
	GetEffectiveConfig(ctx context.Context, orgID snowflake.ID) (*EffectiveConfig, error)

	// SetConfig replaces the default profile and its tiers atomically and
	// mirrors a lossy percentage-only copy into the legacy table.
	SetConfig(ctx context.Context, orgID snowflake.ID, req SetConfigRequest) (*EffectiveConfig, error)

	// ResolveStatement settles a trainer's validated session count for a
	// period against the effective configuration.
	ResolveStatement(ctx context.Context, orgID snowflake.ID, req StatementRequest) (*Statement, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidMethod       = errors.New("invalid_calculation_method")
	ErrInvalidApplication  = errors.New("invalid_rate_application")
	ErrInvalidTrigger      = errors.New("invalid_trigger_type")
	ErrInvalidTrainer      = errors.New("invalid_trainer")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrInvalidSessionValue = errors.New("invalid_session_value")
	ErrNoTiers             = errors.New("no_tiers_configured")
	ErrTierOrder           = errors.New("tiers_not_ascending")
	ErrTierRate            = errors.New("invalid_tier_rate")
	ErrConfigNotFound      = errors.New("commission_config_not_found")
)

// TiersFromConfig converts wire tiers to resolver tiers, rejecting rows
// that set both rate kinds or neither.
func TiersFromConfig(tiers []TierConfig) ([]Tier, error) {
	out := make([]Tier, 0, len(tiers))
	for _, tier := range tiers {
		var rate Rate
		switch {
		case tier.Percent != nil && tier.FlatFee != nil:
			return nil, ErrTierRate
		case tier.Percent != nil:
			rate = PercentRate(*tier.Percent)
		case tier.FlatFee != nil:
			rate = FlatFeeRate(*tier.FlatFee)
		default:
			return nil, ErrTierRate
		}
		out = append(out, Tier{
			Level:     tier.TierLevel,
			Threshold: tier.SessionThreshold,
			Rate:      rate,
		})
	}
	return out, nil
}

// Mode maps the stored method + application pair onto a resolver mode.
func (c EffectiveConfig) Mode() ApplicationMode {
	if c.CalculationMethod == MethodFlat {
		return ModeFlat
	}
	if c.RateApplication == ApplyGraduated {
		return ModeGraduated
	}
	return ModeProgressive
}
