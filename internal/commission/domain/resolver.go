package domain

import "math"

// RateKind tags the two tier rate variants.
type RateKind int

const (
	RateKindPercent RateKind = iota
	RateKindFlatFee
)

// Rate is a tier's payout rate: a percentage of the session value or a flat
// per-session fee. The constructors keep "exactly one kind" structural.
type Rate struct {
	kind    RateKind
	percent float64
	flatFee float64
}

// PercentRate builds a percentage rate on the 0-100 scale.
func PercentRate(percent float64) Rate {
	return Rate{kind: RateKindPercent, percent: percent}
}

// FlatFeeRate builds a fixed per-session fee rate.
func FlatFeeRate(fee float64) Rate {
	return Rate{kind: RateKindFlatFee, flatFee: fee}
}

func (r Rate) Kind() RateKind { return r.kind }

// Percent returns the 0-100 percentage for percent-kind rates.
func (r Rate) Percent() float64 { return r.percent }

// FlatFee returns the per-session fee for flat-kind rates.
func (r Rate) FlatFee() float64 { return r.flatFee }

// PerSession returns the payout for one session at this rate.
func (r Rate) PerSession(sessionValue float64) float64 {
	if r.kind == RateKindFlatFee {
		return r.flatFee
	}
	return sessionValue * r.percent / 100
}

// Tier pairs a session-count threshold with a rate. Threshold is the minimum
// session count that activates the tier.
type Tier struct {
	Level     int
	Threshold int
	Rate      Rate
}

// ApplicationMode selects the rate-application semantics at resolve time.
type ApplicationMode string

const (
	// ModeFlat treats the first tier as covering every session.
	ModeFlat ApplicationMode = "FLAT"
	// ModeProgressive applies the highest reached tier's rate retroactively
	// to the full session count.
	ModeProgressive ApplicationMode = "PROGRESSIVE"
	// ModeGraduated applies each tier's rate to the sessions falling inside
	// its bracket, tax-bracket style.
	ModeGraduated ApplicationMode = "GRADUATED"
)

// ResolveCommission converts a validated session count into a commission
// amount. Tiers must be ordered ascending by threshold (enforced at
// configuration time by ValidateTiers). A session count below the first
// tier's threshold earns nothing under every mode.
func ResolveCommission(sessionCount int, sessionValue float64, tiers []Tier, mode ApplicationMode) (float64, error) {
	if sessionCount <= 0 {
		return 0, nil
	}
	if len(tiers) == 0 {
		return 0, ErrNoTiers
	}

	switch mode {
	case ModeFlat:
		return roundCents(float64(sessionCount) * tiers[0].Rate.PerSession(sessionValue)), nil

	case ModeProgressive:
		reached, ok := highestReachedTier(sessionCount, tiers)
		if !ok {
			return 0, nil
		}
		return roundCents(float64(sessionCount) * reached.Rate.PerSession(sessionValue)), nil

	case ModeGraduated:
		var total float64
		for i, tier := range tiers {
			if tier.Threshold > sessionCount {
				break
			}
			// Bracket runs from this tier's threshold up to the session
			// before the next tier activates, or the session count itself
			// for the last applicable tier.
			upper := sessionCount
			if i+1 < len(tiers) && tiers[i+1].Threshold-1 < upper {
				upper = tiers[i+1].Threshold - 1
			}
			inBracket := upper - tier.Threshold + 1
			if inBracket <= 0 {
				continue
			}
			total += float64(inBracket) * tier.Rate.PerSession(sessionValue)
		}
		return roundCents(total), nil

	default:
		return 0, ErrInvalidMethod
	}
}

// ValidateTiers enforces the configuration-time invariants: contiguous
// 1-based levels, strictly ascending thresholds, a first threshold of at
// most one session, and a usable rate on every tier.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return ErrNoTiers
	}
	for i, tier := range tiers {
		if tier.Level != i+1 {
			return ErrTierOrder
		}
		if i == 0 {
			if tier.Threshold > 1 {
				return ErrTierOrder
			}
		} else if tier.Threshold <= tiers[i-1].Threshold {
			return ErrTierOrder
		}
		switch tier.Rate.Kind() {
		case RateKindPercent:
			if tier.Rate.Percent() <= 0 || tier.Rate.Percent() > 100 {
				return ErrTierRate
			}
		case RateKindFlatFee:
			if tier.Rate.FlatFee() <= 0 {
				return ErrTierRate
			}
		default:
			return ErrTierRate
		}
	}
	return nil
}

func highestReachedTier(sessionCount int, tiers []Tier) (Tier, bool) {
	var reached Tier
	found := false
	for _, tier := range tiers {
		if tier.Threshold > sessionCount {
			break
		}
		reached = tier
		found = true
	}
	return reached, found
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
