package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	commissiondomain "github.com/fitdesk/fitdesk/internal/commission/domain"
	"gorm.io/gorm"
)

// legacyFlatFeeFraction stands in for flat-fee tiers in the legacy table,
// which only stores fractional percentages. The mirrored value is lossy by
// construction; legacy readers see a 50% approximation.
const legacyFlatFeeFraction = 0.5

// syncLegacySchema mirrors the committed configuration into the legacy
// commission_tiers table and organizations.commission_method. The whole
// file goes away once the legacy schema is retired.
func (s *Service) syncLegacySchema(ctx context.Context, orgID snowflake.ID, cfg normalizedConfig) error {
	rows := make([]commissiondomain.LegacyCommissionTier, 0, len(cfg.Tiers))
	now := s.clock.Now()
	for i, tier := range cfg.Tiers {
		row := commissiondomain.LegacyCommissionTier{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			MinSessions: tier.SessionThreshold,
			Percentage:  legacyFlatFeeFraction,
			CreatedAt:   now,
		}
		if tier.Percent != nil {
			row.Percentage = *tier.Percent / 100
		}
		// Legacy ranges are bounded; the upper bound is one session short of
		// the next tier's threshold, open-ended on the last tier.
		if i+1 < len(cfg.Tiers) {
			max := cfg.Tiers[i+1].SessionThreshold - 1
			row.MaxSessions = &max
		}
		rows = append(rows, row)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).
			Where("org_id = ?", orgID).
			Delete(&commissiondomain.LegacyCommissionTier{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
				return err
			}
		}
		return tx.WithContext(ctx).Exec(
			`UPDATE organizations SET commission_method = ?, updated_at = ? WHERE id = ?`,
			string(cfg.Method), now, orgID,
		).Error
	})
}
