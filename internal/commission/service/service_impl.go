// Package service implements commission configuration and settlement.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitdesk/fitdesk/internal/cache"
	"github.com/fitdesk/fitdesk/internal/clock"
	commissiondomain "github.com/fitdesk/fitdesk/internal/commission/domain"
	"github.com/fitdesk/fitdesk/internal/events"
	sessiondomain "github.com/fitdesk/fitdesk/internal/session/domain"
	trainerdomain "github.com/fitdesk/fitdesk/internal/trainer/domain"
	"github.com/fitdesk/fitdesk/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configCacheTTL = 30 * time.Second

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	trainerRepo repository.Repository[trainerdomain.Trainer]
	usage       sessiondomain.UsageOracle
	outbox      *events.Outbox
	configCache *cache.TTLCache[snowflake.ID, commissiondomain.EffectiveConfig]
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Usage  sessiondomain.UsageOracle
	Outbox *events.Outbox
}

func NewService(p ServiceParam) commissiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("commission.service"),
		genID: p.GenID,
		clock: p.Clock,

		trainerRepo: repository.ProvideStore[trainerdomain.Trainer](p.DB),
		usage:       p.Usage,
		outbox:      p.Outbox,
		configCache: cache.NewTTLCache[snowflake.ID, commissiondomain.EffectiveConfig](),
	}
}

// GetEffectiveConfig prefers the current-schema default profile and falls
// back to the legacy tier table, translating fractional percentages onto
// the 0-100 scale the current schema uses.
func (s *Service) GetEffectiveConfig(ctx context.Context, orgID snowflake.ID) (*commissiondomain.EffectiveConfig, error) {
	if orgID == 0 {
		return nil, commissiondomain.ErrInvalidOrganization
	}
	if cached, ok := s.configCache.Get(orgID); ok {
		return &cached, nil
	}

	config, err := s.loadEffectiveConfig(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	s.configCache.Set(orgID, *config, configCacheTTL)
	return config, nil
}

func (s *Service) loadEffectiveConfig(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*commissiondomain.EffectiveConfig, error) {
	var profile commissiondomain.CommissionProfile
	err := db.WithContext(ctx).
		Where("org_id = ? AND is_default = ?", orgID, true).
		First(&profile).Error
	if err == nil {
		var tiers []commissiondomain.CommissionProfileTier
		if err := db.WithContext(ctx).
			Where("org_id = ? AND profile_id = ?", orgID, profile.ID).
			Order("tier_level ASC").
			Find(&tiers).Error; err != nil {
			return nil, err
		}
		return profileConfig(profile, tiers), nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	return s.loadLegacyConfig(ctx, db, orgID)
}

func (s *Service) loadLegacyConfig(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*commissiondomain.EffectiveConfig, error) {
	var legacy []commissiondomain.LegacyCommissionTier
	if err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("min_sessions ASC").
		Find(&legacy).Error; err != nil {
		return nil, err
	}
	if len(legacy) == 0 {
		return nil, commissiondomain.ErrConfigNotFound
	}

	var method string
	err := db.WithContext(ctx).Raw(
		`SELECT commission_method FROM organizations WHERE id = ?`, orgID,
	).Scan(&method).Error
	if err != nil {
		return nil, err
	}

	config := &commissiondomain.EffectiveConfig{
		Source:          commissiondomain.SourceLegacy,
		RateApplication: commissiondomain.ApplyProgressive,
		TriggerType:     commissiondomain.TriggerSessionCount,
	}
	switch commissiondomain.CalculationMethod(strings.TrimSpace(method)) {
	case commissiondomain.MethodFlat:
		config.CalculationMethod = commissiondomain.MethodFlat
		config.TriggerType = commissiondomain.TriggerNone
	default:
		config.CalculationMethod = commissiondomain.MethodProgressive
	}

	for i, tier := range legacy {
		// Legacy stores 0-1 fractions; the current schema uses 0-100.
		percent := tier.Percentage * 100
		config.Tiers = append(config.Tiers, commissiondomain.TierConfig{
			TierLevel:        i + 1,
			SessionThreshold: tier.MinSessions,
			Percent:          &percent,
		})
	}
	return config, nil
}

// SetConfig replaces the default profile and its tiers in one transaction,
// then mirrors the legacy table best-effort after commit.
func (s *Service) SetConfig(ctx context.Context, orgID snowflake.ID, req commissiondomain.SetConfigRequest) (*commissiondomain.EffectiveConfig, error) {
	if orgID == 0 {
		return nil, commissiondomain.ErrInvalidOrganization
	}

	normalized, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}
	resolverTiers, err := commissiondomain.TiersFromConfig(normalized.Tiers)
	if err != nil {
		return nil, err
	}
	if err := commissiondomain.ValidateTiers(resolverTiers); err != nil {
		return nil, err
	}

	var config *commissiondomain.EffectiveConfig
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()

		var profile commissiondomain.CommissionProfile
		err := tx.WithContext(ctx).
			Where("org_id = ? AND is_default = ?", orgID, true).
			First(&profile).Error
		switch {
		case err == nil:
			profile.CalculationMethod = normalized.Method
			profile.RateApplication = normalized.Application
			profile.TriggerType = normalized.Trigger
			profile.UpdatedAt = now
			if err := tx.WithContext(ctx).Save(&profile).Error; err != nil {
				return err
			}
			if err := tx.WithContext(ctx).
				Where("org_id = ? AND profile_id = ?", orgID, profile.ID).
				Delete(&commissiondomain.CommissionProfileTier{}).Error; err != nil {
				return err
			}
		case err == gorm.ErrRecordNotFound:
			profile = commissiondomain.CommissionProfile{
				ID:                s.genID.Generate(),
				OrgID:             orgID,
				Name:              "Default",
				IsDefault:         true,
				CalculationMethod: normalized.Method,
				RateApplication:   normalized.Application,
				TriggerType:       normalized.Trigger,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := tx.WithContext(ctx).Create(&profile).Error; err != nil {
				return err
			}
			// A freshly created default profile governs every existing trainer.
			if err := tx.WithContext(ctx).Exec(
				`UPDATE trainers SET commission_profile_id = ? WHERE org_id = ?`,
				profile.ID, orgID,
			).Error; err != nil {
				return err
			}
		default:
			return err
		}

		rows := make([]commissiondomain.CommissionProfileTier, 0, len(normalized.Tiers))
		for _, tier := range normalized.Tiers {
			rows = append(rows, commissiondomain.CommissionProfileTier{
				ID:                       s.genID.Generate(),
				OrgID:                    orgID,
				ProfileID:                profile.ID,
				TierLevel:                tier.TierLevel,
				SessionThreshold:         tier.SessionThreshold,
				SessionCommissionPercent: tier.Percent,
				SessionFlatFee:           tier.FlatFee,
				CreatedAt:                now,
			})
		}
		if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
			return err
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  events.EventCommissionConfigUpdated,
			Payload: events.CommissionConfigPayload{
				ProfileID:         profile.ID.String(),
				CalculationMethod: string(normalized.Method),
				TierCount:         len(rows),
			}.ToMap(),
		}); err != nil {
			return err
		}

		config = profileConfig(profile, rows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.configCache.Delete(orgID)

	// Best-effort legacy mirror; never fails the primary write.
	if err := s.syncLegacySchema(ctx, orgID, normalized); err != nil {
		s.log.Warn("legacy commission write-through failed",
			zap.String("org_id", orgID.String()),
			zap.Error(err),
		)
	}

	return config, nil
}

// ResolveStatement settles the trainer's validated session count for the
// period against the organization's effective configuration.
func (s *Service) ResolveStatement(ctx context.Context, orgID snowflake.ID, req commissiondomain.StatementRequest) (*commissiondomain.Statement, error) {
	if orgID == 0 {
		return nil, commissiondomain.ErrInvalidOrganization
	}
	trainerID, err := snowflake.ParseString(strings.TrimSpace(req.TrainerID))
	if err != nil || trainerID == 0 {
		return nil, commissiondomain.ErrInvalidTrainer
	}
	if req.PeriodStart.IsZero() || !req.PeriodEnd.After(req.PeriodStart) {
		return nil, commissiondomain.ErrInvalidPeriod
	}

	trainer, err := s.trainerRepo.FindOne(ctx, &trainerdomain.Trainer{ID: trainerID, OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if trainer == nil {
		return nil, commissiondomain.ErrInvalidTrainer
	}

	config, err := s.GetEffectiveConfig(ctx, orgID)
	if err != nil {
		return nil, err
	}
	tiers, err := commissiondomain.TiersFromConfig(config.Tiers)
	if err != nil {
		return nil, err
	}
	if req.SessionValue <= 0 && tiersNeedSessionValue(tiers) {
		return nil, commissiondomain.ErrInvalidSessionValue
	}

	count, err := s.usage.CountValidated(ctx, orgID, trainerID, req.PeriodStart.UTC(), req.PeriodEnd.UTC())
	if err != nil {
		return nil, err
	}

	amount, err := commissiondomain.ResolveCommission(count, req.SessionValue, tiers, config.Mode())
	if err != nil {
		return nil, err
	}

	return &commissiondomain.Statement{
		TrainerID:         trainerID,
		PeriodStart:       req.PeriodStart.UTC(),
		PeriodEnd:         req.PeriodEnd.UTC(),
		SessionCount:      count,
		SessionValue:      req.SessionValue,
		CalculationMethod: config.CalculationMethod,
		RateApplication:   config.RateApplication,
		Amount:            amount,
	}, nil
}

type normalizedConfig struct {
	Method      commissiondomain.CalculationMethod
	Application commissiondomain.RateApplication
	Trigger     commissiondomain.TriggerType
	Tiers       []commissiondomain.TierConfig
}

func normalizeRequest(req commissiondomain.SetConfigRequest) (normalizedConfig, error) {
	out := normalizedConfig{}

	switch commissiondomain.CalculationMethod(strings.ToUpper(strings.TrimSpace(req.CalculationMethod))) {
	case commissiondomain.MethodFlat:
		out.Method = commissiondomain.MethodFlat
	case commissiondomain.MethodProgressive:
		out.Method = commissiondomain.MethodProgressive
	default:
		return out, commissiondomain.ErrInvalidMethod
	}

	switch commissiondomain.RateApplication(strings.ToUpper(strings.TrimSpace(req.RateApplication))) {
	case commissiondomain.ApplyGraduated:
		out.Application = commissiondomain.ApplyGraduated
	case commissiondomain.ApplyProgressive, "":
		out.Application = commissiondomain.ApplyProgressive
	default:
		return out, commissiondomain.ErrInvalidApplication
	}

	switch commissiondomain.TriggerType(strings.ToUpper(strings.TrimSpace(req.TriggerType))) {
	case commissiondomain.TriggerNone:
		out.Trigger = commissiondomain.TriggerNone
	case commissiondomain.TriggerSessionCount, "":
		out.Trigger = commissiondomain.TriggerSessionCount
	default:
		return out, commissiondomain.ErrInvalidTrigger
	}

	if out.Method == commissiondomain.MethodFlat {
		tier := commissiondomain.TierConfig{TierLevel: 1, SessionThreshold: 1}
		switch {
		case req.FlatPercent != nil && req.FlatFee != nil:
			return out, commissiondomain.ErrTierRate
		case req.FlatPercent != nil:
			tier.Percent = req.FlatPercent
		case req.FlatFee != nil:
			tier.FlatFee = req.FlatFee
		case len(req.Tiers) == 1:
			tier = req.Tiers[0]
			tier.TierLevel = 1
			tier.SessionThreshold = 1
		default:
			return out, commissiondomain.ErrNoTiers
		}
		out.Tiers = []commissiondomain.TierConfig{tier}
		return out, nil
	}

	out.Tiers = req.Tiers
	return out, nil
}

func profileConfig(profile commissiondomain.CommissionProfile, tiers []commissiondomain.CommissionProfileTier) *commissiondomain.EffectiveConfig {
	config := &commissiondomain.EffectiveConfig{
		Source:            commissiondomain.SourceProfile,
		ProfileID:         profile.ID,
		CalculationMethod: profile.CalculationMethod,
		RateApplication:   profile.RateApplication,
		TriggerType:       profile.TriggerType,
	}
	for _, tier := range tiers {
		config.Tiers = append(config.Tiers, commissiondomain.TierConfig{
			TierLevel:        tier.TierLevel,
			SessionThreshold: tier.SessionThreshold,
			Percent:          tier.SessionCommissionPercent,
			FlatFee:          tier.SessionFlatFee,
		})
	}
	return config
}

func tiersNeedSessionValue(tiers []commissiondomain.Tier) bool {
	for _, tier := range tiers {
		if tier.Rate.Kind() == commissiondomain.RateKindPercent {
			return true
		}
	}
	return false
}
