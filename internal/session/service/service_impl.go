// Package service implements session logging and the usage oracle.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitdesk/fitdesk/internal/clock"
	sessiondomain "github.com/fitdesk/fitdesk/internal/session/domain"
	packagedomain "github.com/fitdesk/fitdesk/internal/trainingpackage/domain"
	"github.com/fitdesk/fitdesk/pkg/db/option"
	"github.com/fitdesk/fitdesk/pkg/db/pagination"
	"github.com/fitdesk/fitdesk/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	packageRepo packagedomain.Repository
	sessionRepo repository.Repository[sessiondomain.TrainingSession]
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	PackageRepo packagedomain.Repository
}

func NewService(p ServiceParam) sessiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("session.service"),
		genID: p.GenID,
		clock: p.Clock,

		packageRepo: p.PackageRepo,
		sessionRepo: repository.ProvideStore[sessiondomain.TrainingSession](p.DB),
	}
}

// Log records a session, refusing to consume entitlement the client has not
// paid for. The package row is locked so a concurrent payment delete cannot
// strand this session beyond the unlocked count.
func (s *Service) Log(ctx context.Context, orgID snowflake.ID, req sessiondomain.LogRequest) (*sessiondomain.TrainingSession, error) {
	if orgID == 0 {
		return nil, sessiondomain.ErrInvalidOrganization
	}
	packageID, err := parseID(req.PackageID)
	if err != nil {
		return nil, sessiondomain.ErrInvalidPackage
	}
	trainerID, err := parseID(req.TrainerID)
	if err != nil {
		return nil, sessiondomain.ErrInvalidTrainer
	}

	scheduledAt := s.clock.Now()
	if req.ScheduledAt != nil {
		scheduledAt = req.ScheduledAt.UTC()
	}
	if scheduledAt.IsZero() {
		return nil, sessiondomain.ErrInvalidScheduledAt
	}

	var record *sessiondomain.TrainingSession
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pkg, err := s.packageRepo.FindByIDForUpdate(ctx, tx, orgID, packageID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return sessiondomain.ErrInvalidPackage
		}

		used, err := countUsed(ctx, tx, orgID, packageID)
		if err != nil {
			return err
		}
		totalPaid, err := sumPayments(ctx, tx, orgID, packageID)
		if err != nil {
			return err
		}
		unlocked := packagedomain.UnlockedSessions(totalPaid, pkg.TotalValue, pkg.TotalSessions)
		if used >= unlocked {
			return sessiondomain.ErrNoSessionsUnlocked
		}

		now := s.clock.Now()
		record = &sessiondomain.TrainingSession{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			PackageID:   packageID,
			TrainerID:   trainerID,
			ClientID:    pkg.ClientID,
			ScheduledAt: scheduledAt,
			Notes:       strings.TrimSpace(req.Notes),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.WithContext(ctx).Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) Cancel(ctx context.Context, orgID, id snowflake.ID) (*sessiondomain.TrainingSession, error) {
	session, err := s.loadSession(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if session.Cancelled {
		return nil, sessiondomain.ErrAlreadyCancelled
	}

	now := s.clock.Now()
	session.Cancelled = true
	session.CancelledAt = &now
	session.UpdatedAt = now
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) Validate(ctx context.Context, orgID, id snowflake.ID) (*sessiondomain.TrainingSession, error) {
	session, err := s.loadSession(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if session.Cancelled {
		return nil, sessiondomain.ErrAlreadyCancelled
	}
	if session.Validated {
		return session, nil
	}

	now := s.clock.Now()
	session.Validated = true
	session.ValidatedAt = &now
	session.UpdatedAt = now
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req sessiondomain.ListRequest) ([]sessiondomain.TrainingSession, error) {
	if orgID == 0 {
		return nil, sessiondomain.ErrInvalidOrganization
	}
	filter := &sessiondomain.TrainingSession{OrgID: orgID}
	if req.PackageID != "" {
		packageID, err := parseID(req.PackageID)
		if err != nil {
			return nil, sessiondomain.ErrInvalidPackage
		}
		filter.PackageID = packageID
	}
	if req.TrainerID != "" {
		trainerID, err := parseID(req.TrainerID)
		if err != nil {
			return nil, sessiondomain.ErrInvalidTrainer
		}
		filter.TrainerID = trainerID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	items, err := s.sessionRepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true, "scheduled_at": true}}),
	)
	if err != nil {
		return nil, err
	}

	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}
	sessions := make([]sessiondomain.TrainingSession, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		sessions = append(sessions, *item)
	}
	return sessions, nil
}

// CountUsed implements the usage oracle over the caller's handle, which may
// be an open transaction.
func (s *Service) CountUsed(ctx context.Context, db *gorm.DB, orgID, packageID snowflake.ID) (int, error) {
	if db == nil {
		db = s.db
	}
	return countUsed(ctx, db, orgID, packageID)
}

func (s *Service) CountValidated(ctx context.Context, orgID, trainerID snowflake.ID, periodStart, periodEnd time.Time) (int, error) {
	if !periodEnd.After(periodStart) {
		return 0, sessiondomain.ErrInvalidPeriod
	}
	var count int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM training_sessions
		 WHERE org_id = ? AND trainer_id = ?
		 AND cancelled = ? AND validated = ?
		 AND scheduled_at >= ? AND scheduled_at < ?`,
		orgID,
		trainerID,
		false,
		true,
		periodStart,
		periodEnd,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *Service) loadSession(ctx context.Context, orgID, id snowflake.ID) (*sessiondomain.TrainingSession, error) {
	if orgID == 0 {
		return nil, sessiondomain.ErrInvalidOrganization
	}
	if id == 0 {
		return nil, sessiondomain.ErrInvalidID
	}
	session, err := s.sessionRepo.FindOne(ctx, &sessiondomain.TrainingSession{ID: id, OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, sessiondomain.ErrNotFound
	}
	return session, nil
}

func countUsed(ctx context.Context, db *gorm.DB, orgID, packageID snowflake.ID) (int, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM training_sessions
		 WHERE org_id = ? AND package_id = ? AND cancelled = ?`,
		orgID,
		packageID,
		false,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func sumPayments(ctx context.Context, db *gorm.DB, orgID, packageID snowflake.ID) (float64, error) {
	var total float64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0)
		 FROM package_payments
		 WHERE org_id = ? AND package_id = ?`,
		orgID,
		packageID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, sessiondomain.ErrInvalidID
	}
	return id, nil
}
