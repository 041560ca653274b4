// Package service implements package CRUD and the funding ledger reads.
package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/fitdesk/fitdesk/internal/clock"
	"github.com/fitdesk/fitdesk/internal/trainingpackage/domain"
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

	packageRepo domain.Repository
	listRepo    repository.Repository[domain.TrainingPackage]
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	PackageRepo domain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("trainingpackage.service"),
		genID: p.GenID,
		clock: p.Clock,

		packageRepo: p.PackageRepo,
		listRepo:    repository.ProvideStore[domain.TrainingPackage](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.TrainingPackage, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	clientID, err := domain.ParseID(req.ClientID)
	if err != nil || clientID == 0 {
		return nil, domain.ErrInvalidClient
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.TotalValue <= 0 {
		return nil, domain.ErrInvalidTotalValue
	}
	if req.TotalSessions <= 0 {
		return nil, domain.ErrInvalidTotalSessions
	}
	if req.SessionValue != nil && *req.SessionValue <= 0 {
		return nil, domain.ErrInvalidSessionValue
	}

	var trainerID snowflake.ID
	if strings.TrimSpace(req.TrainerID) != "" {
		trainerID, err = domain.ParseID(req.TrainerID)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
	}

	now := s.clock.Now()
	pkg := &domain.TrainingPackage{
		ID:                   s.genID.Generate(),
		OrgID:                orgID,
		ClientID:             clientID,
		TrainerID:            trainerID,
		Name:                 name,
		TotalValue:           req.TotalValue,
		TotalSessions:        req.TotalSessions,
		SessionValueOverride: req.SessionValue,
		Active:               true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.packageRepo.Insert(ctx, s.db, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *Service) Get(ctx context.Context, orgID, id snowflake.ID) (*domain.TrainingPackage, error) {
	pkg, err := s.findPackage(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req domain.ListRequest) ([]domain.TrainingPackage, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	filter := &domain.TrainingPackage{OrgID: orgID}
	if req.ClientID != "" {
		clientID, err := domain.ParseID(req.ClientID)
		if err != nil {
			return nil, domain.ErrInvalidClient
		}
		filter.ClientID = clientID
	}
	if req.TrainerID != "" {
		trainerID, err := domain.ParseID(req.TrainerID)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		filter.TrainerID = trainerID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	items, err := s.listRepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return nil, err
	}

	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}
	packages := make([]domain.TrainingPackage, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if req.Active != nil && item.Active != *req.Active {
			continue
		}
		packages = append(packages, *item)
	}
	return packages, nil
}

func (s *Service) Deactivate(ctx context.Context, orgID, id snowflake.ID) (*domain.TrainingPackage, error) {
	pkg, err := s.findPackage(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return pkg, nil
	}
	pkg.Active = false
	pkg.UpdatedAt = s.clock.Now()
	if err := s.packageRepo.Update(ctx, s.db, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// GetFundingSummary derives the paid total, remaining balance, and unlocked
// session count from the current payment set. Read-only; repeated calls
// without intervening mutations return identical results.
func (s *Service) GetFundingSummary(ctx context.Context, orgID, id snowflake.ID) (*domain.FundingSummary, error) {
	pkg, err := s.findPackage(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	var row struct {
		Total float64
		Count int64
	}
	err = s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total, COUNT(1) AS count
		 FROM package_payments
		 WHERE org_id = ? AND package_id = ?`,
		orgID,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}

	summary := pkg.Summarize(row.Total, int(row.Count))
	return &summary, nil
}

func (s *Service) findPackage(ctx context.Context, orgID, id snowflake.ID) (*domain.TrainingPackage, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	pkg, err := s.packageRepo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, domain.ErrNotFound
	}
	return pkg, nil
}
