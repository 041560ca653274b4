// Package repository persists training packages with gorm.
package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/fitdesk/fitdesk/internal/trainingpackage/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepository struct{}

// Provide builds the package repository.
func Provide() domain.Repository {
	return &gormRepository{}
}

func (r *gormRepository) Insert(ctx context.Context, db *gorm.DB, pkg *domain.TrainingPackage) error {
	return db.WithContext(ctx).Create(pkg).Error
}

func (r *gormRepository) Update(ctx context.Context, db *gorm.DB, pkg *domain.TrainingPackage) error {
	return db.WithContext(ctx).Save(pkg).Error
}

func (r *gormRepository) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.TrainingPackage, error) {
	var pkg domain.TrainingPackage
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

// FindByIDForUpdate locks the package row for the caller's transaction.
// SQLite serializes writers on its own and rejects FOR UPDATE, so the
// locking clause only applies on postgres.
func (r *gormRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*domain.TrainingPackage, error) {
	query := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var pkg domain.TrainingPackage
	err := query.
		Where("org_id = ? AND id = ?", orgID, id).
		First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}
