package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository exposes the package reads the funding ledger and payment guard
// share. FindByIDForUpdate must be called inside a transaction; it locks the
// package row so concurrent payment mutations serialize per package.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, pkg *TrainingPackage) error
	Update(ctx context.Context, db *gorm.DB, pkg *TrainingPackage) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*TrainingPackage, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*TrainingPackage, error)
}
