package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// UsageOracle reports session counts consumed by the financial core.
// CountUsed takes the caller's transaction handle so the payment guard
// observes a snapshot consistent with its payment reads.
type UsageOracle interface {
	// CountUsed counts non-cancelled sessions logged against a package.
	CountUsed(ctx context.Context, db *gorm.DB, orgID, packageID snowflake.ID) (int, error)

	// CountValidated counts client-confirmed sessions for a trainer in
	// [periodStart, periodEnd).
	CountValidated(ctx context.Context, orgID, trainerID snowflake.ID, periodStart, periodEnd time.Time) (int, error)
}

type LogRequest struct {
	PackageID   string     `json:"package_id"`
	TrainerID   string     `json:"trainer_id"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Notes       string     `json:"notes"`
}

type ListRequest struct {
	PackageID string `form:"package_id"`
	TrainerID string `form:"trainer_id"`
	PageToken string `form:"page_token"`
	PageSize  int32  `form:"page_size"`
}

// Service manages the session log feeding the oracle.
type Service interface {
	UsageOracle

	Log(ctx context.Context, orgID snowflake.ID, req LogRequest) (*TrainingSession, error)
	Cancel(ctx context.Context, orgID, id snowflake.ID) (*TrainingSession, error)
	Validate(ctx context.Context, orgID, id snowflake.ID) (*TrainingSession, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) ([]TrainingSession, error)
}
