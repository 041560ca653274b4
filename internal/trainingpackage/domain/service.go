package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type CreateRequest struct {
	ClientID      string   `json:"client_id"`
	TrainerID     string   `json:"trainer_id"`
	Name          string   `json:"name"`
	TotalValue    float64  `json:"total_value"`
	TotalSessions int      `json:"total_sessions"`
	SessionValue  *float64 `json:"session_value,omitempty"`
}

type ListRequest struct {
	ClientID  string `form:"client_id"`
	TrainerID string `form:"trainer_id"`
	Active    *bool  `form:"active"`
	PageToken string `form:"page_token"`
	PageSize  int32  `form:"page_size"`
}

type Service interface {
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*TrainingPackage, error)
	Get(ctx context.Context, orgID, id snowflake.ID) (*TrainingPackage, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) ([]TrainingPackage, error)
	Deactivate(ctx context.Context, orgID, id snowflake.ID) (*TrainingPackage, error)

	// GetFundingSummary is a pure read over the current payment set.
	GetFundingSummary(ctx context.Context, orgID, id snowflake.ID) (*FundingSummary, error)
}

func ParseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidTotalValue    = errors.New("invalid_total_value")
	ErrInvalidTotalSessions = errors.New("invalid_total_sessions")
	ErrInvalidSessionValue  = errors.New("invalid_session_value")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNotFound             = errors.New("package_not_found")
)
