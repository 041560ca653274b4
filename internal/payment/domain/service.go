package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	packagedomain "github.com/fitdesk/fitdesk/internal/trainingpackage/domain"
)

type RecordRequest struct {
	Amount      float64    `json:"amount"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
	Method      string     `json:"method"`
	Notes       string     `json:"notes"`
	SalesRepID  string     `json:"sales_rep_id"`
	SalesRep2ID string     `json:"sales_rep2_id"`
}

// UpdateRequest carries a partial update; only non-nil fields change.
type UpdateRequest struct {
	Amount      *float64   `json:"amount,omitempty"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
	Method      *string    `json:"method,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	SalesRepID  *string    `json:"sales_rep_id,omitempty"`
	SalesRep2ID *string    `json:"sales_rep2_id,omitempty"`
}

// MutationResult returns the written payment with the package summary
// recomputed inside the same transaction.
type MutationResult struct {
	Payment *PackagePayment              `json:"payment,omitempty"`
	Summary packagedomain.FundingSummary `json:"summary"`
}

type ListRequest struct {
	PackageID string `form:"package_id"`
	PageToken string `form:"page_token"`
	PageSize  int32  `form:"page_size"`
}

// Service guards every payment mutation behind the funding invariant:
// the package never collects more than its total value, and unlocked
// sessions never drop below sessions already consumed.
type Service interface {
	Record(ctx context.Context, orgID, packageID snowflake.ID, req RecordRequest) (*MutationResult, error)
	Update(ctx context.Context, orgID, paymentID snowflake.ID, req UpdateRequest) (*MutationResult, error)
	Delete(ctx context.Context, orgID, paymentID snowflake.ID) (*MutationResult, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) ([]PackagePayment, error)
}
