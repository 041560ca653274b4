// Package service implements the payment guard over the funding ledger.
package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/fitdesk/fitdesk/internal/clock"
	"github.com/fitdesk/fitdesk/internal/events"
	"github.com/fitdesk/fitdesk/internal/orgcontext"
	paymentdomain "github.com/fitdesk/fitdesk/internal/payment/domain"
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
	paymentRepo repository.Repository[paymentdomain.PackagePayment]
	usage       sessiondomain.UsageOracle
	outbox      *events.Outbox
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	PackageRepo packagedomain.Repository
	Usage       sessiondomain.UsageOracle
	Outbox      *events.Outbox
}

func NewService(p ServiceParam) paymentdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payment.service"),
		genID: p.GenID,
		clock: p.Clock,

		packageRepo: p.PackageRepo,
		paymentRepo: repository.ProvideStore[paymentdomain.PackagePayment](p.DB),
		usage:       p.Usage,
		outbox:      p.Outbox,
	}
}

// Record appends a payment after checking it fits the remaining balance.
// The package row is locked for the duration of the transaction so two
// concurrent payments cannot jointly overshoot the package value.
func (s *Service) Record(ctx context.Context, orgID, packageID snowflake.ID, req paymentdomain.RecordRequest) (*paymentdomain.MutationResult, error) {
	if orgID == 0 {
		return nil, paymentdomain.ErrInvalidOrganization
	}
	if packageID == 0 {
		return nil, paymentdomain.ErrInvalidPackage
	}

	amount := roundCents(req.Amount)
	if amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	method := paymentdomain.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.Method)))
	if !method.Valid() {
		return nil, paymentdomain.ErrInvalidMethod
	}
	repID, rep2ID, err := parseAttribution(req.SalesRepID, req.SalesRep2ID)
	if err != nil {
		return nil, err
	}

	paymentDate := s.clock.Now()
	if req.PaymentDate != nil {
		paymentDate = req.PaymentDate.UTC()
	}
	if paymentDate.IsZero() {
		return nil, paymentdomain.ErrInvalidPaymentDate
	}

	actorID, _ := actorFromContext(ctx)

	var result paymentdomain.MutationResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pkg, err := s.packageRepo.FindByIDForUpdate(ctx, tx, orgID, packageID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return paymentdomain.ErrPackageNotFound
		}

		totalPaid, count, err := paymentTotals(ctx, tx, orgID, packageID, 0)
		if err != nil {
			return err
		}
		if totalPaid+amount > pkg.TotalValue+packagedomain.BalanceEpsilon {
			return paymentdomain.ErrBalanceExceeded
		}

		now := s.clock.Now()
		payment := &paymentdomain.PackagePayment{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			PackageID:   packageID,
			Amount:      amount,
			PaymentDate: paymentDate,
			Method:      method,
			Notes:       strings.TrimSpace(req.Notes),
			SalesRepID:  repID,
			SalesRep2ID: rep2ID,
			CreatedBy:   actorID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.WithContext(ctx).Create(payment).Error; err != nil {
			return err
		}

		summary := pkg.Summarize(totalPaid+amount, count+1)
		result = paymentdomain.MutationResult{Payment: payment, Summary: summary}

		return s.publishTx(ctx, tx, events.EventPaymentRecorded, payment, summary)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.String("package_id", packageID.String()),
		zap.Float64("amount", amount),
		zap.Int("unlocked_sessions", result.Summary.UnlockedSessions),
	)
	return &result, nil
}

// Update applies a partial edit, re-validating the balance against the sum
// of all other payments and refusing to strand already-consumed sessions.
func (s *Service) Update(ctx context.Context, orgID, paymentID snowflake.ID, req paymentdomain.UpdateRequest) (*paymentdomain.MutationResult, error) {
	if orgID == 0 {
		return nil, paymentdomain.ErrInvalidOrganization
	}
	if paymentID == 0 {
		return nil, paymentdomain.ErrInvalidID
	}

	var result paymentdomain.MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.loadPayment(ctx, tx, orgID, paymentID)
		if err != nil {
			return err
		}
		pkg, err := s.packageRepo.FindByIDForUpdate(ctx, tx, orgID, payment.PackageID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return paymentdomain.ErrPackageNotFound
		}

		newAmount := payment.Amount
		if req.Amount != nil {
			newAmount = roundCents(*req.Amount)
			if newAmount <= 0 {
				return paymentdomain.ErrInvalidAmount
			}
		}

		otherTotal, otherCount, err := paymentTotals(ctx, tx, orgID, payment.PackageID, payment.ID)
		if err != nil {
			return err
		}
		newTotal := otherTotal + newAmount
		if newTotal > pkg.TotalValue+packagedomain.BalanceEpsilon {
			return paymentdomain.ErrBalanceExceeded
		}

		used, err := s.usage.CountUsed(ctx, tx, orgID, payment.PackageID)
		if err != nil {
			return err
		}
		newUnlocked := packagedomain.UnlockedSessions(newTotal, pkg.TotalValue, pkg.TotalSessions)
		if used > newUnlocked {
			return &paymentdomain.LockedSessionsError{
				UsedSessions:     used,
				UnlockedSessions: newUnlocked,
			}
		}

		if err := applyUpdate(payment, req, newAmount); err != nil {
			return err
		}
		payment.UpdatedAt = s.clock.Now()
		if err := tx.WithContext(ctx).Save(payment).Error; err != nil {
			return err
		}

		summary := pkg.Summarize(newTotal, otherCount+1)
		result = paymentdomain.MutationResult{Payment: payment, Summary: summary}

		return s.publishTx(ctx, tx, events.EventPaymentUpdated, payment, summary)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes a payment unless doing so would lock sessions the client
// has already consumed.
func (s *Service) Delete(ctx context.Context, orgID, paymentID snowflake.ID) (*paymentdomain.MutationResult, error) {
	if orgID == 0 {
		return nil, paymentdomain.ErrInvalidOrganization
	}
	if paymentID == 0 {
		return nil, paymentdomain.ErrInvalidID
	}

	var result paymentdomain.MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.loadPayment(ctx, tx, orgID, paymentID)
		if err != nil {
			return err
		}
		pkg, err := s.packageRepo.FindByIDForUpdate(ctx, tx, orgID, payment.PackageID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return paymentdomain.ErrPackageNotFound
		}

		remainingTotal, remainingCount, err := paymentTotals(ctx, tx, orgID, payment.PackageID, payment.ID)
		if err != nil {
			return err
		}

		used, err := s.usage.CountUsed(ctx, tx, orgID, payment.PackageID)
		if err != nil {
			return err
		}
		newUnlocked := packagedomain.UnlockedSessions(remainingTotal, pkg.TotalValue, pkg.TotalSessions)
		if used > newUnlocked {
			return &paymentdomain.LockedSessionsError{
				UsedSessions:     used,
				UnlockedSessions: newUnlocked,
			}
		}

		if err := tx.WithContext(ctx).Delete(payment).Error; err != nil {
			return err
		}

		summary := pkg.Summarize(remainingTotal, remainingCount)
		result = paymentdomain.MutationResult{Summary: summary}

		return s.publishTx(ctx, tx, events.EventPaymentDeleted, payment, summary)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req paymentdomain.ListRequest) ([]paymentdomain.PackagePayment, error) {
	if orgID == 0 {
		return nil, paymentdomain.ErrInvalidOrganization
	}
	filter := &paymentdomain.PackagePayment{OrgID: orgID}
	if req.PackageID != "" {
		packageID, err := snowflake.ParseString(strings.TrimSpace(req.PackageID))
		if err != nil || packageID == 0 {
			return nil, paymentdomain.ErrInvalidPackage
		}
		filter.PackageID = packageID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	items, err := s.paymentRepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true, "payment_date": true}}),
	)
	if err != nil {
		return nil, err
	}

	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}
	payments := make([]paymentdomain.PackagePayment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *item)
	}
	return payments, nil
}

// loadPayment resolves a payment by id, distinguishing a missing payment
// from one owned by another organization.
func (s *Service) loadPayment(ctx context.Context, tx *gorm.DB, orgID, paymentID snowflake.ID) (*paymentdomain.PackagePayment, error) {
	var payment paymentdomain.PackagePayment
	err := tx.WithContext(ctx).Where("id = ?", paymentID).First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, paymentdomain.ErrPaymentNotFound
		}
		return nil, err
	}
	if payment.OrgID != orgID {
		return nil, paymentdomain.ErrForbidden
	}
	return &payment, nil
}

func (s *Service) publishTx(ctx context.Context, tx *gorm.DB, eventType string, payment *paymentdomain.PackagePayment, summary packagedomain.FundingSummary) error {
	err := s.outbox.PublishTx(ctx, tx, events.Event{
		OrgID: payment.OrgID,
		Type:  eventType,
		Payload: events.PaymentPayload{
			PaymentID:        payment.ID.String(),
			PackageID:        payment.PackageID.String(),
			Amount:           payment.Amount,
			UnlockedSessions: summary.UnlockedSessions,
		}.ToMap(),
	})
	if err != nil {
		// The outbox shares the mutation transaction; failures abort it.
		s.log.Warn("outbox publish failed", zap.String("event", eventType), zap.Error(err))
	}
	return err
}

// paymentTotals sums payments for a package, optionally excluding one
// payment (the one being edited or deleted).
func paymentTotals(ctx context.Context, tx *gorm.DB, orgID, packageID, excludeID snowflake.ID) (float64, int, error) {
	var row struct {
		Total float64
		Count int64
	}
	query := `SELECT COALESCE(SUM(amount), 0) AS total, COUNT(1) AS count
	 FROM package_payments
	 WHERE org_id = ? AND package_id = ?`
	args := []any{orgID, packageID}
	if excludeID != 0 {
		query += ` AND id <> ?`
		args = append(args, excludeID)
	}
	if err := tx.WithContext(ctx).Raw(query, args...).Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return row.Total, int(row.Count), nil
}

func applyUpdate(payment *paymentdomain.PackagePayment, req paymentdomain.UpdateRequest, newAmount float64) error {
	payment.Amount = newAmount

	if req.Method != nil {
		method := paymentdomain.PaymentMethod(strings.ToUpper(strings.TrimSpace(*req.Method)))
		if !method.Valid() {
			return paymentdomain.ErrInvalidMethod
		}
		payment.Method = method
	}
	if req.PaymentDate != nil {
		if req.PaymentDate.IsZero() {
			return paymentdomain.ErrInvalidPaymentDate
		}
		payment.PaymentDate = req.PaymentDate.UTC()
	}
	if req.Notes != nil {
		payment.Notes = strings.TrimSpace(*req.Notes)
	}

	repID := payment.SalesRepID
	rep2ID := payment.SalesRep2ID
	if req.SalesRepID != nil {
		parsed, err := parseOptionalID(*req.SalesRepID)
		if err != nil {
			return err
		}
		repID = parsed
	}
	if req.SalesRep2ID != nil {
		parsed, err := parseOptionalID(*req.SalesRep2ID)
		if err != nil {
			return err
		}
		rep2ID = parsed
	}
	if repID != nil && rep2ID != nil && *repID == *rep2ID {
		return paymentdomain.ErrDuplicateAttribution
	}
	payment.SalesRepID = repID
	payment.SalesRep2ID = rep2ID
	return nil
}

func parseAttribution(rawRep, rawRep2 string) (*snowflake.ID, *snowflake.ID, error) {
	repID, err := parseOptionalID(rawRep)
	if err != nil {
		return nil, nil, err
	}
	rep2ID, err := parseOptionalID(rawRep2)
	if err != nil {
		return nil, nil, err
	}
	if repID != nil && rep2ID != nil && *repID == *rep2ID {
		return nil, nil, paymentdomain.ErrDuplicateAttribution
	}
	return repID, rep2ID, nil
}

func parseOptionalID(raw string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return nil, paymentdomain.ErrInvalidID
	}
	return &id, nil
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

func actorFromContext(ctx context.Context) (snowflake.ID, string) {
	return orgcontext.ActorFromContext(ctx)
}
