package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitdesk/fitdesk/internal/clock"
	"github.com/fitdesk/fitdesk/internal/events"
	paymentdomain "github.com/fitdesk/fitdesk/internal/payment/domain"
	sessiondomain "github.com/fitdesk/fitdesk/internal/session/domain"
	sessionservice "github.com/fitdesk/fitdesk/internal/session/service"
	packagedomain "github.com/fitdesk/fitdesk/internal/trainingpackage/domain"
	packagerepository "github.com/fitdesk/fitdesk/internal/trainingpackage/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRecordPaymentUnlocksProportionalSessions(t *testing.T) {
	db, svc, _, node := setupPaymentTest(t)
	orgID := node.Generate()
	packageID := insertPackage(t, db, node, orgID, 1000, 10)

	resp, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount: 500,
		Method: "CARD",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if resp.Summary.TotalPaid != 500 {
		t.Fatalf("expected total paid 500, got %v", resp.Summary.TotalPaid)
	}
	if resp.Summary.UnlockedSessions != 5 {
		t.Fatalf("expected 5 unlocked sessions, got %d", resp.Summary.UnlockedSessions)
	}
	if resp.Summary.RemainingBalance != 500 {
		t.Fatalf("expected remaining balance 500, got %v", resp.Summary.RemainingBalance)
	}
}

func TestRecordPaymentPartialSessionStaysLocked(t *testing.T) {
	db, svc, _, node := setupPaymentTest(t)
	orgID := node.Generate()
	packageID := insertPackage(t, db, node, orgID, 1000, 10)

	resp, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount: 501,
		Method: "BANK_TRANSFER",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if resp.Summary.UnlockedSessions != 5 {
		t.Fatalf("expected 5 unlocked sessions for 501 paid, got %d", resp.Summary.UnlockedSessions)
	}
}

func TestRecordPaymentFullThroughPartialsUnlocksAll(t *testing.T) {
	db, svc, _, node := setupPaymentTest(t)
	orgID := node.Generate()
	packageID := insertPackage(t, db, node, orgID, 1000, 10)

	for _, amount := range []float64{333.33, 333.33, 333.34} {
		if _, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
			Amount: amount,
			Method: "CARD",
		}); err != nil {
			t.Fatalf("record payment %v: %v", amount, err)
		}
	}

	resp, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount: 100,
		Method: "CARD",
	})
	if !errors.Is(err, paymentdomain.ErrBalanceExceeded) {
		t.Fatalf("expected balance exceeded on overpayment, got %v (resp %v)", err, resp)
	}

	var total float64
	if err := db.Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM package_payments WHERE package_id = ?`, packageID,
	).Scan(&total).Error; err != nil {
		t.Fatalf("sum payments: %v", err)
	}
	if unlocked := packagedomain.UnlockedSessions(total, 1000, 10); unlocked != 10 {
		t.Fatalf("expected all 10 sessions unlocked at %v paid, got %d", total, unlocked)
	}
}

func TestRecordPaymentRejectsOverBalance(t *testing.T) {
	db, svc, _, node := setupPaymentTest(t)
	orgID := node.Generate()
	packageID := insertPackage(t, db, node, orgID, 1000, 10)

	if _, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount: 900,
		Method: "CARD",
	}); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	_, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount: 200,
		Method: "CARD",
	})
	if !errors.Is(err, paymentdomain.ErrBalanceExceeded) {
		t.Fatalf("expected balance exceeded, got %v", err)
	}
}

func TestRecordPaymentRejectsDuplicateAttribution(t *testing.T) {
	db, svc, _, node := setupPaymentTest(t)
	orgID := node.Generate()
	packageID := insertPackage(t, db, node, orgID, 1000, 10)
	repID := node.Generate().String()

	_, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount:      100,
		Method:      "CARD",
		SalesRepID:  repID,
		SalesRep2ID: repID,
	})
	if !errors.Is(err, paymentdomain.ErrDuplicateAttribution) {
		t.Fatalf("expected duplicate attribution, got %v", err)
	}
}

func TestDeletePaymentRefusesToLockUsedSessions(t *testing.T) {
	db, svc, sessions, node := setupPaymentTest(t)
	orgID := node.Generate()
	packageID := insertPackage(t, db, node, orgID, 1000, 10)
	trainerID := node.Generate()

	resp, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount: 500,
		Method: "CARD",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}

	logSessions(t, sessions, orgID, packageID, trainerID, 5)

	_, err = svc.Delete(context.Background(), orgID, resp.Payment.ID)
	var locked *paymentdomain.LockedSessionsError
	if !errors.As(err, &locked) {
		t.Fatalf("expected locked sessions error, got %v", err)
	}
	if !errors.Is(err, paymentdomain.ErrWouldLockUsedSessions) {
		t.Fatalf("expected would_lock_used_sessions sentinel match, got %v", err)
	}
	if locked.UsedSessions != 5 || locked.UnlockedSessions != 0 {
		t.Fatalf("expected used=5 unlocked=0, got used=%d unlocked=%d", locked.UsedSessions, locked.UnlockedSessions)
	}
	if !strings.Contains(err.Error(), "5") || !strings.Contains(err.Error(), "0") {
		t.Fatalf("expected both counts in message, got %q", err.Error())
	}
}

func TestUpdatePaymentRefusesAmountThatLocksUsedSessions(t *testing.T) {
	db, svc, sessions, node := setupPaymentTest(t)
	orgID := node.Generate()
	packageID := insertPackage(t, db, node, orgID, 1000, 10)
	trainerID := node.Generate()

	resp, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount: 500,
		Method: "CARD",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}

	logSessions(t, sessions, orgID, packageID, trainerID, 5)

	newAmount := 400.0
	_, err = svc.Update(context.Background(), orgID, resp.Payment.ID, paymentdomain.UpdateRequest{
		Amount: &newAmount,
	})
	var locked *paymentdomain.LockedSessionsError
	if !errors.As(err, &locked) {
		t.Fatalf("expected locked sessions error, got %v", err)
	}
	if locked.UsedSessions != 5 || locked.UnlockedSessions != 4 {
		t.Fatalf("expected used=5 unlocked=4, got used=%d unlocked=%d", locked.UsedSessions, locked.UnlockedSessions)
	}

	// The same edit keeping the amount is fine.
	sameAmount := 500.0
	if _, err := svc.Update(context.Background(), orgID, resp.Payment.ID, paymentdomain.UpdateRequest{
		Amount: &sameAmount,
	}); err != nil {
		t.Fatalf("expected update at same amount to pass, got %v", err)
	}
}

func TestUpdatePaymentCrossOrgIsForbidden(t *testing.T) {
	db, svc, _, node := setupPaymentTest(t)
	orgID := node.Generate()
	otherOrgID := node.Generate()
	packageID := insertPackage(t, db, node, orgID, 1000, 10)

	resp, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount: 100,
		Method: "CARD",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}

	notes := "edited"
	_, err = svc.Update(context.Background(), otherOrgID, resp.Payment.ID, paymentdomain.UpdateRequest{
		Notes: &notes,
	})
	if !errors.Is(err, paymentdomain.ErrForbidden) {
		t.Fatalf("expected forbidden for cross-org update, got %v", err)
	}
}

func TestDeletePaymentRecomputesSummary(t *testing.T) {
	db, svc, _, node := setupPaymentTest(t)
	orgID := node.Generate()
	packageID := insertPackage(t, db, node, orgID, 1000, 10)

	first, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount: 300,
		Method: "CARD",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if _, err := svc.Record(context.Background(), orgID, packageID, paymentdomain.RecordRequest{
		Amount: 400,
		Method: "CARD",
	}); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	resp, err := svc.Delete(context.Background(), orgID, first.Payment.ID)
	if err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if resp.Summary.TotalPaid != 400 {
		t.Fatalf("expected total paid 400 after delete, got %v", resp.Summary.TotalPaid)
	}
	if resp.Summary.UnlockedSessions != 4 {
		t.Fatalf("expected 4 unlocked sessions after delete, got %d", resp.Summary.UnlockedSessions)
	}
	if resp.Summary.PaymentCount != 1 {
		t.Fatalf("expected 1 remaining payment, got %d", resp.Summary.PaymentCount)
	}
}

// One node per test binary: a fresh node restarts its sequence, so tests in the
// same millisecond would repeat IDs inside the shared cache=shared database.
var testNode, testNodeErr = snowflake.NewNode(2)

func setupPaymentTest(t *testing.T) (*gorm.DB, paymentdomain.Service, sessiondomain.Service, *snowflake.Node) {
	t.Helper()
	db := openLedgerTestDB(t)
	node, err := testNode, testNodeErr
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	pkgRepo := packagerepository.Provide()
	clk := clock.Fixed(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	sessions := sessionservice.NewService(sessionservice.ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		PackageRepo: pkgRepo,
	})

	payments := NewService(ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		PackageRepo: pkgRepo,
		Usage:       sessions,
		Outbox:      events.NewOutbox(db, node),
	})
	return db, payments, sessions, node
}

func openLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS training_packages (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			client_id BIGINT NOT NULL,
			trainer_id BIGINT,
			name TEXT NOT NULL,
			total_value REAL NOT NULL,
			total_sessions INTEGER NOT NULL,
			session_value_override REAL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS package_payments (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			package_id BIGINT NOT NULL,
			amount REAL NOT NULL,
			payment_date DATETIME NOT NULL,
			method TEXT NOT NULL,
			notes TEXT,
			sales_rep_id BIGINT,
			sales_rep2_id BIGINT,
			created_by BIGINT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS training_sessions (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			package_id BIGINT NOT NULL,
			trainer_id BIGINT NOT NULL,
			client_id BIGINT NOT NULL,
			scheduled_at DATETIME NOT NULL,
			cancelled BOOLEAN NOT NULL DEFAULT FALSE,
			cancelled_at DATETIME,
			validated BOOLEAN NOT NULL DEFAULT FALSE,
			validated_at DATETIME,
			notes TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS business_events (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT,
			dedupe_key TEXT,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME,
			UNIQUE (org_id, dedupe_key)
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func insertPackage(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, totalValue float64, totalSessions int) snowflake.ID {
	t.Helper()
	packageID := node.Generate()
	if err := db.Exec(
		`INSERT INTO training_packages (id, org_id, client_id, name, total_value, total_sessions, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, TRUE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		packageID,
		orgID,
		node.Generate(),
		"10-pack",
		totalValue,
		totalSessions,
	).Error; err != nil {
		t.Fatalf("insert package: %v", err)
	}
	return packageID
}

func logSessions(t *testing.T, sessions sessiondomain.Service, orgID, packageID, trainerID snowflake.ID, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		if _, err := sessions.Log(context.Background(), orgID, sessiondomain.LogRequest{
			PackageID: packageID.String(),
			TrainerID: trainerID.String(),
		}); err != nil {
			t.Fatalf("log session %d: %v", i+1, err)
		}
	}
}
