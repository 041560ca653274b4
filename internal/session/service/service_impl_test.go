package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitdesk/fitdesk/internal/clock"
	sessiondomain "github.com/fitdesk/fitdesk/internal/session/domain"
	packagerepository "github.com/fitdesk/fitdesk/internal/trainingpackage/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestLogSessionRejectsWithoutEntitlement(t *testing.T) {
	db, svc, node := setupSessionTest(t)
	orgID := node.Generate()
	packageID := insertTestPackage(t, db, node, orgID, 1000, 10)
	insertTestPayment(t, db, node, orgID, packageID, 0)

	_, err := svc.Log(context.Background(), orgID, sessiondomain.LogRequest{
		PackageID: packageID.String(),
		TrainerID: node.Generate().String(),
	})
	if !errors.Is(err, sessiondomain.ErrNoSessionsUnlocked) {
		t.Fatalf("expected no sessions unlocked, got %v", err)
	}
}

func TestLogSessionStopsAtUnlockedCount(t *testing.T) {
	db, svc, node := setupSessionTest(t)
	orgID := node.Generate()
	packageID := insertTestPackage(t, db, node, orgID, 1000, 10)
	insertTestPayment(t, db, node, orgID, packageID, 300)
	trainerID := node.Generate()

	for i := 0; i < 3; i++ {
		if _, err := svc.Log(context.Background(), orgID, sessiondomain.LogRequest{
			PackageID: packageID.String(),
			TrainerID: trainerID.String(),
		}); err != nil {
			t.Fatalf("log session %d: %v", i+1, err)
		}
	}

	_, err := svc.Log(context.Background(), orgID, sessiondomain.LogRequest{
		PackageID: packageID.String(),
		TrainerID: trainerID.String(),
	})
	if !errors.Is(err, sessiondomain.ErrNoSessionsUnlocked) {
		t.Fatalf("expected fourth session to be rejected, got %v", err)
	}
}

func TestCancelSessionFreesEntitlement(t *testing.T) {
	db, svc, node := setupSessionTest(t)
	orgID := node.Generate()
	packageID := insertTestPackage(t, db, node, orgID, 1000, 10)
	insertTestPayment(t, db, node, orgID, packageID, 100)
	trainerID := node.Generate()

	logged, err := svc.Log(context.Background(), orgID, sessiondomain.LogRequest{
		PackageID: packageID.String(),
		TrainerID: trainerID.String(),
	})
	if err != nil {
		t.Fatalf("log session: %v", err)
	}

	if _, err := svc.Log(context.Background(), orgID, sessiondomain.LogRequest{
		PackageID: packageID.String(),
		TrainerID: trainerID.String(),
	}); !errors.Is(err, sessiondomain.ErrNoSessionsUnlocked) {
		t.Fatalf("expected second session rejected, got %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), orgID, logged.ID)
	if err != nil {
		t.Fatalf("cancel session: %v", err)
	}
	if !cancelled.Cancelled || cancelled.CancelledAt == nil {
		t.Fatalf("expected cancelled session, got %+v", cancelled)
	}

	if _, err := svc.Cancel(context.Background(), orgID, logged.ID); !errors.Is(err, sessiondomain.ErrAlreadyCancelled) {
		t.Fatalf("expected already cancelled, got %v", err)
	}

	if _, err := svc.Log(context.Background(), orgID, sessiondomain.LogRequest{
		PackageID: packageID.String(),
		TrainerID: trainerID.String(),
	}); err != nil {
		t.Fatalf("expected log after cancel to pass, got %v", err)
	}
}

func TestCountValidatedOnlyCountsConfirmedInPeriod(t *testing.T) {
	db, svc, node := setupSessionTest(t)
	orgID := node.Generate()
	packageID := insertTestPackage(t, db, node, orgID, 1000, 10)
	insertTestPayment(t, db, node, orgID, packageID, 1000)
	trainerID := node.Generate()

	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	var inPeriod *sessiondomain.TrainingSession
	for i, scheduledAt := range []time.Time{
		base,                     // validated, in period
		base.Add(24 * time.Hour), // logged only
		base.AddDate(0, -2, 0),   // validated, before period
	} {
		at := scheduledAt
		session, err := svc.Log(context.Background(), orgID, sessiondomain.LogRequest{
			PackageID:   packageID.String(),
			TrainerID:   trainerID.String(),
			ScheduledAt: &at,
		})
		if err != nil {
			t.Fatalf("log session %d: %v", i+1, err)
		}
		if i == 0 || i == 2 {
			if _, err := svc.Validate(context.Background(), orgID, session.ID); err != nil {
				t.Fatalf("validate session %d: %v", i+1, err)
			}
		}
		if i == 0 {
			inPeriod = session
		}
	}

	periodStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	count, err := svc.CountValidated(context.Background(), orgID, trainerID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("count validated: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 validated session in period, got %d", count)
	}

	// Cancelling the validated session removes it from settlement.
	if _, err := svc.Cancel(context.Background(), orgID, inPeriod.ID); err != nil {
		t.Fatalf("cancel session: %v", err)
	}
	count, err = svc.CountValidated(context.Background(), orgID, trainerID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("count validated: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 after cancel, got %d", count)
	}
}

// One node per test binary: a fresh node restarts its sequence, so tests in the
// same millisecond would repeat IDs inside the shared cache=shared database.
var testNode, testNodeErr = snowflake.NewNode(3)

func setupSessionTest(t *testing.T) (*gorm.DB, sessiondomain.Service, *snowflake.Node) {
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
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}

	node, err := testNode, testNodeErr
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := NewService(ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.Fixed(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)),
		PackageRepo: packagerepository.Provide(),
	})
	return db, svc, node
}

func insertTestPackage(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, totalValue float64, totalSessions int) snowflake.ID {
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

func insertTestPayment(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID, packageID snowflake.ID, amount float64) {
	t.Helper()
	if amount <= 0 {
		return
	}
	if err := db.Exec(
		`INSERT INTO package_payments (id, org_id, package_id, amount, payment_date, method, created_at, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, 'CARD', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		node.Generate(),
		orgID,
		packageID,
		amount,
	).Error; err != nil {
		t.Fatalf("insert payment: %v", err)
	}
}
