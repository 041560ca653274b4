package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitdesk/fitdesk/internal/clock"
	commissiondomain "github.com/fitdesk/fitdesk/internal/commission/domain"
	"github.com/fitdesk/fitdesk/internal/events"
	sessionservice "github.com/fitdesk/fitdesk/internal/session/service"
	packagerepository "github.com/fitdesk/fitdesk/internal/trainingpackage/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestSetConfigPersistsProfileAndMirrorsLegacy(t *testing.T) {
	db, svc, node := setupCommissionTest(t)
	orgID := insertOrg(t, db, node)

	percent30, percent35 := 30.0, 35.0
	resp, err := svc.SetConfig(context.Background(), orgID, commissiondomain.SetConfigRequest{
		CalculationMethod: "PROGRESSIVE",
		Tiers: []commissiondomain.TierConfig{
			{TierLevel: 1, SessionThreshold: 1, Percent: &percent30},
			{TierLevel: 2, SessionThreshold: 21, Percent: &percent35},
		},
	})
	if err != nil {
		t.Fatalf("set config: %v", err)
	}
	if resp.Source != commissiondomain.SourceProfile {
		t.Fatalf("expected profile source, got %s", resp.Source)
	}
	if len(resp.Tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(resp.Tiers))
	}

	var legacy []commissiondomain.LegacyCommissionTier
	if err := db.Where("org_id = ?", orgID).Order("min_sessions ASC").Find(&legacy).Error; err != nil {
		t.Fatalf("load legacy tiers: %v", err)
	}
	if len(legacy) != 2 {
		t.Fatalf("expected 2 legacy rows, got %d", len(legacy))
	}
	if legacy[0].MinSessions != 1 || legacy[0].Percentage != 0.30 {
		t.Fatalf("unexpected legacy tier one: %+v", legacy[0])
	}
	if legacy[0].MaxSessions == nil || *legacy[0].MaxSessions != 20 {
		t.Fatalf("expected legacy tier one capped at 20, got %+v", legacy[0].MaxSessions)
	}
	if legacy[1].MinSessions != 21 || legacy[1].MaxSessions != nil {
		t.Fatalf("expected open-ended legacy tier two, got %+v", legacy[1])
	}

	var method string
	if err := db.Raw(`SELECT commission_method FROM organizations WHERE id = ?`, orgID).Scan(&method).Error; err != nil {
		t.Fatalf("load org method: %v", err)
	}
	if method != "PROGRESSIVE" {
		t.Fatalf("expected org method PROGRESSIVE, got %q", method)
	}
}

func TestSetConfigFlatFeeDegradesInLegacyMirror(t *testing.T) {
	db, svc, node := setupCommissionTest(t)
	orgID := insertOrg(t, db, node)

	fee := 45.0
	if _, err := svc.SetConfig(context.Background(), orgID, commissiondomain.SetConfigRequest{
		CalculationMethod: "FLAT",
		FlatFee:           &fee,
	}); err != nil {
		t.Fatalf("set config: %v", err)
	}

	var legacy []commissiondomain.LegacyCommissionTier
	if err := db.Where("org_id = ?", orgID).Find(&legacy).Error; err != nil {
		t.Fatalf("load legacy tiers: %v", err)
	}
	if len(legacy) != 1 {
		t.Fatalf("expected 1 legacy row, got %d", len(legacy))
	}
	// Flat fees have no legacy representation; readers see the 50% stand-in.
	if legacy[0].Percentage != 0.5 {
		t.Fatalf("expected 0.5 stand-in percentage, got %v", legacy[0].Percentage)
	}

	var method string
	if err := db.Raw(`SELECT commission_method FROM organizations WHERE id = ?`, orgID).Scan(&method).Error; err != nil {
		t.Fatalf("load org method: %v", err)
	}
	if method != "FLAT" {
		t.Fatalf("expected org method FLAT, got %q", method)
	}
}

func TestSetConfigAssignsProfileToExistingTrainers(t *testing.T) {
	db, svc, node := setupCommissionTest(t)
	orgID := insertOrg(t, db, node)
	trainerID := insertTrainer(t, db, node, orgID)

	percent := 30.0
	resp, err := svc.SetConfig(context.Background(), orgID, commissiondomain.SetConfigRequest{
		CalculationMethod: "PROGRESSIVE",
		Tiers: []commissiondomain.TierConfig{
			{TierLevel: 1, SessionThreshold: 1, Percent: &percent},
		},
	})
	if err != nil {
		t.Fatalf("set config: %v", err)
	}

	var profileID snowflake.ID
	if err := db.Raw(
		`SELECT commission_profile_id FROM trainers WHERE id = ?`, trainerID,
	).Scan(&profileID).Error; err != nil {
		t.Fatalf("load trainer profile: %v", err)
	}
	if profileID != resp.ProfileID {
		t.Fatalf("expected trainer assigned profile %s, got %s", resp.ProfileID, profileID)
	}
}

func TestSetConfigRejectsBadTierTable(t *testing.T) {
	db, svc, node := setupCommissionTest(t)
	orgID := insertOrg(t, db, node)

	percent30, percent35 := 30.0, 35.0
	_, err := svc.SetConfig(context.Background(), orgID, commissiondomain.SetConfigRequest{
		CalculationMethod: "PROGRESSIVE",
		Tiers: []commissiondomain.TierConfig{
			{TierLevel: 1, SessionThreshold: 1, Percent: &percent30},
			{TierLevel: 2, SessionThreshold: 1, Percent: &percent35},
		},
	})
	if !errors.Is(err, commissiondomain.ErrTierOrder) {
		t.Fatalf("expected tier order error, got %v", err)
	}

	both := 30.0
	_, err = svc.SetConfig(context.Background(), orgID, commissiondomain.SetConfigRequest{
		CalculationMethod: "PROGRESSIVE",
		Tiers: []commissiondomain.TierConfig{
			{TierLevel: 1, SessionThreshold: 1, Percent: &both, FlatFee: &both},
		},
	})
	if !errors.Is(err, commissiondomain.ErrTierRate) {
		t.Fatalf("expected tier rate error, got %v", err)
	}
}

func TestGetEffectiveConfigFallsBackToLegacy(t *testing.T) {
	db, svc, node := setupCommissionTest(t)
	orgID := insertOrg(t, db, node)

	max := 20
	legacyRows := []commissiondomain.LegacyCommissionTier{
		{ID: node.Generate(), OrgID: orgID, MinSessions: 1, MaxSessions: &max, Percentage: 0.25},
		{ID: node.Generate(), OrgID: orgID, MinSessions: 21, Percentage: 0.50},
	}
	if err := db.Create(&legacyRows).Error; err != nil {
		t.Fatalf("insert legacy tiers: %v", err)
	}

	config, err := svc.GetEffectiveConfig(context.Background(), orgID)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if config.Source != commissiondomain.SourceLegacy {
		t.Fatalf("expected legacy source, got %s", config.Source)
	}
	if len(config.Tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(config.Tiers))
	}
	if config.Tiers[0].Percent == nil || *config.Tiers[0].Percent != 25 {
		t.Fatalf("expected legacy fraction scaled to 25, got %+v", config.Tiers[0].Percent)
	}
	if config.Tiers[1].SessionThreshold != 21 {
		t.Fatalf("expected threshold 21, got %d", config.Tiers[1].SessionThreshold)
	}
}

func TestGetEffectiveConfigWithoutAnyConfig(t *testing.T) {
	db, svc, node := setupCommissionTest(t)
	orgID := insertOrg(t, db, node)

	_, err := svc.GetEffectiveConfig(context.Background(), orgID)
	if !errors.Is(err, commissiondomain.ErrConfigNotFound) {
		t.Fatalf("expected config not found, got %v", err)
	}
}

func TestResolveStatementSettlesValidatedSessions(t *testing.T) {
	db, svc, node := setupCommissionTest(t)
	orgID := insertOrg(t, db, node)
	trainerID := insertTrainer(t, db, node, orgID)

	percent30, percent35 := 30.0, 35.0
	if _, err := svc.SetConfig(context.Background(), orgID, commissiondomain.SetConfigRequest{
		CalculationMethod: "PROGRESSIVE",
		Tiers: []commissiondomain.TierConfig{
			{TierLevel: 1, SessionThreshold: 1, Percent: &percent30},
			{TierLevel: 2, SessionThreshold: 21, Percent: &percent35},
		},
	}); err != nil {
		t.Fatalf("set config: %v", err)
	}

	periodStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	insertValidatedSessions(t, db, node, orgID, trainerID, periodStart, 25)

	statement, err := svc.ResolveStatement(context.Background(), orgID, commissiondomain.StatementRequest{
		TrainerID:    trainerID.String(),
		PeriodStart:  periodStart,
		PeriodEnd:    periodStart.AddDate(0, 1, 0),
		SessionValue: 50,
	})
	if err != nil {
		t.Fatalf("resolve statement: %v", err)
	}
	if statement.SessionCount != 25 {
		t.Fatalf("expected 25 validated sessions, got %d", statement.SessionCount)
	}
	if statement.Amount != 437.50 {
		t.Fatalf("expected amount 437.50, got %v", statement.Amount)
	}
}

func TestResolveStatementUnknownTrainer(t *testing.T) {
	db, svc, node := setupCommissionTest(t)
	orgID := insertOrg(t, db, node)

	_, err := svc.ResolveStatement(context.Background(), orgID, commissiondomain.StatementRequest{
		TrainerID:    node.Generate().String(),
		PeriodStart:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:    time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		SessionValue: 50,
	})
	if !errors.Is(err, commissiondomain.ErrInvalidTrainer) {
		t.Fatalf("expected invalid trainer, got %v", err)
	}
}

// One node per test binary: a fresh node restarts its sequence, so tests in the
// same millisecond would repeat IDs inside the shared cache=shared database.
var testNode, testNodeErr = snowflake.NewNode(4)

func setupCommissionTest(t *testing.T) (*gorm.DB, commissiondomain.Service, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			commission_method TEXT NOT NULL DEFAULT 'PROGRESSIVE',
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS trainers (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			user_id BIGINT,
			name TEXT NOT NULL,
			email TEXT,
			commission_profile_id BIGINT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS commission_profiles (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			calculation_method TEXT NOT NULL,
			rate_application TEXT NOT NULL DEFAULT 'PROGRESSIVE',
			trigger_type TEXT NOT NULL DEFAULT 'SESSION_COUNT',
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS commission_profile_tiers (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			profile_id BIGINT NOT NULL,
			tier_level INTEGER NOT NULL,
			session_threshold INTEGER NOT NULL,
			session_commission_percent REAL,
			session_flat_fee REAL,
			created_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS commission_tiers (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			min_sessions INTEGER NOT NULL,
			max_sessions INTEGER,
			percentage REAL NOT NULL,
			created_at DATETIME
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

	node, err := testNode, testNodeErr
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	clk := clock.Fixed(time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC))

	sessions := sessionservice.NewService(sessionservice.ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		PackageRepo: packagerepository.Provide(),
	})
	svc := NewService(ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Usage:  sessions,
		Outbox: events.NewOutbox(db, node),
	})
	return db, svc, node
}

func insertOrg(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()
	orgID := node.Generate()
	if err := db.Exec(
		`INSERT INTO organizations (id, name, slug, commission_method, created_at, updated_at)
		 VALUES (?, ?, ?, 'PROGRESSIVE', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		orgID,
		"Test Gym",
		"test-gym-"+orgID.String(),
	).Error; err != nil {
		t.Fatalf("insert org: %v", err)
	}
	return orgID
}

func insertTrainer(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID) snowflake.ID {
	t.Helper()
	trainerID := node.Generate()
	if err := db.Exec(
		`INSERT INTO trainers (id, org_id, user_id, name, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, TRUE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		trainerID,
		orgID,
		node.Generate(),
		"Trainer One",
	).Error; err != nil {
		t.Fatalf("insert trainer: %v", err)
	}
	return trainerID
}

func insertValidatedSessions(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID, trainerID snowflake.ID, start time.Time, count int) {
	t.Helper()
	packageID := node.Generate()
	clientID := node.Generate()
	for i := 0; i < count; i++ {
		if err := db.Exec(
			`INSERT INTO training_sessions (id, org_id, package_id, trainer_id, client_id, scheduled_at, cancelled, validated, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, FALSE, TRUE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
			node.Generate(),
			orgID,
			packageID,
			trainerID,
			clientID,
			start.Add(time.Duration(i)*time.Hour),
		).Error; err != nil {
			t.Fatalf("insert session %d: %v", i+1, err)
		}
	}
}
