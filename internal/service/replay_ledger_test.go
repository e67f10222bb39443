package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const ledgerTableDDL = `CREATE TABLE delivery_attempts (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	client_id TEXT NOT NULL,
	target_url TEXT NOT NULL,
	attempt_type TEXT NOT NULL,
	result TEXT NOT NULL,
	http_status INTEGER,
	error_message TEXT,
	attempted_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL,
	correlation_id TEXT
)`

func newSQLiteLedger(t *testing.T) *repository.GormAttemptRepo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		Logger:                 logger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	for _, stmt := range append([]string{ledgerTableDDL}, repository.DeliveryAttemptIndexes...) {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare ledger: %v", err)
		}
	}
	return repository.NewGormAttemptRepo(db)
}

// staleLedger misses the first lookups, as a reader racing a concurrent writer would.
type staleLedger struct {
	*repository.GormAttemptRepo
	misses int
}

func (l *staleLedger) FindAttemptedAt(ctx context.Context, clientID, eventID, key string) (*time.Time, error) {
	if l.misses > 0 {
		l.misses--
		return nil, nil
	}
	return l.GormAttemptRepo.FindAttemptedAt(ctx, clientID, eventID, key)
}

func TestReplayServiceResolvesUniqueViolationFromSQLLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gormLedger := newSQLiteLedger(t)

	key := "retry-sql"
	winner := testNow.Add(-time.Minute)
	status := 200
	if err := gormLedger.Save(ctx, &domain.DeliveryAttempt{
		ID:             "winner",
		EventID:        "E1",
		ClientID:       "T1",
		TargetURL:      "https://webhook.example.com/replays",
		AttemptType:    domain.AttemptTypeReplay,
		Result:         domain.AttemptResultSuccess,
		HTTPStatus:     &status,
		AttemptedAt:    winner,
		CorrelationKey: &key,
	}); err != nil {
		t.Fatalf("Save() winner error = %v", err)
	}

	ledger := &staleLedger{GormAttemptRepo: gormLedger, misses: 1}
	sender := &fakeSender{}
	svc, err := NewReplayService(&fakeEventRepo{events: testEvents()}, ledger, sender, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewReplayService() error = %v", err)
	}
	svc.now = func() time.Time { return testFinishedAt }

	result, err := svc.Replay(ctx, "T1", "E1", strPtr(key))
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if !result.Deduplicated || !result.ProcessedAt.Equal(winner) {
		t.Fatalf("result = %+v, want deduplicated at %v", result, winner)
	}

	attempts, err := gormLedger.ListByEvent(ctx, "T1", "E1")
	if err != nil {
		t.Fatalf("ListByEvent() error = %v", err)
	}
	if len(attempts) != 1 || attempts[0].ID != "winner" {
		t.Fatalf("ledger = %+v, want only the winning attempt", attempts)
	}
}

func TestReplayServiceUnkeyedReplaysAppendToSQLLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := newSQLiteLedger(t)
	sender := &fakeSender{}
	svc, err := NewReplayService(&fakeEventRepo{events: testEvents()}, ledger, sender, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewReplayService() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Replay(ctx, "T1", "E1", nil); err != nil {
			t.Fatalf("Replay() #%d error = %v", i, err)
		}
	}

	attempts, err := ledger.ListByEvent(ctx, "T1", "E1")
	if err != nil {
		t.Fatalf("ListByEvent() error = %v", err)
	}
	if len(attempts) != 2 || sender.calls() != 2 {
		t.Fatalf("ledger rows = %d, sender calls = %d, want 2 each", len(attempts), sender.calls())
	}
	if attempts[0].CorrelationKey == nil || attempts[1].CorrelationKey == nil ||
		*attempts[0].CorrelationKey == *attempts[1].CorrelationKey {
		t.Fatal("unkeyed replays should record distinct generated keys")
	}
}
