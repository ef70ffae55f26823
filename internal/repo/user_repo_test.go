package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

func newUserRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("user_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.User{}, &domain.Contribution{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestEnsureUser_CreatesOnceThenReturnsExisting(t *testing.T) {
	db := newUserRepoDB(t)
	ctx := context.Background()

	u1, err := EnsureUser(ctx, db, "alice")
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if u1.ID != "alice" || u1.ReputationScore != 0 {
		t.Fatalf("unexpected new user: %+v", u1)
	}

	if err := UpdateReputation(ctx, db, "alice", 42); err != nil {
		t.Fatalf("update reputation: %v", err)
	}
	u2, err := EnsureUser(ctx, db, "alice")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if u2.ReputationScore != 42 {
		t.Fatalf("ensure must not reset existing row: %+v", u2)
	}
}

func TestIncrementContributionStats_AcceptedAndRejected(t *testing.T) {
	db := newUserRepoDB(t)
	ctx := context.Background()

	if _, err := EnsureUser(ctx, db, "u1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if err := IncrementContributionStats(ctx, db, "u1", true, 2, 0, 350, 64); err != nil {
		t.Fatalf("accepted credit: %v", err)
	}
	if err := IncrementContributionStats(ctx, db, "u1", false, 0, 0, 0, 0); err != nil {
		t.Fatalf("rejected credit: %v", err)
	}

	u, err := GetUser(ctx, db, "u1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if u.ContributionCount != 2 || u.AcceptedContributions != 1 {
		t.Fatalf("counters: %+v", u)
	}
	if u.TotalHoursSpeech != 2 || u.TotalTokensProduced != 350 || u.TotalPoints != 64 {
		t.Fatalf("metric totals: %+v", u)
	}
	if got := u.AcceptanceRate(); got != 0.5 {
		t.Fatalf("acceptance rate: got %v", got)
	}
}

func TestListTopContributors_TotalOrder(t *testing.T) {
	db := newUserRepoDB(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	users := []domain.User{
		{ID: "low", Username: "low", ReputationScore: 10, TotalPoints: 500, CreatedAt: base},
		{ID: "tied-old", Username: "tied-old", ReputationScore: 80, TotalPoints: 100, CreatedAt: base},
		{ID: "tied-new", Username: "tied-new", ReputationScore: 80, TotalPoints: 100, CreatedAt: base.Add(time.Hour)},
		{ID: "points", Username: "points", ReputationScore: 80, TotalPoints: 200, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range users {
		if err := db.Create(&users[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", users[i].ID, err)
		}
	}

	got, err := ListTopContributors(ctx, db, 10, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	wantOrder := []string{"points", "tied-old", "tied-new", "low"}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d rows, got %d", len(wantOrder), len(got))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestListTopContributors_TimeWindowFiltersByActivity(t *testing.T) {
	db := newUserRepoDB(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"active", "idle"} {
		if err := db.Create(&domain.User{ID: id, Username: id, CreatedAt: base}).Error; err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
	c := domain.Contribution{
		ID: "c1", ContributorID: "active", TaskKind: domain.TaskTranscription,
		SampleID: "s1", LanguageID: "l1", Text: "a", NormalizedText: "a",
		State: domain.StateUnresolved, CreatedAt: base.Add(72 * time.Hour),
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed contribution: %v", err)
	}

	cut := base.Add(24 * time.Hour)
	got, err := ListTopContributors(ctx, db, 10, &cut)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "active" {
		t.Fatalf("expected only the active user, got %+v", got)
	}
}
