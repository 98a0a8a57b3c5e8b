package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-rewards-backend/internal/domain"
	"github.com/tbourn/go-rewards-backend/internal/repo"
)

func newLeaderboardServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("lb_service_test_%d.db", time.Now().UnixNano()))
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedLBPoints(t *testing.T, db *gorm.DB, user, sid string, points int, at time.Time) {
	t.Helper()
	s := sid
	ev := &domain.PointsEvent{
		UserID:     user,
		SourceType: domain.SourceSessionCompletion,
		SourceID:   &s,
		Points:     points,
		AwardedAt:  at,
	}
	if _, _, err := repo.RecordPointsEvent(context.Background(), db, ev); err != nil {
		t.Fatalf("seed %s/%s: %v", user, sid, err)
	}
}

func seedLBBadge(t *testing.T, db *gorm.DB, user, code string) {
	t.Helper()
	if _, _, err := repo.CreateBadgeAward(context.Background(), db, &domain.BadgeAward{UserID: user, BadgeType: code}); err != nil {
		t.Fatalf("badge %s/%s: %v", user, code, err)
	}
}

// fixedFriends is a static FriendsProvider for tests.
type fixedFriends map[string][]string

func (f fixedFriends) Friends(_ context.Context, userID string) ([]string, error) {
	return f[userID], nil
}

func TestRank_GlobalOrderingAndSequentialRanks(t *testing.T) {
	db := newLeaderboardServiceDB(t)
	svc := NewLeaderboardService(db, nil)
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC) // a Wednesday
	svc.Now = func() time.Time { return now }

	seedLBPoints(t, db, "alice", "a1", 300, now.Add(-time.Hour))
	seedLBPoints(t, db, "bob", "b1", 500, now.Add(-time.Hour))
	seedLBPoints(t, db, "carol", "c1", 100, now.Add(-time.Hour))

	entries, err := svc.Rank(context.Background(), ScopeGlobal, PeriodAll, "", 0)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantOrder := []string{"bob", "alice", "carol"}
	for i, user := range wantOrder {
		if entries[i].UserID != user {
			t.Fatalf("expected order %v, got %+v", wantOrder, entries)
		}
		if entries[i].Rank != i+1 {
			t.Fatalf("ranks must be sequential from 1: %+v", entries)
		}
	}
}

func TestRank_TieBreakBadgesThenUserID(t *testing.T) {
	db := newLeaderboardServiceDB(t)
	svc := NewLeaderboardService(db, nil)
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	seedLBPoints(t, db, "alice", "a1", 100, now.Add(-time.Hour))
	seedLBPoints(t, db, "bob", "b1", 100, now.Add(-time.Hour))
	seedLBPoints(t, db, "carol", "c1", 100, now.Add(-time.Hour))
	// bob has more badges than the others; alice and carol tie on badges
	// and fall back to user id order.
	seedLBBadge(t, db, "bob", "x")
	seedLBBadge(t, db, "bob", "y")
	seedLBBadge(t, db, "alice", "x")
	seedLBBadge(t, db, "carol", "x")

	entries, err := svc.Rank(context.Background(), ScopeGlobal, PeriodAll, "", 0)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	wantOrder := []string{"bob", "alice", "carol"}
	for i, user := range wantOrder {
		if entries[i].UserID != user {
			t.Fatalf("expected tie-broken order %v, got %+v", wantOrder, entries)
		}
	}
	if entries[0].Badges != 2 || entries[1].Badges != 1 {
		t.Fatalf("badge counts missing from entries: %+v", entries)
	}
	// Equal totals still get distinct, gapless ranks.
	if entries[0].Rank != 1 || entries[1].Rank != 2 || entries[2].Rank != 3 {
		t.Fatalf("expected ranks 1,2,3: %+v", entries)
	}
}

func TestRank_WeekWindowStartsMondayUTC(t *testing.T) {
	db := newLeaderboardServiceDB(t)
	svc := NewLeaderboardService(db, nil)
	// Wednesday 2025-06-18; the ISO week began Monday 2025-06-16 00:00 UTC.
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	monday := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	seedLBPoints(t, db, "alice", "in", 50, monday.Add(time.Minute))
	seedLBPoints(t, db, "alice", "out", 500, monday.Add(-time.Hour)) // Sunday, previous week

	entries, err := svc.Rank(context.Background(), ScopeGlobal, PeriodWeek, "", 0)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(entries) != 1 || entries[0].Points != 50 {
		t.Fatalf("expected only this week's 50 points, got %+v", entries)
	}
}

func TestRank_MonthWindow(t *testing.T) {
	db := newLeaderboardServiceDB(t)
	svc := NewLeaderboardService(db, nil)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	seedLBPoints(t, db, "alice", "june", 40, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	seedLBPoints(t, db, "alice", "may", 400, time.Date(2025, 5, 31, 23, 0, 0, 0, time.UTC))

	entries, err := svc.Rank(context.Background(), ScopeGlobal, PeriodMonth, "", 0)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(entries) != 1 || entries[0].Points != 40 {
		t.Fatalf("expected only June's points, got %+v", entries)
	}
}

func TestRank_FriendsScope(t *testing.T) {
	db := newLeaderboardServiceDB(t)
	friends := fixedFriends{"alice": {"bob", "dora"}}
	svc := NewLeaderboardService(db, friends)
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	seedLBPoints(t, db, "alice", "a1", 100, now.Add(-time.Hour))
	seedLBPoints(t, db, "bob", "b1", 200, now.Add(-time.Hour))
	seedLBPoints(t, db, "carol", "c1", 999, now.Add(-time.Hour)) // not a friend
	// dora is a friend with no events and must still appear with 0 points.

	entries, err := svc.Rank(context.Background(), ScopeFriends, PeriodAll, "alice", 0)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected viewer+friends, got %+v", entries)
	}
	if entries[0].UserID != "bob" || entries[1].UserID != "alice" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if entries[2].UserID != "dora" || entries[2].Points != 0 {
		t.Fatalf("inactive friend must rank with 0 points: %+v", entries)
	}
	for _, e := range entries {
		if e.UserID == "carol" {
			t.Fatalf("non-friend leaked into friends board: %+v", entries)
		}
	}
}

func TestRank_InputValidation(t *testing.T) {
	db := newLeaderboardServiceDB(t)
	svc := NewLeaderboardService(db, nil)

	if _, err := svc.Rank(context.Background(), "galaxy", PeriodAll, "", 0); !errors.Is(err, ErrUnknownScope) {
		t.Fatalf("expected ErrUnknownScope, got %v", err)
	}
	if _, err := svc.Rank(context.Background(), ScopeGlobal, "decade", "", 0); !errors.Is(err, ErrUnknownPeriod) {
		t.Fatalf("expected ErrUnknownPeriod, got %v", err)
	}
	if _, err := svc.Rank(context.Background(), ScopeFriends, PeriodAll, "", 0); !errors.Is(err, ErrViewerRequired) {
		t.Fatalf("expected ErrViewerRequired, got %v", err)
	}
}

func TestRank_LimitClamping(t *testing.T) {
	db := newLeaderboardServiceDB(t)
	svc := NewLeaderboardService(db, nil)
	svc.DefaultLimit = 2
	svc.MaxLimit = 3
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		seedLBPoints(t, db, fmt.Sprintf("u%d", i), fmt.Sprintf("s%d", i), 10*(i+1), now.Add(-time.Hour))
	}

	// Zero limit falls back to the default.
	entries, err := svc.Rank(context.Background(), ScopeGlobal, PeriodAll, "", 0)
	if err != nil || len(entries) != 2 {
		t.Fatalf("expected default limit 2, got %d (err=%v)", len(entries), err)
	}
	// Oversized limits are capped.
	entries, err = svc.Rank(context.Background(), ScopeGlobal, PeriodAll, "", 50)
	if err != nil || len(entries) != 3 {
		t.Fatalf("expected max limit 3, got %d (err=%v)", len(entries), err)
	}
}

func TestPeriodStart_Boundaries(t *testing.T) {
	// Monday itself starts a fresh week window.
	monday := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	got, err := periodStart(PeriodWeek, monday)
	if err != nil {
		t.Fatalf("periodStart: %v", err)
	}
	want := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// Sunday belongs to the week that started six days earlier.
	sunday := time.Date(2025, 6, 22, 23, 59, 0, 0, time.UTC)
	got, err = periodStart(PeriodWeek, sunday)
	if err != nil {
		t.Fatalf("periodStart: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("expected Sunday to map to Monday %v, got %v", want, got)
	}

	// All-time has no lower bound.
	open, err := periodStart(PeriodAll, monday)
	if err != nil || open != nil {
		t.Fatalf("expected nil window for all-time, got %v (err=%v)", open, err)
	}
}
