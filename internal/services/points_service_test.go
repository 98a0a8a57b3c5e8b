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

func newPointsServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("points_service_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.PointsEvent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedHistoryEvent(t *testing.T, db *gorm.DB, userID, sid string, points int, at time.Time) {
	t.Helper()
	s := sid
	ev := &domain.PointsEvent{
		UserID:     userID,
		SourceType: domain.SourceSessionCompletion,
		SourceID:   &s,
		Points:     points,
		AwardedAt:  at,
	}
	if _, _, err := repo.RecordPointsEvent(context.Background(), db, ev); err != nil {
		t.Fatalf("seed %s: %v", sid, err)
	}
}

func TestBalance(t *testing.T) {
	db := newPointsServiceDB(t)
	svc := NewPointsService(db)
	ctx := context.Background()

	if total, err := svc.Balance(ctx, "u1"); err != nil || total != 0 {
		t.Fatalf("empty balance: %d err=%v", total, err)
	}

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	seedHistoryEvent(t, db, "u1", "a", 30, base)
	seedHistoryEvent(t, db, "u1", "b", 12, base.Add(time.Hour))

	total, err := svc.Balance(ctx, "u1")
	if err != nil || total != 42 {
		t.Fatalf("expected 42, got %d (err=%v)", total, err)
	}
}

func TestHistory_CursorWalksAllPages(t *testing.T) {
	db := newPointsServiceDB(t)
	svc := NewPointsService(db)
	svc.DefaultPageSize = 2
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedHistoryEvent(t, db, "u1", fmt.Sprintf("s%d", i), i, base.Add(time.Duration(i)*time.Hour))
	}

	var collected []domain.PointsEvent
	cursor := ""
	pages := 0
	for {
		page, err := svc.History(ctx, "u1", 2, cursor, nil, nil)
		if err != nil {
			t.Fatalf("page %d: %v", pages, err)
		}
		collected = append(collected, page.Events...)
		pages++
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
		if pages > 10 {
			t.Fatalf("cursor loop did not terminate")
		}
	}

	if pages != 3 {
		t.Fatalf("expected 3 pages of size 2, got %d", pages)
	}
	if len(collected) != 5 {
		t.Fatalf("expected all 5 events across pages, got %d", len(collected))
	}
	for i := 1; i < len(collected); i++ {
		if collected[i].AwardedAt.After(collected[i-1].AwardedAt) {
			t.Fatalf("history must be newest-first across pages")
		}
	}
}

func TestHistory_LastPageHasNoCursor(t *testing.T) {
	db := newPointsServiceDB(t)
	svc := NewPointsService(db)
	ctx := context.Background()

	seedHistoryEvent(t, db, "u1", "only", 1, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	page, err := svc.History(ctx, "u1", 10, "", nil, nil)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page.Events) != 1 || page.NextCursor != "" {
		t.Fatalf("expected single page without cursor, got %+v", page)
	}

	// Empty history still returns a non-nil slice.
	empty, err := svc.History(ctx, "nobody", 10, "", nil, nil)
	if err != nil {
		t.Fatalf("empty history: %v", err)
	}
	if empty.Events == nil || len(empty.Events) != 0 {
		t.Fatalf("expected empty slice, got %+v", empty.Events)
	}
}

func TestHistory_BadCursor(t *testing.T) {
	db := newPointsServiceDB(t)
	svc := NewPointsService(db)

	_, err := svc.History(context.Background(), "u1", 10, "not-a-cursor", nil, nil)
	if !errors.Is(err, ErrBadCursor) {
		t.Fatalf("expected ErrBadCursor, got %v", err)
	}
}

func TestHistory_TimeBounds(t *testing.T) {
	db := newPointsServiceDB(t)
	svc := NewPointsService(db)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seedHistoryEvent(t, db, "u1", "old", 1, base)
	seedHistoryEvent(t, db, "u1", "mid", 2, base.AddDate(0, 0, 5))
	seedHistoryEvent(t, db, "u1", "new", 3, base.AddDate(0, 0, 10))

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 9)
	page, err := svc.History(ctx, "u1", 10, "", &from, &to)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].Points != 2 {
		t.Fatalf("expected only the mid event, got %+v", page.Events)
	}
}

func TestClampLimit(t *testing.T) {
	svc := &PointsService{DefaultPageSize: 20, MaxPageSize: 100}

	cases := []struct{ in, want int }{
		{0, 20},
		{-5, 20},
		{7, 7},
		{100, 100},
		{500, 100},
	}
	for _, tc := range cases {
		if got := svc.clampLimit(tc.in); got != tc.want {
			t.Fatalf("clampLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestRecent(t *testing.T) {
	db := newPointsServiceDB(t)
	svc := NewPointsService(db)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		seedHistoryEvent(t, db, "u1", fmt.Sprintf("s%d", i), i, base.Add(time.Duration(i)*time.Hour))
	}

	events, err := svc.Recent(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 || events[0].Points != 3 {
		t.Fatalf("expected the 2 newest events, got %+v", events)
	}
}
