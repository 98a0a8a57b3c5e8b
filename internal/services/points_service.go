// Package services – PointsService
//
// This file implements the PointsService, the read side of the points
// ledger: balances, paginated history, and recent events. All writes to the
// ledger flow through RatingService and BadgeService, which call the
// repository's idempotent RecordPointsEvent directly inside their
// transactions.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-rewards-backend/internal/domain"
	"github.com/tbourn/go-rewards-backend/internal/repo"
	"github.com/tbourn/go-rewards-backend/internal/utils"
)

// PointsService exposes balance and history queries over the ledger.
type PointsService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// DefaultPageSize applies when a history request has no limit;
	// MaxPageSize caps client-supplied limits.
	DefaultPageSize int
	MaxPageSize     int
}

// NewPointsService constructs a PointsService with sane pagination defaults.
func NewPointsService(db *gorm.DB) *PointsService {
	return &PointsService{DB: db, DefaultPageSize: 20, MaxPageSize: 100}
}

// Balance returns SUM(points) across all of the user's events. Computed on
// every call; the ledger rows are the only source of truth.
func (s *PointsService) Balance(ctx context.Context, userID string) (int64, error) {
	return repo.SumPoints(ctx, s.DB, userID)
}

// HistoryPage is one page of ledger history plus the cursor addressing the
// next page. NextCursor is empty on the last page.
type HistoryPage struct {
	Events     []domain.PointsEvent `json:"events"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// History returns a page of the user's ledger ordered by
// (awarded_at DESC, id DESC). cursor is an opaque token from a previous
// page ("" for the first page); from/to are optional inclusive bounds on
// awarded_at.
func (s *PointsService) History(ctx context.Context, userID string, limit int, cursor string, from, to *time.Time) (*HistoryPage, error) {
	limit = s.clampLimit(limit)

	f := repo.HistoryFilter{From: from, To: to}
	if cursor != "" {
		ts, id, err := utils.DecodeCursor(cursor)
		if err != nil {
			return nil, ErrBadCursor
		}
		f.AfterAwardedAt = &ts
		f.AfterID = id
	}

	// Fetch one extra row to learn whether another page exists.
	events, err := repo.ListPointsEvents(ctx, s.DB, userID, f, limit+1)
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		last := page.Events[limit-1]
		page.NextCursor = utils.EncodeCursor(last.AwardedAt, last.ID)
	}
	if page.Events == nil {
		page.Events = []domain.PointsEvent{}
	}
	return page, nil
}

// Recent returns the newest events without cursor bookkeeping, same
// ordering as History.
func (s *PointsService) Recent(ctx context.Context, userID string, limit int) ([]domain.PointsEvent, error) {
	limit = s.clampLimit(limit)
	return repo.ListPointsEvents(ctx, s.DB, userID, repo.HistoryFilter{}, limit)
}

// clampLimit applies the default and maximum page sizes.
func (s *PointsService) clampLimit(limit int) int {
	if limit <= 0 {
		if s.DefaultPageSize > 0 {
			return s.DefaultPageSize
		}
		return 20
	}
	if s.MaxPageSize > 0 && limit > s.MaxPageSize {
		return s.MaxPageSize
	}
	return limit
}

// IsNotFound reports whether err is the repo/gorm not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
