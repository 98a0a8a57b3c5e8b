// Package repo implements the data persistence layer for the rewards
// engine, backed by GORM. This file provides the windowed aggregation query
// behind the leaderboard ranker.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-rewards-backend/internal/domain"
)

// UserPointsRow is one aggregated leaderboard input: a user and their point
// total inside the requested window.
type UserPointsRow struct {
	UserID string
	Points int64
}

// SumPointsByUser groups ledger events by user over an inclusive awarded_at
// window. Nil bounds leave that side open (all-time). A non-nil userIDs
// slice restricts the population (friends scope); note that an empty
// non-nil slice legitimately yields no rows.
//
// Ordering here is only points DESC as a cheap pre-sort; the service layer
// applies the full deterministic tie-break (badges, user id) before ranks
// are assigned.
func SumPointsByUser(ctx context.Context, db *gorm.DB, from, to *time.Time, userIDs []string) ([]UserPointsRow, error) {
	q := db.WithContext(ctx).
		Model(&domain.PointsEvent{}).
		Select("user_id, SUM(points) AS points").
		Group("user_id").
		Order("points DESC")
	if from != nil {
		q = q.Where("awarded_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("awarded_at <= ?", *to)
	}
	if userIDs != nil {
		q = q.Where("user_id IN ?", userIDs)
	}

	var rows []UserPointsRow
	err := q.Scan(&rows).Error
	return rows, err
}
