// Package repo implements the data persistence layer for the rewards
// engine, backed by GORM. This file provides repository functions for the
// PointsEvent ledger.
//
// The repository follows a "thin" approach: it performs persistence and
// simple query composition, leaving business rules to the services package.
//
// Error semantics:
//   - RecordPointsEvent recovers unique-constraint violations locally: the
//     pre-existing row is re-read and returned with alreadyRecorded=true.
//     Callers must treat that identically to a fresh insert.
//   - On other DB errors (connectivity, missing tables, etc.), the raw gorm
//     error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rewards-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates an insert hit a uniqueness constraint. Repos that
// can recover the pre-existing row do so instead of surfacing this value.
var ErrDuplicate = errors.New("duplicate")

// IsDuplicateErr detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
//
// SQLite typically: "UNIQUE constraint failed"
// Postgres typically: "duplicate key value violates unique constraint"
func IsDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed: unique")
}

// RecordPointsEvent inserts a ledger event. When the (user_id, source_type,
// source_id) idempotency key is already taken, the existing row is returned
// with alreadyRecorded=true instead of an error — the explicit two-path
// "try insert, on conflict re-read" logic that makes retried deliveries
// safe.
func RecordPointsEvent(ctx context.Context, db *gorm.DB, ev *domain.PointsEvent) (out *domain.PointsEvent, alreadyRecorded bool, err error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.AwardedAt.IsZero() {
		ev.AwardedAt = time.Now().UTC()
	}

	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		if !IsDuplicateErr(err) || ev.SourceID == nil {
			return nil, false, err
		}
		existing, ferr := FindPointsEventBySource(ctx, db, ev.UserID, ev.SourceType, *ev.SourceID)
		if ferr != nil {
			// The conflicting row must exist; surface the original error
			// if the re-read cannot find it.
			return nil, false, err
		}
		return existing, true, nil
	}
	return ev, false, nil
}

// FindPointsEventBySource fetches the ledger event for one idempotency key,
// or ErrNotFound.
func FindPointsEventBySource(ctx context.Context, db *gorm.DB, userID string, sourceType domain.SourceType, sourceID string) (*domain.PointsEvent, error) {
	var ev domain.PointsEvent
	err := db.WithContext(ctx).
		Where("user_id = ? AND source_type = ? AND source_id = ?", userID, sourceType, sourceID).
		First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// SumPoints computes the user's balance as SUM(points) over all events.
// The balance is always computed, never cached, so it cannot drift from
// the ledger.
func SumPoints(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total *int64
	err := db.WithContext(ctx).
		Model(&domain.PointsEvent{}).
		Select("SUM(points)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// HistoryFilter narrows ListPointsEvents. From/To are inclusive bounds on
// awarded_at; AfterAwardedAt/AfterID carry the keyset cursor position
// (exclusive) and must be set together.
type HistoryFilter struct {
	From           *time.Time
	To             *time.Time
	AfterAwardedAt *time.Time
	AfterID        string
}

// ListPointsEvents returns up to limit events for a user ordered by
// (awarded_at DESC, id DESC). The composite ordering resolves ties on
// awarded_at deterministically so keyset pages never skip or duplicate
// rows when events share a timestamp.
func ListPointsEvents(ctx context.Context, db *gorm.DB, userID string, f HistoryFilter, limit int) ([]domain.PointsEvent, error) {
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("awarded_at DESC, id DESC")
	if f.From != nil {
		q = q.Where("awarded_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("awarded_at <= ?", *f.To)
	}
	if f.AfterAwardedAt != nil {
		// Strictly older than the cursor row in composite order.
		q = q.Where("(awarded_at < ?) OR (awarded_at = ? AND id < ?)",
			*f.AfterAwardedAt, *f.AfterAwardedAt, f.AfterID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.PointsEvent
	err := q.Find(&out).Error
	return out, err
}

// CountEventsBySource returns the number of ledger events for one user and
// source type (e.g. completed sessions).
func CountEventsBySource(ctx context.Context, db *gorm.DB, userID string, sourceType domain.SourceType) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.PointsEvent{}).
		Where("user_id = ? AND source_type = ?", userID, sourceType).
		Count(&total).Error
	return total, err
}

// ListCompletionTimes returns awarded_at timestamps of session-completion
// events within [from, to], oldest first. The streak aggregator reduces
// them to calendar dates.
func ListCompletionTimes(ctx context.Context, db *gorm.DB, userID string, from, to time.Time) ([]time.Time, error) {
	var rows []struct {
		AwardedAt time.Time
	}
	err := db.WithContext(ctx).
		Model(&domain.PointsEvent{}).
		Select("awarded_at").
		Where("user_id = ? AND source_type = ? AND awarded_at >= ? AND awarded_at <= ?",
			userID, domain.SourceSessionCompletion, from, to).
		Order("awarded_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.AwardedAt)
	}
	return out, nil
}

// CountCompletionsByExerciseType groups session-completion events by the
// exercise_type key in their metadata payload. Events without the key are
// ignored. Uses json_extract, available in both SQLite and Postgres
// (jsonb path form differs but GORM's json serializer keeps the column
// queryable here).
func CountCompletionsByExerciseType(ctx context.Context, db *gorm.DB, userID string) (map[string]int64, error) {
	var rows []struct {
		ExerciseType string
		N            int64
	}
	err := db.WithContext(ctx).
		Model(&domain.PointsEvent{}).
		Select("json_extract(metadata, '$.exercise_type') AS exercise_type, COUNT(*) AS n").
		Where("user_id = ? AND source_type = ? AND json_extract(metadata, '$.exercise_type') IS NOT NULL",
			userID, domain.SourceSessionCompletion).
		Group("json_extract(metadata, '$.exercise_type')").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ExerciseType] = r.N
	}
	return out, nil
}
