// Package repo implements the data persistence layer for the rewards
// engine, backed by GORM. This file provides repository functions for the
// DomainVibeLevel and VibeLevelChange models.
//
// Concurrency contract: the DomainVibeLevel row for a (user_id, domain_code)
// pair is read-then-updated under a row-level lock inside the caller's
// transaction (GetVibeLevelForUpdate). Concurrent completions in the same
// domain for the same user therefore serialize instead of losing updates.
// VibeLevelChange rows are append-only and never locked.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-rewards-backend/internal/domain"
)

// GetVibeLevelForUpdate fetches the rating row for (userID, domainCode)
// under a SELECT ... FOR UPDATE lock, or ErrNotFound when the user has no
// state in that domain yet. Must be called inside a transaction; SQLite
// serializes writers globally so the clause is a no-op there, while
// Postgres takes the intended row lock.
func GetVibeLevelForUpdate(ctx context.Context, tx *gorm.DB, userID, domainCode string) (*domain.DomainVibeLevel, error) {
	var v domain.DomainVibeLevel
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND domain_code = ?", userID, domainCode).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVibeLevel inserts the lazily initialized rating row with default
// priors. A concurrent initializer may win the race; callers should treat
// a duplicate as "re-read and continue".
func CreateVibeLevel(ctx context.Context, tx *gorm.DB, v *domain.DomainVibeLevel) error {
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.LastUpdatedAt.IsZero() {
		v.LastUpdatedAt = now
	}
	return tx.WithContext(ctx).Create(v).Error
}

// UpdateVibeLevel persists a recomputed rating with a single UPDATE on the
// primary key — never insert-then-update, so no duplicate rows can appear.
// Returns ErrNotFound when the row vanished underneath the caller.
func UpdateVibeLevel(ctx context.Context, tx *gorm.DB, v *domain.DomainVibeLevel) error {
	res := tx.WithContext(ctx).
		Model(&domain.DomainVibeLevel{}).
		Where("user_id = ? AND domain_code = ?", v.UserID, v.DomainCode).
		Updates(map[string]any{
			"vibe_level":       v.VibeLevel,
			"rating_deviation": v.RatingDeviation,
			"volatility":       v.Volatility,
			"last_updated_at":  v.LastUpdatedAt,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListVibeLevels returns every domain rating the user holds, ordered by
// domain code for stable output.
func ListVibeLevels(ctx context.Context, db *gorm.DB, userID string) ([]domain.DomainVibeLevel, error) {
	var out []domain.DomainVibeLevel
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("domain_code ASC").
		Find(&out).Error
	return out, err
}

// GetVibeLevel fetches one rating row without locking (read paths).
func GetVibeLevel(ctx context.Context, db *gorm.DB, userID, domainCode string) (*domain.DomainVibeLevel, error) {
	var v domain.DomainVibeLevel
	err := db.WithContext(ctx).
		Where("user_id = ? AND domain_code = ?", userID, domainCode).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVibeLevelChange appends one immutable rating-history row.
func CreateVibeLevelChange(ctx context.Context, tx *gorm.DB, ch *domain.VibeLevelChange) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	return tx.WithContext(ctx).Create(ch).Error
}

// ListVibeLevelChanges returns the rating history for one user and domain,
// newest first. A limit <= 0 returns everything.
func ListVibeLevelChanges(ctx context.Context, db *gorm.DB, userID, domainCode string, limit int) ([]domain.VibeLevelChange, error) {
	q := db.WithContext(ctx).
		Where("user_id = ? AND domain_code = ?", userID, domainCode).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.VibeLevelChange
	err := q.Find(&out).Error
	return out, err
}

// CountVibeLevelChanges counts history rows for one user, optionally
// narrowed to a change reason. Used by tests and integrity checks.
func CountVibeLevelChanges(ctx context.Context, db *gorm.DB, userID string, reason domain.ChangeReason) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.VibeLevelChange{}).Where("user_id = ?", userID)
	if reason != "" {
		q = q.Where("change_reason = ?", reason)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}
