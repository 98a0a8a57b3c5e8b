// Package repo implements the data persistence layer for the rewards
// engine, backed by GORM. This file provides repository functions for the
// badge catalog and badge awards.
//
// Award semantics mirror the ledger: insert, and treat a unique-constraint
// violation as already-done. The (user_id, badge_type) index makes the
// at-most-once guarantee hold under concurrent evaluation passes without
// any locking.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rewards-backend/internal/domain"
)

// ListBadgeCatalog returns every catalog entry ordered by (priority ASC,
// code ASC) so evaluation and award sequencing are deterministic.
func ListBadgeCatalog(ctx context.Context, db *gorm.DB) ([]domain.BadgeCatalogEntry, error) {
	var out []domain.BadgeCatalogEntry
	err := db.WithContext(ctx).
		Order("priority ASC, code ASC").
		Find(&out).Error
	return out, err
}

// CountBadgeCatalog returns the catalog size; used to decide whether the
// bootstrap seed applies.
func CountBadgeCatalog(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.BadgeCatalogEntry{}).Count(&total).Error
	return total, err
}

// UpsertBadgeCatalogEntry inserts a catalog entry, leaving an existing row
// with the same code untouched. The catalog is administered externally;
// this only backs the bootstrap seed.
func UpsertBadgeCatalogEntry(ctx context.Context, db *gorm.DB, e *domain.BadgeCatalogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := db.WithContext(ctx).Create(e).Error
	if err != nil && IsDuplicateErr(err) {
		return nil
	}
	return err
}

// ListUserBadges returns the awards a user holds, newest first.
func ListUserBadges(ctx context.Context, db *gorm.DB, userID string) ([]domain.BadgeAward, error) {
	var out []domain.BadgeAward
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("awarded_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// HeldBadgeCodes returns the set of badge codes the user already holds.
func HeldBadgeCodes(ctx context.Context, db *gorm.DB, userID string) (map[string]struct{}, error) {
	var codes []string
	err := db.WithContext(ctx).
		Model(&domain.BadgeAward{}).
		Where("user_id = ?", userID).
		Pluck("badge_type", &codes).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		out[c] = struct{}{}
	}
	return out, nil
}

// CreateBadgeAward inserts an award row. When another evaluation pass has
// already awarded the badge, the existing row is re-read and returned with
// alreadyHeld=true — a conflict is success, not an error.
func CreateBadgeAward(ctx context.Context, db *gorm.DB, award *domain.BadgeAward) (out *domain.BadgeAward, alreadyHeld bool, err error) {
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	if award.AwardedAt.IsZero() {
		award.AwardedAt = time.Now().UTC()
	}

	if err := db.WithContext(ctx).Create(award).Error; err != nil {
		if !IsDuplicateErr(err) {
			return nil, false, err
		}
		var existing domain.BadgeAward
		ferr := db.WithContext(ctx).
			Where("user_id = ? AND badge_type = ?", award.UserID, award.BadgeType).
			First(&existing).Error
		if ferr != nil {
			return nil, false, err
		}
		return &existing, true, nil
	}
	return award, false, nil
}

// BadgeCountsByUser returns award counts per user for a set of users; an
// empty slice means all users. Feeds the leaderboard tie-break.
func BadgeCountsByUser(ctx context.Context, db *gorm.DB, userIDs []string) (map[string]int64, error) {
	var rows []struct {
		UserID string
		N      int64
	}
	q := db.WithContext(ctx).
		Model(&domain.BadgeAward{}).
		Select("user_id, COUNT(*) AS n").
		Group("user_id")
	if len(userIDs) > 0 {
		q = q.Where("user_id IN ?", userIDs)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.N
	}
	return out, nil
}
