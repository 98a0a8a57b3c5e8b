// Package domain defines the persistence models for the points ledger,
// per-domain skill ratings, rating history, and badges. These types are
// mapped with GORM and form the core data layer of the rewards engine.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// SourceType classifies the origin of a points event.
type SourceType string

// Known points event sources.
const (
	SourceSessionCompletion SourceType = "session_completion"
	SourceStreakBonus       SourceType = "streak_bonus"
	SourceBadgeAward        SourceType = "badge_award"
	SourceManualAdjustment  SourceType = "manual_adjustment"
)

// ChangeReason classifies why a vibe level was recomputed.
type ChangeReason string

// Known rating change reasons.
const (
	ReasonSessionCompleted ChangeReason = "session_completed"
	ReasonDecay            ChangeReason = "decay"
	ReasonManualAdjustment ChangeReason = "manual_adjustment"
)

// PointsEvent is one immutable ledger entry representing an award or
// adjustment of points. Events are never mutated; corrections are new events.
//
// Idempotency boundary: for any (user_id, source_type, source_id) with a
// non-null source_id, at most one row exists. SQLite and Postgres unique
// indexes treat NULLs as distinct, so rows without a source_id (manual
// adjustments) are exempt, matching partial-index semantics.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: owner of the award; indexed for balance/history queries.
//   - SourceType: enum, see SourceType constants.
//   - SourceID: nullable reference to the triggering entity (session id,
//     badge code, ...). Part of the idempotency key when present.
//   - AlgorithmVersion: version tag of the rating math that produced the
//     award, for forward compatibility.
//   - Points: signed amount; negative rows model corrections.
//   - Calories: optional calories burned in the triggering session.
//   - Metadata: structured key/value payload (exercise type, notes, ...).
//   - AwardedAt: logical award time; history ordering key.
//   - CreatedAt: row insertion time managed by GORM.
type PointsEvent struct {
	ID               string            `json:"id"                  gorm:"type:char(36);primaryKey"`
	UserID           string            `json:"user_id"             gorm:"type:varchar(64);not null;index:idx_user_events;uniqueIndex:ux_event_source,priority:1"`
	SourceType       SourceType        `json:"source_type"         gorm:"type:varchar(32);not null;uniqueIndex:ux_event_source,priority:2"`
	SourceID         *string           `json:"source_id,omitempty" gorm:"type:varchar(128);uniqueIndex:ux_event_source,priority:3"`
	AlgorithmVersion string            `json:"algorithm_version"   gorm:"type:varchar(16);not null;default:'v1'"`
	Points           int               `json:"points"              gorm:"not null"`
	Calories         *int              `json:"calories,omitempty"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"  gorm:"type:json"`
	AwardedAt        time.Time         `json:"awarded_at"          gorm:"not null;index:idx_user_events_awarded"`
	CreatedAt        time.Time         `json:"created_at"`
}

// TableName returns the database table name for PointsEvent.
func (PointsEvent) TableName() string { return "points_events" }

// DomainVibeLevel is the current skill rating of one user in one training
// domain: a point estimate (VibeLevel), its uncertainty (RatingDeviation),
// and the expected fluctuation of true skill (Volatility). Exactly one row
// exists per (user_id, domain_code); rows are created lazily with default
// priors on first activity in a domain.
type DomainVibeLevel struct {
	UserID          string    `json:"user_id"          gorm:"type:varchar(64);primaryKey"`
	DomainCode      string    `json:"domain_code"      gorm:"type:varchar(32);primaryKey"`
	VibeLevel       float64   `json:"vibe_level"       gorm:"not null"`
	RatingDeviation float64   `json:"rating_deviation" gorm:"not null"`
	Volatility      float64   `json:"volatility"       gorm:"not null"`
	LastUpdatedAt   time.Time `json:"last_updated_at"  gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for DomainVibeLevel.
func (DomainVibeLevel) TableName() string { return "user_domain_vibe_levels" }

// VibeLevelChange is the immutable audit record of a single rating update.
// One row is inserted every time a DomainVibeLevel is recomputed (session
// outcome, decay, or manual adjustment); rows are never updated or deleted
// and double as the replay source for rebuilding current state.
type VibeLevelChange struct {
	ID               string            `json:"id"                   gorm:"type:char(36);primaryKey"`
	UserID           string            `json:"user_id"              gorm:"type:varchar(64);not null;index:idx_user_changes,priority:1"`
	DomainCode       string            `json:"domain_code"          gorm:"type:varchar(32);not null;index:idx_user_changes,priority:2"`
	SessionID        *string           `json:"session_id,omitempty" gorm:"type:varchar(128)"`
	OldVibeLevel     float64           `json:"old_vibe_level"       gorm:"not null"`
	NewVibeLevel     float64           `json:"new_vibe_level"       gorm:"not null"`
	OldRD            float64           `json:"old_rd"               gorm:"column:old_rd;not null"`
	NewRD            float64           `json:"new_rd"               gorm:"column:new_rd;not null"`
	ChangeAmount     float64           `json:"change_amount"        gorm:"not null"`
	PerformanceScore *float64          `json:"performance_score,omitempty"`
	DomainImpact     *float64          `json:"domain_impact,omitempty"`
	PointsAwarded    *int              `json:"points_awarded,omitempty"`
	ChangeReason     ChangeReason      `json:"change_reason"        gorm:"type:varchar(32);not null"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"   gorm:"type:json"`
	CreatedAt        time.Time         `json:"created_at"`
}

// TableName returns the database table name for VibeLevelChange.
func (VibeLevelChange) TableName() string { return "vibe_level_changes" }

// BadgeCatalogEntry is a read-mostly catalog row describing one badge and
// the declarative criteria that unlock it. The catalog is administered
// outside the engine; Priority drives deterministic award ordering when
// several badges become eligible in the same evaluation pass (ascending,
// lower values first).
type BadgeCatalogEntry struct {
	Code        string    `json:"code"         gorm:"type:varchar(64);primaryKey"`
	Name        string    `json:"name"         gorm:"type:varchar(128);not null"`
	Description string    `json:"description"  gorm:"type:text"`
	Category    string    `json:"category"     gorm:"type:varchar(32);not null"`
	Icon        string    `json:"icon"         gorm:"type:varchar(255)"`
	Priority    int       `json:"priority"     gorm:"not null;default:100"`
	BonusPoints int       `json:"bonus_points" gorm:"not null;default:0"`
	Criteria    Criteria  `json:"criteria"     gorm:"serializer:json"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for BadgeCatalogEntry.
func (BadgeCatalogEntry) TableName() string { return "badge_catalog" }

// BadgeAward records that a user holds a badge. The unique index on
// (user_id, badge_type) enforces at-most-once semantics independent of
// race conditions between concurrent evaluation passes.
type BadgeAward struct {
	ID        string            `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string            `json:"user_id"    gorm:"type:varchar(64);not null;index;uniqueIndex:ux_badge_user_type,priority:1"`
	BadgeType string            `json:"badge_type" gorm:"type:varchar(64);not null;uniqueIndex:ux_badge_user_type,priority:2"`
	AwardedAt time.Time         `json:"awarded_at" gorm:"not null"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:json"`
}

// TableName returns the database table name for BadgeAward.
func (BadgeAward) TableName() string { return "badges" }
