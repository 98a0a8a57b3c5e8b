// Package services – BadgeService
//
// Badge evaluation is a deterministic pass over the catalog: gather one
// metrics snapshot for the user, then walk the catalog in (priority ASC,
// code ASC) order and award every entry whose criteria hold and that the
// user does not already hold. The snapshot is taken once, so bonus points
// awarded mid-pass never feed back into the same pass.
//
// A malformed catalog row is skipped with a warning; one broken entry must
// not block the rest of the catalog or the surrounding transaction.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-rewards-backend/internal/domain"
	"github.com/tbourn/go-rewards-backend/internal/repo"
)

// BadgeService evaluates catalog criteria and records awards plus their
// bonus-point ledger entries.
type BadgeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// Streaks computes the streak_days metric for the snapshot.
	Streaks *StreakService

	// AlgorithmVersion is stamped on bonus-point ledger events.
	AlgorithmVersion string
}

// NewBadgeService constructs a BadgeService over the given handle.
func NewBadgeService(db *gorm.DB, streaks *StreakService, algorithmVersion string) *BadgeService {
	return &BadgeService{DB: db, Streaks: streaks, AlgorithmVersion: algorithmVersion}
}

// Evaluate runs one evaluation pass for the user in its own transaction and
// returns the newly unlocked catalog entries.
func (s *BadgeService) Evaluate(ctx context.Context, userID string) ([]domain.BadgeCatalogEntry, error) {
	var unlocked []domain.BadgeCatalogEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		unlocked, err = s.EvaluateTx(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

// EvaluateTx runs the evaluation pass on an already-open transaction so a
// session completion and the badges it unlocks commit together.
func (s *BadgeService) EvaluateTx(ctx context.Context, tx *gorm.DB, userID string) ([]domain.BadgeCatalogEntry, error) {
	metrics, err := s.gatherMetrics(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	held, err := repo.HeldBadgeCodes(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := repo.ListBadgeCatalog(ctx, tx)
	if err != nil {
		return nil, err
	}

	var unlocked []domain.BadgeCatalogEntry
	for _, entry := range catalog {
		if _, ok := held[entry.Code]; ok {
			continue
		}
		matched, err := entry.Criteria.Eval(metrics)
		if err != nil {
			log.Warn().
				Err(err).
				Str("badge_code", entry.Code).
				Msg("skipping badge with malformed criteria")
			continue
		}
		if !matched {
			continue
		}

		award := &domain.BadgeAward{
			UserID:    userID,
			BadgeType: entry.Code,
			Metadata:  datatypes.JSONMap{"category": entry.Category},
		}
		_, alreadyHeld, err := repo.CreateBadgeAward(ctx, tx, award)
		if err != nil {
			return nil, err
		}
		if alreadyHeld {
			// Raced with a concurrent pass; not newly unlocked here.
			continue
		}
		badgeAwards.Inc()

		if entry.BonusPoints > 0 {
			code := entry.Code
			ev := &domain.PointsEvent{
				UserID:           userID,
				SourceType:       domain.SourceBadgeAward,
				SourceID:         &code,
				AlgorithmVersion: s.AlgorithmVersion,
				Points:           entry.BonusPoints,
				Metadata:         datatypes.JSONMap{"badge_name": entry.Name},
				AwardedAt:        award.AwardedAt,
			}
			if _, already, err := repo.RecordPointsEvent(ctx, tx, ev); err != nil {
				return nil, err
			} else if !already {
				pointsEvents.WithLabelValues(string(domain.SourceBadgeAward)).Inc()
			}
		}
		unlocked = append(unlocked, entry)
	}
	return unlocked, nil
}

// gatherMetrics builds the read-only snapshot criteria are evaluated
// against. One query per metric family, all on the caller's handle.
func (s *BadgeService) gatherMetrics(ctx context.Context, tx *gorm.DB, userID string) (domain.Metrics, error) {
	var m domain.Metrics

	total, err := repo.SumPoints(ctx, tx, userID)
	if err != nil {
		return m, err
	}
	m.TotalPoints = total

	sessions, err := repo.CountEventsBySource(ctx, tx, userID, domain.SourceSessionCompletion)
	if err != nil {
		return m, err
	}
	m.SessionsCompleted = sessions

	streak, err := s.Streaks.currentOn(ctx, tx, userID, time.Now().UTC())
	if err != nil {
		return m, err
	}
	m.StreakDays = streak

	levels, err := repo.ListVibeLevels(ctx, tx, userID)
	if err != nil {
		return m, err
	}
	m.DomainVibeLevels = make(map[string]float64, len(levels))
	for _, l := range levels {
		m.DomainVibeLevels[l.DomainCode] = l.VibeLevel
	}

	byType, err := repo.CountCompletionsByExerciseType(ctx, tx, userID)
	if err != nil {
		return m, err
	}
	m.ExerciseTypeCounts = byType

	return m, nil
}

// Catalog returns all badge definitions in evaluation order.
func (s *BadgeService) Catalog(ctx context.Context) ([]domain.BadgeCatalogEntry, error) {
	return repo.ListBadgeCatalog(ctx, s.DB)
}

// UserBadges returns the awards a user holds, newest first.
func (s *BadgeService) UserBadges(ctx context.Context, userID string) ([]domain.BadgeAward, error) {
	return repo.ListUserBadges(ctx, s.DB, userID)
}

// defaultCatalog is the bootstrap badge set installed into an empty
// catalog. Codes are stable; operators extend or replace entries through
// whatever administers the badge_catalog table.
var defaultCatalog = []domain.BadgeCatalogEntry{
	{
		Code: "first_session", Name: "First Steps", Category: "milestone",
		Description: "Complete your first session.",
		Priority:    10, BonusPoints: 25,
		Criteria: domain.Criteria{{Metric: domain.MetricSessionsCompleted, Comparator: domain.CompareGTE, Threshold: 1}},
	},
	{
		Code: "sessions_10", Name: "Regular", Category: "milestone",
		Description: "Complete 10 sessions.",
		Priority:    20, BonusPoints: 50,
		Criteria: domain.Criteria{{Metric: domain.MetricSessionsCompleted, Comparator: domain.CompareGTE, Threshold: 10}},
	},
	{
		Code: "sessions_100", Name: "Centurion", Category: "milestone",
		Description: "Complete 100 sessions.",
		Priority:    30, BonusPoints: 250,
		Criteria: domain.Criteria{{Metric: domain.MetricSessionsCompleted, Comparator: domain.CompareGTE, Threshold: 100}},
	},
	{
		Code: "streak_7", Name: "One Week Strong", Category: "streak",
		Description: "Train 7 days in a row.",
		Priority:    40, BonusPoints: 70,
		Criteria: domain.Criteria{{Metric: domain.MetricStreakDays, Comparator: domain.CompareGTE, Threshold: 7}},
	},
	{
		Code: "streak_30", Name: "Habit Formed", Category: "streak",
		Description: "Train 30 days in a row.",
		Priority:    50, BonusPoints: 300,
		Criteria: domain.Criteria{{Metric: domain.MetricStreakDays, Comparator: domain.CompareGTE, Threshold: 30}},
	},
	{
		Code: "points_1000", Name: "Point Collector", Category: "points",
		Description: "Accumulate 1000 points.",
		Priority:    60, BonusPoints: 100,
		Criteria: domain.Criteria{{Metric: domain.MetricTotalPoints, Comparator: domain.CompareGTE, Threshold: 1000}},
	},
}

// SeedDefaultCatalog installs the bootstrap badge set when the catalog is
// empty. A populated catalog is left untouched.
func SeedDefaultCatalog(ctx context.Context, db *gorm.DB) error {
	total, err := repo.CountBadgeCatalog(ctx, db)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}
	for i := range defaultCatalog {
		e := defaultCatalog[i]
		if err := repo.UpsertBadgeCatalogEntry(ctx, db, &e); err != nil {
			return err
		}
	}
	log.Info().Int("entries", len(defaultCatalog)).Msg("seeded default badge catalog")
	return nil
}
