// Package services – RatingService
//
// This file implements the RatingService, the write path of the engine: one
// completed training session becomes a rating update, an immutable history
// row, and an idempotent ledger entry, all inside a single transaction.
//
// Replay policy: the ledger event keyed by session_id is checked first,
// inside the transaction. A replayed session returns the stored outcome and
// performs no rating re-application, so exactly one VibeLevelChange with
// change_reason = "session_completed" ever exists per session.
package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-rewards-backend/internal/domain"
	"github.com/tbourn/go-rewards-backend/internal/rating"
	"github.com/tbourn/go-rewards-backend/internal/repo"
)

// RatingService applies session outcomes to per-domain vibe levels and
// writes the linked ledger entries.
type RatingService struct {
	// DB is the database handle; every CompleteSession call opens its own
	// transaction on it.
	DB *gorm.DB

	// Engine holds the rating math and its configured bounds.
	Engine *rating.Engine

	// AlgorithmVersion is stamped on every session_completion event.
	AlgorithmVersion string

	// BasePoints is awarded for any valid completion; PointsPerLevelGain
	// converts positive rating movement into bonus points.
	BasePoints         int
	PointsPerLevelGain float64

	// Domains is the configured set of known domain codes. An empty set
	// accepts any non-empty normalized code.
	Domains map[string]struct{}

	// Badges, when set, runs an evaluation pass inside the same
	// transaction after the rating update commits its writes.
	Badges *BadgeService
}

// CompleteSessionInput is the activity-source signal for one finished
// training session. The caller is trusted to have authenticated the user
// and verified the session actually happened.
type CompleteSessionInput struct {
	UserID           string
	SessionID        string
	DomainCode       string
	PerformanceScore float64
	DomainImpact     float64
	ExerciseType     string
	Calories         *int
	CompletedAt      time.Time
}

// CompleteSessionResult reports what a completion did. Replayed is true
// when the session had already been processed; in that case the stored
// event and current rating are returned and nothing was written.
type CompleteSessionResult struct {
	VibeLevel     *domain.DomainVibeLevel
	Change        *domain.VibeLevelChange
	PointsEvent   *domain.PointsEvent
	PointsAwarded int
	Replayed      bool
	NewBadges     []domain.BadgeCatalogEntry
}

// CompleteSession processes one "activity completed" signal.
//
// Validation rejects bad inputs before any write: empty session id, unknown
// domain, performance score outside [0,1], impact outside (0,1]. Numeric
// instability inside the rating math aborts the transaction with
// ErrNumericInstability, leaving the stored rating untouched.
//
// Concurrency: the DomainVibeLevel row is locked FOR UPDATE for the
// duration of the transaction, so concurrent completions in the same
// domain serialize. The ledger and badge writes rely on uniqueness
// constraints instead of locks. Retries are safe end to end.
func (s *RatingService) CompleteSession(ctx context.Context, in CompleteSessionInput) (*CompleteSessionResult, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, ErrMissingSessionID
	}
	domainCode := domain.NormalizeDomainCode(in.DomainCode)
	if domainCode == "" {
		return nil, ErrUnknownDomain
	}
	if len(s.Domains) > 0 {
		if _, ok := s.Domains[domainCode]; !ok {
			return nil, ErrUnknownDomain
		}
	}
	if math.IsNaN(in.PerformanceScore) || in.PerformanceScore < 0 || in.PerformanceScore > 1 {
		return nil, ErrInvalidPerformanceScore
	}
	if math.IsNaN(in.DomainImpact) || in.DomainImpact <= 0 || in.DomainImpact > 1 {
		return nil, ErrInvalidDomainImpact
	}

	now := in.CompletedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result CompleteSessionResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) Replay check: an existing ledger event for this session means
		// the whole completion already ran. Return the stored outcome.
		if existing, err := repo.FindPointsEventBySource(ctx, tx, in.UserID, domain.SourceSessionCompletion, in.SessionID); err == nil {
			current, err := repo.GetVibeLevel(ctx, tx, in.UserID, domainCode)
			if err != nil && !IsNotFound(err) {
				return err
			}
			result = CompleteSessionResult{
				VibeLevel:     current,
				PointsEvent:   existing,
				PointsAwarded: existing.Points,
				Replayed:      true,
			}
			return nil
		} else if !IsNotFound(err) {
			return err
		}

		// 2) Load or lazily initialize the rating row, locked FOR UPDATE.
		row, err := s.lockOrInitVibeLevel(ctx, tx, in.UserID, domainCode, now)
		if err != nil {
			return err
		}
		state := rating.State{
			Level:      row.VibeLevel,
			RD:         row.RatingDeviation,
			Volatility: row.Volatility,
		}

		// 3) Inactivity decay first, recorded as its own history row.
		if s.Engine.NeedsDecay(row.LastUpdatedAt, now) {
			decayed := s.Engine.Decay(state, now.Sub(row.LastUpdatedAt))
			if decayed.RD != state.RD {
				ch := &domain.VibeLevelChange{
					UserID:       in.UserID,
					DomainCode:   domainCode,
					OldVibeLevel: state.Level,
					NewVibeLevel: decayed.Level,
					OldRD:        state.RD,
					NewRD:        decayed.RD,
					ChangeAmount: 0,
					ChangeReason: domain.ReasonDecay,
					CreatedAt:    now,
				}
				if err := repo.CreateVibeLevelChange(ctx, tx, ch); err != nil {
					return err
				}
				ratingUpdates.WithLabelValues(string(domain.ReasonDecay)).Inc()
				state = decayed
			}
		}

		// 4) The rating update proper.
		newState, err := s.Engine.Update(state, in.PerformanceScore, in.DomainImpact)
		if err != nil {
			if errors.Is(err, rating.ErrNotFinite) {
				log.Error().
					Str("user_id", in.UserID).
					Str("domain_code", domainCode).
					Float64("performance_score", in.PerformanceScore).
					Float64("domain_impact", in.DomainImpact).
					Float64("vibe_level", state.Level).
					Float64("rating_deviation", state.RD).
					Float64("volatility", state.Volatility).
					Msg("rating update aborted: non-finite intermediate")
				return ErrNumericInstability
			}
			return err
		}
		changeAmount := newState.Level - state.Level

		// 5) Derive points: base completion award plus a bonus for
		// positive rating movement. Negative movement never costs points.
		points := s.BasePoints + int(math.Round(math.Max(0, changeAmount)*s.PointsPerLevelGain))

		// 6) Persist the new rating with a single UPDATE.
		row.VibeLevel = newState.Level
		row.RatingDeviation = newState.RD
		row.Volatility = newState.Volatility
		row.LastUpdatedAt = now
		if err := repo.UpdateVibeLevel(ctx, tx, row); err != nil {
			return err
		}

		// 7) Immutable history row for the session outcome.
		score, impact := in.PerformanceScore, in.DomainImpact
		sessionID := in.SessionID
		ch := &domain.VibeLevelChange{
			UserID:           in.UserID,
			DomainCode:       domainCode,
			SessionID:        &sessionID,
			OldVibeLevel:     state.Level,
			NewVibeLevel:     newState.Level,
			OldRD:            state.RD,
			NewRD:            newState.RD,
			ChangeAmount:     changeAmount,
			PerformanceScore: &score,
			DomainImpact:     &impact,
			PointsAwarded:    &points,
			ChangeReason:     domain.ReasonSessionCompleted,
			CreatedAt:        now,
		}
		if err := repo.CreateVibeLevelChange(ctx, tx, ch); err != nil {
			return err
		}
		ratingUpdates.WithLabelValues(string(domain.ReasonSessionCompleted)).Inc()

		// 8) Idempotent ledger write keyed by the session id.
		meta := datatypes.JSONMap{"domain_code": domainCode}
		if in.ExerciseType != "" {
			meta["exercise_type"] = in.ExerciseType
		}
		ev := &domain.PointsEvent{
			UserID:           in.UserID,
			SourceType:       domain.SourceSessionCompletion,
			SourceID:         &sessionID,
			AlgorithmVersion: s.AlgorithmVersion,
			Points:           points,
			Calories:         in.Calories,
			Metadata:         meta,
			AwardedAt:        now,
		}
		recorded, already, err := repo.RecordPointsEvent(ctx, tx, ev)
		if err != nil {
			return err
		}
		if !already {
			pointsEvents.WithLabelValues(string(domain.SourceSessionCompletion)).Inc()
		}

		result = CompleteSessionResult{
			VibeLevel:     row,
			Change:        ch,
			PointsEvent:   recorded,
			PointsAwarded: recorded.Points,
		}

		// 9) Badge pass inside the same transaction, so a completion and
		// its badge-linked points commit or roll back together.
		if s.Badges != nil {
			unlocked, err := s.Badges.EvaluateTx(ctx, tx, in.UserID)
			if err != nil {
				return err
			}
			result.NewBadges = unlocked
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// lockOrInitVibeLevel returns the locked rating row for (userID,
// domainCode), creating it with default priors when the user has never
// trained the domain. A racing initializer is recovered by re-reading
// under the lock.
func (s *RatingService) lockOrInitVibeLevel(ctx context.Context, tx *gorm.DB, userID, domainCode string, now time.Time) (*domain.DomainVibeLevel, error) {
	row, err := repo.GetVibeLevelForUpdate(ctx, tx, userID, domainCode)
	if err == nil {
		return row, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	priors := s.Engine.NewState()
	fresh := &domain.DomainVibeLevel{
		UserID:          userID,
		DomainCode:      domainCode,
		VibeLevel:       priors.Level,
		RatingDeviation: priors.RD,
		Volatility:      priors.Volatility,
		LastUpdatedAt:   now,
		CreatedAt:       now,
	}
	if cerr := repo.CreateVibeLevel(ctx, tx, fresh); cerr != nil {
		if repo.IsDuplicateErr(cerr) {
			return repo.GetVibeLevelForUpdate(ctx, tx, userID, domainCode)
		}
		return nil, cerr
	}
	return fresh, nil
}

// VibeLevels returns all current domain ratings for a user (read path).
func (s *RatingService) VibeLevels(ctx context.Context, userID string) ([]domain.DomainVibeLevel, error) {
	return repo.ListVibeLevels(ctx, s.DB, userID)
}

// VibeLevelHistory returns the newest rating changes for one user/domain.
func (s *RatingService) VibeLevelHistory(ctx context.Context, userID, domainCode string, limit int) ([]domain.VibeLevelChange, error) {
	return repo.ListVibeLevelChanges(ctx, s.DB, userID, domain.NormalizeDomainCode(domainCode), limit)
}
