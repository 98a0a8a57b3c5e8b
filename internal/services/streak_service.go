// Package services – StreakService
//
// A streak is a run of consecutive UTC calendar days with at least one
// completed session. The streak is anchored at today when today has a
// completion, otherwise at yesterday; a gap of a full calendar day resets
// it to zero. Multiple sessions on one day count once.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-rewards-backend/internal/repo"
)

// StreakService derives activity streaks from the points ledger. It keeps
// no state of its own; session-completion events are the source of truth.
type StreakService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// LookbackDays bounds how far back the streak query scans. A streak
	// longer than the lookback is reported as the lookback; zero means the
	// default of 366 days.
	LookbackDays int
}

// NewStreakService constructs a StreakService with the default lookback.
func NewStreakService(db *gorm.DB) *StreakService {
	return &StreakService{DB: db, LookbackDays: 366}
}

// Current returns the user's streak length in days as of now.
func (s *StreakService) Current(ctx context.Context, userID string, now time.Time) (int, error) {
	return s.currentOn(ctx, s.DB, userID, now)
}

// currentOn computes the streak against an arbitrary handle so badge
// evaluation can run it inside an open transaction.
func (s *StreakService) currentOn(ctx context.Context, db *gorm.DB, userID string, now time.Time) (int, error) {
	lookback := s.LookbackDays
	if lookback <= 0 {
		lookback = 366
	}
	today := utcDate(now)
	from := today.AddDate(0, 0, -lookback)

	times, err := repo.ListCompletionTimes(ctx, db, userID, from, now)
	if err != nil {
		return 0, err
	}

	active := make(map[time.Time]struct{}, len(times))
	for _, t := range times {
		active[utcDate(t)] = struct{}{}
	}

	// Anchor: today if active, else yesterday. An inactive yesterday and
	// today means any earlier run has already been broken.
	anchor := today
	if _, ok := active[anchor]; !ok {
		anchor = today.AddDate(0, 0, -1)
		if _, ok := active[anchor]; !ok {
			return 0, nil
		}
	}

	streak := 0
	for d := anchor; ; d = d.AddDate(0, 0, -1) {
		if _, ok := active[d]; !ok {
			break
		}
		streak++
		if streak >= lookback {
			break
		}
	}
	return streak, nil
}

// CompletedDates returns the distinct UTC calendar days with at least one
// completed session inside [from, to], oldest first. Backs activity
// calendar views.
func (s *StreakService) CompletedDates(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error) {
	times, err := repo.ListCompletionTimes(ctx, s.DB, userID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(times))
	var last time.Time
	for _, t := range times {
		d := utcDate(t)
		if d.Equal(last) {
			continue
		}
		out = append(out, d)
		last = d
	}
	return out, nil
}

// utcDate truncates a timestamp to its UTC calendar day.
func utcDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
