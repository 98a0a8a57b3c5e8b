// Package services – LeaderboardService
//
// Rankings are computed on demand from the ledger: sum points inside the
// period window, break ties by badge count then user id, and number the
// rows sequentially from 1. Nothing is cached, so a leaderboard can never
// disagree with the ledger it is derived from.
package services

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-rewards-backend/internal/repo"
)

// LeaderboardScope selects the ranked population.
type LeaderboardScope string

// LeaderboardPeriod selects the aggregation window.
type LeaderboardPeriod string

// Supported scopes and periods.
const (
	ScopeGlobal  LeaderboardScope = "global"
	ScopeFriends LeaderboardScope = "friends"

	PeriodWeek  LeaderboardPeriod = "week"
	PeriodMonth LeaderboardPeriod = "month"
	PeriodAll   LeaderboardPeriod = "all"
)

// FriendsProvider resolves a viewer's friend list. The engine does not own
// the social graph; the caller plugs in whatever service does.
type FriendsProvider interface {
	Friends(ctx context.Context, userID string) ([]string, error)
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
	Badges int64  `json:"badges"`
}

// LeaderboardService ranks users by points earned inside a period window.
type LeaderboardService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// Friends backs the friends scope; a nil provider limits that scope to
	// the viewer alone.
	Friends FriendsProvider

	// DefaultLimit applies when a request has no limit; MaxLimit caps
	// client-supplied limits.
	DefaultLimit int
	MaxLimit     int

	// Now is the clock used for window computation; nil means time.Now.
	Now func() time.Time
}

// NewLeaderboardService constructs a LeaderboardService with default page
// sizing.
func NewLeaderboardService(db *gorm.DB, friends FriendsProvider) *LeaderboardService {
	return &LeaderboardService{DB: db, Friends: friends, DefaultLimit: 50, MaxLimit: 200}
}

// Rank returns the top entries for a scope and period. viewerID is required
// for the friends scope (the viewer is always part of their own friends
// board) and ignored for global.
//
// Ordering: points DESC, then badge count DESC, then user id ASC. Ranks are
// sequential from 1 with no gaps; equal totals still receive distinct ranks
// because the tie-break is total.
func (s *LeaderboardService) Rank(ctx context.Context, scope LeaderboardScope, period LeaderboardPeriod, viewerID string, limit int) ([]LeaderboardEntry, error) {
	from, err := periodStart(period, s.now())
	if err != nil {
		return nil, err
	}

	var population []string
	switch scope {
	case ScopeGlobal:
		// nil population = every user with events in the window.
	case ScopeFriends:
		if viewerID == "" {
			return nil, ErrViewerRequired
		}
		population = []string{viewerID}
		if s.Friends != nil {
			friends, err := s.Friends.Friends(ctx, viewerID)
			if err != nil {
				return nil, err
			}
			for _, f := range friends {
				if f != viewerID {
					population = append(population, f)
				}
			}
		}
	default:
		return nil, ErrUnknownScope
	}

	rows, err := repo.SumPointsByUser(ctx, s.DB, from, nil, population)
	if err != nil {
		return nil, err
	}

	// Friends boards list every member, including those with no events in
	// the window; the aggregate query only returns users with rows.
	if scope == ScopeFriends {
		seen := make(map[string]struct{}, len(rows))
		for _, r := range rows {
			seen[r.UserID] = struct{}{}
		}
		for _, id := range population {
			if _, ok := seen[id]; !ok {
				rows = append(rows, repo.UserPointsRow{UserID: id, Points: 0})
			}
		}
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	badgeCounts, err := repo.BadgeCountsByUser(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if badgeCounts[a.UserID] != badgeCounts[b.UserID] {
			return badgeCounts[a.UserID] > badgeCounts[b.UserID]
		}
		return a.UserID < b.UserID
	})

	limit = s.clampLimit(limit)
	if len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]LeaderboardEntry, len(rows))
	for i, r := range rows {
		out[i] = LeaderboardEntry{
			Rank:   i + 1,
			UserID: r.UserID,
			Points: r.Points,
			Badges: badgeCounts[r.UserID],
		}
	}
	return out, nil
}

// periodStart returns the inclusive window start for a period, or nil for
// all-time. Weeks are ISO weeks: Monday 00:00 UTC.
func periodStart(period LeaderboardPeriod, now time.Time) (*time.Time, error) {
	u := now.UTC()
	switch period {
	case PeriodAll:
		return nil, nil
	case PeriodWeek:
		daysSinceMonday := (int(u.Weekday()) + 6) % 7
		start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, -daysSinceMonday)
		return &start, nil
	case PeriodMonth:
		start := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
		return &start, nil
	default:
		return nil, ErrUnknownPeriod
	}
}

func (s *LeaderboardService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *LeaderboardService) clampLimit(limit int) int {
	if limit <= 0 {
		if s.DefaultLimit > 0 {
			return s.DefaultLimit
		}
		return 50
	}
	if s.MaxLimit > 0 && limit > s.MaxLimit {
		return s.MaxLimit
	}
	return limit
}
