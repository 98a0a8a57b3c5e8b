// Leaderboard and streak HTTP handlers.
//
// This file exposes the competitive read endpoints:
//   - GET /leaderboard  (ranked point totals for a scope and period)
//   - GET /streak       (current consecutive-day activity streak)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rewards-backend/internal/services"
	"github.com/tbourn/go-rewards-backend/internal/utils"
)

// LeaderboardResponse wraps one computed leaderboard.
type LeaderboardResponse struct {
	Scope   string                      `json:"scope"`
	Period  string                      `json:"period"`
	Entries []services.LeaderboardEntry `json:"entries"`
}

// StreakResponse wraps a user's current streak length.
type StreakResponse struct {
	UserID     string `json:"user_id"`
	StreakDays int    `json:"streak_days"`
}

// GetLeaderboard godoc
// @ID          getLeaderboard
// @Summary     Get a leaderboard
// @Description Ranks users by points earned in the period. Ties break by badge count, then user id. The friends scope ranks the viewer and their friends.
// @Tags        Leaderboard
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (required for friends scope)"  example(user123)
// @Param       scope      query   string  false "global|friends"   default(global)
// @Param       period     query   string  false "week|month|all"   default(all)
// @Param       limit      query   int     false "Maximum entries"  minimum(1) maximum(200) default(50)
//
// @Success     200  {object}  handlers.LeaderboardResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown scope or period"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /leaderboard [get]
func (h *Handlers) GetLeaderboard(c *gin.Context) {
	scope := services.LeaderboardScope(c.DefaultQuery("scope", string(services.ScopeGlobal)))
	period := services.LeaderboardPeriod(c.DefaultQuery("period", string(services.PeriodAll)))
	limit := utils.AtoiDefault(c.Query("limit"), 0)

	entries, err := h.lbSvc.Rank(c.Request.Context(), scope, period, userID(c), limit)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownScope),
			errors.Is(err, services.ErrUnknownPeriod),
			errors.Is(err, services.ErrViewerRequired):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}
	if entries == nil {
		entries = []services.LeaderboardEntry{}
	}
	ok(c, http.StatusOK, LeaderboardResponse{
		Scope:   string(scope),
		Period:  string(period),
		Entries: entries,
	})
}

// GetStreak godoc
// @ID          getStreak
// @Summary     Get the current activity streak
// @Description Returns the number of consecutive UTC calendar days, ending today or yesterday, with at least one completed session.
// @Tags        Streak
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  handlers.StreakResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /streak [get]
func (h *Handlers) GetStreak(c *gin.Context) {
	uid := userID(c)
	days, err := h.streakSvc.Current(c.Request.Context(), uid, time.Now().UTC())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, StreakResponse{UserID: uid, StreakDays: days})
}
