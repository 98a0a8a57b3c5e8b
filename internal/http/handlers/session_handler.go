// Session HTTP handlers.
//
// This file exposes the write endpoint of the engine:
//   - POST /sessions/complete  (apply a completed session outcome)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rewards-backend/internal/domain"
	"github.com/tbourn/go-rewards-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// SessionService applies completed session outcomes to ratings and points.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SessionService interface {
	// CompleteSession processes one "activity completed" signal atomically.
	CompleteSession(ctx context.Context, in services.CompleteSessionInput) (*services.CompleteSessionResult, error)
	// VibeLevels returns all current domain ratings for a user.
	VibeLevels(ctx context.Context, userID string) ([]domain.DomainVibeLevel, error)
	// VibeLevelHistory returns the newest rating changes for one domain.
	VibeLevelHistory(ctx context.Context, userID, domainCode string, limit int) ([]domain.VibeLevelChange, error)
}

// PointsService exposes balance and history queries over the ledger.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PointsService interface {
	// Balance returns the user's current point total.
	Balance(ctx context.Context, userID string) (int64, error)
	// History returns one page of ledger events plus a next-page cursor.
	History(ctx context.Context, userID string, limit int, cursor string, from, to *time.Time) (*services.HistoryPage, error)
}

// BadgeService exposes the badge catalog and a user's awards.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type BadgeService interface {
	// Catalog returns all badge definitions in evaluation order.
	Catalog(ctx context.Context) ([]domain.BadgeCatalogEntry, error)
	// UserBadges returns the awards a user holds, newest first.
	UserBadges(ctx context.Context, userID string) ([]domain.BadgeAward, error)
}

// LeaderboardService ranks users by points inside a period window.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type LeaderboardService interface {
	// Rank returns the top entries for a scope and period.
	Rank(ctx context.Context, scope services.LeaderboardScope, period services.LeaderboardPeriod, viewerID string, limit int) ([]services.LeaderboardEntry, error)
}

// StreakService derives activity streaks from the ledger.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type StreakService interface {
	// Current returns the user's streak length in days as of now.
	Current(ctx context.Context, userID string, now time.Time) (int, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for sessions, points, badges, leaderboards,
// and streaks. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	sessionSvc SessionService
	pointsSvc  PointsService
	badgeSvc   BadgeService
	lbSvc      LeaderboardService
	streakSvc  StreakService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(sessionSvc SessionService, pointsSvc PointsService, badgeSvc BadgeService, lbSvc LeaderboardService, streakSvc StreakService) *Handlers {
	return &Handlers{
		sessionSvc: sessionSvc,
		pointsSvc:  pointsSvc,
		badgeSvc:   badgeSvc,
		lbSvc:      lbSvc,
		streakSvc:  streakSvc,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CompleteSessionRequest is the JSON payload for submitting a session outcome.
type CompleteSessionRequest struct {
	// SessionID identifies the completed session; retried deliveries with the
	// same id are processed once.
	SessionID string `json:"session_id" binding:"required" example:"9be2f2e3-9e7b-4b2e-8b1a-56cf4df4a4a1"`
	// DomainCode is the training domain the session exercised.
	DomainCode string `json:"domain_code" binding:"required" example:"strength"`
	// PerformanceScore grades the session in [0,1].
	PerformanceScore float64 `json:"performance_score" example:"0.8"`
	// DomainImpact weights how strongly the session should move the rating, (0,1].
	DomainImpact float64 `json:"domain_impact" example:"0.5"`
	// ExerciseType optionally tags the activity (feeds badge criteria).
	ExerciseType string `json:"exercise_type,omitempty" example:"deadlift"`
	// Calories optionally records energy burned.
	Calories *int `json:"calories,omitempty" example:"320"`
	// CompletedAt optionally backdates the outcome; defaults to now (UTC).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CompleteSessionResponse reports the effect of a completion.
type CompleteSessionResponse struct {
	Replayed      bool                       `json:"replayed"`
	PointsAwarded int                        `json:"points_awarded"`
	VibeLevel     *domain.DomainVibeLevel    `json:"vibe_level,omitempty"`
	Change        *domain.VibeLevelChange    `json:"change,omitempty"`
	PointsEvent   *domain.PointsEvent        `json:"points_event,omitempty"`
	NewBadges     []domain.BadgeCatalogEntry `json:"new_badges,omitempty"`
}

//
// Handlers
//

// CompleteSession godoc
// @ID          completeSession
// @Summary     Apply a completed session outcome
// @Description Updates the user's domain rating, awards points idempotently, and evaluates badges in one transaction. Replays return the stored outcome.
// @Tags        Sessions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CompleteSessionRequest  true  "Session outcome payload"
//
// @Success     200  {object}  handlers.CompleteSessionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions/complete [post]
func (h *Handlers) CompleteSession(c *gin.Context) {
	var req CompleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	in := services.CompleteSessionInput{
		UserID:           userID(c),
		SessionID:        strings.TrimSpace(req.SessionID),
		DomainCode:       req.DomainCode,
		PerformanceScore: req.PerformanceScore,
		DomainImpact:     req.DomainImpact,
		ExerciseType:     strings.TrimSpace(req.ExerciseType),
		Calories:         req.Calories,
	}
	if req.CompletedAt != nil {
		in.CompletedAt = req.CompletedAt.UTC()
	}

	res, err := h.sessionSvc.CompleteSession(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownDomain):
			fail(c, http.StatusBadRequest, ErrCodeUnknownDomain, err.Error())
		case errors.Is(err, services.ErrMissingSessionID),
			errors.Is(err, services.ErrInvalidPerformanceScore),
			errors.Is(err, services.ErrInvalidDomainImpact):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrNumericInstability):
			fail(c, http.StatusInternalServerError, ErrCodeRatingFailed, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, CompleteSessionResponse{
		Replayed:      res.Replayed,
		PointsAwarded: res.PointsAwarded,
		VibeLevel:     res.VibeLevel,
		Change:        res.Change,
		PointsEvent:   res.PointsEvent,
		NewBadges:     res.NewBadges,
	})
}
