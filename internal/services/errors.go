// Package services defines the business logic of the rewards engine. This
// file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrInvalidPerformanceScore is returned when a session outcome carries
	// a performance score outside [0,1] (or NaN). No state is written.
	ErrInvalidPerformanceScore = errors.New("performance score must be in [0,1]")

	// ErrInvalidDomainImpact is returned when a session outcome carries a
	// domain impact outside (0,1] (or NaN). No state is written.
	ErrInvalidDomainImpact = errors.New("domain impact must be in (0,1]")

	// ErrUnknownDomain is returned when a domain code is empty after
	// normalization or not in the configured domain set.
	ErrUnknownDomain = errors.New("unknown training domain")

	// ErrMissingSessionID is returned when a completion is submitted
	// without the session identifier that keys ledger idempotency.
	ErrMissingSessionID = errors.New("session id is required")

	// ErrNumericInstability is returned when the rating math produced a
	// non-finite value; the stored rating is left untouched and no points
	// are awarded for the call.
	ErrNumericInstability = errors.New("rating update aborted: numeric instability")

	// ErrViewerRequired is returned for friends-scope leaderboards without
	// an authenticated viewer.
	ErrViewerRequired = errors.New("friends leaderboard requires a viewer")

	// ErrUnknownScope is returned for leaderboard scopes outside
	// global|friends.
	ErrUnknownScope = errors.New("unknown leaderboard scope")

	// ErrUnknownPeriod is returned for leaderboard periods outside
	// week|month|all.
	ErrUnknownPeriod = errors.New("unknown leaderboard period")

	// ErrBadCursor is returned when a history cursor cannot be decoded.
	ErrBadCursor = errors.New("malformed history cursor")
)
