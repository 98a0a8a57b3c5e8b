// Badge HTTP handlers.
//
// This file exposes read endpoints over badges:
//   - GET /badges          (awards the current user holds)
//   - GET /badges/catalog  (all badge definitions)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rewards-backend/internal/domain"
)

// UserBadgesResponse wraps the awards a user holds.
type UserBadgesResponse struct {
	UserID string              `json:"user_id"`
	Badges []domain.BadgeAward `json:"badges"`
}

// BadgeCatalogResponse wraps the badge catalog.
type BadgeCatalogResponse struct {
	Badges []domain.BadgeCatalogEntry `json:"badges"`
}

// ListBadges godoc
// @ID          listBadges
// @Summary     List the user's badges
// @Description Returns every badge the current user has been awarded, newest first.
// @Tags        Badges
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  handlers.UserBadgesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /badges [get]
func (h *Handlers) ListBadges(c *gin.Context) {
	uid := userID(c)
	awards, err := h.badgeSvc.UserBadges(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if awards == nil {
		awards = []domain.BadgeAward{}
	}
	ok(c, http.StatusOK, UserBadgesResponse{UserID: uid, Badges: awards})
}

// BadgeCatalog godoc
// @ID          badgeCatalog
// @Summary     List the badge catalog
// @Description Returns every badge definition with its unlock criteria, in evaluation order.
// @Tags        Badges
// @Produce     json
//
// @Success     200  {object}  handlers.BadgeCatalogResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /badges/catalog [get]
func (h *Handlers) BadgeCatalog(c *gin.Context) {
	entries, err := h.badgeSvc.Catalog(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.BadgeCatalogEntry{}
	}
	ok(c, http.StatusOK, BadgeCatalogResponse{Badges: entries})
}
