// Vibe level HTTP handlers.
//
// This file exposes read endpoints over per-domain skill ratings:
//   - GET /vibe-levels                     (all current domain ratings)
//   - GET /vibe-levels/{domain}/history    (recent rating changes)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rewards-backend/internal/domain"
	"github.com/tbourn/go-rewards-backend/internal/utils"
)

// VibeLevelsResponse wraps a user's current ratings across all domains.
type VibeLevelsResponse struct {
	UserID     string                   `json:"user_id"`
	VibeLevels []domain.DomainVibeLevel `json:"vibe_levels"`
}

// VibeHistoryResponse wraps the recent rating changes for one domain.
type VibeHistoryResponse struct {
	UserID     string                   `json:"user_id"`
	DomainCode string                   `json:"domain_code"`
	Changes    []domain.VibeLevelChange `json:"changes"`
}

// ListVibeLevels godoc
// @ID          listVibeLevels
// @Summary     List current vibe levels
// @Description Returns the user's rating in every domain they have trained.
// @Tags        VibeLevels
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  handlers.VibeLevelsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /vibe-levels [get]
func (h *Handlers) ListVibeLevels(c *gin.Context) {
	uid := userID(c)
	levels, err := h.sessionSvc.VibeLevels(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if levels == nil {
		levels = []domain.DomainVibeLevel{}
	}
	ok(c, http.StatusOK, VibeLevelsResponse{UserID: uid, VibeLevels: levels})
}

// VibeLevelHistory godoc
// @ID          vibeLevelHistory
// @Summary     List recent rating changes for a domain
// @Description Returns the newest rating change records for one training domain.
// @Tags        VibeLevels
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       domain     path    string  true  "Domain code"            example(strength)
// @Param       limit      query   int     false "Maximum changes"        minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.VibeHistoryResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /vibe-levels/{domain}/history [get]
func (h *Handlers) VibeLevelHistory(c *gin.Context) {
	uid := userID(c)
	domainCode := domain.NormalizeDomainCode(c.Param("domain"))
	limit := utils.AtoiDefault(c.Query("limit"), 20)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	changes, err := h.sessionSvc.VibeLevelHistory(c.Request.Context(), uid, domainCode, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if changes == nil {
		changes = []domain.VibeLevelChange{}
	}
	ok(c, http.StatusOK, VibeHistoryResponse{UserID: uid, DomainCode: domainCode, Changes: changes})
}
