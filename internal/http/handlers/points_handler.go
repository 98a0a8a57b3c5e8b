// Points HTTP handlers.
//
// This file exposes read endpoints over the points ledger:
//   - GET /points/balance   (current total)
//   - GET /points/history   (cursor-paginated event list)
//
// History uses opaque keyset cursors rather than page numbers so pages stay
// stable while new events arrive.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rewards-backend/internal/services"
	"github.com/tbourn/go-rewards-backend/internal/utils"
)

// BalanceResponse wraps a user's current point total.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// GetBalance godoc
// @ID          getPointsBalance
// @Summary     Get the current points balance
// @Description Returns SUM(points) over all of the user's ledger events.
// @Tags        Points
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  handlers.BalanceResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /points/balance [get]
func (h *Handlers) GetBalance(c *gin.Context) {
	uid := userID(c)
	total, err := h.pointsSvc.Balance(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, BalanceResponse{UserID: uid, Balance: total})
}

// GetHistory godoc
// @ID          getPointsHistory
// @Summary     List points history (cursor-paginated)
// @Description Returns ledger events ordered newest first. Pass the returned next_cursor to fetch the following page; from/to bound awarded_at (RFC 3339).
// @Tags        Points
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"    example(user123)
// @Param       limit      query   int     false "Events per page"          minimum(1) maximum(100) default(20)
// @Param       cursor     query   string  false "Opaque cursor from a previous page"
// @Param       from       query   string  false "Inclusive lower bound (RFC 3339)"
// @Param       to         query   string  false "Inclusive upper bound (RFC 3339)"
//
// @Success     200  {object}  services.HistoryPage
// @Failure     400  {object}  handlers.ErrorResponse  "Bad cursor or time bound"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /points/history [get]
func (h *Handlers) GetHistory(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 0)

	from, ok1 := parseTimeParam(c, "from")
	to, ok2 := parseTimeParam(c, "to")
	if !ok1 || !ok2 {
		return
	}

	page, err := h.pointsSvc.History(c.Request.Context(), userID(c), limit, c.Query("cursor"), from, to)
	if err != nil {
		if errors.Is(err, services.ErrBadCursor) {
			fail(c, http.StatusBadRequest, ErrCodeBadCursor, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, page)
}

// parseTimeParam reads an optional RFC 3339 query parameter. On a malformed
// value it writes a 400 response and reports valid=false.
func parseTimeParam(c *gin.Context, name string) (t *time.Time, valid bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be RFC 3339")
		return nil, false
	}
	u := parsed.UTC()
	return &u, true
}
