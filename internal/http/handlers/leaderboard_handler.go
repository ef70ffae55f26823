// Leaderboard HTTP handlers.
//
// This file exposes the global contributor leaderboard:
//   - GET /leaderboard   (ranked contributors, optional activity window, ETag support)
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
	"github.com/linguacrowd/go-corpus-backend/internal/services"
	"github.com/linguacrowd/go-corpus-backend/internal/utils"
)

// LeaderboardService defines the ranked-view operations consumed by HTTP
// handlers.
type LeaderboardService interface {
	// TopContributors returns up to limit users ranked by reputation.
	TopContributors(ctx context.Context, limit int, window time.Duration) ([]domain.User, error)
	// ChallengeLeaderboard returns a challenge's standings by points.
	ChallengeLeaderboard(ctx context.Context, challengeID string, limit int) ([]domain.ChallengeParticipation, error)
}

// LeaderboardResponse wraps the ranked global contributor view.
type LeaderboardResponse struct {
	Contributors []domain.User `json:"contributors"`
	// Window is the activity restriction applied, empty for all-time.
	Window string `json:"window,omitempty"`
}

// Leaderboard godoc
// @ID          leaderboard
// @Summary     Global contributor leaderboard
// @Description Returns contributors ranked by reputation score, ties broken by total points then
// @Description earliest account creation. A window such as "168h" restricts the board to users
// @Description with recent activity. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Leaderboard
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       limit          query   int     false "Maximum entries returned"  minimum(1) maximum(100) default(10)
// @Param       window         query   string  false "Activity window as a Go duration"  example(168h)
//
// @Success     200  {object}  handlers.LeaderboardResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /leaderboard [get]
func (h *Handlers) Leaderboard(c *gin.Context) {
	ctx := c.Request.Context()

	limit := utils.AtoiDefault(c.Query("limit"), 10)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	var window time.Duration
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "window must be a positive Go duration, e.g. 168h")
			return
		}
		window = d
	}

	// ETag pre-check (best effort). Windowed boards change as time passes, so
	// conditional responses only apply to the all-time view.
	var db *gorm.DB
	if svc, okSvc := h.boardSvc.(*services.LeaderboardService); okSvc {
		db = svc.DB
	}
	if db != nil && window == 0 {
		count, maxTS, err := repo.UsersStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"leaderboard:%d:%d:%d"`, count, ts, limit)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	users, err := h.boardSvc.TopContributors(ctx, limit, window)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	resp := LeaderboardResponse{Contributors: users}
	if window > 0 {
		resp.Window = window.String()
	}
	ok(c, http.StatusOK, resp)
}
