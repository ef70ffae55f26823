// Challenge HTTP handlers.
//
// This file exposes REST endpoints for the challenge lifecycle:
//   - POST   /challenges                        (create)
//   - GET    /challenges                        (list, paginated)
//   - GET    /challenges/{id}                   (read)
//   - POST   /challenges/{id}/registrations     (register, idempotent)
//   - GET    /challenges/{id}/registrations/me  (own participation)
//   - PUT    /challenges/{id}/participants/{userID}/stats  (stat correction)
//   - POST   /challenges/{id}/end               (end and freeze standings)
//   - GET    /challenges/{id}/leaderboard       (final or live standings, ETag support)
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
	"github.com/linguacrowd/go-corpus-backend/internal/services"
	"github.com/linguacrowd/go-corpus-backend/internal/utils"
)

// ChallengeService defines the challenge lifecycle operations consumed by
// HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChallengeService interface {
	// Create validates and persists a new challenge.
	Create(ctx context.Context, name, description string, typ domain.ChallengeType, start, end time.Time, target int) (*domain.Challenge, error)
	// Get returns a challenge by ID.
	Get(ctx context.Context, id string) (*domain.Challenge, error)
	// ListPage returns a page of challenges, optionally active only.
	ListPage(ctx context.Context, activeOnly bool, page, pageSize int) ([]domain.Challenge, error)
	// Register enrolls a user; registering twice returns the existing row.
	Register(ctx context.Context, challengeID, userID string) (*domain.ChallengeParticipation, error)
	// Participation returns a user's participation row.
	Participation(ctx context.Context, challengeID, userID string) (*domain.ChallengeParticipation, error)
	// UpdateStats applies metric deltas to a participation and optionally
	// recomputes its point total from the post-update aggregates.
	UpdateStats(ctx context.Context, challengeID, userID string, upd services.StatsUpdate, recomputePoints bool) (*domain.ChallengeParticipation, error)
	// End deactivates a challenge and freezes its standings.
	End(ctx context.Context, challengeID string) (*domain.Challenge, error)
}

//
// DTOs
//

// CreateChallengeRequest is the JSON payload for creating a challenge.
type CreateChallengeRequest struct {
	// Name is the display name (1-255 chars).
	Name string `json:"name" binding:"required,min=1,max=255" example:"Swahili July Sprint"`
	// Description optionally explains the challenge.
	Description string `json:"description" example:"Transcribe as many samples as you can"`
	// Type selects the point-weighting profile.
	Type string `json:"type" binding:"required" example:"transcription_challenge"`
	// StartDate opens the registration and scoring window (RFC 3339).
	StartDate time.Time `json:"start_date" binding:"required" example:"2025-07-01T00:00:00Z"`
	// EndDate closes the window (RFC 3339, must be after StartDate).
	EndDate time.Time `json:"end_date" binding:"required" example:"2025-07-31T23:59:59Z"`
	// TargetContributionCount optionally sets a collective goal.
	TargetContributionCount int `json:"target_contribution_count" example:"1000"`
}

// UpdateChallengeStatsRequest is the JSON payload for correcting a
// participation's metric aggregates. The counters are deltas; acceptance_rate
// overwrites the stored rate when present.
type UpdateChallengeStatsRequest struct {
	// HoursSpeech is added to the participation's speech-hour total.
	HoursSpeech int `json:"hours_speech" example:"2"`
	// SentencesTranslated is added to the sentence total.
	SentencesTranslated int `json:"sentences_translated" example:"5"`
	// TokensProduced is added to the token total.
	TokensProduced int `json:"tokens_produced" example:"120"`
	// AcceptanceRate replaces the stored rate (0..1) when provided.
	AcceptanceRate *float64 `json:"acceptance_rate" example:"0.85"`
	// RecomputePoints rederives the point total from the updated aggregates.
	RecomputePoints bool `json:"recompute_points" example:"true"`
}

// ListChallengesResponse wraps a page of challenges and pagination information.
type ListChallengesResponse struct {
	Challenges []domain.Challenge `json:"challenges"`
	Pagination Pagination         `json:"pagination"`
}

// ChallengeLeaderboardResponse wraps the ranked standings of one challenge.
type ChallengeLeaderboardResponse struct {
	ChallengeID string                          `json:"challenge_id"`
	Standings   []domain.ChallengeParticipation `json:"standings"`
}

//
// Handlers
//

// CreateChallenge godoc
// @ID          createChallenge
// @Summary     Create a challenge
// @Description Creates a time-boxed challenge in which contributions earn points.
// @Tags        Challenges
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateChallengeRequest  true  "Challenge payload"
//
// @Success     201  {object}  domain.Challenge
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /challenges [post]
func (h *Handlers) CreateChallenge(c *gin.Context) {
	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, type, start_date and end_date required")
		return
	}

	out, err := h.challSvc.Create(c.Request.Context(), req.Name, req.Description,
		domain.ChallengeType(req.Type), req.StartDate, req.EndDate, req.TargetContributionCount)
	if err != nil {
		if err == services.ErrInvalidChallenge {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid challenge: check name, type and date window")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, out)
}

// ListChallenges godoc
// @ID          listChallenges
// @Summary     List challenges (paginated)
// @Description Returns a page of challenges, newest first. Use active=true to restrict to open ones.
// @Tags        Challenges
// @Produce     json
//
// @Param       active     query  bool  false "Only active challenges"  default(false)
// @Param       page       query  int   false "Page number"             minimum(1) default(1)
// @Param       page_size  query  int   false "Items per page"          minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListChallengesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /challenges [get]
func (h *Handlers) ListChallenges(c *gin.Context) {
	page, pageSize := clampPagination(c)
	activeOnly := c.Query("active") == "true"

	items, err := h.challSvc.ListPage(c.Request.Context(), activeOnly, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListChallengesResponse{
		Challenges: items,
		Pagination: Pagination{Page: page, PageSize: pageSize},
	})
}

// GetChallenge godoc
// @ID          getChallenge
// @Summary     Get a challenge
// @Tags        Challenges
// @Produce     json
//
// @Param       id  path  string  true  "Challenge ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Challenge
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Challenge not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /challenges/{id} [get]
func (h *Handlers) GetChallenge(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "challenge id must be a UUID")
		return
	}

	out, err := h.challSvc.Get(c.Request.Context(), id)
	if err != nil {
		if err == services.ErrChallengeNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "challenge not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, out)
}

// RegisterForChallenge godoc
// @ID          registerForChallenge
// @Summary     Register for a challenge
// @Description Enrolls the current user. Registration is idempotent: repeating it returns the
// @Description existing participation unchanged.
// @Tags        Challenges
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Challenge ID (UUID)"  format(uuid)
//
// @Success     201  {object}  domain.ChallengeParticipation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Challenge not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Challenge closed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /challenges/{id}/registrations [post]
func (h *Handlers) RegisterForChallenge(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "challenge id must be a UUID")
		return
	}

	out, err := h.challSvc.Register(c.Request.Context(), id, userID(c))
	if err != nil {
		switch err {
		case services.ErrChallengeNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "challenge not found")
		case services.ErrChallengeClosed:
			fail(c, http.StatusConflict, ErrCodeChallengeClosed, "challenge is not open for registration")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, out)
}

// GetOwnParticipation godoc
// @ID          getOwnParticipation
// @Summary     Get the current user's participation
// @Tags        Challenges
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Challenge ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.ChallengeParticipation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not registered"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /challenges/{id}/registrations/me [get]
func (h *Handlers) GetOwnParticipation(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "challenge id must be a UUID")
		return
	}

	out, err := h.challSvc.Participation(c.Request.Context(), id, userID(c))
	if err != nil {
		if err == services.ErrChallengeNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "not registered for this challenge")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, out)
}

// UpdateChallengeStats godoc
// @ID          updateChallengeStats
// @Summary     Update a participant's challenge stats
// @Description Applies metric deltas to one participation. With recompute_points the point total
// @Description is rederived from the post-update aggregates; otherwise it is left unchanged.
// @Description Finalized participations return 409.
// @Tags        Challenges
// @Accept      json
// @Produce     json
//
// @Param       id      path  string  true  "Challenge ID (UUID)"  format(uuid)
// @Param       userID  path  string  true  "Participant user ID"
// @Param       body    body  handlers.UpdateChallengeStatsRequest  true  "Stat deltas"
//
// @Success     200  {object}  domain.ChallengeParticipation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Challenge or participation not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Participation finalized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /challenges/{id}/participants/{userID}/stats [put]
func (h *Handlers) UpdateChallengeStats(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "challenge id must be a UUID")
		return
	}
	user := strings.TrimSpace(c.Param("userID"))
	if user == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "participant user id required")
		return
	}

	var req UpdateChallengeStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid stats payload")
		return
	}
	if req.AcceptanceRate != nil && (*req.AcceptanceRate < 0 || *req.AcceptanceRate > 1) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "acceptance_rate must be in [0,1]")
		return
	}

	out, err := h.challSvc.UpdateStats(c.Request.Context(), id, user, services.StatsUpdate{
		HoursSpeech:         req.HoursSpeech,
		SentencesTranslated: req.SentencesTranslated,
		TokensProduced:      req.TokensProduced,
		AcceptanceRate:      req.AcceptanceRate,
	}, req.RecomputePoints)
	if err != nil {
		switch err {
		case services.ErrChallengeNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "challenge or participation not found")
		case services.ErrChallengeClosed:
			fail(c, http.StatusConflict, ErrCodeChallengeClosed, "participation is finalized")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, out)
}

// EndChallenge godoc
// @ID          endChallenge
// @Summary     End a challenge
// @Description Deactivates the challenge and freezes all participations so the final standings
// @Description can no longer change. Ending twice returns 409.
// @Tags        Challenges
// @Produce     json
//
// @Param       id  path  string  true  "Challenge ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Challenge
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Challenge not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already ended"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /challenges/{id}/end [post]
func (h *Handlers) EndChallenge(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "challenge id must be a UUID")
		return
	}

	out, err := h.challSvc.End(c.Request.Context(), id)
	if err != nil {
		switch err {
		case services.ErrChallengeNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "challenge not found")
		case services.ErrChallengeClosed:
			fail(c, http.StatusConflict, ErrCodeChallengeClosed, "challenge already ended")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, out)
}

// ChallengeLeaderboard godoc
// @ID          challengeLeaderboard
// @Summary     Challenge standings
// @Description Returns participations ranked by their persisted point totals. Supports weak ETag
// @Description via If-None-Match and may return 304.
// @Tags        Challenges
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       id             path    string  true  "Challenge ID (UUID)"  format(uuid)
// @Param       limit          query   int     false "Maximum standings returned"  minimum(1) maximum(100) default(10)
//
// @Success     200  {object}  handlers.ChallengeLeaderboardResponse
// @Header      200  {string}  ETag  "Weak ETag for current standings"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Challenge not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /challenges/{id}/leaderboard [get]
func (h *Handlers) ChallengeLeaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "challenge id must be a UUID")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 10)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.boardSvc.(*services.LeaderboardService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ParticipationsStats(ctx, db, id)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"challenge-board:%s:%d:%d:%d"`, id, count, ts, limit)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	standings, err := h.boardSvc.ChallengeLeaderboard(ctx, id, limit)
	if err != nil {
		if err == services.ErrChallengeNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "challenge not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ChallengeLeaderboardResponse{ChallengeID: id, Standings: standings})
}
