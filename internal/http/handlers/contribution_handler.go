// Contribution HTTP handlers.
//
// This file exposes REST endpoints for the contribution ledger and the
// circulation/voting loop:
//   - POST   /contributions              (submit, idempotency support)
//   - GET    /contributions/next         (pull the next candidate to evaluate)
//   - GET    /contributions/{id}         (read)
//   - POST   /contributions/{id}/votes   (cast a vote)
//   - POST   /contributions/{id}/skip    (skip without voting)
//   - POST   /contributions/{id}/flags   (report as unusable)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate sentinel errors into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/http/middleware"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
	"github.com/linguacrowd/go-corpus-backend/internal/services"
	"github.com/linguacrowd/go-corpus-backend/internal/similarity"
	"github.com/linguacrowd/go-corpus-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// LedgerService defines the contribution ledger operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type LedgerService interface {
	// Submit records a contribution, merging identical payloads.
	Submit(ctx context.Context, contributorID string, p domain.Payload) (*domain.Contribution, error)
	// Get returns a contribution by ID.
	Get(ctx context.Context, id string) (*domain.Contribution, error)
	// Similar returns near-duplicate candidates against the same sample.
	Similar(ctx context.Context, contributionID string, k int) ([]similarity.Match, error)
}

// CirculationService defines the scheduler operations consumed by HTTP
// handlers.
type CirculationService interface {
	// Next selects the contribution the voter should evaluate, or nil when
	// the pool is exhausted for them.
	Next(ctx context.Context, voterID string, kind domain.TaskKind, languageID string) (*domain.Contribution, error)
}

// VotingService defines the voting engine operations consumed by HTTP
// handlers.
type VotingService interface {
	// CastVote records one vote and applies every consequence atomically.
	CastVote(ctx context.Context, voterID, contributionID string, kind domain.VoteKind) (*domain.Contribution, error)
	// Skip closes the voter's pending circulation record without voting.
	Skip(ctx context.Context, voterID, contributionID string) error
	// Flag records a flag report with its reason.
	Flag(ctx context.Context, reporterID, contributionID, reason string) (*domain.Contribution, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for contributions, circulation, voting,
// challenges, leaderboards, users, languages, and samples. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	ledgerSvc  LedgerService
	circSvc    CirculationService
	votingSvc  VotingService
	challSvc   ChallengeService
	boardSvc   LeaderboardService
	userSvc    UserService
	langSvc    LanguageService
	sampleSvc  SampleService
	idemTTL    time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
// idemTTL is the retention window for idempotency replay records.
func New(
	ledgerSvc LedgerService,
	circSvc CirculationService,
	votingSvc VotingService,
	challSvc ChallengeService,
	boardSvc LeaderboardService,
	userSvc UserService,
	langSvc LanguageService,
	sampleSvc SampleService,
	idemTTL time.Duration,
) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{
		ledgerSvc: ledgerSvc,
		circSvc:   circSvc,
		votingSvc: votingSvc,
		challSvc:  challSvc,
		boardSvc:  boardSvc,
		userSvc:   userSvc,
		langSvc:   langSvc,
		sampleSvc: sampleSvc,
		idemTTL:   idemTTL,
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

// SubmitContributionRequest is the JSON payload for submitting a contribution.
type SubmitContributionRequest struct {
	// TaskKind selects the kind of work: "transcription" or "translation".
	TaskKind string `json:"task_kind" binding:"required" example:"transcription"`
	// SampleID references the sample being worked on.
	SampleID string `json:"sample_id" binding:"required" format:"uuid" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Text is the candidate transcription or translation.
	Text string `json:"text" binding:"required" example:"habari ya dunia"`
}

// CastVoteRequest is the JSON payload for casting a vote.
type CastVoteRequest struct {
	// Kind is the vote direction: "upvote" or "downvote".
	Kind string `json:"kind" binding:"required" example:"upvote"`
}

// FlagContributionRequest is the JSON payload for flagging a contribution.
type FlagContributionRequest struct {
	// Reason explains why the contribution is unusable (1-1000 chars).
	Reason string `json:"reason" binding:"required,min=1,max=1000" example:"audio is silence"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// SubmitContribution godoc
// @ID          submitContribution
// @Summary     Submit a contribution
// @Description Records a candidate transcription or translation. Identical payloads merge into one row.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Contributions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.SubmitContributionRequest  true  "Contribution payload"
//
// @Success     201  {object}  domain.Contribution
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Sample not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /contributions [post]
func (h *Handlers) SubmitContribution(c *gin.Context) {
	ctx := c.Request.Context()

	var req SubmitContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task_kind, sample_id and text required")
		return
	}

	var p domain.Payload
	switch domain.TaskKind(req.TaskKind) {
	case domain.TaskTranscription:
		p = domain.TranscriptionPayload(req.SampleID, req.Text)
	case domain.TaskTranslation:
		p = domain.TranslationPayload(req.SampleID, req.Text)
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task_kind must be transcription or translation")
		return
	}

	currentUser := userID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middlewareGetIdempotencyKey(c)
	if idemKey != "" {
		if svc, okSvc := h.ledgerSvc.(*services.LedgerService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, currentUser, "contributions", idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetContribution(ctx, svc.DB, rec.ResultID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusCreated, prev)
					return
				}
			}
		}
	}

	out, err := h.ledgerSvc.Submit(ctx, currentUser, p)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSampleNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "sample not found")
		case errors.Is(err, domain.ErrInvalidPayload):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if svc, okSvc := h.ledgerSvc.(*services.LedgerService); okSvc && svc.DB != nil {
			_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, "contributions", idemKey, out.ID, http.StatusCreated, h.idemTTL)
		}
	}

	if out.Frequency > 1 {
		middleware.ObserveContributionEvent("merged")
	} else {
		middleware.ObserveContributionEvent("submitted")
	}
	ok(c, http.StatusCreated, out)
}

// GetContribution godoc
// @ID          getContribution
// @Summary     Get a contribution
// @Description Returns a single contribution by ID, including its counters and state.
// @Tags        Contributions
// @Produce     json
//
// @Param       id  path  string  true  "Contribution ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Contribution
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Contribution not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /contributions/{id} [get]
func (h *Handlers) GetContribution(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contribution id must be a UUID")
		return
	}

	out, err := h.ledgerSvc.Get(c.Request.Context(), id)
	if err != nil {
		if err == services.ErrContributionNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "contribution not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, out)
}

// SimilarContributionsResponse wraps the near-duplicate view of one
// contribution.
type SimilarContributionsResponse struct {
	ContributionID string             `json:"contribution_id"`
	Matches        []similarity.Match `json:"matches"`
}

// SimilarContributions godoc
// @ID          similarContributions
// @Summary     Near-duplicate contributions
// @Description Returns contributions against the same sample ranked by text similarity to the
// @Description given one. Exact duplicates never appear; they merge at submission time.
// @Tags        Contributions
// @Produce     json
//
// @Param       id     path   string  true  "Contribution ID (UUID)"  format(uuid)
// @Param       limit  query  int     false "Maximum matches returned"  minimum(1) maximum(50) default(5)
//
// @Success     200  {object}  handlers.SimilarContributionsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Contribution not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /contributions/{id}/similar [get]
func (h *Handlers) SimilarContributions(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contribution id must be a UUID")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 5)
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	matches, err := h.ledgerSvc.Similar(c.Request.Context(), id, limit)
	if err != nil {
		if errors.Is(err, services.ErrContributionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "contribution not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if matches == nil {
		matches = []similarity.Match{}
	}
	ok(c, http.StatusOK, SimilarContributionsResponse{ContributionID: id, Matches: matches})
}

// NextContribution godoc
// @ID          nextContribution
// @Summary     Pull the next contribution to evaluate
// @Description Selects an unresolved contribution the current user has not seen, excluding their own work.
// @Description Returns 204 when the pool is exhausted for this user.
// @Tags        Contributions
// @Produce     json
//
// @Param       X-User-ID    header  string  false "User ID (demo header)"  example(user123)
// @Param       task_kind    query   string  true  "transcription or translation"
// @Param       language_id  query   string  true  "Language ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Contribution
// @Success     204  {string}  string "Pool exhausted"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /contributions/next [get]
func (h *Handlers) NextContribution(c *gin.Context) {
	kind := domain.TaskKind(c.Query("task_kind"))
	languageID := strings.TrimSpace(c.Query("language_id"))
	if !kind.Valid() || languageID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task_kind and language_id required")
		return
	}

	out, err := h.circSvc.Next(c.Request.Context(), userID(c), kind, languageID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if out == nil {
		noContent(c)
		return
	}
	ok(c, http.StatusOK, out)
}

// CastVote godoc
// @ID          castVote
// @Summary     Vote on a contribution
// @Description Records an upvote or downvote. The contribution must have been circulated to the
// @Description current user and still be open; one vote per user per contribution.
// @Tags        Contributions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Contribution ID (UUID)"  format(uuid)
// @Param       body       body    handlers.CastVoteRequest  true  "Vote payload"
//
// @Success     200  {object}  domain.Contribution  "Contribution after the vote"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not circulated to this user"
// @Failure     404  {object}  handlers.ErrorResponse  "Contribution not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate vote or already resolved"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /contributions/{id}/votes [post]
func (h *Handlers) CastVote(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contribution id must be a UUID")
		return
	}

	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind required")
		return
	}

	out, err := h.votingSvc.CastVote(c.Request.Context(), userID(c), id, domain.VoteKind(req.Kind))
	if err != nil {
		switch err {
		case services.ErrInvalidVote:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind must be upvote or downvote")
		case services.ErrNotCirculated:
			fail(c, http.StatusForbidden, ErrCodeNotCirculated, "contribution was not circulated to this user")
		case services.ErrContributionNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "contribution not found")
		case services.ErrAlreadyResolved:
			fail(c, http.StatusConflict, ErrCodeAlreadyResolved, "contribution already resolved")
		case services.ErrDuplicateVote:
			fail(c, http.StatusConflict, ErrCodeConflict, "vote already exists")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	switch out.State {
	case domain.StateActive:
		middleware.ObserveContributionEvent("promoted")
	case domain.StateRejected:
		middleware.ObserveContributionEvent("rejected")
	}
	ok(c, http.StatusOK, out)
}

// SkipContribution godoc
// @ID          skipContribution
// @Summary     Skip a circulated contribution
// @Description Closes the current user's pending hand-out without voting; the pair is never re-selected.
// @Tags        Contributions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Contribution ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not circulated to this user"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /contributions/{id}/skip [post]
func (h *Handlers) SkipContribution(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contribution id must be a UUID")
		return
	}

	if err := h.votingSvc.Skip(c.Request.Context(), userID(c), id); err != nil {
		if err == services.ErrNotCirculated {
			fail(c, http.StatusForbidden, ErrCodeNotCirculated, "contribution was not circulated to this user")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// FlagContribution godoc
// @ID          flagContribution
// @Summary     Flag a contribution as unusable
// @Description Records a flag report with a reason. Once enough distinct users report, the
// @Description contribution leaves circulation pending review.
// @Tags        Contributions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Contribution ID (UUID)"  format(uuid)
// @Param       body       body    handlers.FlagContributionRequest  true  "Flag payload"
//
// @Success     200  {object}  domain.Contribution  "Contribution after the report"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Contribution not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already reported by this user"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /contributions/{id}/flags [post]
func (h *Handlers) FlagContribution(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contribution id must be a UUID")
		return
	}

	var req FlagContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reason required (1-1000 chars)")
		return
	}

	out, err := h.votingSvc.Flag(c.Request.Context(), userID(c), id, req.Reason)
	if err != nil {
		switch err {
		case services.ErrEmptyReason:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reason required (1-1000 chars)")
		case services.ErrContributionNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "contribution not found")
		case services.ErrDuplicateFlag:
			fail(c, http.StatusConflict, ErrCodeConflict, "flag report already exists")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	if out.Flagged {
		middleware.ObserveContributionEvent("flagged")
	}
	ok(c, http.StatusOK, out)
}

// middlewareGetIdempotencyKey extracts an idempotency key if an upstream
// middleware stored one, falling back to the "Idempotency-Key" header directly
// when no dedicated middleware exists.
func middlewareGetIdempotencyKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}
