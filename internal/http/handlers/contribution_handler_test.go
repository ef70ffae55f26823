package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/linguacrowd/go-corpus-backend/internal/config"
	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
	"github.com/linguacrowd/go-corpus-backend/internal/services"
	"github.com/linguacrowd/go-corpus-backend/internal/similarity"
)

// ---------- test DB ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedLanguage(t *testing.T, db *gorm.DB) *domain.Language {
	t.Helper()
	l := &domain.Language{ID: uuid.NewString(), Code: "sw", Name: "Swahili", CreatedAt: time.Now().UTC()}
	if err := db.Create(l).Error; err != nil {
		t.Fatalf("seed language: %v", err)
	}
	return l
}

func seedTranscriptionSample(t *testing.T, db *gorm.DB, languageID string) *domain.TranscriptionSample {
	t.Helper()
	s := &domain.TranscriptionSample{
		ID:              uuid.NewString(),
		LanguageID:      languageID,
		AudioURL:        "https://cdn.example.com/audio/a.ogg",
		DurationSeconds: 7200,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("seed sample: %v", err)
	}
	return s
}

// ---------- service stubs (function fields, nil → benign default) ----------

type stubLedgerSvc struct {
	submit  func(context.Context, string, domain.Payload) (*domain.Contribution, error)
	get     func(context.Context, string) (*domain.Contribution, error)
	similar func(context.Context, string, int) ([]similarity.Match, error)
}

func (s stubLedgerSvc) Submit(ctx context.Context, u string, p domain.Payload) (*domain.Contribution, error) {
	if s.submit != nil {
		return s.submit(ctx, u, p)
	}
	return &domain.Contribution{ID: uuid.NewString(), ContributorID: u, TaskKind: p.Kind, SampleID: p.SampleID, Text: p.Text, Frequency: 1, State: domain.StateUnresolved}, nil
}

func (s stubLedgerSvc) Get(ctx context.Context, id string) (*domain.Contribution, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &domain.Contribution{ID: id, State: domain.StateUnresolved}, nil
}

func (s stubLedgerSvc) Similar(ctx context.Context, id string, k int) ([]similarity.Match, error) {
	if s.similar != nil {
		return s.similar(ctx, id, k)
	}
	return nil, nil
}

type stubCircSvc struct {
	next func(context.Context, string, domain.TaskKind, string) (*domain.Contribution, error)
}

func (s stubCircSvc) Next(ctx context.Context, voterID string, kind domain.TaskKind, languageID string) (*domain.Contribution, error) {
	if s.next != nil {
		return s.next(ctx, voterID, kind, languageID)
	}
	return nil, nil
}

type stubVotingSvc struct {
	cast func(context.Context, string, string, domain.VoteKind) (*domain.Contribution, error)
	skip func(context.Context, string, string) error
	flag func(context.Context, string, string, string) (*domain.Contribution, error)
}

func (s stubVotingSvc) CastVote(ctx context.Context, v, c string, k domain.VoteKind) (*domain.Contribution, error) {
	if s.cast != nil {
		return s.cast(ctx, v, c, k)
	}
	return &domain.Contribution{ID: c, State: domain.StateUnresolved}, nil
}

func (s stubVotingSvc) Skip(ctx context.Context, v, c string) error {
	if s.skip != nil {
		return s.skip(ctx, v, c)
	}
	return nil
}

func (s stubVotingSvc) Flag(ctx context.Context, r, c, reason string) (*domain.Contribution, error) {
	if s.flag != nil {
		return s.flag(ctx, r, c, reason)
	}
	return &domain.Contribution{ID: c, Flags: 1}, nil
}

type stubChallSvc struct {
	create        func(context.Context, string, string, domain.ChallengeType, time.Time, time.Time, int) (*domain.Challenge, error)
	get           func(context.Context, string) (*domain.Challenge, error)
	listPage      func(context.Context, bool, int, int) ([]domain.Challenge, error)
	register      func(context.Context, string, string) (*domain.ChallengeParticipation, error)
	participation func(context.Context, string, string) (*domain.ChallengeParticipation, error)
	updateStats   func(context.Context, string, string, services.StatsUpdate, bool) (*domain.ChallengeParticipation, error)
	end           func(context.Context, string) (*domain.Challenge, error)
}

func (s stubChallSvc) Create(ctx context.Context, n, d string, t domain.ChallengeType, st, en time.Time, tgt int) (*domain.Challenge, error) {
	if s.create != nil {
		return s.create(ctx, n, d, t, st, en, tgt)
	}
	return &domain.Challenge{ID: uuid.NewString(), Name: n, Type: t}, nil
}

func (s stubChallSvc) Get(ctx context.Context, id string) (*domain.Challenge, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &domain.Challenge{ID: id}, nil
}

func (s stubChallSvc) ListPage(ctx context.Context, a bool, p, ps int) ([]domain.Challenge, error) {
	if s.listPage != nil {
		return s.listPage(ctx, a, p, ps)
	}
	return nil, nil
}

func (s stubChallSvc) Register(ctx context.Context, ch, u string) (*domain.ChallengeParticipation, error) {
	if s.register != nil {
		return s.register(ctx, ch, u)
	}
	return &domain.ChallengeParticipation{ID: uuid.NewString(), ChallengeID: ch, UserID: u}, nil
}

func (s stubChallSvc) Participation(ctx context.Context, ch, u string) (*domain.ChallengeParticipation, error) {
	if s.participation != nil {
		return s.participation(ctx, ch, u)
	}
	return &domain.ChallengeParticipation{ChallengeID: ch, UserID: u}, nil
}

func (s stubChallSvc) UpdateStats(ctx context.Context, ch, u string, upd services.StatsUpdate, recompute bool) (*domain.ChallengeParticipation, error) {
	if s.updateStats != nil {
		return s.updateStats(ctx, ch, u, upd, recompute)
	}
	return &domain.ChallengeParticipation{ChallengeID: ch, UserID: u}, nil
}

func (s stubChallSvc) End(ctx context.Context, id string) (*domain.Challenge, error) {
	if s.end != nil {
		return s.end(ctx, id)
	}
	return &domain.Challenge{ID: id, IsActive: false}, nil
}

type stubBoardSvc struct {
	top   func(context.Context, int, time.Duration) ([]domain.User, error)
	board func(context.Context, string, int) ([]domain.ChallengeParticipation, error)
}

func (s stubBoardSvc) TopContributors(ctx context.Context, limit int, window time.Duration) ([]domain.User, error) {
	if s.top != nil {
		return s.top(ctx, limit, window)
	}
	return nil, nil
}

func (s stubBoardSvc) ChallengeLeaderboard(ctx context.Context, id string, limit int) ([]domain.ChallengeParticipation, error) {
	if s.board != nil {
		return s.board(ctx, id, limit)
	}
	return nil, nil
}

type stubUserSvc struct {
	profile func(context.Context, string) (*domain.User, []domain.UserLanguage, error)
}

func (s stubUserSvc) Profile(ctx context.Context, id string) (*domain.User, []domain.UserLanguage, error) {
	if s.profile != nil {
		return s.profile(ctx, id)
	}
	return &domain.User{ID: id}, nil, nil
}

type stubLangSvc struct {
	create   func(context.Context, string, string) (*domain.Language, error)
	get      func(context.Context, string) (*domain.Language, error)
	listPage func(context.Context, int, int) ([]domain.Language, error)
}

func (s stubLangSvc) Create(ctx context.Context, code, name string) (*domain.Language, error) {
	if s.create != nil {
		return s.create(ctx, code, name)
	}
	return &domain.Language{ID: uuid.NewString(), Code: code, Name: name}, nil
}

func (s stubLangSvc) Get(ctx context.Context, idOrCode string) (*domain.Language, error) {
	if s.get != nil {
		return s.get(ctx, idOrCode)
	}
	return &domain.Language{ID: idOrCode}, nil
}

func (s stubLangSvc) ListPage(ctx context.Context, p, ps int) ([]domain.Language, error) {
	if s.listPage != nil {
		return s.listPage(ctx, p, ps)
	}
	return nil, nil
}

type stubSampleSvc struct {
	transcription func(context.Context, string, string, int) (*domain.TranscriptionSample, error)
	translation   func(context.Context, string, string) (*domain.TranslationSample, error)
}

func (s stubSampleSvc) CreateTranscriptionSample(ctx context.Context, langID, url string, dur int) (*domain.TranscriptionSample, error) {
	if s.transcription != nil {
		return s.transcription(ctx, langID, url, dur)
	}
	return &domain.TranscriptionSample{ID: uuid.NewString(), LanguageID: langID, AudioURL: url, DurationSeconds: dur}, nil
}

func (s stubSampleSvc) CreateTranslationSample(ctx context.Context, langID, text string) (*domain.TranslationSample, error) {
	if s.translation != nil {
		return s.translation(ctx, langID, text)
	}
	return &domain.TranslationSample{ID: uuid.NewString(), LanguageID: langID, OriginalText: text}, nil
}

// handlerDeps lets a test swap in only the services it cares about.
type handlerDeps struct {
	ledger LedgerService
	circ   CirculationService
	voting VotingService
	chall  ChallengeService
	board  LeaderboardService
	user   UserService
	lang   LanguageService
	sample SampleService
}

func newTestHandlers(d handlerDeps) *Handlers {
	if d.ledger == nil {
		d.ledger = stubLedgerSvc{}
	}
	if d.circ == nil {
		d.circ = stubCircSvc{}
	}
	if d.voting == nil {
		d.voting = stubVotingSvc{}
	}
	if d.chall == nil {
		d.chall = stubChallSvc{}
	}
	if d.board == nil {
		d.board = stubBoardSvc{}
	}
	if d.user == nil {
		d.user = stubUserSvc{}
	}
	if d.lang == nil {
		d.lang = stubLangSvc{}
	}
	if d.sample == nil {
		d.sample = stubSampleSvc{}
	}
	return New(d.ledger, d.circ, d.voting, d.chall, d.board, d.user, d.lang, d.sample, 0)
}

// ---------- helpers-only tests ----------

func Test_userID_and_clampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// userID helper
	rc := gin.CreateTestContextOnly(httptest.NewRecorder(), gin.New())
	if got := userID(rc); got != "demo-user" {
		t.Fatalf("fallback userID = %q", got)
	}
	rc.Set("userID", "u1")
	if got := userID(rc); got != "u1" {
		t.Fatalf("ctx userID = %q", got)
	}
	rc.Set("userID", 123) // wrong type → fallback
	if got := userID(rc); got != "demo-user" {
		t.Fatalf("wrong-type fallback userID = %q", got)
	}

	// header fallback
	cH, _ := gin.CreateTestContext(httptest.NewRecorder())
	reqH := httptest.NewRequest("GET", "/", nil)
	reqH.Header.Set("X-User-ID", "u-123")
	cH.Request = reqH
	if got := userID(cH); got != "u-123" {
		t.Fatalf("header fallback userID = %q", got)
	}

	// clampPagination bounds
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest("GET", "/?page=-5&page_size=9999", nil)
	c.Request = req
	p, ps := clampPagination(c)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	req = httptest.NewRequest("GET", "/?page=&page_size=0", nil)
	c.Request = req
	p, ps = clampPagination(c)
	if p != 1 || ps != 1 {
		t.Fatalf("clamp defaults got p=%d ps=%d", p, ps)
	}
}

// ---------- SubmitContribution ----------

func TestSubmitContribution_BadJSON_And_BadKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHandlers(handlerDeps{})
	r := gin.New()
	r.POST("/contributions", h.SubmitContribution)

	// Bad JSON -> 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contributions", bytes.NewBufferString("{bad"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}

	// Unknown task_kind -> 400
	w = httptest.NewRecorder()
	body := `{"task_kind":"captioning","sample_id":"` + uuid.NewString() + `","text":"x"}`
	req = httptest.NewRequest(http.MethodPost, "/contributions", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad kind -> %d", w.Code)
	}
}

func TestSubmitContribution_Success_Then_Merge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	lang := seedLanguage(t, db)
	sample := seedTranscriptionSample(t, db, lang.ID)

	svc := services.NewLedgerService(db, config.ThresholdConfig{PromoteMargin: 2, PromoteMin: 3, FlagMin: 2})
	h := newTestHandlers(handlerDeps{ledger: svc})
	r := gin.New()
	r.POST("/contributions", h.SubmitContribution)

	body := `{"task_kind":"transcription","sample_id":"` + sample.ID + `","text":"habari ya dunia"}`

	// First submission -> 201, frequency 1
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contributions", bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit -> %d body=%s", w.Code, w.Body.String())
	}
	var first domain.Contribution
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("json: %v", err)
	}
	if first.Frequency != 1 || first.State != domain.StateUnresolved || first.LanguageID != lang.ID {
		t.Fatalf("unexpected contribution: %#v", first)
	}

	// Identical payload from another user merges -> same row, frequency 2
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/contributions", bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", "u2")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("merge -> %d body=%s", w.Code, w.Body.String())
	}
	var second domain.Contribution
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("json: %v", err)
	}
	if second.ID != first.ID || second.Frequency != 2 {
		t.Fatalf("merge mismatch: first=%s second=%s freq=%d", first.ID, second.ID, second.Frequency)
	}
}

func TestSubmitContribution_SampleNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	svc := services.NewLedgerService(db, config.ThresholdConfig{PromoteMargin: 2, PromoteMin: 3, FlagMin: 2})
	h := newTestHandlers(handlerDeps{ledger: svc})
	r := gin.New()
	r.POST("/contributions", h.SubmitContribution)

	body := `{"task_kind":"translation","sample_id":"` + uuid.NewString() + `","text":"bonjour"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contributions", bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing sample -> %d body=%s", w.Code, w.Body.String())
	}
}

func TestSubmitContribution_IdempotencyReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	lang := seedLanguage(t, db)
	sample := seedTranscriptionSample(t, db, lang.ID)

	svc := services.NewLedgerService(db, config.ThresholdConfig{PromoteMargin: 2, PromoteMin: 3, FlagMin: 2})
	h := newTestHandlers(handlerDeps{ledger: svc})
	r := gin.New()
	r.POST("/contributions", h.SubmitContribution)

	key := uuid.NewString()
	body := `{"task_kind":"transcription","sample_id":"` + sample.ID + `","text":"habari"}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contributions", bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("Idempotency-Key", key)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("first -> %d body=%s", w.Code, w.Body.String())
	}
	var first domain.Contribution
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("json: %v", err)
	}

	// Replay with the same key short-circuits before Submit: same row, same
	// frequency, marker header set.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/contributions", bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("Idempotency-Key", key)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("replay -> %d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("missing Idempotency-Replayed header")
	}
	var replay domain.Contribution
	if err := json.Unmarshal(w.Body.Bytes(), &replay); err != nil {
		t.Fatalf("json: %v", err)
	}
	if replay.ID != first.ID || replay.Frequency != 1 {
		t.Fatalf("replay mismatch: %#v vs %#v", replay, first)
	}
}

// ---------- GetContribution ----------

func TestGetContribution_UUID_NotFound_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// bad UUID -> 400
	{
		h := newTestHandlers(handlerDeps{})
		r := gin.New()
		r.GET("/contributions/:id", h.GetContribution)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contributions/not-uuid", nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("uuid 400 -> %d", w.Code)
		}
	}

	// not found -> 404
	{
		h := newTestHandlers(handlerDeps{ledger: stubLedgerSvc{
			get: func(context.Context, string) (*domain.Contribution, error) {
				return nil, services.ErrContributionNotFound
			},
		}})
		r := gin.New()
		r.GET("/contributions/:id", h.GetContribution)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contributions/"+uuid.NewString(), nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("not found -> %d", w.Code)
		}
	}

	// success -> 200
	{
		id := uuid.NewString()
		h := newTestHandlers(handlerDeps{ledger: stubLedgerSvc{
			get: func(_ context.Context, got string) (*domain.Contribution, error) {
				return &domain.Contribution{ID: got, Upvotes: 3, State: domain.StateActive}, nil
			},
		}})
		r := gin.New()
		r.GET("/contributions/:id", h.GetContribution)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contributions/"+id, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("get -> %d", w.Code)
		}
		var out domain.Contribution
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.ID != id || out.State != domain.StateActive {
			t.Fatalf("unexpected body: %#v", out)
		}
	}
}

// ---------- SimilarContributions ----------

func TestSimilarContributions_EmptySlice_NotFound_Clamp(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// nil matches serialize as [] not null
	{
		h := newTestHandlers(handlerDeps{ledger: stubLedgerSvc{
			similar: func(context.Context, string, int) ([]similarity.Match, error) { return nil, nil },
		}})
		r := gin.New()
		r.GET("/contributions/:id/similar", h.SimilarContributions)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contributions/"+uuid.NewString()+"/similar", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("similar -> %d", w.Code)
		}
		if !bytes.Contains(w.Body.Bytes(), []byte(`"matches":[]`)) {
			t.Fatalf("expected empty matches array, got %s", w.Body.String())
		}
	}

	// unknown contribution -> 404
	{
		h := newTestHandlers(handlerDeps{ledger: stubLedgerSvc{
			similar: func(context.Context, string, int) ([]similarity.Match, error) {
				return nil, services.ErrContributionNotFound
			},
		}})
		r := gin.New()
		r.GET("/contributions/:id/similar", h.SimilarContributions)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contributions/"+uuid.NewString()+"/similar", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("not found -> %d", w.Code)
		}
	}

	// limit clamps into [1,50], default 5
	{
		var gotK int
		h := newTestHandlers(handlerDeps{ledger: stubLedgerSvc{
			similar: func(_ context.Context, _ string, k int) ([]similarity.Match, error) {
				gotK = k
				return []similarity.Match{}, nil
			},
		}})
		r := gin.New()
		r.GET("/contributions/:id/similar", h.SimilarContributions)

		for _, tc := range []struct {
			query string
			want  int
		}{
			{"", 5},
			{"?limit=0", 1},
			{"?limit=999", 50},
			{"?limit=7", 7},
		} {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contributions/"+uuid.NewString()+"/similar"+tc.query, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("similar %q -> %d", tc.query, w.Code)
			}
			if gotK != tc.want {
				t.Fatalf("limit %q: k=%d want %d", tc.query, gotK, tc.want)
			}
		}
	}
}

// ---------- NextContribution ----------

func TestNextContribution_Validation_204_200(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// missing params -> 400
	{
		h := newTestHandlers(handlerDeps{})
		r := gin.New()
		r.GET("/contributions/next", h.NextContribution)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contributions/next?task_kind=transcription", nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("missing language_id -> %d", w.Code)
		}
	}

	// empty pool -> 204
	{
		h := newTestHandlers(handlerDeps{circ: stubCircSvc{
			next: func(context.Context, string, domain.TaskKind, string) (*domain.Contribution, error) {
				return nil, nil
			},
		}})
		r := gin.New()
		r.GET("/contributions/next", h.NextContribution)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contributions/next?task_kind=translation&language_id="+uuid.NewString(), nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("empty pool -> %d", w.Code)
		}
	}

	// candidate available -> 200, voter and filters forwarded
	{
		var got struct {
			voter string
			kind  domain.TaskKind
			lang  string
		}
		langID := uuid.NewString()
		h := newTestHandlers(handlerDeps{circ: stubCircSvc{
			next: func(_ context.Context, v string, k domain.TaskKind, l string) (*domain.Contribution, error) {
				got.voter, got.kind, got.lang = v, k, l
				return &domain.Contribution{ID: uuid.NewString(), TaskKind: k, LanguageID: l}, nil
			},
		}})
		r := gin.New()
		r.GET("/contributions/next", h.NextContribution)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/contributions/next?task_kind=transcription&language_id="+langID, nil)
		req.Header.Set("X-User-ID", "voter-1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("next -> %d", w.Code)
		}
		if got.voter != "voter-1" || got.kind != domain.TaskTranscription || got.lang != langID {
			t.Fatalf("args mismatch: %+v", got)
		}
	}
}

// ---------- CastVote ----------

func TestCastVote_ErrorMapping_And_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// bad UUID / bad JSON
	{
		h := newTestHandlers(handlerDeps{})
		r := gin.New()
		r.POST("/contributions/:id/votes", h.CastVote)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contributions/nope/votes", bytes.NewBufferString(`{"kind":"upvote"}`)))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("uuid 400 -> %d", w.Code)
		}

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contributions/"+uuid.NewString()+"/votes", bytes.NewBufferString("{bad")))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad json -> %d", w.Code)
		}
	}

	// sentinel → status table
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrInvalidVote, http.StatusBadRequest},
		{services.ErrNotCirculated, http.StatusForbidden},
		{services.ErrContributionNotFound, http.StatusNotFound},
		{services.ErrAlreadyResolved, http.StatusConflict},
		{services.ErrDuplicateVote, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newTestHandlers(handlerDeps{voting: stubVotingSvc{
			cast: func(context.Context, string, string, domain.VoteKind) (*domain.Contribution, error) {
				return nil, tc.err
			},
		}})
		r := gin.New()
		r.POST("/contributions/:id/votes", h.CastVote)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contributions/"+uuid.NewString()+"/votes", bytes.NewBufferString(`{"kind":"upvote"}`)))
		if w.Code != tc.want {
			t.Fatalf("err %v -> %d, want %d", tc.err, w.Code, tc.want)
		}
	}

	// success -> 200 with the post-vote contribution
	{
		h := newTestHandlers(handlerDeps{voting: stubVotingSvc{
			cast: func(_ context.Context, _, id string, k domain.VoteKind) (*domain.Contribution, error) {
				if k != domain.VoteDown {
					t.Fatalf("kind = %q", k)
				}
				return &domain.Contribution{ID: id, Downvotes: 1, State: domain.StateUnresolved}, nil
			},
		}})
		r := gin.New()
		r.POST("/contributions/:id/votes", h.CastVote)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contributions/"+uuid.NewString()+"/votes", bytes.NewBufferString(`{"kind":"downvote"}`)))
		if w.Code != http.StatusOK {
			t.Fatalf("vote -> %d body=%s", w.Code, w.Body.String())
		}
		var out domain.Contribution
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Downvotes != 1 {
			t.Fatalf("unexpected body: %#v", out)
		}
	}
}

// ---------- SkipContribution ----------

func TestSkipContribution_204_And_403(t *testing.T) {
	gin.SetMode(gin.TestMode)

	{
		h := newTestHandlers(handlerDeps{})
		r := gin.New()
		r.POST("/contributions/:id/skip", h.SkipContribution)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contributions/"+uuid.NewString()+"/skip", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("skip -> %d", w.Code)
		}
	}

	{
		h := newTestHandlers(handlerDeps{voting: stubVotingSvc{
			skip: func(context.Context, string, string) error { return services.ErrNotCirculated },
		}})
		r := gin.New()
		r.POST("/contributions/:id/skip", h.SkipContribution)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contributions/"+uuid.NewString()+"/skip", nil))
		if w.Code != http.StatusForbidden {
			t.Fatalf("not circulated -> %d", w.Code)
		}
	}
}

// ---------- FlagContribution ----------

func TestFlagContribution_Validation_Conflict_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// blank reason -> 400
	{
		h := newTestHandlers(handlerDeps{})
		r := gin.New()
		r.POST("/contributions/:id/flags", h.FlagContribution)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contributions/"+uuid.NewString()+"/flags", bytes.NewBufferString(`{"reason":"   "}`)))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("blank reason -> %d", w.Code)
		}
	}

	// duplicate report -> 409
	{
		h := newTestHandlers(handlerDeps{voting: stubVotingSvc{
			flag: func(context.Context, string, string, string) (*domain.Contribution, error) {
				return nil, services.ErrDuplicateFlag
			},
		}})
		r := gin.New()
		r.POST("/contributions/:id/flags", h.FlagContribution)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contributions/"+uuid.NewString()+"/flags", bytes.NewBufferString(`{"reason":"audio is silence"}`)))
		if w.Code != http.StatusConflict {
			t.Fatalf("duplicate flag -> %d", w.Code)
		}
	}

	// success -> 200, reporter and reason forwarded
	{
		var got struct{ reporter, reason string }
		h := newTestHandlers(handlerDeps{voting: stubVotingSvc{
			flag: func(_ context.Context, rep, id, reason string) (*domain.Contribution, error) {
				got.reporter, got.reason = rep, reason
				return &domain.Contribution{ID: id, Flags: 3, Flagged: true}, nil
			},
		}})
		r := gin.New()
		r.POST("/contributions/:id/flags", h.FlagContribution)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/contributions/"+uuid.NewString()+"/flags", bytes.NewBufferString(`{"reason":"wrong language"}`))
		req.Header.Set("X-User-ID", "rep-1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("flag -> %d body=%s", w.Code, w.Body.String())
		}
		if got.reporter != "rep-1" || got.reason != "wrong language" {
			t.Fatalf("args mismatch: %+v", got)
		}
	}
}
