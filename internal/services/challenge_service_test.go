package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
)

func newChallengeEngine(t *testing.T, now time.Time) *ChallengeService {
	t.Helper()
	s := NewChallengeService(newEngineDB(t), testScoring())
	s.now = func() time.Time { return now }
	return s
}

func TestCreateChallenge_Validation(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	s := newChallengeEngine(t, now)
	ctx := context.Background()

	cases := []struct {
		name       string
		title      string
		typ        domain.ChallengeType
		start, end time.Time
	}{
		{"blank name", "  ", domain.ChallengeTranscription, now, now.Add(time.Hour)},
		{"unknown type", "ok", "speedrun", now, now.Add(time.Hour)},
		{"end before start", "ok", domain.ChallengeTranslation, now.Add(time.Hour), now},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Create(ctx, tc.title, "", tc.typ, tc.start, tc.end, 0); !errors.Is(err, ErrInvalidChallenge) {
				t.Fatalf("expected ErrInvalidChallenge, got %v", err)
			}
		})
	}

	ch, err := s.Create(ctx, "July sprint", "transcribe all the things", domain.ChallengeTranscription, now, now.Add(7*24*time.Hour), 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ch.ID == "" || !ch.IsActive {
		t.Fatalf("unexpected challenge: %+v", ch)
	}
}

func TestRegister_IdempotentAndWindowed(t *testing.T) {
	now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	s := newChallengeEngine(t, now)
	ctx := context.Background()

	ch, err := s.Create(ctx, "sprint", "", domain.ChallengeTranscription, now.Add(-time.Hour), now.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p1, err := s.Register(ctx, ch.ID, "u1")
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	p2, err := s.Register(ctx, ch.ID, "u1")
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if p1.ID != p2.ID {
		t.Fatalf("registration not idempotent: %s vs %s", p1.ID, p2.ID)
	}

	// The participant counter moved once.
	got, err := s.Get(ctx, ch.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ParticipantCount != 1 {
		t.Fatalf("participant count: %d", got.ParticipantCount)
	}

	// Outside the window registration is refused.
	ended, err := s.Create(ctx, "past", "", domain.ChallengeTranscription, now.Add(-48*time.Hour), now.Add(-24*time.Hour), 0)
	if err != nil {
		t.Fatalf("create past: %v", err)
	}
	if _, err := s.Register(ctx, ended.ID, "u1"); !errors.Is(err, ErrChallengeClosed) {
		t.Fatalf("expected ErrChallengeClosed, got %v", err)
	}

	if _, err := s.Register(ctx, "missing", "u1"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestUpdateStats_AccumulatesDeltasAndRecomputesPoints(t *testing.T) {
	now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	s := newChallengeEngine(t, now)
	ctx := context.Background()

	ch, err := s.Create(ctx, "sprint", "", domain.ChallengeTranscription, now.Add(-time.Hour), now.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Register(ctx, ch.ID, "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	rate := 0.95
	p, err := s.UpdateStats(ctx, ch.ID, "u1", StatsUpdate{
		HoursSpeech:         2,
		SentencesTranslated: 5,
		TokensProduced:      100,
		AcceptanceRate:      &rate,
	}, true)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if p.TotalHoursSpeech != 2 || p.TotalSentencesTranslated != 5 || p.TotalTokensProduced != 100 {
		t.Fatalf("counters after first update: %+v", p)
	}
	if p.AcceptanceRate != 0.95 {
		t.Fatalf("acceptance rate: %v", p.AcceptanceRate)
	}
	want := ChallengePoints(testScoring(), domain.ChallengeTranscription, 2, 5, 100, 0.95)
	if p.TotalPoints != want {
		t.Fatalf("points %d, want %d", p.TotalPoints, want)
	}

	// Deltas accumulate across calls; the rate sticks when omitted.
	p, err = s.UpdateStats(ctx, ch.ID, "u1", StatsUpdate{HoursSpeech: 1}, true)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if p.TotalHoursSpeech != 3 || p.AcceptanceRate != 0.95 {
		t.Fatalf("counters after second update: %+v", p)
	}
	want = ChallengePoints(testScoring(), domain.ChallengeTranscription, 3, 5, 100, 0.95)
	if p.TotalPoints != want {
		t.Fatalf("points %d, want %d", p.TotalPoints, want)
	}

	// The contributor's lifetime total moved by the same amount.
	u, err := repo.GetUser(ctx, s.DB, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.TotalPoints != p.TotalPoints {
		t.Fatalf("user points %d, participation points %d", u.TotalPoints, p.TotalPoints)
	}
}

func TestUpdateStats_KeepsStoredPointsWithoutRecompute(t *testing.T) {
	now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	s := newChallengeEngine(t, now)
	ctx := context.Background()

	ch, err := s.Create(ctx, "sprint", "", domain.ChallengeTranslation, now.Add(-time.Hour), now.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Register(ctx, ch.ID, "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	p, err := s.UpdateStats(ctx, ch.ID, "u1", StatsUpdate{SentencesTranslated: 10}, true)
	if err != nil {
		t.Fatalf("seed update: %v", err)
	}
	before := p.TotalPoints
	if before == 0 {
		t.Fatalf("expected nonzero points after recompute")
	}

	p, err = s.UpdateStats(ctx, ch.ID, "u1", StatsUpdate{SentencesTranslated: 4}, false)
	if err != nil {
		t.Fatalf("no-recompute update: %v", err)
	}
	if p.TotalSentencesTranslated != 14 {
		t.Fatalf("sentences: %d", p.TotalSentencesTranslated)
	}
	if p.TotalPoints != before {
		t.Fatalf("points changed without recompute: %d -> %d", before, p.TotalPoints)
	}
	u, err := repo.GetUser(ctx, s.DB, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.TotalPoints != before {
		t.Fatalf("user points moved without recompute: %d", u.TotalPoints)
	}
}

func TestUpdateStats_UnknownAndFinalized(t *testing.T) {
	now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	s := newChallengeEngine(t, now)
	ctx := context.Background()

	if _, err := s.UpdateStats(ctx, "missing", "u1", StatsUpdate{HoursSpeech: 1}, true); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("unknown challenge: %v", err)
	}

	ch, err := s.Create(ctx, "sprint", "", domain.ChallengeTranscription, now.Add(-time.Hour), now.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A user without a participation row is indistinguishable from a
	// missing challenge to the caller.
	if _, err := s.UpdateStats(ctx, ch.ID, "stranger", StatsUpdate{HoursSpeech: 1}, true); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("unregistered user: %v", err)
	}

	if _, err := s.Register(ctx, ch.ID, "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.End(ctx, ch.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := s.UpdateStats(ctx, ch.ID, "u1", StatsUpdate{HoursSpeech: 1}, true); !errors.Is(err, ErrChallengeClosed) {
		t.Fatalf("finalized participation: %v", err)
	}
}

func TestEnd_FreezesStandings(t *testing.T) {
	now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	s := newChallengeEngine(t, now)
	ctx := context.Background()

	ch, err := s.Create(ctx, "sprint", "", domain.ChallengeTranscription, now.Add(-time.Hour), now.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := s.Register(ctx, ch.ID, "u1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := s.End(ctx, ch.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if got.IsActive {
		t.Fatalf("challenge still active after End")
	}

	// Frozen participations reject further stat updates.
	if err := repo.UpdateParticipationStats(ctx, s.DB, p.ID, 1, 0, 0, 1.0, 999); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected frozen participation, got %v", err)
	}

	if _, err := s.End(ctx, ch.ID); !errors.Is(err, ErrChallengeClosed) {
		t.Fatalf("expected ErrChallengeClosed on double end, got %v", err)
	}
}
