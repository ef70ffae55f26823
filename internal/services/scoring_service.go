// Package services – ScoringService
//
// This file implements the scoring engine: the component that converts a
// contributor's accepted activity (hours of speech, sentences translated,
// tokens produced, acceptance rate) into a reputation score and, inside a
// challenge, into challenge points.
//
// The two formulas are exposed as pure functions (ReputationScore,
// ChallengePoints) so standings are re-derivable for audit from the stored
// aggregates alone. CreditAcceptance is the single writer of the user,
// user-language, and challenge-participation counters; the voting engine
// invokes it inside the vote transaction when a contribution is promoted.
package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/config"
	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
)

// Metrics is the per-contribution activity snapshot credited on acceptance.
type Metrics struct {
	HoursSpeech         int
	SentencesTranslated int
	TokensProduced      int
}

// DeriveMetrics computes the activity metrics of one accepted contribution.
// Transcriptions credit speech hours from the sample's audio duration
// (rounded up, so short clips still count); translations credit one sentence.
// Token volume is counted from the submitted text for both kinds.
func DeriveMetrics(c *domain.Contribution, sampleDurationSeconds int) Metrics {
	m := Metrics{TokensProduced: len(strings.Fields(c.Text))}
	switch c.TaskKind {
	case domain.TaskTranscription:
		if sampleDurationSeconds > 0 {
			m.HoursSpeech = (sampleDurationSeconds + 3599) / 3600
		}
	case domain.TaskTranslation:
		m.SentencesTranslated = 1
	}
	return m
}

// ReputationScore derives the 0..cap reputation value from a contributor's
// acceptance rate and total contribution count:
//
//	min(capValue, int(rate * (1 + count/10) * 20))
//
// The volume factor rewards sustained contribution; the truncation and cap
// keep the score a stable integer in a fixed range. Pure.
func ReputationScore(acceptanceRate float64, contributionCount, capValue int) int {
	volumeFactor := 1 + float64(contributionCount)/10
	score := int(acceptanceRate * volumeFactor * 20)
	if score > capValue {
		return capValue
	}
	if score < 0 {
		return 0
	}
	return score
}

// ChallengePoints derives a participation's point total from its aggregate
// metrics. Base points weight hours, sentences, and tokens; an acceptance-rate
// multiplier rewards high-quality contributors; a challenge-type additive
// bonus emphasizes the metric the challenge is about. The result is truncated
// to an integer. Pure.
func ChallengePoints(sc config.ScoringConfig, typ domain.ChallengeType, hours, sentences, tokens int, acceptanceRate float64) int {
	base := float64(hours)*sc.HourPoints +
		float64(sentences)*sc.SentencePoints +
		float64(tokens)*sc.TokenPoints

	switch {
	case acceptanceRate > sc.HighRateFloor:
		base *= sc.HighRateBonus
	case acceptanceRate > sc.MidRateFloor:
		base *= sc.MidRateBonus
	}

	switch typ {
	case domain.ChallengeTranscription:
		base += float64(hours) * sc.TranscriptionHourBonus
	case domain.ChallengeTranslation:
		base += float64(sentences) * sc.TranslationSentenceBonus
	case domain.ChallengeCorrection:
		base += acceptanceRate * sc.CorrectionRateBonus
	}

	return int(base)
}

// ScoringService owns all contributor aggregates: user totals, per-language
// totals, reputation, and challenge participation points.
type ScoringService struct {
	DB      *gorm.DB
	Scoring config.ScoringConfig
}

// NewScoringService constructs a ScoringService.
func NewScoringService(db *gorm.DB, sc config.ScoringConfig) *ScoringService {
	return &ScoringService{DB: db, Scoring: sc}
}

// CreditAcceptance applies one resolved contribution to the contributor's
// aggregates: user counters, reputation, the per-language aggregate, and
// every active challenge participation the contributor holds. Accepted
// resolutions carry the full metric snapshot; rejections only move the
// contribution count (and thus the acceptance rate).
//
// The whole credit runs against the given handle, which the voting engine
// passes as its own transaction so a vote and its scoring effects commit
// atomically. Recomputing from current totals is idempotent, so a deferred
// or repeated credit converges to the same standings.
func (s *ScoringService) CreditAcceptance(ctx context.Context, tx *gorm.DB, c *domain.Contribution, accepted bool, m Metrics) error {
	if !accepted {
		m = Metrics{}
	}
	if _, err := repo.EnsureUser(ctx, tx, c.ContributorID); err != nil {
		return err
	}
	if err := repo.IncrementContributionStats(ctx, tx, c.ContributorID, accepted,
		m.HoursSpeech, m.SentencesTranslated, m.TokensProduced, 0); err != nil {
		return err
	}

	// Reputation derives from the post-update counters.
	u, err := repo.GetUser(ctx, tx, c.ContributorID)
	if err != nil {
		return err
	}
	score := ReputationScore(u.AcceptanceRate(), u.ContributionCount, s.Scoring.ReputationCap)
	if err := repo.UpdateReputation(ctx, tx, c.ContributorID, score); err != nil {
		return err
	}

	if accepted {
		if m.HoursSpeech > 0 {
			if _, err := repo.AddUserLanguageHours(ctx, tx, c.ContributorID, c.LanguageID, m.HoursSpeech); err != nil {
				return err
			}
		}
		if m.SentencesTranslated > 0 {
			if _, err := repo.AddUserLanguageSentences(ctx, tx, c.ContributorID, c.LanguageID, m.SentencesTranslated); err != nil {
				return err
			}
		}
	}

	return s.creditChallenges(ctx, tx, u, m, accepted)
}

// creditChallenges folds the metric snapshot into every challenge the
// contributor is actively participating in and recomputes each participation's
// point total from its post-update aggregates.
func (s *ScoringService) creditChallenges(ctx context.Context, tx *gorm.DB, u *domain.User, m Metrics, accepted bool) error {
	parts, err := repo.ListActiveParticipations(ctx, tx, u.ID, time.Now().UTC())
	if err != nil {
		return err
	}
	pointsDelta := 0
	for i := range parts {
		p := &parts[i]
		ch, err := repo.GetChallenge(ctx, tx, p.ChallengeID)
		if err != nil {
			return err
		}

		hours := p.TotalHoursSpeech + m.HoursSpeech
		sentences := p.TotalSentencesTranslated + m.SentencesTranslated
		tokens := p.TotalTokensProduced + m.TokensProduced
		rate := u.AcceptanceRate()

		points := ChallengePoints(s.Scoring, ch.Type, hours, sentences, tokens, rate)
		if err := repo.UpdateParticipationStats(ctx, tx, p.ID,
			m.HoursSpeech, m.SentencesTranslated, m.TokensProduced, rate, points); err != nil {
			return err
		}
		pointsDelta += points - p.TotalPoints
		if accepted {
			if err := repo.IncrementChallengeCounters(ctx, tx, ch.ID, 0, 1); err != nil {
				return err
			}
		}
	}

	// Lifetime points mirror the sum of challenge point totals; the user row
	// absorbs the delta so the global leaderboard tie-break stays consistent.
	if pointsDelta != 0 {
		return repo.AddUserPoints(ctx, tx, u.ID, pointsDelta)
	}
	return nil
}
