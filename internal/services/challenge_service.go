// Package services – ChallengeService
//
// This file implements challenge lifecycle management: creating the
// time-boxed competition periods, idempotent registration, and the
// end-of-challenge freeze that makes final standings immutable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linguacrowd/go-corpus-backend/internal/config"
	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
)

// ChallengeService manages challenges and participations.
type ChallengeService struct {
	DB      *gorm.DB
	Scoring config.ScoringConfig

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewChallengeService constructs a ChallengeService.
func NewChallengeService(db *gorm.DB, sc config.ScoringConfig) *ChallengeService {
	return &ChallengeService{DB: db, Scoring: sc, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates and persists a new challenge.
func (s *ChallengeService) Create(ctx context.Context, name, description string, typ domain.ChallengeType, start, end time.Time, target int) (*domain.Challenge, error) {
	name = strings.TrimSpace(name)
	if name == "" || !typ.Valid() || !end.After(start) {
		return nil, ErrInvalidChallenge
	}
	c := &domain.Challenge{
		Name:                    name,
		Description:             strings.TrimSpace(description),
		Type:                    typ,
		StartDate:               start,
		EndDate:                 end,
		IsActive:                true,
		TargetContributionCount: target,
	}
	if err := repo.CreateChallenge(ctx, s.DB, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a challenge by ID.
func (s *ChallengeService) Get(ctx context.Context, id string) (*domain.Challenge, error) {
	c, err := repo.GetChallenge(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListPage returns a page of challenges, optionally restricted to active ones.
func (s *ChallengeService) ListPage(ctx context.Context, activeOnly bool, page, pageSize int) ([]domain.Challenge, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return repo.ListChallenges(ctx, s.DB, activeOnly, (page-1)*pageSize, pageSize)
}

// Register enrolls a user in a challenge. Registration is idempotent:
// registering twice returns the existing participation unchanged. The
// challenge must be active and inside its time window.
func (s *ChallengeService) Register(ctx context.Context, challengeID, userID string) (*domain.ChallengeParticipation, error) {
	tr := otel.Tracer("services/ChallengeService")
	ctx, span := tr.Start(ctx, "Register",
		trace.WithAttributes(
			attribute.String("challenge.id", challengeID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	ch, err := s.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !ch.IsActive || now.Before(ch.StartDate) || now.After(ch.EndDate) {
		return nil, ErrChallengeClosed
	}

	if _, err := repo.EnsureUser(ctx, s.DB, userID); err != nil {
		return nil, err
	}

	var out *domain.ChallengeParticipation
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.CreateParticipation(ctx, tx, challengeID, userID)
		if errors.Is(err, repo.ErrDuplicate) {
			out, err = repo.GetParticipation(ctx, tx, challengeID, userID)
			return err
		}
		if err != nil {
			return err
		}
		out = p
		return repo.IncrementChallengeCounters(ctx, tx, challengeID, 1, 0)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Participation returns a user's participation row in a challenge.
func (s *ChallengeService) Participation(ctx context.Context, challengeID, userID string) (*domain.ChallengeParticipation, error) {
	p, err := repo.GetParticipation(ctx, s.DB, challengeID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return p, nil
}

// StatsUpdate carries the metric deltas applied to one participation by
// UpdateStats. AcceptanceRate, when non-nil, overwrites the stored rate;
// the three counters are additive.
type StatsUpdate struct {
	HoursSpeech         int
	SentencesTranslated int
	TokensProduced      int
	AcceptanceRate      *float64
}

// UpdateStats applies an administrative correction to one participation's
// metric aggregates. The deltas land first; with recomputePoints set the
// point total is rederived from the post-update row, otherwise the stored
// total is kept. The user's lifetime points absorb any resulting delta.
// Finalized participations refuse the update (ErrChallengeClosed).
func (s *ChallengeService) UpdateStats(ctx context.Context, challengeID, userID string, upd StatsUpdate, recomputePoints bool) (*domain.ChallengeParticipation, error) {
	tr := otel.Tracer("services/ChallengeService")
	ctx, span := tr.Start(ctx, "UpdateStats",
		trace.WithAttributes(
			attribute.String("challenge.id", challengeID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	ch, err := s.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	var out *domain.ChallengeParticipation
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetParticipation(ctx, tx, challengeID, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrChallengeNotFound
			}
			return err
		}
		if p.Finalized {
			return ErrChallengeClosed
		}

		rate := p.AcceptanceRate
		if upd.AcceptanceRate != nil {
			rate = *upd.AcceptanceRate
		}

		points := p.TotalPoints
		if recomputePoints {
			points = ChallengePoints(s.Scoring, ch.Type,
				p.TotalHoursSpeech+upd.HoursSpeech,
				p.TotalSentencesTranslated+upd.SentencesTranslated,
				p.TotalTokensProduced+upd.TokensProduced,
				rate)
		}

		if err := repo.UpdateParticipationStats(ctx, tx, p.ID,
			upd.HoursSpeech, upd.SentencesTranslated, upd.TokensProduced, rate, points); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrChallengeClosed
			}
			return err
		}
		if delta := points - p.TotalPoints; delta != 0 {
			if err := repo.AddUserPoints(ctx, tx, userID, delta); err != nil {
				return err
			}
		}

		out, err = repo.GetParticipation(ctx, tx, challengeID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// End deactivates a challenge and freezes all of its participations so the
// final standings can no longer change. Ending an already-ended challenge
// returns ErrChallengeClosed.
func (s *ChallengeService) End(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	tr := otel.Tracer("services/ChallengeService")
	ctx, span := tr.Start(ctx, "End",
		trace.WithAttributes(attribute.String("challenge.id", challengeID)),
	)
	defer span.End()

	if _, err := s.Get(ctx, challengeID); err != nil {
		return nil, err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.DeactivateChallenge(ctx, tx, challengeID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrChallengeClosed
			}
			return err
		}
		_, err := repo.FinalizeParticipations(ctx, tx, challengeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, challengeID)
}
