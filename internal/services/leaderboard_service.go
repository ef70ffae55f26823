// Package services – LeaderboardService
//
// This file implements the leaderboard aggregator. It produces ranked views
// over the scoring engine's persisted outputs and recomputes nothing: the
// global board orders users by their stored reputation and points, the
// per-challenge board reads the participation point totals verbatim. Both
// orderings are strict total orders so pagination over unchanged data is
// consistent.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
)

// LeaderboardService serves ranked contributor views.
type LeaderboardService struct {
	DB *gorm.DB
}

// NewLeaderboardService constructs a LeaderboardService.
func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db}
}

// TopContributors returns up to limit users ranked by reputation score,
// ties broken by total points then earliest account creation. A non-zero
// window restricts the board to users with ledger activity inside it.
func (s *LeaderboardService) TopContributors(ctx context.Context, limit int, window time.Duration) ([]domain.User, error) {
	if limit <= 0 {
		limit = 10
	}
	var since *time.Time
	if window > 0 {
		t := time.Now().UTC().Add(-window)
		since = &t
	}
	return repo.ListTopContributors(ctx, s.DB, limit, since)
}

// ChallengeLeaderboard returns up to limit participations of a challenge
// ranked by their persisted point totals.
func (s *LeaderboardService) ChallengeLeaderboard(ctx context.Context, challengeID string, limit int) ([]domain.ChallengeParticipation, error) {
	if limit <= 0 {
		limit = 10
	}
	if _, err := repo.GetChallenge(ctx, s.DB, challengeID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return repo.ListParticipationsByPoints(ctx, s.DB, challengeID, 0, limit)
}
