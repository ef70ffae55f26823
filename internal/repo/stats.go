// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

// UsersStats returns aggregate metadata over the users table: the total number
// of rows and the maximum UpdatedAt timestamp among those rows.
//
// The global leaderboard handler derives its ETag from these values so an
// unchanged leaderboard can be answered with 304 Not Modified. When there are
// no users, the returned count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        total users
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func UsersStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.User{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// ParticipationsStats returns aggregate metadata for a challenge's
// participations: the total number of rows and the maximum UpdatedAt timestamp
// among those rows.
//
// The per-challenge leaderboard handler derives its ETag from these values.
// When the challenge has no participants, the returned count is 0 and
// maxUpdatedAt is nil.
//
// Return values:
//   - count:        total participations for challengeID
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func ParticipationsStats(ctx context.Context, db *gorm.DB, challengeID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ChallengeParticipation{}).Where("challenge_id = ?", challengeID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
