// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model
// and the global leaderboard query.
//
// Functions:
//
//   - EnsureUser(ctx, db, id) -> *domain.User, error
//     Fetches a user row, creating a minimal one on first activity. The
//     external identity provider owns credentials; this table only mirrors
//     the opaque id plus aggregate statistics.
//
//   - GetUser(ctx, db, id) -> *domain.User, error
//     Fetches a single user, or ErrNotFound.
//
//   - IncrementContributionStats(...)
//     Atomically bumps the aggregate counters after an accepted/rejected
//     resolution; uses SQL-side increments so concurrent credits never lose
//     updates.
//
//   - UpdateReputation(ctx, db, id, score)
//     Persists a freshly derived reputation score.
//
//   - ListTopContributors(ctx, db, limit, since) -> []domain.User
//     Global leaderboard ordering: reputation desc, points desc, oldest
//     account first. A non-nil since restricts to users with ledger activity
//     in the window.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

// EnsureUser returns the user row for id, creating it when absent. Creation
// is race-safe: a lost unique-constraint race falls back to reading the row
// the winner inserted.
func EnsureUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	u, err := GetUser(ctx, db, id)
	if err == nil {
		return u, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	nu := &domain.User{
		ID:        id,
		Username:  id,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(nu).Error; err != nil {
		if isUniqueViolation(err) {
			return GetUser(ctx, db, id)
		}
		return nil, err
	}
	return nu, nil
}

// GetUser fetches a single user by ID, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// IncrementContributionStats bumps a user's aggregate counters after a
// contribution resolves. All increments happen SQL-side in one UPDATE so
// concurrent resolutions cannot lose updates.
func IncrementContributionStats(ctx context.Context, db *gorm.DB, id string, accepted bool, hours, sentences, tokens, points int) error {
	updates := map[string]interface{}{
		"contribution_count":         gorm.Expr("contribution_count + 1"),
		"total_hours_speech":         gorm.Expr("total_hours_speech + ?", hours),
		"total_sentences_translated": gorm.Expr("total_sentences_translated + ?", sentences),
		"total_tokens_produced":      gorm.Expr("total_tokens_produced + ?", tokens),
		"total_points":               gorm.Expr("total_points + ?", points),
		"updated_at":                 time.Now().UTC(),
	}
	if accepted {
		updates["accepted_contributions"] = gorm.Expr("accepted_contributions + 1")
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddUserPoints adds a (possibly negative) delta to the user's lifetime point
// total, SQL-side.
func AddUserPoints(ctx context.Context, db *gorm.DB, id string, delta int) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		UpdateColumn("total_points", gorm.Expr("total_points + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateReputation persists a recomputed reputation score.
func UpdateReputation(ctx context.Context, db *gorm.DB, id string, score int) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("reputation_score", score)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTopContributors returns up to limit users ordered by reputation score
// descending, ties broken by total points descending, then by earliest
// account creation. The ordering is a total order, so repeated calls over
// unchanged data paginate consistently.
//
// When since is non-nil, only users with at least one contribution created
// at or after since are included (activity timestamps come from the ledger).
func ListTopContributors(ctx context.Context, db *gorm.DB, limit int, since *time.Time) ([]domain.User, error) {
	q := db.WithContext(ctx).Model(&domain.User{})
	if since != nil {
		q = q.Where("id IN (?)",
			db.Model(&domain.Contribution{}).
				Select("contributor_id").
				Where("created_at >= ?", *since))
	}
	var out []domain.User
	err := q.
		Order("reputation_score DESC").
		Order("total_points DESC").
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
