// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Contribution model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Threshold evaluation and state-machine
// rules live in the services layer.
//
// Error semantics:
//   - When a contribution is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - When an insert loses a unique-constraint race (duplicate payload),
//     ErrDuplicate is returned so the caller can retry the merge path.
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that an insert violated a unique constraint
// (duplicate payload, duplicate vote, duplicate registration, ...).
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey. glebarez/sqlite often returns
// plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// CreateContribution inserts a new unresolved contribution row. The ID is a
// randomly generated UUID and CreatedAt is set to UTC.
//
// Returns ErrDuplicate when an identical (task_kind, sample_id,
// normalized_text) row already exists; the caller should re-read and merge.
func CreateContribution(ctx context.Context, db *gorm.DB, contributorID string, p domain.Payload, languageID, normalizedText string) (*domain.Contribution, error) {
	c := &domain.Contribution{
		ID:             uuid.NewString(),
		ContributorID:  contributorID,
		TaskKind:       p.Kind,
		SampleID:       p.SampleID,
		LanguageID:     languageID,
		Text:           p.Text,
		NormalizedText: normalizedText,
		Frequency:      1,
		State:          domain.StateUnresolved,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// GetContribution fetches a single contribution by ID, or ErrNotFound.
func GetContribution(ctx context.Context, db *gorm.DB, id string) (*domain.Contribution, error) {
	var c domain.Contribution
	err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByPayload returns the contribution carrying the given canonical payload
// against the same sample, or ErrNotFound. Used by the duplicate-merge path.
func FindByPayload(ctx context.Context, db *gorm.DB, kind domain.TaskKind, sampleID, normalizedText string) (*domain.Contribution, error) {
	var c domain.Contribution
	err := db.WithContext(ctx).
		Where("task_kind = ? AND sample_id = ? AND normalized_text = ?", kind, sampleID, normalizedText).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContributionsBySample returns every contribution targeting the given
// sample for one task kind, oldest first. Backs the near-duplicate view.
func ListContributionsBySample(ctx context.Context, db *gorm.DB, kind domain.TaskKind, sampleID string) ([]domain.Contribution, error) {
	var out []domain.Contribution
	err := db.WithContext(ctx).
		Where("task_kind = ? AND sample_id = ?", kind, sampleID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IncrementFrequency bumps the duplicate counter of a contribution and
// returns the refreshed row. No new row is ever created for a duplicate.
func IncrementFrequency(ctx context.Context, db *gorm.DB, id string) (*domain.Contribution, error) {
	res := db.WithContext(ctx).
		Model(&domain.Contribution{}).
		Where("id = ?", id).
		UpdateColumn("frequency", gorm.Expr("frequency + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetContribution(ctx, db, id)
}

// ApplyVoteCounter increments the up- or downvote counter of a contribution.
// Must run inside the same transaction as the Vote insert so that threshold
// evaluation reads the counter it just moved.
func ApplyVoteCounter(ctx context.Context, db *gorm.DB, id string, kind domain.VoteKind) error {
	col := "upvotes"
	if kind == domain.VoteDown {
		col = "downvotes"
	}
	res := db.WithContext(ctx).
		Model(&domain.Contribution{}).
		Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateState moves a contribution to a new promotion-axis state. The guard
// on the current state keeps terminal states terminal even if two
// transactions race: only one of them observes state = current.
func UpdateState(ctx context.Context, db *gorm.DB, id string, current, next domain.ContributionState) error {
	res := db.WithContext(ctx).
		Model(&domain.Contribution{}).
		Where("id = ? AND state = ?", id, current).
		Update("state", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementFlags bumps the flag-report counter and returns the new count.
func IncrementFlags(ctx context.Context, db *gorm.DB, id string) (int, error) {
	res := db.WithContext(ctx).
		Model(&domain.Contribution{}).
		Where("id = ?", id).
		UpdateColumn("flags", gorm.Expr("flags + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	c, err := GetContribution(ctx, db, id)
	if err != nil {
		return 0, err
	}
	return c.Flags, nil
}

// SetFlagged flips the independent flagged axis. There is no automatic
// transition back; unflagging is a manual, external operation.
func SetFlagged(ctx context.Context, db *gorm.DB, id string, flagged bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Contribution{}).
		Where("id = ?", id).
		Update("flagged", flagged)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountContributionsSince counts contributions created by a user at or after
// the given instant. A nil since counts all of the user's contributions.
// Used by the leaderboard's time-window filter.
func CountContributionsSince(ctx context.Context, db *gorm.DB, contributorID string, since *time.Time) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.Contribution{}).
		Where("contributor_id = ?", contributorID)
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}
