// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// CirculationRecord model and the scheduler's candidate-selection query.
//
// Error semantics follow the package conventions: ErrNotFound for missing
// rows, ErrDuplicate for unique-constraint races, raw gorm errors otherwise.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

// CreateCirculationRecord inserts the "shown to voter" fact for a pair.
// Returns ErrDuplicate when the pair already has a record, which callers
// treat as "this voter has already seen this contribution".
func CreateCirculationRecord(ctx context.Context, db *gorm.DB, contributionID, voterID string) (*domain.CirculationRecord, error) {
	rec := &domain.CirculationRecord{
		ID:             uuid.NewString(),
		ContributionID: contributionID,
		VoterID:        voterID,
		ShownAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// GetPendingRecord fetches the not-yet-voted, not-skipped record linking a
// voter to a contribution, or ErrNotFound. The voting engine uses this to
// verify that a vote corresponds to a real exposure.
func GetPendingRecord(ctx context.Context, db *gorm.DB, contributionID, voterID string) (*domain.CirculationRecord, error) {
	var rec domain.CirculationRecord
	err := db.WithContext(ctx).
		Where("contribution_id = ? AND voter_id = ? AND voted = ? AND skipped = ?",
			contributionID, voterID, false, false).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkVoted closes a pending record as voted. The pending guard makes the
// update a no-op (ErrNotFound) when a concurrent request already closed it.
func MarkVoted(ctx context.Context, db *gorm.DB, id string) error {
	return closePending(ctx, db, id, "voted")
}

// MarkSkipped closes a pending record as permanently skipped for this voter.
func MarkSkipped(ctx context.Context, db *gorm.DB, id string) error {
	return closePending(ctx, db, id, "skipped")
}

func closePending(ctx context.Context, db *gorm.DB, id, col string) error {
	res := db.WithContext(ctx).
		Model(&domain.CirculationRecord{}).
		Where("id = ? AND voted = ? AND skipped = ?", id, false, false).
		Update(col, true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountExposures returns how many voters a contribution has been shown to.
func CountExposures(ctx context.Context, db *gorm.DB, contributionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.CirculationRecord{}).
		Where("contribution_id = ?", contributionID).
		Count(&total).Error
	return total, err
}

// SelectNextContribution returns the unresolved contribution the given voter
// should evaluate next, or ErrNotFound when no eligible candidate exists.
//
// Eligibility: requested kind and language, promotion axis still unresolved,
// not flagged, not authored by the voter, and never circulated to this voter
// before. Candidates are ordered least-shown-first (ascending count of
// circulation records) so exposure stays balanced, tie-broken by
// oldest-submission-first to bound the time a contribution waits for
// resolution.
//
// The caller is expected to run this inside the same transaction that
// creates the CirculationRecord, so selection and exposure are atomic.
func SelectNextContribution(ctx context.Context, db *gorm.DB, voterID string, kind domain.TaskKind, languageID string) (*domain.Contribution, error) {
	var c domain.Contribution
	err := db.WithContext(ctx).
		Where("task_kind = ? AND language_id = ?", kind, languageID).
		Where("state = ? AND flagged = ?", domain.StateUnresolved, false).
		Where("contributor_id <> ?", voterID).
		Where("id NOT IN (?)",
			db.Model(&domain.CirculationRecord{}).
				Select("contribution_id").
				Where("voter_id = ?", voterID)).
		Order("(SELECT COUNT(*) FROM circulation_records cr WHERE cr.contribution_id = contributions.id) ASC").
		Order("created_at ASC").
		Limit(1).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
