// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Vote and
// FlagReport models.
//
// The repository follows a "thin" approach: it performs persistence and
// simple query composition, leaving business rules (circulation checks,
// thresholds) to the services package.
//
// Error semantics:
//   - Duplicate votes and duplicate flag reports rely on the database unique
//     constraints and are returned as ErrDuplicate. The service layer
//     translates that into the domain error (e.g. ErrDuplicateVote).
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

// CreateVote inserts a vote row for the given contribution and voter.
//
// The combination (contribution_id, voter_id) must be unique, enforced by the
// database schema; under concurrent duplicate requests exactly one insert
// wins and the rest receive ErrDuplicate. Vote rows are immutable.
func CreateVote(ctx context.Context, db *gorm.DB, contributionID, voterID string, kind domain.VoteKind) (*domain.Vote, error) {
	v := &domain.Vote{
		ID:             uuid.NewString(),
		ContributionID: contributionID,
		VoterID:        voterID,
		Kind:           kind,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return v, nil
}

// HasVote reports whether the voter already voted on the contribution.
func HasVote(ctx context.Context, db *gorm.DB, contributionID, voterID string) (bool, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("contribution_id = ? AND voter_id = ?", contributionID, voterID).
		Count(&total).Error
	return total > 0, err
}

// CreateFlagReport inserts a flag report with its reason. One report per
// (contribution, reporter) pair; ErrDuplicate on repeats.
func CreateFlagReport(ctx context.Context, db *gorm.DB, contributionID, reporterID, reason string) (*domain.FlagReport, error) {
	r := &domain.FlagReport{
		ID:             uuid.NewString(),
		ContributionID: contributionID,
		ReporterID:     reporterID,
		Reason:         reason,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// CountFlagReports returns the number of flag reports on a contribution.
func CountFlagReports(ctx context.Context, db *gorm.DB, contributionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.FlagReport{}).
		Where("contribution_id = ?", contributionID).
		Count(&total).Error
	return total, err
}
