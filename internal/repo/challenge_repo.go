// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Challenge
// and ChallengeParticipation models.
//
// Functions:
//
//   - CreateChallenge / GetChallenge / ListChallenges
//     Basic persistence for the time-boxed competition periods.
//
//   - CreateParticipation(ctx, db, challengeID, userID)
//     Registers a user in a challenge. The unique (challenge_id, user_id)
//     index makes registration idempotent under concurrent requests.
//
//   - GetParticipation / ListParticipationsByPoints
//     Reads per-challenge aggregates; the leaderboard query orders by the
//     persisted TotalPoints with deterministic tie-breaks.
//
//   - UpdateParticipationStats(ctx, db, id, ...)
//     Writes the post-credit metric snapshot and recomputed point total.
//
//   - IncrementChallengeCounters / DeactivateChallenge / FinalizeParticipations
//     Counter maintenance and the end-of-challenge freeze.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

// CreateChallenge inserts a new challenge period.
func CreateChallenge(ctx context.Context, db *gorm.DB, c *domain.Challenge) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(c).Error
}

// GetChallenge fetches a single challenge by ID, or ErrNotFound.
func GetChallenge(ctx context.Context, db *gorm.DB, id string) (*domain.Challenge, error) {
	var c domain.Challenge
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChallenges returns a page of challenges, newest first. When activeOnly
// is true, only challenges still marked active are returned.
func ListChallenges(ctx context.Context, db *gorm.DB, activeOnly bool, offset, limit int) ([]domain.Challenge, error) {
	q := db.WithContext(ctx).Model(&domain.Challenge{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []domain.Challenge
	err := q.
		Order("start_date DESC").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeactivateChallenge marks a challenge inactive. Returns ErrNotFound when
// the challenge does not exist or is already inactive.
func DeactivateChallenge(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Challenge{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementChallengeCounters bumps the participant and/or contribution
// counters on a challenge, SQL-side.
func IncrementChallengeCounters(ctx context.Context, db *gorm.DB, id string, participants, contributions int) error {
	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if participants != 0 {
		updates["participant_count"] = gorm.Expr("participant_count + ?", participants)
	}
	if contributions != 0 {
		updates["contribution_count"] = gorm.Expr("contribution_count + ?", contributions)
	}
	res := db.WithContext(ctx).
		Model(&domain.Challenge{}).
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

// CreateParticipation inserts the (challenge, user) registration row.
// Returns ErrDuplicate when the user is already registered.
func CreateParticipation(ctx context.Context, db *gorm.DB, challengeID, userID string) (*domain.ChallengeParticipation, error) {
	p := &domain.ChallengeParticipation{
		ID:          uuid.NewString(),
		ChallengeID: challengeID,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return p, nil
}

// GetParticipation fetches the (challenge, user) aggregate, or ErrNotFound.
func GetParticipation(ctx context.Context, db *gorm.DB, challengeID, userID string) (*domain.ChallengeParticipation, error) {
	var p domain.ChallengeParticipation
	err := db.WithContext(ctx).
		Where("challenge_id = ? AND user_id = ?", challengeID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActiveParticipations returns the non-finalized participations a user
// holds across challenges, joined against challenges still in their window
// at the given instant. The scoring engine credits each of these.
func ListActiveParticipations(ctx context.Context, db *gorm.DB, userID string, at time.Time) ([]domain.ChallengeParticipation, error) {
	var out []domain.ChallengeParticipation
	err := db.WithContext(ctx).
		Model(&domain.ChallengeParticipation{}).
		Joins("JOIN challenges ON challenges.id = challenge_participations.challenge_id").
		Where("challenge_participations.user_id = ?", userID).
		Where("challenge_participations.finalized = ?", false).
		Where("challenges.is_active = ?", true).
		Where("challenges.start_date <= ? AND challenges.end_date >= ?", at, at).
		Find(&out).Error
	return out, err
}

// ListParticipationsByPoints returns the challenge leaderboard page: rows
// ordered by persisted total points descending, ties broken by earliest
// registration, then by id for a strict total order.
func ListParticipationsByPoints(ctx context.Context, db *gorm.DB, challengeID string, offset, limit int) ([]domain.ChallengeParticipation, error) {
	var out []domain.ChallengeParticipation
	err := db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("total_points DESC").
		Order("created_at ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateParticipationStats overwrites the per-challenge metric snapshot and
// the recomputed point total in one UPDATE. The write is skipped (ErrNotFound)
// when the participation was already finalized.
func UpdateParticipationStats(ctx context.Context, db *gorm.DB, id string, hours, sentences, tokens int, acceptanceRate float64, totalPoints int) error {
	res := db.WithContext(ctx).
		Model(&domain.ChallengeParticipation{}).
		Where("id = ? AND finalized = ?", id, false).
		Updates(map[string]interface{}{
			"total_hours_speech":         gorm.Expr("total_hours_speech + ?", hours),
			"total_sentences_translated": gorm.Expr("total_sentences_translated + ?", sentences),
			"total_tokens_produced":      gorm.Expr("total_tokens_produced + ?", tokens),
			"acceptance_rate":            acceptanceRate,
			"total_points":               totalPoints,
			"updated_at":                 time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FinalizeParticipations freezes every participation of a challenge so later
// credits can no longer move the standings. Returns the number of rows frozen.
func FinalizeParticipations(ctx context.Context, db *gorm.DB, challengeID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.ChallengeParticipation{}).
		Where("challenge_id = ? AND finalized = ?", challengeID, false).
		Update("finalized", true)
	return res.RowsAffected, res.Error
}
