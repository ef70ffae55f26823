// Package services – VotingService
//
// This file implements the voting engine. A vote is accepted only from a
// voter the scheduler actually showed the contribution to (a pending
// circulation record must exist), and only once per (voter, contribution)
// pair. All effects of a vote are applied as one atomic unit: the vote row,
// the circulation record close, the counter increment, the threshold
// evaluation, any resulting state transition, and the scoring credit that a
// transition triggers. Threshold evaluation reads the counters inside the
// same transaction that moved them, so two concurrent votes cannot both
// observe a sub-threshold count and skip the promotion.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
)

// VotingService records votes, skips, and flag reports, and drives the
// resulting ledger transitions.
type VotingService struct {
	DB      *gorm.DB
	Ledger  *LedgerService
	Scoring *ScoringService
}

// NewVotingService constructs a VotingService.
func NewVotingService(db *gorm.DB, ledger *LedgerService, scoring *ScoringService) *VotingService {
	return &VotingService{DB: db, Ledger: ledger, Scoring: scoring}
}

// CastVote records one vote and applies every consequence atomically.
// Returns the contribution as it stands after the vote, including any state
// transition the vote triggered.
func (s *VotingService) CastVote(ctx context.Context, voterID, contributionID string, kind domain.VoteKind) (*domain.Contribution, error) {
	tr := otel.Tracer("services/VotingService")
	ctx, span := tr.Start(ctx, "CastVote",
		trace.WithAttributes(
			attribute.String("user.id", voterID),
			attribute.String("contribution.id", contributionID),
			attribute.String("vote.kind", string(kind)),
		),
	)
	defer span.End()

	if !kind.Valid() {
		return nil, ErrInvalidVote
	}

	var out *domain.Contribution
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := repo.GetPendingRecord(ctx, tx, contributionID, voterID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotCirculated
			}
			return err
		}

		c, err := repo.GetContribution(ctx, tx, contributionID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrContributionNotFound
			}
			return err
		}
		if c.Resolved() {
			return ErrAlreadyResolved
		}

		if _, err := repo.CreateVote(ctx, tx, contributionID, voterID, kind); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateVote
			}
			return err
		}
		if err := repo.MarkVoted(ctx, tx, rec.ID); err != nil {
			return err
		}
		if err := repo.ApplyVoteCounter(ctx, tx, contributionID, kind); err != nil {
			return err
		}

		// Re-read the counters this transaction just moved.
		c, err = repo.GetContribution(ctx, tx, contributionID)
		if err != nil {
			return err
		}

		next := s.Ledger.EvaluateThresholds(c)
		if next != domain.StateUnresolved {
			if err := s.transition(ctx, tx, c, next); err != nil {
				return err
			}
			c.State = next
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// transition applies a promotion-axis resolution and its consequences: the
// canonical text lands on the sample when accepted, and the contributor is
// credited either way so their acceptance rate reflects the outcome.
func (s *VotingService) transition(ctx context.Context, tx *gorm.DB, c *domain.Contribution, next domain.ContributionState) error {
	if err := repo.UpdateState(ctx, tx, c.ID, domain.StateUnresolved, next); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// A concurrent vote already resolved it; nothing left to apply.
			return nil
		}
		return err
	}

	accepted := next == domain.StateActive
	var duration int
	if accepted {
		switch c.TaskKind {
		case domain.TaskTranscription:
			ts, err := repo.GetTranscriptionSample(ctx, tx, c.SampleID)
			if err != nil {
				return err
			}
			duration = ts.DurationSeconds
			if err := repo.SetCanonicalTranscription(ctx, tx, c.SampleID, c.Text); err != nil {
				return err
			}
		case domain.TaskTranslation:
			if err := repo.SetCanonicalTranslation(ctx, tx, c.SampleID, c.Text); err != nil {
				return err
			}
		}
	}

	return s.Scoring.CreditAcceptance(ctx, tx, c, accepted, DeriveMetrics(c, duration))
}

// Skip closes the voter's pending circulation record without voting. The
// pair is permanently excluded from future selection for this voter; the
// contribution's counters are untouched. The lookup and the close run in
// one transaction so two racing skips cannot both observe the record as
// pending.
func (s *VotingService) Skip(ctx context.Context, voterID, contributionID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := repo.GetPendingRecord(ctx, tx, contributionID, voterID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotCirculated
			}
			return err
		}
		return repo.MarkSkipped(ctx, tx, rec.ID)
	})
}

// Flag records a flag report with its reason and flips the contribution's
// flagged axis once the report count strictly exceeds the threshold. The
// flag axis is independent of the up/down balance and is never cleared
// automatically.
func (s *VotingService) Flag(ctx context.Context, reporterID, contributionID, reason string) (*domain.Contribution, error) {
	tr := otel.Tracer("services/VotingService")
	ctx, span := tr.Start(ctx, "Flag",
		trace.WithAttributes(
			attribute.String("user.id", reporterID),
			attribute.String("contribution.id", contributionID),
		),
	)
	defer span.End()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	var out *domain.Contribution
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetContribution(ctx, tx, contributionID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrContributionNotFound
			}
			return err
		}
		if _, err := repo.CreateFlagReport(ctx, tx, contributionID, reporterID, reason); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateFlag
			}
			return err
		}
		count, err := repo.IncrementFlags(ctx, tx, contributionID)
		if err != nil {
			return err
		}
		if s.Ledger.ShouldFlag(count) {
			if err := repo.SetFlagged(ctx, tx, contributionID, true); err != nil {
				return err
			}
		}
		c, err := repo.GetContribution(ctx, tx, contributionID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
