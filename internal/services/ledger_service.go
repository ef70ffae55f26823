// Package services – LedgerService
//
// This file implements the contribution ledger, the component that owns the
// canonical record of every submitted sample. Submission validates the tagged
// payload, normalizes its text, and either inserts a fresh unresolved row or
// merges into the existing identical one by bumping its frequency counter.
// The merge decision races on the database unique constraint, not on
// application state, so concurrent identical submissions from different users
// still converge on a single row.
//
// Observability: Submit is OpenTelemetry-instrumented; spans carry the
// contributor and task identifiers.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linguacrowd/go-corpus-backend/internal/config"
	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/normalize"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
	"github.com/linguacrowd/go-corpus-backend/internal/similarity"
)

// LedgerService owns Contribution rows: creation with duplicate-merge, reads,
// and the threshold policy other engines consult.
type LedgerService struct {
	DB         *gorm.DB
	Thresholds config.ThresholdConfig
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(db *gorm.DB, th config.ThresholdConfig) *LedgerService {
	return &LedgerService{DB: db, Thresholds: th}
}

// Submit records a contribution. The payload is validated structurally, the
// referenced language and sample must exist, and the text is canonicalized
// for duplicate detection. When an identical payload already targets the same
// sample, the existing row's frequency is incremented and returned; no second
// row is created, so votes never dilute across near-identical submissions.
//
// The insert-or-merge decision is resolved by the unique payload index: a
// lost insert race falls back to the merge path.
func (s *LedgerService) Submit(ctx context.Context, contributorID string, p domain.Payload) (*domain.Contribution, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("user.id", contributorID),
			attribute.String("task.kind", string(p.Kind)),
			attribute.String("sample.id", p.SampleID),
		),
	)
	defer span.End()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	var sample struct {
		languageID string
		duration   int
	}
	switch p.Kind {
	case domain.TaskTranscription:
		ts, err := repo.GetTranscriptionSample(ctx, s.DB, p.SampleID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrSampleNotFound
			}
			return nil, err
		}
		sample.languageID = ts.LanguageID
		sample.duration = ts.DurationSeconds
	case domain.TaskTranslation:
		tl, err := repo.GetTranslationSample(ctx, s.DB, p.SampleID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrSampleNotFound
			}
			return nil, err
		}
		sample.languageID = tl.LanguageID
	}

	normalized := normalize.Text(p.Text)
	if normalized == "" {
		return nil, domain.ErrInvalidPayload
	}

	// Ensure the contributor row exists before the ledger references it.
	if _, err := repo.EnsureUser(ctx, s.DB, contributorID); err != nil {
		return nil, err
	}

	var out *domain.Contribution
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repo.FindByPayload(ctx, tx, p.Kind, p.SampleID, normalized)
		if err == nil {
			out, err = repo.IncrementFrequency(ctx, tx, existing.ID)
			return err
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		created, err := repo.CreateContribution(ctx, tx, contributorID, p, sample.languageID, normalized)
		if errors.Is(err, repo.ErrDuplicate) {
			// A concurrent identical submission won the insert; merge into it.
			winner, ferr := repo.FindByPayload(ctx, tx, p.Kind, p.SampleID, normalized)
			if ferr != nil {
				return ferr
			}
			out, err = repo.IncrementFrequency(ctx, tx, winner.ID)
			return err
		}
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a contribution by ID.
func (s *LedgerService) Get(ctx context.Context, id string) (*domain.Contribution, error) {
	c, err := repo.GetContribution(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrContributionNotFound
		}
		return nil, err
	}
	return c, nil
}

// Similar returns up to k contributions against the same sample whose text is
// close to the given contribution's, ranked by token overlap. Exact duplicates
// never appear here (they merge at submission time); this view catches the
// near misses reviewers may want to compare side by side.
func (s *LedgerService) Similar(ctx context.Context, contributionID string, k int) ([]similarity.Match, error) {
	target, err := s.Get(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	siblings, err := repo.ListContributionsBySample(ctx, s.DB, target.TaskKind, target.SampleID)
	if err != nil {
		return nil, err
	}

	cands := make([]similarity.Candidate, 0, len(siblings))
	for _, c := range siblings {
		if c.ID == target.ID {
			continue
		}
		cands = append(cands, similarity.Candidate{ID: c.ID, Text: c.Text})
	}
	return similarity.New(cands).TopK(target.Text, k), nil
}

// EvaluateThresholds inspects a contribution's counters against the tunable
// policy and returns the promotion-axis state the counters call for.
// StateUnresolved means neither side has met the bar yet.
//
// Promotion requires the winning side to clear both the minimum vote count
// and the net margin; rejection mirrors the same rule on the downvote side.
func (s *LedgerService) EvaluateThresholds(c *domain.Contribution) domain.ContributionState {
	th := s.Thresholds
	if c.Upvotes >= th.PromoteMin && c.Upvotes-c.Downvotes >= th.PromoteMargin {
		return domain.StateActive
	}
	if c.Downvotes >= th.PromoteMin && c.Downvotes-c.Upvotes >= th.PromoteMargin {
		return domain.StateRejected
	}
	return domain.StateUnresolved
}

// ShouldFlag reports whether the flag-report count strictly exceeds the flag
// threshold. The flag axis is independent of the up/down balance.
func (s *LedgerService) ShouldFlag(flagCount int) bool {
	return flagCount > s.Thresholds.FlagMin
}
