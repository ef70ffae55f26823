// Package services – CirculationService
//
// This file implements the circulation scheduler: for a requesting voter it
// selects an unresolved contribution they have not evaluated before and
// records the exposure in the same transaction, so selection and the
// no-repeat guarantee are atomic. Two different voters may legitimately be
// handed the same contribution (concurrent evaluation is intended); a single
// voter never sees the same unresolved contribution twice.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
)

// CirculationService hands out contributions to voters and owns the
// circulation records that make the no-repeat guarantee durable.
type CirculationService struct {
	DB *gorm.DB
}

// NewCirculationService constructs a CirculationService.
func NewCirculationService(db *gorm.DB) *CirculationService {
	return &CirculationService{DB: db}
}

// Next selects the contribution the voter should evaluate, or nil when the
// pool is exhausted for them (not an error; the caller backs off).
//
// Selection excludes the voter's own submissions, anything flagged or already
// resolved, and anything this voter has seen before. Candidates are ordered
// least-shown-first to balance exposure, tie-broken oldest-first. The
// exposure record is created in the same transaction as the read; losing a
// duplicate-request race on the record's unique index retries the selection
// so both requests still get a valid, distinct hand-out.
func (s *CirculationService) Next(ctx context.Context, voterID string, kind domain.TaskKind, languageID string) (*domain.Contribution, error) {
	tr := otel.Tracer("services/CirculationService")
	ctx, span := tr.Start(ctx, "Next",
		trace.WithAttributes(
			attribute.String("user.id", voterID),
			attribute.String("task.kind", string(kind)),
			attribute.String("language.id", languageID),
		),
	)
	defer span.End()

	if !kind.Valid() {
		return nil, domain.ErrInvalidPayload
	}

	for attempt := 0; attempt < 3; attempt++ {
		var picked *domain.Contribution
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			c, err := repo.SelectNextContribution(ctx, tx, voterID, kind, languageID)
			if err != nil {
				return err
			}
			if _, err := repo.CreateCirculationRecord(ctx, tx, c.ID, voterID); err != nil {
				return err
			}
			picked = c
			return nil
		})
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		if errors.Is(err, repo.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return picked, nil
	}
	return nil, nil
}

// Pending returns the open circulation record linking the voter to the
// contribution, or ErrNotCirculated.
func (s *CirculationService) Pending(ctx context.Context, contributionID, voterID string) (*domain.CirculationRecord, error) {
	rec, err := repo.GetPendingRecord(ctx, s.DB, contributionID, voterID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotCirculated
		}
		return nil, err
	}
	return rec, nil
}
