// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// TranscriptionSample and TranslationSample models.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

// CreateTranscriptionSample inserts a new audio sample awaiting transcription.
func CreateTranscriptionSample(ctx context.Context, db *gorm.DB, languageID, audioURL string, durationSeconds int) (*domain.TranscriptionSample, error) {
	s := &domain.TranscriptionSample{
		ID:              uuid.NewString(),
		LanguageID:      languageID,
		AudioURL:        audioURL,
		DurationSeconds: durationSeconds,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetTranscriptionSample fetches an audio sample by ID, or ErrNotFound.
func GetTranscriptionSample(ctx context.Context, db *gorm.DB, id string) (*domain.TranscriptionSample, error) {
	var s domain.TranscriptionSample
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SetCanonicalTranscription records the accepted transcription text on the
// sample and marks it active. Called when a contribution is promoted.
func SetCanonicalTranscription(ctx context.Context, db *gorm.DB, id, text string) error {
	res := db.WithContext(ctx).
		Model(&domain.TranscriptionSample{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"transcription_text": text,
			"active":             true,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTranslationSample inserts a new source text awaiting translation.
func CreateTranslationSample(ctx context.Context, db *gorm.DB, languageID, originalText string) (*domain.TranslationSample, error) {
	s := &domain.TranslationSample{
		ID:           uuid.NewString(),
		LanguageID:   languageID,
		OriginalText: originalText,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetTranslationSample fetches a source text by ID, or ErrNotFound.
func GetTranslationSample(ctx context.Context, db *gorm.DB, id string) (*domain.TranslationSample, error) {
	var s domain.TranslationSample
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SetCanonicalTranslation records the accepted translation text on the sample
// and marks it validated. Called when a contribution is promoted.
func SetCanonicalTranslation(ctx context.Context, db *gorm.DB, id, text string) error {
	res := db.WithContext(ctx).
		Model(&domain.TranslationSample{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"translated_text": text,
			"validated":       true,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SampleExists reports whether the referenced sample row exists for the given
// task kind. The ledger validates payload references with this before insert.
func SampleExists(ctx context.Context, db *gorm.DB, kind domain.TaskKind, id string) (bool, error) {
	var total int64
	var err error
	switch kind {
	case domain.TaskTranscription:
		err = db.WithContext(ctx).Model(&domain.TranscriptionSample{}).Where("id = ?", id).Count(&total).Error
	case domain.TaskTranslation:
		err = db.WithContext(ctx).Model(&domain.TranslationSample{}).Where("id = ?", id).Count(&total).Error
	}
	return total > 0, err
}
