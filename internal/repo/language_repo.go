// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Language
// and UserLanguage models.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

// CreateLanguage inserts a new language. Codes are unique; ErrDuplicate is
// returned when the code is already registered.
func CreateLanguage(ctx context.Context, db *gorm.DB, code, name string) (*domain.Language, error) {
	l := &domain.Language{
		ID:        uuid.NewString(),
		Code:      code,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return l, nil
}

// GetLanguageByID fetches a language by primary key, or ErrNotFound.
func GetLanguageByID(ctx context.Context, db *gorm.DB, id string) (*domain.Language, error) {
	var l domain.Language
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLanguageByCode fetches a language by its ISO code, or ErrNotFound.
func GetLanguageByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Language, error) {
	var l domain.Language
	if err := db.WithContext(ctx).Where("code = ?", code).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLanguageByName fetches a language by display name, or ErrNotFound.
func GetLanguageByName(ctx context.Context, db *gorm.DB, name string) (*domain.Language, error) {
	var l domain.Language
	if err := db.WithContext(ctx).Where("name = ?", name).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLanguages returns a page of languages ordered by code.
func ListLanguages(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Language, error) {
	var out []domain.Language
	err := db.WithContext(ctx).
		Order("code ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// AddUserLanguageHours adds accepted speech hours to the (user, language)
// aggregate, creating the row lazily on first activity.
func AddUserLanguageHours(ctx context.Context, db *gorm.DB, userID, languageID string, hours int) (*domain.UserLanguage, error) {
	return bumpUserLanguage(ctx, db, userID, languageID, "total_hours_speech", hours)
}

// AddUserLanguageSentences adds accepted translated sentences to the
// (user, language) aggregate, creating the row lazily on first activity.
func AddUserLanguageSentences(ctx context.Context, db *gorm.DB, userID, languageID string, sentences int) (*domain.UserLanguage, error) {
	return bumpUserLanguage(ctx, db, userID, languageID, "total_sentences_translated", sentences)
}

// GetUserLanguage fetches the aggregate for a (user, language) pair, or
// ErrNotFound.
func GetUserLanguage(ctx context.Context, db *gorm.DB, userID, languageID string) (*domain.UserLanguage, error) {
	var ul domain.UserLanguage
	err := db.WithContext(ctx).
		Where("user_id = ? AND language_id = ?", userID, languageID).
		First(&ul).Error
	if err != nil {
		return nil, err
	}
	return &ul, nil
}

// ListUserLanguages returns all language aggregates for a user.
func ListUserLanguages(ctx context.Context, db *gorm.DB, userID string) ([]domain.UserLanguage, error) {
	var out []domain.UserLanguage
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// bumpUserLanguage increments one counter column, inserting the aggregate row
// when the pair has no prior activity. The unique index on (user_id,
// language_id) resolves the create race: the loser retries the update path.
func bumpUserLanguage(ctx context.Context, db *gorm.DB, userID, languageID, col string, delta int) (*domain.UserLanguage, error) {
	res := db.WithContext(ctx).
		Model(&domain.UserLanguage{}).
		Where("user_id = ? AND language_id = ?", userID, languageID).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		ul := &domain.UserLanguage{
			ID:         uuid.NewString(),
			UserID:     userID,
			LanguageID: languageID,
			CreatedAt:  time.Now().UTC(),
		}
		switch col {
		case "total_hours_speech":
			ul.TotalHoursSpeech = delta
		case "total_sentences_translated":
			ul.TotalSentencesTranslated = delta
		}
		if err := db.WithContext(ctx).Create(ul).Error; err != nil {
			if isUniqueViolation(err) {
				return bumpUserLanguage(ctx, db, userID, languageID, col, delta)
			}
			return nil, err
		}
		return ul, nil
	}
	return GetUserLanguage(ctx, db, userID, languageID)
}
