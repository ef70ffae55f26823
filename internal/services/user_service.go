// Package services – UserService and LanguageService
//
// Thin read/write surfaces over the user and language aggregates. Profiles
// expose the scoring engine's stored counters plus the derived reputation;
// languages are the reference data contributions point at.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/repo"
)

// UserService serves contributor profiles.
type UserService struct {
	DB *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// Profile returns a user row together with their per-language aggregates.
func (s *UserService) Profile(ctx context.Context, id string) (*domain.User, []domain.UserLanguage, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}
	langs, err := repo.ListUserLanguages(ctx, s.DB, id)
	if err != nil {
		return nil, nil, err
	}
	return u, langs, nil
}

// LanguageService manages the language reference data.
type LanguageService struct {
	DB *gorm.DB
}

// NewLanguageService constructs a LanguageService.
func NewLanguageService(db *gorm.DB) *LanguageService {
	return &LanguageService{DB: db}
}

// Create registers a new language. Codes are unique.
func (s *LanguageService) Create(ctx context.Context, code, name string) (*domain.Language, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, ErrInvalidLanguage
	}
	l, err := repo.CreateLanguage(ctx, s.DB, code, name)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateLanguage
		}
		return nil, err
	}
	return l, nil
}

// Get resolves a language by ID or code.
func (s *LanguageService) Get(ctx context.Context, idOrCode string) (*domain.Language, error) {
	l, err := repo.GetLanguageByID(ctx, s.DB, idOrCode)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	l, err = repo.GetLanguageByCode(ctx, s.DB, strings.ToLower(strings.TrimSpace(idOrCode)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLanguageNotFound
		}
		return nil, err
	}
	return l, nil
}

// ListPage returns a page of languages ordered by code.
func (s *LanguageService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Language, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return repo.ListLanguages(ctx, s.DB, (page-1)*pageSize, pageSize)
}

// SampleService manages the transcription and translation samples that
// contributions target.
type SampleService struct {
	DB *gorm.DB
}

// NewSampleService constructs a SampleService.
func NewSampleService(db *gorm.DB) *SampleService {
	return &SampleService{DB: db}
}

// CreateTranscriptionSample registers an audio sample for transcription work.
func (s *SampleService) CreateTranscriptionSample(ctx context.Context, languageID, audioURL string, durationSeconds int) (*domain.TranscriptionSample, error) {
	if strings.TrimSpace(audioURL) == "" || durationSeconds < 0 {
		return nil, domain.ErrInvalidPayload
	}
	if _, err := repo.GetLanguageByID(ctx, s.DB, languageID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLanguageNotFound
		}
		return nil, err
	}
	return repo.CreateTranscriptionSample(ctx, s.DB, languageID, audioURL, durationSeconds)
}

// CreateTranslationSample registers a source text for translation work.
func (s *SampleService) CreateTranslationSample(ctx context.Context, languageID, originalText string) (*domain.TranslationSample, error) {
	if strings.TrimSpace(originalText) == "" {
		return nil, domain.ErrInvalidPayload
	}
	if _, err := repo.GetLanguageByID(ctx, s.DB, languageID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLanguageNotFound
		}
		return nil, err
	}
	return repo.CreateTranslationSample(ctx, s.DB, languageID, originalText)
}
