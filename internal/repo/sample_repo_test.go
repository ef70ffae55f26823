package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

func newSampleRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("sample_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.TranscriptionSample{}, &domain.TranslationSample{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTranscriptionSample_CreateGetPromote(t *testing.T) {
	db := newSampleRepoDB(t)
	ctx := context.Background()

	s, err := CreateTranscriptionSample(ctx, db, "lang-1", "https://cdn/x.ogg", 90)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID == "" || s.Active || s.TranscriptionText != "" {
		t.Fatalf("unexpected sample: %+v", s)
	}

	got, err := GetTranscriptionSample(ctx, db, s.ID)
	if err != nil || got.AudioURL != "https://cdn/x.ogg" || got.DurationSeconds != 90 {
		t.Fatalf("get: %+v err=%v", got, err)
	}
	if _, err := GetTranscriptionSample(ctx, db, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Promotion writes the canonical text and activates the sample.
	if err := SetCanonicalTranscription(ctx, db, s.ID, "habari ya dunia"); err != nil {
		t.Fatalf("set canonical: %v", err)
	}
	got, err = GetTranscriptionSample(ctx, db, s.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.Active || got.TranscriptionText != "habari ya dunia" {
		t.Fatalf("not promoted: %+v", got)
	}

	if err := SetCanonicalTranscription(ctx, db, uuid.NewString(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on unknown id, got %v", err)
	}
}

func TestTranslationSample_CreateGetPromote(t *testing.T) {
	db := newSampleRepoDB(t)
	ctx := context.Background()

	s, err := CreateTranslationSample(ctx, db, "lang-1", "Good morning")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID == "" || s.Validated || s.TranslatedText != "" {
		t.Fatalf("unexpected sample: %+v", s)
	}

	got, err := GetTranslationSample(ctx, db, s.ID)
	if err != nil || got.OriginalText != "Good morning" {
		t.Fatalf("get: %+v err=%v", got, err)
	}

	if err := SetCanonicalTranslation(ctx, db, s.ID, "habari ya asubuhi"); err != nil {
		t.Fatalf("set canonical: %v", err)
	}
	got, err = GetTranslationSample(ctx, db, s.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.Validated || got.TranslatedText != "habari ya asubuhi" {
		t.Fatalf("not validated: %+v", got)
	}
}

func TestSampleExists_ByKind(t *testing.T) {
	db := newSampleRepoDB(t)
	ctx := context.Background()

	tr, err := CreateTranscriptionSample(ctx, db, "lang-1", "https://cdn/x.ogg", 10)
	if err != nil {
		t.Fatalf("seed transcription: %v", err)
	}
	tl, err := CreateTranslationSample(ctx, db, "lang-1", "text")
	if err != nil {
		t.Fatalf("seed translation: %v", err)
	}

	cases := []struct {
		kind domain.TaskKind
		id   string
		want bool
	}{
		{domain.TaskTranscription, tr.ID, true},
		{domain.TaskTranslation, tl.ID, true},
		// IDs do not cross kinds
		{domain.TaskTranscription, tl.ID, false},
		{domain.TaskTranslation, tr.ID, false},
		{domain.TaskTranscription, uuid.NewString(), false},
	}
	for _, tc := range cases {
		got, err := SampleExists(ctx, db, tc.kind, tc.id)
		if err != nil {
			t.Fatalf("exists(%s,%s): %v", tc.kind, tc.id, err)
		}
		if got != tc.want {
			t.Fatalf("exists(%s,%s) = %v, want %v", tc.kind, tc.id, got, tc.want)
		}
	}
}
