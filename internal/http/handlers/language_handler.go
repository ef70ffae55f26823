// Language and sample HTTP handlers.
//
// This file exposes the reference data the contribution loop works on:
//   - POST /languages              (create)
//   - GET  /languages              (list, paginated)
//   - GET  /languages/{id}         (read, by ID or code)
//   - POST /samples/transcription  (register an audio sample)
//   - POST /samples/translation    (register a source text)
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/services"
)

// LanguageService defines the language reference-data operations consumed by
// HTTP handlers.
type LanguageService interface {
	// Create registers a new language; codes are unique.
	Create(ctx context.Context, code, name string) (*domain.Language, error)
	// Get resolves a language by ID or code.
	Get(ctx context.Context, idOrCode string) (*domain.Language, error)
	// ListPage returns a page of languages ordered by code.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Language, error)
}

// SampleService defines the sample registration operations consumed by HTTP
// handlers.
type SampleService interface {
	// CreateTranscriptionSample registers an audio sample for transcription.
	CreateTranscriptionSample(ctx context.Context, languageID, audioURL string, durationSeconds int) (*domain.TranscriptionSample, error)
	// CreateTranslationSample registers a source text for translation.
	CreateTranslationSample(ctx context.Context, languageID, originalText string) (*domain.TranslationSample, error)
}

//
// DTOs
//

// CreateLanguageRequest is the JSON payload for registering a language.
type CreateLanguageRequest struct {
	// Code is the unique language code (e.g., BCP 47 or ISO 639).
	Code string `json:"code" binding:"required,min=2,max=8" example:"sw"`
	// Name is the display name.
	Name string `json:"name" binding:"required,min=1,max=255" example:"Swahili"`
}

// CreateTranscriptionSampleRequest is the JSON payload for registering an
// audio sample.
type CreateTranscriptionSampleRequest struct {
	// LanguageID references the language the audio is spoken in.
	LanguageID string `json:"language_id" binding:"required" format:"uuid"`
	// AudioURL points at the stored recording.
	AudioURL string `json:"audio_url" binding:"required" example:"https://cdn.example.com/audio/abc.ogg"`
	// DurationSeconds is the recording length.
	DurationSeconds int `json:"duration_seconds" binding:"min=0" example:"5400"`
}

// CreateTranslationSampleRequest is the JSON payload for registering a source
// text.
type CreateTranslationSampleRequest struct {
	// LanguageID references the target language of the translation work.
	LanguageID string `json:"language_id" binding:"required" format:"uuid"`
	// OriginalText is the source sentence to translate.
	OriginalText string `json:"original_text" binding:"required" example:"Good morning, how are you?"`
}

// ListLanguagesResponse wraps a page of languages and pagination information.
type ListLanguagesResponse struct {
	Languages  []domain.Language `json:"languages"`
	Pagination Pagination        `json:"pagination"`
}

//
// Handlers
//

// CreateLanguage godoc
// @ID          createLanguage
// @Summary     Register a language
// @Tags        Languages
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateLanguageRequest  true  "Language payload"
//
// @Success     201  {object}  domain.Language
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Code already registered"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /languages [post]
func (h *Handlers) CreateLanguage(c *gin.Context) {
	var req CreateLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code and name required")
		return
	}

	out, err := h.langSvc.Create(c.Request.Context(), req.Code, req.Name)
	if err != nil {
		switch err {
		case services.ErrInvalidLanguage:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code and name required")
		case services.ErrDuplicateLanguage:
			fail(c, http.StatusConflict, ErrCodeConflict, "language code already registered")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, out)
}

// ListLanguages godoc
// @ID          listLanguages
// @Summary     List languages (paginated)
// @Tags        Languages
// @Produce     json
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListLanguagesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /languages [get]
func (h *Handlers) ListLanguages(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, err := h.langSvc.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListLanguagesResponse{
		Languages:  items,
		Pagination: Pagination{Page: page, PageSize: pageSize},
	})
}

// GetLanguage godoc
// @ID          getLanguage
// @Summary     Get a language by ID or code
// @Tags        Languages
// @Produce     json
//
// @Param       id  path  string  true  "Language ID (UUID) or code"  example(sw)
//
// @Success     200  {object}  domain.Language
// @Failure     404  {object}  handlers.ErrorResponse  "Language not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /languages/{id} [get]
func (h *Handlers) GetLanguage(c *gin.Context) {
	out, err := h.langSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == services.ErrLanguageNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "language not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, out)
}

// CreateTranscriptionSample godoc
// @ID          createTranscriptionSample
// @Summary     Register an audio sample for transcription
// @Tags        Samples
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateTranscriptionSampleRequest  true  "Sample payload"
//
// @Success     201  {object}  domain.TranscriptionSample
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Language not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /samples/transcription [post]
func (h *Handlers) CreateTranscriptionSample(c *gin.Context) {
	var req CreateTranscriptionSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "language_id and audio_url required")
		return
	}
	if _, err := uuid.Parse(req.LanguageID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "language_id must be a UUID")
		return
	}

	out, err := h.sampleSvc.CreateTranscriptionSample(c.Request.Context(), req.LanguageID, req.AudioURL, req.DurationSeconds)
	if err != nil {
		switch err {
		case services.ErrLanguageNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "language not found")
		case domain.ErrInvalidPayload:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "audio_url required and duration_seconds must be >= 0")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, out)
}

// CreateTranslationSample godoc
// @ID          createTranslationSample
// @Summary     Register a source text for translation
// @Tags        Samples
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateTranslationSampleRequest  true  "Sample payload"
//
// @Success     201  {object}  domain.TranslationSample
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Language not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /samples/translation [post]
func (h *Handlers) CreateTranslationSample(c *gin.Context) {
	var req CreateTranslationSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "language_id and original_text required")
		return
	}
	if _, err := uuid.Parse(req.LanguageID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "language_id must be a UUID")
		return
	}

	out, err := h.sampleSvc.CreateTranslationSample(c.Request.Context(), req.LanguageID, req.OriginalText)
	if err != nil {
		switch err {
		case services.ErrLanguageNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "language not found")
		case domain.ErrInvalidPayload:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "original_text required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, out)
}
