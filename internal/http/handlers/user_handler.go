// User HTTP handlers.
//
// This file exposes contributor profiles:
//   - GET /users/{id}   (profile with per-language aggregates)
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
	"github.com/linguacrowd/go-corpus-backend/internal/services"
)

// UserService defines the profile operations consumed by HTTP handlers.
type UserService interface {
	// Profile returns a user row together with their per-language aggregates.
	Profile(ctx context.Context, id string) (*domain.User, []domain.UserLanguage, error)
}

// UserProfileResponse wraps a user and their per-language activity.
type UserProfileResponse struct {
	User      *domain.User          `json:"user"`
	Languages []domain.UserLanguage `json:"languages"`
}

// GetUserProfile godoc
// @ID          getUserProfile
// @Summary     Get a contributor profile
// @Description Returns the user's aggregate statistics, reputation and per-language activity.
// @Tags        Users
// @Produce     json
//
// @Param       id  path  string  true  "User ID"  example(user123)
//
// @Success     200  {object}  handlers.UserProfileResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [get]
func (h *Handlers) GetUserProfile(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id required")
		return
	}

	u, langs, err := h.userSvc.Profile(c.Request.Context(), id)
	if err != nil {
		if err == services.ErrUserNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if langs == nil {
		langs = []domain.UserLanguage{}
	}
	ok(c, http.StatusOK, UserProfileResponse{User: u, Languages: langs})
}
