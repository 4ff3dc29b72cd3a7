package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizengine/internal/middleware"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/response"
	"github.com/stemsi/quizengine/internal/service"
	"github.com/stemsi/quizengine/internal/validator"
)

// AuthHandler handles token introspection and revocation.
type AuthHandler struct {
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// Me godoc
// GET /api/v1/auth/me
// Returns the caller's token claims.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	data := gin.H{
		"subject":     claims.Subject,
		"token_id":    claims.ID,
		"token_type":  claims.TokenType,
		"permissions": claims.Permissions,
	}
	if claims.ExpiresAt != nil {
		data["expires_at"] = claims.ExpiresAt.Time
	}
	response.Success(c, http.StatusOK, data)
}

// Logout godoc
// POST /api/v1/auth/logout
// Revokes the caller's own token.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), claims.ID); err != nil {
		h.log.Error().Err(err).Msg("Revoke own token failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// RevokeToken godoc
// POST /api/v1/tokens/revoke
// Revokes any token by ID, e.g. a student token of an abandoned attempt.
func (h *AuthHandler) RevokeToken(c *gin.Context) {
	var req model.RevokeTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), req.TokenID); err != nil {
		h.log.Error().Err(err).Str("token_id", req.TokenID).Msg("Revoke token failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.log.Info().Str("token_id", req.TokenID).Msg("Token revoked")
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
