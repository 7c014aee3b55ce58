// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"context"
	"fmt"
	"net/http"

	"sentinal-assist/internal/services"
	"sentinal-assist/internal/transport/httpdto"
	sentinal_errors "sentinal-assist/pkg/errors"
	"sentinal-assist/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles the OTP login endpoints.
type AuthHandler struct {
	service *services.AuthService
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(service *services.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// SendOTP issues a one-time code for the identifier.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req httpdto.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidRequest(err))
		return
	}
	withIdentifier(c, req.Identifier)

	res, err := h.service.SendOTP(c.Request.Context(), req.Identifier)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.SendOTPResponse{Message: res.Message})
}

// VerifyOTP checks a submitted code. A wrong code is still a 200 with
// success=false.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req httpdto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidRequest(err))
		return
	}
	withIdentifier(c, req.Identifier)

	res, err := h.service.VerifyOTP(c.Request.Context(), req.Identifier, req.OTP)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.VerifyOTPResponse{
		Success: res.Success,
		Token:   res.Token,
		Message: res.Message,
	})
}

// writeError hands err to the error middleware with the mapped status.
func writeError(c *gin.Context, err error) {
	c.Status(sentinal_errors.HTTPStatus(err))
	_ = c.Error(err)
}

func invalidRequest(err error) error {
	return fmt.Errorf("%w: %v", sentinal_errors.ErrInvalidInput, err)
}

// withIdentifier tags the request context so every log line written for this
// request carries the identifier.
func withIdentifier(c *gin.Context, identifier string) {
	ctx := context.WithValue(c.Request.Context(), logger.IdentifierKey, identifier)
	c.Request = c.Request.WithContext(ctx)
}
