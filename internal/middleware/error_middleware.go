package middleware

import (
	"net/http"

	"sentinal-assist/internal/transport/httpdto"
	sentinal_errors "sentinal-assist/pkg/errors"
	"sentinal-assist/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error a handler attached to the context.
// Nothing is written when the response has already started.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		if l != nil {
			l.WithContext(c.Request.Context()).Errorf("request error: %s", err.Error())
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), sentinal_errors.ErrorCode(status)))
	}
}
