package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"studio-backend/internal/logger"
	"studio-backend/internal/middleware"
	"studio-backend/internal/models"
)

// abortWithError writes the JSON error envelope. Server-side failures are
// logged at error level and reported to Sentry.
func abortWithError(c *gin.Context, log *zap.Logger, code int, message string, traceErr error) {
	l := logger.FromContext(c, log)
	if code >= 500 {
		l.Error(message, zap.Int("status", code), zap.Error(traceErr))
		middleware.CaptureException(c, traceErr)
	} else {
		l.Info(message, zap.Int("status", code), zap.Error(traceErr))
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{Error: message})
}
