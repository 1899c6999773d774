package middleware

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"studio-backend/internal/logger"
)

// CaptureException reports err to Sentry when the sentry middleware is installed.
func CaptureException(c *gin.Context, err error) {
	hub := sentrygin.GetHubFromContext(c)
	if hub == nil || err == nil {
		return
	}
	if id := c.GetString(logger.RequestIDKey); id != "" {
		hub.Scope().SetTag("request_id", id)
	}
	hub.CaptureException(err)
}

func SetHandlerTag(c *gin.Context, handler string) {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.Scope().SetTag("handler", handler)
	}
}
