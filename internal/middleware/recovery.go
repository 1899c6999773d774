package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"studio-backend/internal/logger"
	"studio-backend/internal/models"
)

const MsgInternalError = "something went wrong"

// Recovery turns a panic into a 500 JSON error envelope.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(c, log).Error("panic recovered",
					zap.String("path", c.Request.URL.Path),
					zap.Error(fmt.Errorf("%v", r)),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: MsgInternalError})
			}
		}()
		c.Next()
	}
}
