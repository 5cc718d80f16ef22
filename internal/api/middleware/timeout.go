package middleware

import (
	"context"
	"errors"
	"time"

	"allergen-engine/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Timeout bounds the request context. Handlers pass the context to the AI
// and storage calls, which give up when it expires. A handler that returns
// without writing after the deadline gets a 504.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			common.LogError("request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.Duration("timeout", d),
			)
			common.WriteError(c, common.ErrGatewayTimeout, false)
		}
	}
}
