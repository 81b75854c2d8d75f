package middlewares

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/library-seat-app/utils"
)

// Recovery converts panics into the 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				utils.ErrorLogger.Printf("panic recovered on %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, r, debug.Stack())
				if c.Writer.Written() {
					c.Abort()
					return
				}
				utils.AbortWithError(c, http.StatusInternalServerError, errors.New("internal server error"))
			}
		}()
		c.Next()
	}
}
