package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const internalErrorMessage = "internal server error"

type JSONResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Success: code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

// RespondError writes the error envelope. Server errors are logged and
// replaced with a generic message so driver text never reaches clients.
func RespondError(c *gin.Context, code int, err error) {
	message := err.Error()
	if code >= http.StatusInternalServerError {
		if c.Request != nil {
			ErrorLogger.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		} else {
			ErrorLogger.Println(err)
		}
		message = internalErrorMessage
	}
	c.JSON(code, JSONResponse{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// AbortWithError writes the error envelope and stops the handler chain.
func AbortWithError(c *gin.Context, code int, err error) {
	RespondError(c, code, err)
	c.Abort()
}
