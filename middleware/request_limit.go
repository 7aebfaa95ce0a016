package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"financial-transcripts-rag/utils"
)

// RequestSizeLimit rejects requests whose body exceeds maxSize bytes.
// Bodies without a declared Content-Length are capped while reading.
func RequestSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"request_too_large",
				"Request body exceeds maximum size",
				gin.H{
					"max_bytes":      maxSize,
					"received_bytes": c.Request.ContentLength,
				})
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
