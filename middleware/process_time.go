package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const ProcessTimeHeader = "X-Process-Time"

// ProcessTimeMiddleware reports handler wall time in seconds via the
// X-Process-Time response header. The header must be stamped before the
// first body write, so the response writer is wrapped.
func ProcessTimeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = &timedWriter{ResponseWriter: c.Writer, start: time.Now()}
		c.Next()
	}
}

type timedWriter struct {
	gin.ResponseWriter
	start time.Time
}

func (w *timedWriter) stamp() {
	if !w.Written() {
		elapsed := time.Since(w.start).Seconds()
		w.Header().Set(ProcessTimeHeader, strconv.FormatFloat(elapsed, 'f', 4, 64))
	}
}

func (w *timedWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *timedWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

func (w *timedWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}
