package monitor

import (
	"net/http"
	"time"

	"github.com/danmuck/qrtctl/internal/observability"
	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/gin-gonic/gin"
)

// errorKindKey carries the protocol.ErrorKind of a failed command from the
// handler to the request log.
const errorKindKey = "error_kind"

func route(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}

// requestLog writes one line per request tagged with the engine session it
// ran against. Polling reads stay at debug; commands log at info.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := s.log.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			event = s.log.Error()
		case status >= http.StatusBadRequest:
			event = s.log.Warn()
		case c.Request.Method != http.MethodGet:
			event = s.log.Info()
		}
		if kind, ok := c.Get(errorKindKey); ok {
			event = event.Stringer("error_kind", kind.(protocol.ErrorKind))
		}

		event.
			Str("method", c.Request.Method).
			Str("route", route(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("session", s.engine.SessionID()).
			Stringer("engine", s.engine.State()).
			Str("client_ip", c.ClientIP()).
			Msg("monitor request")
	}
}

func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		observability.RecordHTTPRequest(serviceName, c.Request.Method, route(c), c.Writer.Status(), time.Since(start))
	}
}
