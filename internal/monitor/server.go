// Package monitor serves engine status, metrics and the live stream over HTTP.
package monitor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/qrtctl/internal/observability"
	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/qrt"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	serviceName  = "monitor"
	version      = "0.1.0"
	maxBodyBytes = 64 << 10
)

// Engine is the slice of *qrt.Engine the monitor reads and drives.
type Engine interface {
	State() qrt.State
	SessionID() string
	RemoteAddr() string
	Pending() (requests, waiters int)
	Command(ctx context.Context, text string) (qrt.Response, error)
}

type Config struct {
	Addr           string
	CorsOrigins    []string
	CommandTimeout time.Duration
}

type Server struct {
	cfg      Config
	engine   Engine
	stream   http.Handler
	log      zerolog.Logger
	router   *gin.Engine
	appeared time.Time
}

// New builds the router. stream may be nil, in which case /stream is not
// served.
func New(cfg Config, engine Engine, stream http.Handler, log zerolog.Logger) *Server {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 5 * time.Second
	}
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		stream:   stream,
		log:      log,
		router:   r,
		appeared: time.Now(),
	}
	r.Use(s.requestLog(), s.requestMetrics())
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": serviceName,
			"version": version,
		})
	})

	s.router.GET("/state", func(c *gin.Context) {
		requests, waiters := s.engine.Pending()
		c.JSON(http.StatusOK, gin.H{
			"state":            s.engine.State().String(),
			"session":          s.engine.SessionID(),
			"remote":           s.engine.RemoteAddr(),
			"pending_requests": requests,
			"pending_waiters":  waiters,
		})
	})

	s.router.POST("/command", s.handleCommand)

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.stream != nil {
		s.router.GET("/stream", gin.WrapH(s.stream))
	}
}

// handleCommand sends the raw request body as one command and returns the
// correlated reply.
func (s *Server) handleCommand(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty command"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.CommandTimeout)
	defer cancel()
	resp, err := s.engine.Command(ctx, text)
	if err != nil {
		kind := protocol.Classify(err)
		c.Set(errorKindKey, kind)
		c.JSON(statusFor(kind), gin.H{"error": err.Error(), "error_kind": kind.String(), "text": resp.Text})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": resp.Kind(), "text": resp.Text})
}

func statusFor(kind protocol.ErrorKind) int {
	switch kind {
	case protocol.KindProtocolState, protocol.KindClosed:
		return http.StatusServiceUnavailable
	case protocol.KindServer, protocol.KindTransport, protocol.KindFraming:
		return http.StatusBadGateway
	case protocol.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Run serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("monitor listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
