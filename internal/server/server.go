// Package server exposes the board engine over HTTP with gin, including the
// server-sent event stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/zulandar/corkboard/internal/board"
	"github.com/zulandar/corkboard/internal/ratelimit"
	"github.com/zulandar/corkboard/internal/stream"
	"go.uber.org/zap"
)

// DefaultHeartbeat is the idle interval between stream heartbeats.
const DefaultHeartbeat = 15 * time.Second

// Options holds the collaborators and settings of a Server.
type Options struct {
	Addr           string
	TrustedProxies []string
	Board          *board.Service
	Stream         *stream.Broadcaster
	Limiter        *ratelimit.Limiter
	Logger         *zap.Logger
	Heartbeat      time.Duration
	RecentComments int
	Version        string
}

// Server is the HTTP front of the engine.
type Server struct {
	opts    Options
	board   *board.Service
	stream  *stream.Broadcaster
	limiter *ratelimit.Limiter
	log     *zap.Logger
	router  *gin.Engine
}

// New builds a Server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Board == nil {
		return nil, fmt.Errorf("server: board service is required")
	}
	if opts.Stream == nil {
		opts.Stream = stream.New(stream.Options{Logger: opts.Logger})
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("server: trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), accessLog(opts.Logger))

	s := &Server{
		opts:    opts,
		board:   opts.Board,
		stream:  opts.Stream,
		limiter: opts.Limiter,
		log:     opts.Logger,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully. It also
// schedules the rate limiter sweep for the server's lifetime.
func (s *Server) Start(ctx context.Context) error {
	sched := cron.New()
	if _, err := sched.AddFunc("@every 10m", func() {
		if n := s.limiter.Sweep(); n > 0 {
			s.log.Debug("rate limiter sweep", zap.Int("dropped", n))
		}
	}); err != nil {
		return fmt.Errorf("server: schedule sweep: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("listening", zap.String("addr", s.opts.Addr), zap.String("version", s.opts.Version))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
