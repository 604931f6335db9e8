// Package server exposes the generated articles over a read-only HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"goalgazer/internal/config"
)

// ContentStore serves stored article JSON by slug. The Postgres match
// repository satisfies it.
type ContentStore interface {
	GetBySlug(ctx context.Context, slug, lang string) ([]byte, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures where content is read from.
type Options struct {
	ContentDir   string
	PublicDir    string
	PublicPrefix string
	// Store is consulted when a slug has no file under ContentDir.
	Store ContentStore
	// DB is pinged by /health when set.
	DB Pinger
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     config.Server
	opts       Options
	log        *zerolog.Logger
	started    time.Time
}

// New creates a new HTTP server instance
func New(cfg config.Server, opts Options, log *zerolog.Logger) *Server {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		opts:    opts,
		log:     log,
		started: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(securityHeaders)

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/status", s.handleStatus)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/schema/article", s.handleArticleSchema)
		r.Route("/matches", func(r chi.Router) {
			r.Get("/", s.handleListMatches)
			r.Get("/{slug}", s.handleGetMatch)
		})
	})

	s.router.Get("/matches/{slug}", s.handleMatchPage)

	if s.opts.PublicDir != "" && s.opts.PublicPrefix != "" {
		prefix := strings.TrimRight(s.opts.PublicPrefix, "/")
		fs := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(s.opts.PublicDir)))
		s.router.With(cacheStaticAssets).Get(prefix+"/*", fs.ServeHTTP)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().
		Str("addr", s.httpServer.Addr).
		Dur("read_timeout", s.config.ReadTimeout).
		Dur("write_timeout", s.config.WriteTimeout).
		Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server gracefully...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info().Msg("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
