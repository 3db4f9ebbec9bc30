package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"leitstelle/api/internal/config"
	"leitstelle/api/internal/game"
	"leitstelle/api/internal/realtime"
	"leitstelle/api/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Deps are the components the HTTP layer serves.
type Deps struct {
	Store store.Store
	Game  *game.Service
	Hub   *realtime.Hub
}

// Server wires configuration, dependencies and HTTP routing together.
type Server struct {
	cfg       config.Config
	log       zerolog.Logger
	store     store.Store
	game      *game.Service
	hub       *realtime.Hub
	validate  *validator.Validate
	authMw    *AuthMiddleware
	limiter   *ipRateLimiter
	responses *cache.Cache
	startedAt time.Time
}

// New instantiates the HTTP server and prepares shared dependencies.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Game == nil || deps.Hub == nil {
		return nil, errors.New("server: store, game and hub are required")
	}

	authMw, err := NewAuthMiddleware(ctx, cfg.Auth, log)
	if err != nil {
		return nil, fmt.Errorf("init auth middleware: %w", err)
	}

	return &Server{
		cfg:       cfg,
		log:       log,
		store:     deps.Store,
		game:      deps.Game,
		hub:       deps.Hub,
		validate:  newValidator(),
		authMw:    authMw,
		limiter:   newIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		responses: cache.New(catalogCacheTTL, 2*catalogCacheTTL),
		startedAt: time.Now().UTC(),
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// Close releases auth resources.
func (s *Server) Close() {
	if s.authMw != nil {
		s.authMw.Close()
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or an unrecoverable error occurs.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.HTTP.Address,
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  s.cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	s.log.Info().Str("addr", s.cfg.HTTP.Address).Msg("http server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("latitude", func(fl validator.FieldLevel) bool {
		val, ok := fl.Field().Interface().(float64)
		if !ok {
			return false
		}
		return val >= -90 && val <= 90
	})
	_ = v.RegisterValidation("longitude", func(fl validator.FieldLevel) bool {
		val, ok := fl.Field().Interface().(float64)
		if !ok {
			return false
		}
		return val >= -180 && val <= 180
	})
	return v
}
