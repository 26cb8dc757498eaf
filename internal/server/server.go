// Package server exposes the qualification pipeline over HTTP: a JSON
// API, the Tally webhook receiver, and the redirect endpoint that form
// integrations point leads at.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/eccleston-labs/tally-enricher/internal/cache"
	"github.com/eccleston-labs/tally-enricher/internal/config"
	"github.com/eccleston-labs/tally-enricher/internal/dispatch"
	"github.com/eccleston-labs/tally-enricher/internal/enrich"
	"github.com/eccleston-labs/tally-enricher/internal/store"
	"github.com/eccleston-labs/tally-enricher/pkg/slack"
)

// Server wires the pipeline behind the HTTP surface.
type Server struct {
	cfg        *config.Config
	store      store.Store
	cache      *cache.Cache
	orch       *enrich.Orchestrator
	dispatcher *dispatch.Dispatcher
	slack      slack.Client
	log        *zap.Logger
}

// New creates a Server. The dispatcher and slack client may be nil in
// tests; side effects are skipped when they are.
func New(cfg *config.Config, st store.Store, c *cache.Cache, orch *enrich.Orchestrator, d *dispatch.Dispatcher, sl slack.Client) *Server {
	return &Server{
		cfg:        cfg,
		store:      st,
		cache:      c,
		orch:       orch,
		dispatcher: d,
		slack:      sl,
		log:        zap.L().Named("server"),
	}
}

// Router builds the chi router with CORS and request logging.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Post("/qualify", s.handleQualify)
	r.Post("/webhook/tally", s.handleTallyWebhook)
	r.Get("/r", s.handleRedirect)

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("starting server", zap.Int("port", s.cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}
