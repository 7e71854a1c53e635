package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/cosmindanescu/logsieve/internal/config"
	"github.com/cosmindanescu/logsieve/internal/database"
	"github.com/cosmindanescu/logsieve/internal/pipeline"
	"github.com/cosmindanescu/logsieve/internal/websocket"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// Server exposes the ingestion engine over HTTP: pipeline stats, load
// operations, table filters, exports, and a websocket stream of progress
// events.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	cfg          *config.Config
	loader       *pipeline.Loader
	materializer *database.Materializer
	streamer     *websocket.Streamer
}

// NewServer creates the API server and wires its routes.
func NewServer(cfg *config.Config, loader *pipeline.Loader, materializer *database.Materializer, streamer *websocket.Streamer) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		cfg:          cfg,
		loader:       loader,
		materializer: materializer,
		streamer:     streamer,
	}

	s.setupRoutes()
	s.setupMiddleware()

	s.httpServer = &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return s
}

// setupMiddleware configures middleware for the API routes. The websocket
// route stays outside so the upgrade is not wrapped.
func (s *Server) setupMiddleware(apiRouter *mux.Router) {
	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Requested-With"}),
	)

	apiRouter.Use(corsHandler)
	if s.cfg.Server.LogRequests {
		apiRouter.Use(s.loggingMiddleware)
	}
	apiRouter.Use(s.recoveryMiddleware)
}

// setupRoutes configures all API routes and returns the /api/v1 subrouter
func (s *Server) setupRoutes() *mux.Router {
	// WebSocket endpoint, registered without middleware
	s.router.Handle("/ws", s.streamer).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/load", s.handleLoad).Methods("POST")
	api.HandleFunc("/extract", s.handleExtract).Methods("POST")

	api.HandleFunc("/tables/{table}/count", s.handleCount).Methods("GET")
	api.HandleFunc("/tables/{table}/filter", s.handleFilter).Methods("POST")
	api.HandleFunc("/tables/{table}/export", s.handleExport).Methods("POST")

	return api
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("API server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
