// Package web serves a finished reconciliation report as read-only JSON.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/psgc-shape/internal/etl"
	"github.com/psgc-shape/internal/logging"
	"github.com/psgc-shape/internal/web/handlers"
	"github.com/psgc-shape/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *Config
	report     *etl.Report
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance
func NewServer(config *Config, report *etl.Report) *Server {
	server := &Server{
		config: config,
		report: report,
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	apiHandler := &handlers.APIHandler{Report: s.report}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/levels", apiHandler.GetLevels).Methods("GET")
	api.HandleFunc("/levels/{level}/stages", apiHandler.GetStages).Methods("GET")
	api.HandleFunc("/levels/{level}/unmatched/{side}", apiHandler.GetUnmatched).Methods("GET")
	api.HandleFunc("/levels/{level}/ambiguities", apiHandler.GetAmbiguities).Methods("GET")
	api.HandleFunc("/levels/{level}/overrides", apiHandler.GetOverrides).Methods("GET")
	api.HandleFunc("/levels/{level}/findings", apiHandler.GetFindings).Methods("GET")
	api.HandleFunc("/levels/{level}/geojson", apiHandler.GetGeoJSON).Methods("GET")

	s.router.HandleFunc("/healthz", apiHandler.Health).Methods("GET")

	logger := logging.Default()
	s.router.Use(middleware.Recovery(logger))
	s.router.Use(middleware.CORS(s.config.CORS))
	s.router.Use(middleware.RequestLogging(logger))
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.httpServer.Addr).Msg("report server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("report server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down report server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down report server: %w", err)
	}
	return nil
}
