package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server for the dashboard API.
type Server struct {
	logger   *logrus.Logger
	handlers *Handlers
	gatherer prometheus.Gatherer
}

// NewServer creates a new Server serving handlers, with metrics taken from gatherer.
func NewServer(handlers *Handlers, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	return &Server{
		logger:   logger,
		handlers: handlers,
		gatherer: gatherer,
	}
}

func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handlers.HealthJSON).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	router.HandleFunc("/api/snapshot", s.handlers.GetSnapshotJSON).Methods("GET")
	router.HandleFunc("/api/snapshot/refresh", s.handlers.RefreshSnapshot).Methods("POST")

	router.HandleFunc("/api/status", s.handlers.GetAllComponentsStatusJSON).Methods("GET")
	router.HandleFunc("/api/status/{componentName}", s.handlers.GetComponentStatusJSON).Methods("GET")
	router.HandleFunc("/api/status/{componentName}/{subComponentName}", s.handlers.GetSubComponentStatusJSON).Methods("GET")

	router.HandleFunc("/api/components", s.handlers.GetComponentsJSON).Methods("GET")
	router.HandleFunc("/api/components/{componentName}", s.handlers.GetComponentInfoJSON).Methods("GET")
	router.HandleFunc("/api/components/{componentName}/outages", s.handlers.GetOutagesJSON).Methods("GET")
	router.HandleFunc("/api/components/{componentName}/{subComponentName}/outages", s.handlers.GetSubComponentOutagesJSON).Methods("GET")
	router.HandleFunc("/api/components/{componentName}/{subComponentName}/outages/{outageId:[0-9]+}", s.handlers.GetOutageJSON).Methods("GET")

	router.Use(s.loggingMiddleware)

	return router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Info("Request processed")
	})
}

// Start listens for HTTP requests on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting dashboard server on %s", addr)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down dashboard server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
