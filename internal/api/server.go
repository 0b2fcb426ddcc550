// Package api serves generated datasets for preview: manifest listings,
// paged manifest records, image files and on-demand pie rendering.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Caia-Tech/caia-chartforge/internal/render"
	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// ServerConfig configures the preview server
type ServerConfig struct {
	Host         string        `json:"host" mapstructure:"host"`
	Port         int           `json:"port" mapstructure:"port"`
	BasePath     string        `json:"base_path" mapstructure:"base_path"`
	DataRoot     string        `json:"data_root" mapstructure:"data_root"`
	EnableCORS   bool          `json:"enable_cors" mapstructure:"enable_cors"`
	PageSize     int           `json:"page_size" mapstructure:"page_size"`
	MaxPageSize  int           `json:"max_page_size" mapstructure:"max_page_size"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:         "localhost",
		Port:         8080,
		BasePath:     "/api/v1",
		DataRoot:     ".",
		EnableCORS:   true,
		PageSize:     50,
		MaxPageSize:  500,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DataRoot == "" {
		return errors.New("data root is required")
	}
	st, err := os.Stat(c.DataRoot)
	if err != nil {
		return fmt.Errorf("data root: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("data root %s is not a directory", c.DataRoot)
	}
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.MaxPageSize < c.PageSize {
		c.MaxPageSize = c.PageSize
	}
	return nil
}

// Server is the dataset preview HTTP server.
type Server struct {
	config *ServerConfig
	faces  *render.Faces
	logger zerolog.Logger
}

// NewServer creates a server over config.DataRoot.
func NewServer(config *ServerConfig) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	faces, err := render.DefaultFaces()
	if err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}
	return &Server{
		config: config,
		faces:  faces,
		logger: logging.GetLogger("api"),
	}, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	base := router.PathPrefix(s.config.BasePath).Subrouter()

	base.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	base.HandleFunc("/manifests", s.listManifests).Methods(http.MethodGet)
	base.HandleFunc("/manifests/{name:.+}", s.getManifest).Methods(http.MethodGet)
	base.HandleFunc("/images/{path:.+}", s.getImage).Methods(http.MethodGet)
	base.HandleFunc("/render/pie", s.renderPie).Methods(http.MethodPost)

	var h http.Handler = router
	if s.config.EnableCORS {
		h = corsMiddleware(h)
	}
	return s.loggingMiddleware(h)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", srv.Addr).Str("data_root", s.config.DataRoot).Msg("Starting preview server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info().Msg("Shutting down preview server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "caia-chartforge",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string, err error) {
	ev := s.logger.Warn()
	if status >= 500 {
		ev = s.logger.Error()
	}
	ev.Err(err).Str("message", message).Int("status", status).Msg("API error")

	resp := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		resp["details"] = err.Error()
	}
	s.sendJSON(w, status, resp)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Msg("API request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
