// Package server exposes the transcription pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/RyanBlaney/sonido-score/transcode"
	"github.com/RyanBlaney/sonido-score/transcription"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Config holds server configuration
type Config struct {
	Port           int      `json:"port" mapstructure:"port"`
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadBytes int64    `json:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// DefaultConfig listens on 8080, accepts any origin and 100 MB uploads
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: 100 << 20,
	}
}

// Server is the HTTP front end of a Transcriber
type Server struct {
	config      Config
	router      *chi.Mux
	transcriber *transcription.Transcriber
	decoder     *transcode.Decoder
	logger      logging.Logger
}

// New creates a server. decoder may be nil for the default WAV decoder.
func New(config Config, transcriber *transcription.Transcriber, decoder *transcode.Decoder) *Server {
	if decoder == nil {
		decoder = transcode.NewDecoder(nil)
	}
	s := &Server{
		config:      config,
		router:      chi.NewRouter(),
		transcriber: transcriber,
		decoder:     decoder,
		logger: logging.WithFields(logging.Fields{
			"component": "http_server",
		}),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/api/transcriptions", s.handleTranscribe)
}

// Handler returns the router wrapped in the CORS policy
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.router)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", logging.Fields{"port": s.config.Port})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
