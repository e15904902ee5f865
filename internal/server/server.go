package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/internal/handler"
	"github.com/valentinpelus/langfeed/internal/middleware"
)

// Server wraps the HTTP server
type Server struct {
	port            string
	feedbackHandler *handler.FeedbackHandler
	authMiddleware  *middleware.AuthMiddleware
	logger          *zap.Logger
}

// New creates a new HTTP server
func New(port string, authToken string, feedbackHandler *handler.FeedbackHandler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		port:            port,
		feedbackHandler: feedbackHandler,
		authMiddleware:  middleware.NewAuthMiddleware(authToken, logger),
		logger:          logger,
	}
}

// Routes builds the HTTP routes
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/predict", s.authMiddleware.Authenticate(s.feedbackHandler.HandlePredict))
	mux.HandleFunc("/api/feedback", s.authMiddleware.Authenticate(s.feedbackHandler.HandleFeedback))
	mux.HandleFunc("GET /api/labels", s.authMiddleware.Authenticate(s.feedbackHandler.HandleLabels))
	mux.HandleFunc("GET /api/stats", s.authMiddleware.Authenticate(s.feedbackHandler.HandleStats))
	mux.HandleFunc("/health", handler.HandleHealth)
	return middleware.RequestLogger(s.logger, mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("port", s.port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}
