package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/internal/app"
	"github.com/valentinpelus/langfeed/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize application
	application, err := app.New(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	// Log startup information
	application.LogStartupInfo()

	// Create and start HTTP server
	srv := server.New(application.Config.Port, application.Config.WebhookAuthToken, application.FeedbackHandler, application.Logger)
	if err := srv.Start(ctx); err != nil {
		application.Logger.Fatal("Server error", zap.Error(err))
	}
}
