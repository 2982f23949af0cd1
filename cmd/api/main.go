package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/praveshmishra-coder/WebChat-Docker/internal/auth"
	"github.com/praveshmishra-coder/WebChat-Docker/internal/config"
	"github.com/praveshmishra-coder/WebChat-Docker/internal/data"
	"github.com/praveshmishra-coder/WebChat-Docker/internal/db"
	"github.com/praveshmishra-coder/WebChat-Docker/internal/middleware"
)

func main() {
	// .env is optional; deployments configure through the environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	// Create stores
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)

	// Rate limiter for the register/login endpoints (small burst to allow a
	// couple of quick retries)
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()

	// Presence registry and connection hub are process-wide singletons; the
	// hub references them but owns neither lifecycle.
	presence := NewPresenceRegistry()
	hub := NewConnectionHub(presence, usersStore, msgsStore)

	srv := newServer(usersStore, tokens, hub, cfg.AllowedOrigins)

	router := gin.Default()
	srv.routes(router, limiterStore)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Printf("chat server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down chat server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
