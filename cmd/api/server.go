package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/praveshmishra-coder/WebChat-Docker/internal/auth"
	"github.com/praveshmishra-coder/WebChat-Docker/internal/data"
	"github.com/praveshmishra-coder/WebChat-Docker/internal/middleware"
)

// usersStore is the account store surface the handlers consume.
type usersStore interface {
	CreateUser(ctx context.Context, username, email, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	AllUsernames(ctx context.Context) ([]string, error)
}

// Server wires the HTTP handlers to the stores, the token manager and the
// connection hub.
type Server struct {
	users    usersStore
	tokens   *auth.TokenManager
	hub      *ConnectionHub
	upgrader websocket.Upgrader
}

// newServer returns a ready-to-use Server.
func newServer(users usersStore, tokens *auth.TokenManager, hub *ConnectionHub, allowedOrigins []string) *Server {
	return &Server{
		users:  users,
		tokens: tokens,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// routes registers all endpoints on the router. Register and login are the
// only unauthenticated surface and sit behind the rate limiter.
func (s *Server) routes(r *gin.Engine, limiter *middleware.LimiterStore) {
	authGroup := r.Group("/api/auth", middleware.RateLimit(limiter))
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)

	r.GET("/chat", s.handleChatSocket)
	r.GET("/healthz", s.handleHealth)
}

// originChecker allows any origin when the allow-list is empty (development
// mode), otherwise requires an exact match.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return lo.Contains(allowed, origin)
	}
}
