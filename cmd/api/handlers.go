package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/praveshmishra-coder/WebChat-Docker/internal/auth"
	"github.com/praveshmishra-coder/WebChat-Docker/internal/data"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,min=2,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// handleRegister creates an account and returns a bearer token for it.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to hash password"})
		return
	}

	user, err := s.users.CreateUser(c.Request.Context(), req.Username, req.Email, hashed)
	if err != nil {
		if errors.Is(err, data.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"message": "username or email already registered"})
			return
		}
		log.Printf("create user failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create user"})
		return
	}

	token, expiresAt, err := s.tokens.Generate(user.ID, user.Username, user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        user.ID.Hex(),
		"username":  user.Username,
		"email":     user.Email,
		"token":     token,
		"expiresAt": expiresAt,
	})
}

// handleLogin authenticates a user and returns a bearer token.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := s.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		// same answer for unknown account and wrong password
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid email or password"})
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid email or password"})
		return
	}

	token, expiresAt, err := s.tokens.Generate(user.ID, user.Username, user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID.Hex(),
		"username":  user.Username,
		"email":     user.Email,
		"token":     token,
		"expiresAt": expiresAt,
	})
}

// handleChatSocket is the single persistent-connection endpoint. The bearer
// token arrives as a query parameter because browser websocket clients
// cannot set an Authorization header. The token is verified before the
// upgrade: a rejected handshake never yields a connection that could invoke
// a routed operation.
func (s *Server) handleChatSocket(c *gin.Context) {
	token := c.Query("access_token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "missing access_token"})
		return
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := newWSClient(c.Request.Context(), conn, s.hub, claims.Username)
	s.hub.Attach(client)

	log.Printf("client %s connected", claims.Username)

	go client.writePump()
	client.readPump() // blocks until disconnect; cleanup runs in its defer

	log.Printf("client %s disconnected", claims.Username)
}

// handleHealth is a liveness probe.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
