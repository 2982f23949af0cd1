// Package auth issues and verifies the bearer tokens that bind a user
// identity to a connection, and hashes account passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/praveshmishra-coder/WebChat-Docker/internal/normalize"
)

var (
	// ErrInvalidToken is returned when a token parses but fails validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingClaim is returned when an otherwise valid token lacks one of
	// the required claims (subject id, username, email). Verification fails
	// closed: a token without a full identity never authorizes a connection.
	ErrMissingClaim = errors.New("token missing required claim")
)

// TokenManager signs and validates the JWT tokens used on the connection
// handshake and the auth endpoints.
type TokenManager struct {
	secretKey string        // HMAC signing secret (from environment)
	issuer    string        // expected "iss" claim
	audience  string        // expected "aud" claim
	duration  time.Duration // token validity period
}

// Claims is the custom JWT payload. The username travels in "unique_name",
// mirroring the claim name the web clients already consume.
type Claims struct {
	Username             string `json:"unique_name"`
	Email                string `json:"email"`
	jwt.RegisteredClaims        // Subject carries the user id hex string
}

// NewTokenManager returns a configured TokenManager.
func NewTokenManager(secretKey, issuer, audience string, duration time.Duration) *TokenManager {
	return &TokenManager{
		secretKey: secretKey,
		issuer:    issuer,
		audience:  audience,
		duration:  duration,
	}
}

// Generate issues a signed token for a user. Username and email are stored in
// normalized form so the claims match what the stores and the presence
// registry key on.
func (m *TokenManager) Generate(userID bson.ObjectID, username, email string) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.duration)

	claims := &Claims{
		Username: normalize.Username(username),
		Email:    normalize.Email(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// Verify parses and validates a token and returns its claims. It checks the
// signing method, signature, issuer, audience and expiry, then requires the
// subject id, username and email claims to be present.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything other than HMAC so an attacker
		// cannot downgrade to "none" or swap in an asymmetric key.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secretKey), nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.Username == "" || claims.Email == "" {
		return nil, ErrMissingClaim
	}

	// Tokens issued by Generate are already normalized; tokens minted by
	// older builds may not be.
	claims.Username = normalize.Username(claims.Username)
	claims.Email = normalize.Email(claims.Email)

	return claims, nil
}

// HashPassword returns a bcrypt hash for the provided plaintext.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
