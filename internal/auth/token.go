package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const contextTokenType = "client_context"

var ErrInvalidContextToken = errors.New("invalid client context token")

// ContextClaims identifies a client context. The JWT ID is the context ID.
type ContextClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// ContextTokenManager issues and validates the signed token that binds an HTTP
// client to its server-side client context.
type ContextTokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewContextTokenManager creates a new ContextTokenManager
func NewContextTokenManager(secret string, expiry time.Duration) *ContextTokenManager {
	return &ContextTokenManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// NewContextID returns a fresh random client context ID
func NewContextID() string {
	return uuid.New().String()
}

// Issue signs a token for contextID
func (tm *ContextTokenManager) Issue(contextID string) (string, error) {
	now := time.Now()
	claims := &ContextClaims{
		Type: contextTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        contextID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign context token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies tokenString and returns the context ID it carries
func (tm *ContextTokenManager) Validate(tokenString string) (string, error) {
	claims := &ContextClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidContextToken, err)
	}

	if !token.Valid || claims.Type != contextTokenType || claims.ID == "" {
		return "", ErrInvalidContextToken
	}

	return claims.ID, nil
}
