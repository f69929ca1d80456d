// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides AuthRequired, the bearer-token gate for protected
// routes. It resolves the Authorization header to a user identity before any
// handler, service, store, or upstream call runs: requests without a valid
// token are rejected at this boundary and consume nothing downstream.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// userIDKey is the Gin context key under which the authenticated user id
	// is stored. Handlers and the rate limiter read it.
	userIDKey = "userID"
)

// TokenVerifier resolves a bearer token to a user identity. The concrete
// implementation is auth.Manager; tests substitute fakes.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// AuthRequired returns a Gin middleware that enforces bearer authentication.
//
// Behavior:
//   - Extracts the token from "Authorization: Bearer <token>".
//   - Verifies it via the injected TokenVerifier and stores the resulting
//     user id in the Gin context under "userID".
//   - Missing or invalid credentials abort with a structured 401 envelope;
//     the two cases are not distinguished in the response.
func AuthRequired(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		token := ""
		if strings.HasPrefix(raw, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
		}
		if token == "" {
			unauthorized(c)
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil || userID == "" {
			unauthorized(c)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id stored by AuthRequired, or ""
// when the request is unauthenticated.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// unauthorized aborts with the standard 401 envelope.
func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    "missing or invalid bearer token",
	})
}
