// Package jwt guards API routes with HMAC-signed bearer tokens.
package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const claimsKey = "claims"

var errSigningMethod = errors.New("invalid signing method")

// Claims represents JWT claims
type Claims struct {
	Sub string `json:"sub"`
	jwt.RegisteredClaims
}

// Middleware creates a JWT authentication middleware. Health endpoints are
// never gated.
func Middleware(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" || strings.HasPrefix(c.Request.URL.Path, "/health/") {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims, err := Parse(key, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Parse validates tokenString and returns its claims.
func Parse(key []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errSigningMethod
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Issue signs an HS256 token for subject. A zero ttl issues a token without
// expiry.
func Issue(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Sub: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// GetClaims extracts claims from the gin context
func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}

	cl, ok := claims.(*Claims)
	return cl, ok
}
