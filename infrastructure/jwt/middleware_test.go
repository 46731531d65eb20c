package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/seo-pinger/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(jwt.Middleware(testSecret))
	router.GET("/api/v1/batches", func(c *gin.Context) {
		claims, ok := jwt.GetClaims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Sub)
	})
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	valid, err := jwt.Issue(testSecret, "operator", time.Hour)
	require.NoError(t, err)
	expired, err := jwt.Issue(testSecret, "operator", -time.Hour)
	require.NoError(t, err)
	foreign, err := jwt.Issue("other-secret", "operator", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "health is open", path: "/health", want: http.StatusOK},
		{name: "missing header", path: "/api/v1/batches", want: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/api/v1/batches", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "wrong secret", path: "/api/v1/batches", header: "Bearer " + foreign, want: http.StatusUnauthorized},
		{name: "valid token", path: "/api/v1/batches", header: "Bearer " + valid, want: http.StatusOK},
		{name: "no expiry token", path: "/api/v1/batches", header: "Bearer " + mustIssue(t, 0), want: http.StatusOK},
		{name: "expired token", path: "/api/v1/batches", header: "Bearer " + expired, want: http.StatusUnauthorized},
	}

	router := newRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestParse_RoundTripsSubject(t *testing.T) {
	t.Parallel()

	token := mustIssue(t, time.Minute)
	claims, err := jwt.Parse([]byte(testSecret), token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Sub)
}

func mustIssue(t *testing.T, ttl time.Duration) string {
	t.Helper()

	token, err := jwt.Issue(testSecret, "operator", ttl)
	require.NoError(t, err)
	return token
}
