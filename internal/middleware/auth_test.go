package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-hub/internal/auth"
)

func setupRouter(verifier TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(verifier), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	verifier := auth.NewVerifier("secret")
	token, err := auth.NewVerifier("secret").Issue("u-42", time.Minute)
	require.NoError(t, err)
	foreign, err := auth.NewVerifier("other").Issue("u-42", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{name: "missing", code: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, code: http.StatusUnauthorized},
		{name: "foreign signature", header: "Bearer " + foreign, code: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, code: http.StatusOK, body: "u-42"},
		{name: "lowercase scheme", header: "bearer " + token, code: http.StatusOK, body: "u-42"},
	}

	router := setupRouter(verifier)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}
