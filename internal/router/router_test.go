package router

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mindnote/counsel/internal/config"
	"github.com/mindnote/counsel/internal/middleware"
	"github.com/mindnote/counsel/internal/modules/handler"
)

// signToken mints an HS256 bearer token the way the account service does.
func signToken(secret string, userID uint, role string, ttl time.Duration) (string, error) {
	claims := &middleware.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func newTestRouter() (*gin.Engine, *config.Config) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Auth: config.AuthCfg{JwtSecret: "s3cret", AdminRole: "admin"}}
	// handlers are never reached by the requests below
	return NewRouter(RouterDeps{
		Config:          cfg,
		Log:             zap.NewNop(),
		SessionHandler:  handler.NewSessionHandler(nil, nil, zap.NewNop()),
		AnalysisHandler: handler.NewAnalysisHandler(nil, nil),
	}), cfg
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r, _ := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/swagger/index.html", w.Header().Get("Location"))
}

func TestRouter_AuthGates(t *testing.T) {
	r, cfg := newTestRouter()
	userTok, err := signToken(cfg.Auth.JwtSecret, 10, "user", time.Hour)
	require.NoError(t, err)
	adminTok, err := signToken(cfg.Auth.JwtSecret, 1, "admin", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"sessions need a token", http.MethodGet, "/api/v1/sessions", "", http.StatusUnauthorized},
		{"stream needs a token", http.MethodPost, "/api/v1/sessions/abc/stream", "", http.StatusUnauthorized},
		{"admin tasks need a token", http.MethodGet, "/api/v1/admin/analysis/tasks", "", http.StatusUnauthorized},
		{"admin tasks reject users", http.MethodGet, "/api/v1/admin/analysis/tasks", userTok, http.StatusForbidden},
		{"batch retry rejects users", http.MethodPost, "/api/v1/admin/analysis/tasks/batch_retry", userTok, http.StatusForbidden},
		{"admin analyze rejects users", http.MethodPost, "/api/v1/admin/analysis/diaries/7/analyze", userTok, http.StatusForbidden},
		{"ping with user token", http.MethodGet, "/api/v1/ping", userTok, http.StatusOK},
		{"ping with admin token", http.MethodGet, "/api/v1/ping", adminTok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
