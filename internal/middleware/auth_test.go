package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DauBapp/WebCoCaro-DACN/internal/repository/mocks"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.MustGet("user_id"), "username": c.GetString("username")})
	})
	return r
}

func TestAuth(t *testing.T) {
	valid := signToken(t, testSecret, jwt.MapClaims{
		"user_id":  42,
		"username": "neo",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, "other", jwt.MapClaims{"user_id": 42})
	badClaim := signToken(t, testSecret, jwt.MapClaims{"user_id": "42"})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{"bearer header", "/me", "Bearer " + valid, http.StatusOK},
		{"query token", "/me?token=" + valid, "", http.StatusOK},
		{"missing", "/me", "", http.StatusUnauthorized},
		{"malformed header", "/me", "Token " + valid, http.StatusUnauthorized},
		{"expired", "/me", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "/me", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"non numeric user id", "/me", "Bearer " + badClaim, http.StatusUnauthorized},
	}
	r := newAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"user_id":42,"username":"neo"}`, w.Body.String())
			}
		})
	}
}

func TestAuth_EmptySecretPanics(t *testing.T) {
	assert.Panics(t, func() { Auth("") })
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := new(mocks.StateRepository)
	limiter.On("CheckRateLimit", mock.Anything, "ip:192.0.2.1", 2, time.Second).Return(false, nil).Once()
	limiter.On("CheckRateLimit", mock.Anything, "ip:192.0.2.1", 2, time.Second).Return(true, nil).Once()

	r := gin.New()
	r.Use(RateLimit(limiter, 2, time.Second))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code)
	}
	limiter.AssertExpectations(t)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}
