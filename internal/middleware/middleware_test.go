package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func staffRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/me", RequireStaff(testSecret, "staff", "admin"), func(c *gin.Context) {
		c.String(http.StatusOK, StaffID(c)+"|"+c.GetString(ContextStaffRole))
	})
	r.GET("/admin", RequireStaff(testSecret), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r *gin.Engine, path string, setup func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireStaff(t *testing.T) {
	r := staffRouter()
	valid := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		"role": "staff",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	t.Run("bearer header", func(t *testing.T) {
		w := get(r, "/me", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+valid) })
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7|staff", w.Body.String())
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("cookie", func(t *testing.T) {
		w := get(r, "/me", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "access_token", Value: valid}) })
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, get(r, "/me", nil).Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := get(r, "/me", func(req *http.Request) { req.Header.Set("Authorization", valid) })
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged := signToken(t, []byte("other"), jwt.MapClaims{"sub": "x", "role": "staff"})
		w := get(r, "/me", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+forged) })
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired", func(t *testing.T) {
		expired := signToken(t, testSecret, jwt.MapClaims{"sub": "x", "role": "staff", "exp": time.Now().Add(-time.Minute).Unix()})
		w := get(r, "/me", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+expired) })
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("role not allowed", func(t *testing.T) {
		anon := signToken(t, testSecret, jwt.MapClaims{"sub": "x", "role": "anon"})
		w := get(r, "/me", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+anon) })
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("require role", func(t *testing.T) {
		w := get(r, "/admin", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+valid) })
		assert.Equal(t, http.StatusForbidden, w.Code)

		admin := signToken(t, testSecret, jwt.MapClaims{"sub": "x", "role": "admin"})
		w = get(r, "/admin", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+admin) })
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestSecureHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecureHeaders(false))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := get(r, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	prod := gin.New()
	prod.Use(SecureHeaders(true))
	prod.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	w = get(prod, "http://billing.example/ping", nil)
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
}
