package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-gin-reservation-ledger/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type failingAuthorizer struct{}

func (failingAuthorizer) IsPrivileged(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims(email, subject string) *middleware.Claims {
	return &middleware.Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func setupRouter(authorizer middleware.Authorizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/", middleware.Authenticate(testSecret, authorizer))
	api.GET("/whoami", func(c *gin.Context) {
		identity, _ := middleware.Identity(c)
		c.JSON(http.StatusOK, gin.H{
			"identity":   identity,
			"privileged": middleware.IsPrivileged(c),
		})
	})
	api.GET("/admin", middleware.RequirePrivileged(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func doRequest(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	authorizer := middleware.NewStaticAuthorizer([]string{"Admin@Test.com"})
	router := setupRouter(authorizer)

	t.Run("Success - Email Identity", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("Ana@Test.com", "user-1"))

		w := doRequest(router, "/whoami", token)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"identity":"ana@test.com","privileged":false}`, w.Body.String())
	})

	t.Run("Success - Falls Back To Subject", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("", "user-1"))

		w := doRequest(router, "/whoami", token)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"identity":"user-1","privileged":false}`, w.Body.String())
	})

	t.Run("Success - Privileged", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("admin@test.com", ""))

		w := doRequest(router, "/whoami", token)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"identity":"admin@test.com","privileged":true}`, w.Body.String())
	})

	t.Run("Success - Query Token", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("ana@test.com", ""))

		w := doRequest(router, "/whoami?access_token="+token, "")

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Failed - Missing Token", func(t *testing.T) {
		w := doRequest(router, "/whoami", "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - Malformed Header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Basic abc")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - Wrong Secret", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), validClaims("ana@test.com", ""))

		w := doRequest(router, "/whoami", token)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - Expired", func(t *testing.T) {
		claims := validClaims("ana@test.com", "")
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims)

		w := doRequest(router, "/whoami", token)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - Other HMAC Method", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims("ana@test.com", ""))

		w := doRequest(router, "/whoami", token)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - No Identity", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("", ""))

		w := doRequest(router, "/whoami", token)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - Authorizer Error", func(t *testing.T) {
		failing := setupRouter(failingAuthorizer{})
		token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("ana@test.com", ""))

		w := doRequest(failing, "/whoami", token)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRequirePrivileged(t *testing.T) {
	router := setupRouter(middleware.NewStaticAuthorizer([]string{"admin@test.com"}))

	t.Run("Success", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("admin@test.com", ""))

		w := doRequest(router, "/admin", token)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Failed - Forbidden", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("ana@test.com", ""))

		w := doRequest(router, "/admin", token)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestStaticAuthorizer(t *testing.T) {
	authorizer := middleware.NewStaticAuthorizer([]string{" Admin@Test.com ", ""})

	ok, err := authorizer.IsPrivileged(context.Background(), "ADMIN@test.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = authorizer.IsPrivileged(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}
