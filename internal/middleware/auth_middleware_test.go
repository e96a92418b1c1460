package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/services"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/utils"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/pkg/jwt"
)

const testIssuer = "kjkhandala-reservations"

func setupTestJWTService() *jwt.Service {
	return jwt.NewService("test-access-secret-key-123456789", testIssuer, time.Hour)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()

	userID := uuid.New()
	token, err := jwtService.GenerateAccessToken(userID, []string{services.RoleCustomer})
	require.NoError(t, err)

	router.GET("/protected", AuthMiddleware(jwtService, testLogger()), func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		require.True(t, exists)
		c.JSON(http.StatusOK, gin.H{"message": "success", "user_id": userCtx.UserID})
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()
	router.GET("/protected", AuthMiddleware(jwtService, testLogger()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
	})

	expired, err := jwt.NewService("test-access-secret-key-123456789", testIssuer, -time.Minute).
		GenerateAccessToken(uuid.New(), []string{services.RoleCustomer})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"Missing Header", "", "MISSING_AUTH_HEADER"},
		{"Missing Bearer", "some-token", "INVALID_AUTH_FORMAT"},
		{"Wrong Prefix", "Basic some-token", "INVALID_AUTH_FORMAT"},
		{"Empty Bearer", "Bearer ", "INVALID_AUTH_FORMAT"},
		{"Garbage Token", "Bearer not.a.token", "INVALID_TOKEN"},
		{"Expired Token", "Bearer " + expired, "TOKEN_EXPIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			assert.NotContains(t, w.Body.String(), "should not reach here")
		})
	}
}

func TestRequireRole(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()
	router.POST("/confirm",
		AuthMiddleware(jwtService, testLogger()),
		RequireRole(services.RoleAgent, services.RoleAdmin),
		func(c *gin.Context) { c.Status(http.StatusNoContent) },
	)

	tests := []struct {
		name     string
		roles    []string
		expected int
	}{
		{"agent allowed", []string{services.RoleAgent}, http.StatusNoContent},
		{"admin allowed", []string{services.RoleCustomer, services.RoleAdmin}, http.StatusNoContent},
		{"customer forbidden", []string{services.RoleCustomer}, http.StatusForbidden},
		{"no roles forbidden", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := jwtService.GenerateAccessToken(uuid.New(), tt.roles)
			require.NoError(t, err)

			req := httptest.NewRequest("POST", "/confirm", bytes.NewBufferString("{}"))
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	router := setupTestRouter()
	router.GET("/admin", RequireRole(services.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_USER_CONTEXT")
}

func TestActorFrom(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()

	var captured services.Actor
	handler := func(c *gin.Context) {
		captured = ActorFrom(c)
		c.Status(http.StatusOK)
	}
	router.GET("/anonymous", handler)
	router.GET("/authenticated", AuthMiddleware(jwtService, testLogger()), handler)

	t.Run("Anonymous", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/anonymous", nil)
		req.Header.Set("User-Agent", "okhttp/4.9.3")
		router.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, uuid.Nil, captured.UserID)
		assert.Empty(t, captured.Roles)
		assert.Equal(t, utils.ChannelMobileApp, captured.Channel)
	})

	t.Run("Authenticated", func(t *testing.T) {
		userID := uuid.New()
		token, err := jwtService.GenerateAccessToken(userID, []string{services.RoleAgent})
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/authenticated", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, userID, captured.UserID)
		assert.True(t, captured.IsStaff())
		assert.Equal(t, utils.ChannelUnknown, captured.Channel)
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	router := setupTestRouter()
	router.Use(RequestLogger(logger))
	router.GET("/trips/:ref/seats", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest("GET", "/trips/abc/seats", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-123", line["request_id"])
	assert.Equal(t, "/trips/:ref/seats", line["path"])
	assert.Equal(t, float64(http.StatusNotFound), line["status"])
	assert.Equal(t, "warning", line["level"])
}
