package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/services"
	apperrors "callplayer/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthMiddleware(t *testing.T) {
	auth := services.NewAuthService("secret", time.Hour)
	token, err := auth.GenerateToken(42, "alice")
	require.NoError(t, err)

	router := gin.New()
	router.Use(AuthMiddleware(auth))
	router.GET("/me", func(c *gin.Context) {
		id, ok := UserIDFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id, "username": c.GetString(ContextUsername)})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid bearer", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"no token", "Bearer", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)

			if tt.want == http.StatusOK {
				var body struct {
					UserID   int64  `json:"user_id"`
					Username string `json:"username"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, int64(42), body.UserID)
				assert.Equal(t, "alice", body.Username)
			}
		})
	}
}

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		err    error
		code   apperrors.ErrorCode
		status int
	}{
		{fmt.Errorf("%w: usage: /play <query>", domain.ErrInvalidRequest), apperrors.ErrCodeInvalidInput, http.StatusBadRequest},
		{domain.ErrAccessDenied, apperrors.ErrCodeForbidden, http.StatusForbidden},
		{domain.ErrNoActiveCall, apperrors.ErrCodeNoActiveCall, http.StatusConflict},
		{domain.ErrNothingPlaying, apperrors.ErrCodeNothingPlaying, http.StatusConflict},
		{domain.ErrAlreadyPaused, apperrors.ErrCodeNothingPlaying, http.StatusConflict},
		{fmt.Errorf("%w: 10 requests already waiting", domain.ErrQueueFull), apperrors.ErrCodeQueueFull, http.StatusTooManyRequests},
		{fmt.Errorf("%w: no formats", domain.ErrResolution), apperrors.ErrCodeResolution, http.StatusUnprocessableEntity},
		{fmt.Errorf("failed to start stream: %w", domain.ErrTransportUnavailable), apperrors.ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), apperrors.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			appErr := FromDomainError(tt.err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.ErrorIs(t, appErr, tt.err)
		})
	}

	assert.Equal(t, "usage: /play <query>",
		FromDomainError(fmt.Errorf("%w: usage: /play <query>", domain.ErrInvalidRequest)).Message)
}

func TestErrorHandlerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.GET("/domain", func(c *gin.Context) {
		c.Error(domain.ErrNoActiveCall)
	})
	router.GET("/app", func(c *gin.Context) {
		c.Error(apperrors.NewNotFoundError("chat").WithContext("chat_id", -100))
	})
	router.GET("/written", func(c *gin.Context) {
		c.String(http.StatusAccepted, "accepted")
		c.Error(errors.New("late"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/domain", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NO_ACTIVE_CALL", body["error"])
	assert.Equal(t, "No active voice chat found.", body["message"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	body = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{"chat_id": float64(-100)}, body["details"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RecoveryMiddleware(zap.NewNop().Sugar()))
	router.GET("/panic", func(c *gin.Context) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

type recordedRequest struct {
	method, path string
	status       int
}

type fakeRecorder struct {
	requests []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(method, path string, status int, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method, path, status})
}

func TestRequestIDAndAccessLog(t *testing.T) {
	rec := &fakeRecorder{}
	router := gin.New()
	router.Use(RequestIDMiddleware(), TracingMiddleware(), AccessLogMiddleware(nil, rec))
	router.GET("/chats/:chat_id/queue", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chats/-1/queue", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	require.Len(t, rec.requests, 2)
	assert.Equal(t, recordedRequest{http.MethodGet, "/chats/:chat_id/queue", http.StatusNoContent}, rec.requests[0])
	assert.Equal(t, recordedRequest{http.MethodGet, "unmatched", http.StatusNotFound}, rec.requests[1])
}
