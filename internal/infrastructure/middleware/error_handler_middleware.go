package middleware

import (
	"errors"
	"net/http"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/services"
	apperrors "callplayer/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware turns the last error attached with c.Error into a
// structured JSON response.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr := apperrors.GetAppError(err)
		if appErr == nil {
			appErr = FromDomainError(err)
		}

		fields := []interface{}{
			"code", appErr.Code,
			"message", appErr.Message,
			"status", appErr.HTTPStatus,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err.Error(),
		}
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("request failed", fields...)
		} else {
			logger.Debugw("request rejected", fields...)
		}

		body := gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// FromDomainError maps player errors onto API errors. The message is what
// the chat user would be told.
func FromDomainError(err error) *apperrors.AppError {
	msg := services.ReplyForError(err)

	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnknownQuality):
		return apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, msg, http.StatusBadRequest)
	case errors.Is(err, domain.ErrAccessDenied):
		return apperrors.WrapError(err, apperrors.ErrCodeForbidden, msg, http.StatusForbidden)
	case errors.Is(err, domain.ErrNoActiveCall):
		return apperrors.WrapError(err, apperrors.ErrCodeNoActiveCall, msg, http.StatusConflict)
	case errors.Is(err, domain.ErrNothingPlaying),
		errors.Is(err, domain.ErrAlreadyPaused),
		errors.Is(err, domain.ErrAlreadyPlaying):
		return apperrors.WrapError(err, apperrors.ErrCodeNothingPlaying, msg, http.StatusConflict)
	case errors.Is(err, domain.ErrQueueFull):
		return apperrors.WrapError(err, apperrors.ErrCodeQueueFull, msg, http.StatusTooManyRequests)
	case errors.Is(err, domain.ErrResolution):
		return apperrors.WrapError(err, apperrors.ErrCodeResolution, msg, http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrTransportUnavailable):
		return apperrors.WrapError(err, apperrors.ErrCodeServiceUnavailable, msg, http.StatusServiceUnavailable)
	}
	return apperrors.WrapError(err, apperrors.ErrCodeInternal, "Internal server error", http.StatusInternalServerError)
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperrors.ErrCodeInternal),
					"message": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}
