package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/session"
)

const (
	RequestIDHeader = "X-Request-ID"

	contextKeyRequestID    = "httpapi_request_id"
	contextKeySessionStore = "httpapi_session_store"
	requestIDMaxLength     = 128
)

// RequestLogger assigns a request id, echoes it in the response and logs every request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(context.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > requestIDMaxLength {
			requestID = uuid.NewString()
		}
		context.Set(contextKeyRequestID, requestID)
		context.Header(RequestIDHeader, requestID)

		context.Next()

		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
			zap.String("request_id", requestID),
		)
	}
}

// RequestIDFromContext returns the id assigned by RequestLogger.
func RequestIDFromContext(context *gin.Context) string {
	return context.GetString(contextKeyRequestID)
}

// SessionMiddleware opens the browser's session store once per request.
func SessionMiddleware(manager *session.Manager) gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Set(contextKeySessionStore, manager.Open(context.Writer, context.Request))
		context.Next()
	}
}

// SessionFromContext returns the store opened by SessionMiddleware.
func SessionFromContext(context *gin.Context) (*session.Store, bool) {
	value, exists := context.Get(contextKeySessionStore)
	if !exists {
		return nil, false
	}
	store, ok := value.(*session.Store)
	return store, ok && store != nil
}
