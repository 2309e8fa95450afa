package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/caesarsage/mini-pm/internal/auth"
	"github.com/caesarsage/mini-pm/internal/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	sessionKey      = "minipm_session"
)

// RequestID reuses an incoming X-Request-ID or assigns a new one, and puts
// a request-scoped logger on the request context.
func (s *Server) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		l := s.logger.With("request_id", id)
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), l))
		c.Next()
	}
}

// RequestLogger logs one line per request after it completes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		l := logger.FromContext(c.Request.Context())
		args := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
		}
		switch {
		case status >= http.StatusInternalServerError:
			l.Error("request", args...)
		case status >= http.StatusBadRequest:
			l.Warn("request", args...)
		default:
			l.Info("request", args...)
		}
	}
}

// CORS allows any origin, method and header.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a live bearer session.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortError(c, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		sess, err := s.sessions.Validate(token)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(sessionKey, sess)
		l := logger.FromContext(c.Request.Context()).With("user_id", sess.UserID)
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), l))
		c.Next()
	}
}

// currentSession returns the session stored by RequireAuth.
func currentSession(c *gin.Context) auth.Session {
	v, _ := c.Get(sessionKey)
	sess, _ := v.(auth.Session)
	return sess
}

// RateLimit applies a shared token bucket; exhausted requests get 429.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			abortError(c, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		c.Next()
	}
}
