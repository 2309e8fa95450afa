// Package api exposes the project manager over HTTP with gin.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/caesarsage/mini-pm/internal/auth"
	"github.com/caesarsage/mini-pm/internal/schedule"
	"github.com/caesarsage/mini-pm/internal/storage"
)

const bannerText = "Mini Project Manager API is running"

type Options struct {
	Store    storage.Storage
	Sessions *auth.SessionManager

	GhostPolicy schedule.GhostPolicy
	// Limiter guards the schedule endpoint. Nil means unlimited.
	Limiter *rate.Limiter

	Logger *slog.Logger
	// Registry receives the service metrics. Nil creates a private one.
	Registry    *prometheus.Registry
	ServiceName string
}

type Server struct {
	store     storage.Storage
	sessions  *auth.SessionManager
	scheduler *schedule.Scheduler
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    *slog.Logger
	service   string
	now       func() time.Time
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "minipm"
	}

	m := NewMetrics(opts.Registry)
	if opts.Sessions != nil {
		m.TrackSessions(opts.Sessions.Len)
	}
	return &Server{
		store:    opts.Store,
		sessions: opts.Sessions,
		scheduler: schedule.New(
			schedule.WithGhostPolicy(opts.GhostPolicy),
			schedule.WithObserver(m),
		),
		limiter: opts.Limiter,
		metrics: m,
		logger:  opts.Logger,
		service: opts.ServiceName,
		now:     time.Now,
	}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(s.service),
		s.RequestID(),
		RequestLogger(),
		s.metrics.Middleware(),
		CORS(),
	)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, bannerText)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	secured := api.Group("", s.RequireAuth())
	secured.POST("/auth/logout", s.logout)
	secured.GET("/projects", s.listProjects)
	secured.POST("/projects", s.createProject)
	secured.GET("/projects/:id", s.getProject)
	secured.DELETE("/projects/:id", s.deleteProject)
	secured.GET("/projects/:id/tasks", s.listTasks)
	secured.POST("/projects/:id/tasks", s.createTask)
	secured.POST("/projects/:id/schedule", RateLimit(s.limiter), s.scheduleProject)
	secured.PUT("/tasks/:taskId", s.updateTask)
	secured.DELETE("/tasks/:taskId", s.deleteTask)

	return r
}
