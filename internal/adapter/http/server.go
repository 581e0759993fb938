// Package http serves the forecast query API together with the health,
// readiness, and metrics endpoints.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sellinios/aethra/internal/domain"
	"github.com/sellinios/aethra/internal/observability"
	"github.com/sellinios/aethra/internal/query"
)

// Forecasts answers the per-place forecast queries.
type Forecasts interface {
	Weather(ctx context.Context, slug string) (query.Forecast, error)
	Daily(ctx context.Context, slug string) (query.DailyForecast, error)
	Alerts(ctx context.Context, slug string) (query.Conditions, error)
}

// Server exposes the query API plus /healthz, /readyz, and /metrics.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the gin router and wraps it in an http.Server.
func NewServer(addr string, forecasts Forecasts, ready sharedobs.ReadinessChecker, logger *slog.Logger, metrics *observability.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger, metrics))

	r.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	r.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(ready)))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers{forecasts: forecasts, logger: logger}
	places := r.Group("/api/v1/places/:slug")
	{
		places.GET("/weather", h.weather)
		places.GET("/daily", h.daily)
		places.GET("/alerts", h.alerts)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// requestLogger counts every request by matched route and logs API calls
// at debug level.
func requestLogger(logger *slog.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		logger.Debug("http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
		)
	}
}

type handlers struct {
	forecasts Forecasts
	logger    *slog.Logger
}

func (h *handlers) weather(c *gin.Context) {
	fc, err := h.forecasts.Weather(c.Request.Context(), c.Param("slug"))
	h.respond(c, fc, err)
}

func (h *handlers) daily(c *gin.Context) {
	fc, err := h.forecasts.Daily(c.Request.Context(), c.Param("slug"))
	h.respond(c, fc, err)
}

func (h *handlers) alerts(c *gin.Context) {
	cond, err := h.forecasts.Alerts(c.Request.Context(), c.Param("slug"))
	h.respond(c, cond, err)
}

func (h *handlers) respond(c *gin.Context, body any, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, body)
	case errors.Is(err, domain.ErrPlaceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "place not found", "slug": c.Param("slug")})
	default:
		h.logger.Error("query failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
