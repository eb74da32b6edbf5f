// Package api mounts the event routes and probes on a gin router.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/eventfeed/errors"
	"github.com/kbukum/eventfeed/logger"
	"github.com/kbukum/eventfeed/server"
	"github.com/kbukum/eventfeed/server/endpoint"
	"github.com/kbukum/eventfeed/server/middleware"
	"github.com/kbukum/eventfeed/sse"
	"github.com/kbukum/eventfeed/validation"
)

// Source labels events published over HTTP.
const Source = "api"

// Config configures the event routes.
type Config struct {
	// MaxEventBytes bounds a published payload.
	MaxEventBytes int64 `mapstructure:"max_event_bytes"`

	// PublishRatePerMinute limits POST /api/events per client IP; 0 disables.
	PublishRatePerMinute int `mapstructure:"publish_rate_per_minute"`
}

// ApplyDefaults sets the payload limit.
func (c *Config) ApplyDefaults() {
	if c.MaxEventBytes == 0 {
		c.MaxEventBytes = 64 << 10
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if appErr := validation.New().
		Min("max_event_bytes", int(c.MaxEventBytes), 1).
		Min("publish_rate_per_minute", c.PublishRatePerMinute, 0).
		Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// Publisher appends a payload to the event log.
type Publisher interface {
	Publish(ctx context.Context, source string, payload []byte) (sse.Event, error)
}

// Routes holds what the router needs.
type Routes struct {
	ServiceName string
	Stream      http.Handler
	Publisher   Publisher
	// Authorize guards the publish route.
	Authorize gin.HandlerFunc
	Health    endpoint.HealthChecker
	// Extra runs before every route, e.g. request metrics.
	Extra []gin.HandlerFunc
}

// Register mounts the routes on r.
func Register(r gin.IRouter, cfg Config, routes Routes, log *logger.Logger) {
	cfg.ApplyDefaults()
	h := &publishHandler{
		publisher: routes.Publisher,
		maxBytes:  cfg.MaxEventBytes,
		log:       log.WithComponent("api"),
	}

	r.Use(routes.Extra...)
	r.GET("/health", endpoint.Health(routes.ServiceName, routes.Health))
	r.GET("/alive", endpoint.Liveness(routes.ServiceName))

	events := r.Group("/api/events")
	events.GET("", gin.WrapH(routes.Stream))

	publish := []gin.HandlerFunc{}
	if routes.Authorize != nil {
		publish = append(publish, routes.Authorize)
	}
	if cfg.PublishRatePerMinute > 0 {
		publish = append(publish, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.PublishRatePerMinute,
		}))
	}
	publish = append(publish, h.publish)
	events.POST("", publish...)
}

type publishHandler struct {
	publisher Publisher
	maxBytes  int64
	log       *logger.Logger
}

type publishResponse struct {
	ID string `json:"id"`
}

func (h *publishHandler) publish(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			server.RespondWithError(c, errors.PayloadTooLarge(maxErr.Limit))
			return
		}
		server.RespondWithError(c, errors.InvalidInput("body", "could not read request body").WithCause(err))
		return
	}
	if int64(len(body)) > h.maxBytes {
		server.RespondWithError(c, errors.PayloadTooLarge(h.maxBytes))
		return
	}

	if appErr := validation.New().
		Custom(len(body) > 0, "body", "is required").
		Custom(len(body) == 0 || json.Valid(body), "body", "must be a JSON document").
		Validate(); appErr != nil {
		server.RespondWithError(c, appErr)
		return
	}

	ev, err := h.publisher.Publish(c.Request.Context(), Source, body)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("Publish failed", logger.Fields(logger.FieldError, err.Error()))
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, publishResponse{ID: ev.ID})
}
