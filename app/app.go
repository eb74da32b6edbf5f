package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/eventfeed/api"
	"github.com/kbukum/eventfeed/auth"
	"github.com/kbukum/eventfeed/auth/jwt"
	"github.com/kbukum/eventfeed/bootstrap"
	"github.com/kbukum/eventfeed/component"
	"github.com/kbukum/eventfeed/database"
	"github.com/kbukum/eventfeed/eventstore"
	"github.com/kbukum/eventfeed/eventstore/redisstore"
	"github.com/kbukum/eventfeed/eventstore/sqlstore"
	"github.com/kbukum/eventfeed/kafka"
	"github.com/kbukum/eventfeed/logger"
	"github.com/kbukum/eventfeed/metrics"
	"github.com/kbukum/eventfeed/observability"
	"github.com/kbukum/eventfeed/redis"
	"github.com/kbukum/eventfeed/server"
	"github.com/kbukum/eventfeed/sse"
)

// Registry is the part of component.Registry Build needs.
type Registry interface {
	Register(c component.Component) error
	HealthAll(ctx context.Context) []component.Health
}

// Service is the built component graph.
type Service struct {
	Feed    *eventstore.Feed
	Hub     *eventstore.Hub
	Store   eventstore.Store
	Server  *server.Server
	Metrics *metrics.Metrics
	Stream  *sse.Handler
}

// New creates the bootstrap application for cfg.
func New(cfg *Config, opts ...bootstrap.Option) (*bootstrap.App[*Config], error) {
	a, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}
	a.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		_, err := Build(ctx, a.Cfg, a.Logger, a.Components)
		return err
	})
	return a, nil
}

// Build constructs every component for cfg and registers them on reg in
// start order. Stop runs in reverse, so the hub ends open streams before
// the HTTP server drains.
func Build(ctx context.Context, cfg *Config, log *logger.Logger, reg Registry) (*Service, error) {
	svc := &Service{Metrics: metrics.New(), Hub: eventstore.NewHub(log)}
	info := observability.ServiceInfo{Name: cfg.Name, Version: cfg.Version, Environment: cfg.Environment}

	var comps []component.Component
	comps = append(comps, observability.NewTracerComponent(cfg.Tracing, info, log))

	store, storeComps, err := buildStore(ctx, cfg, svc.Hub, log)
	if err != nil {
		return nil, err
	}
	svc.Store = store
	comps = append(comps, storeComps...)

	svc.Feed = eventstore.NewFeed(store, svc.Hub, cfg.Store.Feed,
		eventstore.WithFeedLogger(log),
		eventstore.WithPublishObserver(svc.Metrics),
	)

	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(cfg.Kafka, svc.Feed, log)
		if err != nil {
			return nil, err
		}
		comps = append(comps, kafka.NewComponent(consumer, cfg.Kafka.Brokers, log))
	}

	var jwtSvc *jwt.Service
	if cfg.Auth.JWT != nil {
		if jwtSvc, err = jwt.NewService(*cfg.Auth.JWT); err != nil {
			return nil, err
		}
	}
	authz, err := auth.NewRequestAuthorizer(cfg.Auth, jwtSvc, log)
	if err != nil {
		return nil, err
	}

	svc.Stream = sse.NewHandler(svc.Feed, authz,
		sse.WithConfig(cfg.SSE),
		sse.WithLogger(log),
		sse.WithObserver(svc.Metrics),
	)

	svc.Server = server.New(cfg.Server, log)
	api.Register(svc.Server.GinEngine(), cfg.API, api.Routes{
		ServiceName: cfg.Name,
		Stream:      svc.Stream,
		Publisher:   svc.Feed,
		Authorize:   authz.Middleware(),
		Health:      reg.HealthAll,
		Extra:       []gin.HandlerFunc{svc.Metrics.Middleware()},
	}, log)
	comps = append(comps, server.NewComponent(svc.Server), eventstore.NewHubComponent(svc.Hub))

	if cfg.Metrics.Enabled {
		comps = append(comps, metrics.NewServer(cfg.Metrics, svc.Metrics, log))
	}

	for _, c := range comps {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	log.Info("Service configured", logger.Fields(
		logger.FieldBackend, cfg.Store.Backend,
		"auth", cfg.Auth.Describe(),
		"addr", cfg.Server.Addr(),
	))
	return svc, nil
}

func buildStore(ctx context.Context, cfg *Config, hub *eventstore.Hub, log *logger.Logger) (eventstore.Store, []component.Component, error) {
	switch cfg.Store.Backend {
	case BackendMemory:
		return eventstore.NewMemoryStore(cfg.Store.Retain), nil, nil

	case BackendSQLite:
		db, err := database.Open(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		store := sqlstore.New(db.GormDB)
		comps := []component.Component{
			database.Attach(db, cfg.Database, log).WithAutoMigrate(&sqlstore.Record{}),
		}
		if cfg.Store.Retention > 0 {
			comps = append(comps, sqlstore.NewPruner(store, cfg.Store.Retention, cfg.Store.PruneInterval, log))
		}
		return store, comps, nil

	case BackendRedis:
		client, err := redis.New(cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		store := redisstore.New(client.Unwrap(), cfg.Store.Stream, log)
		return store, []component.Component{
			redis.Attach(client, cfg.Redis, log),
			redisstore.NewListener(client.Unwrap(), cfg.Store.Stream, hub, log),
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// ShutdownTimeout is how long the bootstrap app waits for components to stop.
func ShutdownTimeout(cfg *Config) time.Duration {
	return time.Duration(cfg.Server.ShutdownTimeout+10) * time.Second
}
