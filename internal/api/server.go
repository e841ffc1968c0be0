// Package api implements the HTTP surface of the field CRM service.
package api

import (
    "context"
    "fmt"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "fieldcrm/internal/access"
    "fieldcrm/internal/analytics"
    "fieldcrm/internal/auth"
    "fieldcrm/internal/config"
    "fieldcrm/internal/geo"
    "fieldcrm/internal/metrics"
    "fieldcrm/internal/routing"
    "fieldcrm/internal/store"
)

// latestLocationTTL bounds how long a cached latest ping is trusted.
const latestLocationTTL = 24 * time.Hour

type Server struct {
    Cfg       config.Config
    Log       *zap.Logger
    Store     store.Store
    Gate      access.Gate
    Planner   *routing.Planner
    Analytics *analytics.Aggregator
    Estimator geo.Estimator
    Auth      *auth.Verifier
    Broker    EventBroker
    Now       func() time.Time

    limiter *callerLimiter
    checks  []func(ctx context.Context) error
    closers []func() error
}

// NewServer wires the store, broker and domain services from cfg. If database_url is
// unset, uses the in-memory store.
func NewServer(cfg config.Config, log *zap.Logger) (*Server, error) {
    if log == nil { log = zap.NewNop() }
    s := &Server{Cfg: cfg, Log: log, Now: time.Now}

    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        s.Store = store.NewMemory()
    } else {
        pg, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil { return nil, fmt.Errorf("postgres: %w", err) }
        s.closers = append(s.closers, pg.Close)
        s.checks = append(s.checks, pg.Ping)
        if cfg.DBMigrate {
            ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
            err := pg.Migrate(ctx)
            cancel()
            if err != nil {
                s.Close()
                return nil, fmt.Errorf("migrate: %w", err)
            }
        }
        s.Store = pg
    }

    var rdb *redis.Client
    if cfg.RedisURL != "" {
        opt, err := redis.ParseURL(cfg.RedisURL)
        if err != nil {
            s.Close()
            return nil, fmt.Errorf("redis url: %w", err)
        }
        rdb = redis.NewClient(opt)
        s.closers = append(s.closers, rdb.Close)
        s.checks = append(s.checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
        s.Store = store.NewLocationCache(s.Store, rdb, latestLocationTTL)
    }

    // Broker selection
    switch cfg.Broker {
    case "redis":
        if rdb == nil {
            s.Close()
            return nil, fmt.Errorf("broker redis requires redis_url")
        }
        s.Broker = NewRedisBroker(rdb, log)
    case "amqp":
        ab, err := NewAMQPBroker(cfg.AMQPURL, log)
        if err != nil {
            s.Close()
            return nil, err
        }
        s.closers = append(s.closers, ab.Close)
        s.Broker = ab
    default:
        s.Broker = NewBroker()
    }

    s.Estimator = cfg.DistanceEstimator()
    s.Gate = access.NewGate(s.Store)
    s.Planner = routing.NewPlanner(s.Store, cfg.RouteEstimator())
    s.Analytics = analytics.NewAggregator(s.Gate, func() time.Time { return s.Now() })
    s.Auth = auth.NewVerifier(cfg)
    s.limiter = newCallerLimiter(cfg.RateRPS, cfg.RateBurst)
    metrics.RegisterDefault()
    return s, nil
}

// Close releases connections in reverse order of acquisition.
func (s *Server) Close() {
    for i := len(s.closers) - 1; i >= 0; i-- {
        if err := s.closers[i](); err != nil {
            s.Log.Warn("close failed", zap.Error(err))
        }
    }
    s.closers = nil
}
