// Package api assembles the seo-pinger HTTP server.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	infragin "github.com/jonesrussell/seo-pinger/infrastructure/gin"
	infralogger "github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultReadTimeout = 10 * time.Second
	defaultIdleTimeout = 60 * time.Second
	redisPingTimeout   = 2 * time.Second
)

// NewServer creates the HTTP server. rdb may be nil; when set its health is
// reported under /health.
func NewServer(cfg *config.Config, rt Routes, rdb *redis.Client, log infralogger.Logger, done <-chan struct{}) *infragin.Server {
	rt.JWTSecret = cfg.Auth.JWTSecret
	rt.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
	rt.Burst = cfg.RateLimit.Burst

	b := infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORSOrigins(cfg.Service.CORSOrigins).
		WithTimeouts(defaultReadTimeout, infragin.DefaultWriteTimeout, defaultIdleTimeout).
		WithRoutes(func(router *gin.Engine) {
			SetupRoutes(router, rt, log, done)
		})

	if rdb != nil {
		b = b.WithHealthCheck("redis", infragin.PingHealthChecker("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
			defer cancel()
			return rdb.Ping(ctx).Err()
		}))
	}

	return b.Build()
}
