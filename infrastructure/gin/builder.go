package gin

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/seo-pinger/infrastructure/jwt"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
)

// ServerBuilder provides a fluent API for building HTTP servers.
type ServerBuilder struct {
	config       *Config
	logger       logger.Logger
	setupRoutes  func(*gin.Engine)
	healthChecks map[string]HealthChecker
}

// NewServerBuilder creates a new server builder with the given configuration.
func NewServerBuilder(serviceName string, port int) *ServerBuilder {
	return &ServerBuilder{
		config:       NewConfig(serviceName, port),
		healthChecks: make(map[string]HealthChecker),
	}
}

// WithLogger sets the logger.
func (b *ServerBuilder) WithLogger(log logger.Logger) *ServerBuilder {
	b.logger = log
	return b
}

// WithDebug enables or disables debug mode.
func (b *ServerBuilder) WithDebug(debug bool) *ServerBuilder {
	b.config.Debug = debug
	return b
}

// WithVersion sets the service version.
func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.config.ServiceVersion = version
	return b
}

// WithCORSOrigins sets allowed CORS origins.
func (b *ServerBuilder) WithCORSOrigins(origins []string) *ServerBuilder {
	if len(origins) > 0 {
		b.config.CORS.AllowedOrigins = origins
	}
	return b
}

// WithTimeouts sets all timeout values for the HTTP server.
func (b *ServerBuilder) WithTimeouts(read, write, idle time.Duration) *ServerBuilder {
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	b.config.IdleTimeout = idle
	return b
}

// WithHealthCheck adds a named health check.
func (b *ServerBuilder) WithHealthCheck(name string, checker HealthChecker) *ServerBuilder {
	b.healthChecks[name] = checker
	return b
}

// WithRoutes sets the route setup function.
func (b *ServerBuilder) WithRoutes(setupRoutes func(*gin.Engine)) *ServerBuilder {
	b.setupRoutes = setupRoutes
	return b
}

// Build creates the server with all configured options.
func (b *ServerBuilder) Build() *Server {
	if b.logger == nil {
		b.logger = logger.Must(logger.Config{Development: b.config.Debug})
	}

	setup := func(router *gin.Engine) {
		RegisterHealthRoutes(router, HealthOptions{
			ServiceName:    b.config.ServiceName,
			ServiceVersion: b.config.ServiceVersion,
			Checks:         b.healthChecks,
		})

		if b.setupRoutes != nil {
			b.setupRoutes(router)
		}
	}

	return NewServer(b.config, b.logger, setup)
}

// ProtectedGroup creates a router group guarded by JWT authentication.
// An empty secret leaves the group open.
func ProtectedGroup(router *gin.Engine, path, jwtSecret string) *gin.RouterGroup {
	group := router.Group(path)
	if jwtSecret != "" {
		group.Use(jwt.Middleware(jwtSecret))
	}
	return group
}
