package gin

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/seo-pinger/infrastructure/monitoring"
)

// HealthStatus represents the status of a health check.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of an individual health check.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthChecker performs one health check.
type HealthChecker func() CheckResult

// HealthOptions configures the health endpoints.
type HealthOptions struct {
	ServiceName    string
	ServiceVersion string
	Checks         map[string]HealthChecker
}

var startTime = sync.OnceValue(time.Now)

// RegisterHealthRoutes adds:
//   - GET /health with status, version, uptime and named checks
//   - HEAD /health for load balancers
//   - GET /health/memory with runtime memory statistics
func RegisterHealthRoutes(router *gin.Engine, opts HealthOptions) {
	started := startTime()

	router.GET("/health", func(c *gin.Context) {
		response := HealthResponse{
			Status:  HealthStatusHealthy,
			Service: opts.ServiceName,
			Version: opts.ServiceVersion,
			Uptime:  formatUptime(time.Since(started)),
		}

		if len(opts.Checks) > 0 {
			response.Checks = make(map[string]CheckResult, len(opts.Checks))
			for name, checker := range opts.Checks {
				result := checker()
				response.Checks[name] = result
				response.Status = worse(response.Status, result.Status)
			}
		}

		statusCode := http.StatusOK
		if response.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, response)
	})
	router.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health/memory", func(c *gin.Context) {
		c.JSON(http.StatusOK, monitoring.ReadMemoryHealth())
	})
}

func worse(current, next HealthStatus) HealthStatus {
	switch {
	case next == HealthStatusUnhealthy:
		return HealthStatusUnhealthy
	case next == HealthStatusDegraded && current == HealthStatusHealthy:
		return HealthStatusDegraded
	default:
		return current
	}
}

func formatUptime(d time.Duration) string {
	const hoursPerDay = 24

	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// PingHealthChecker reports degraded when pingFunc fails. Used for optional
// dependencies such as the Redis suggestion cache.
func PingHealthChecker(name string, pingFunc func() error) HealthChecker {
	return func() CheckResult {
		start := time.Now()
		err := pingFunc()
		latency := time.Since(start).String()

		if err != nil {
			return CheckResult{
				Status:  HealthStatusDegraded,
				Message: name + " connection failed",
				Latency: latency,
			}
		}
		return CheckResult{
			Status:  HealthStatusHealthy,
			Message: name + " connection OK",
			Latency: latency,
		}
	}
}
