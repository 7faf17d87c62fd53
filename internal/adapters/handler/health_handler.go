package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	serviceName  = "parking-service"
	checkTimeout = 5 * time.Second
)

// Checker reports whether one dependency is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
	// Message is reported when Check fails; the error itself is not exposed.
	Message string
}

func DatabaseCheck(db *sql.DB) Checker {
	return Checker{
		Name:    "database",
		Check:   db.PingContext,
		Message: "Cannot connect to database",
	}
}

func RedisCheck(client *redis.Client) Checker {
	return Checker{
		Name:    "redis",
		Check:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
		Message: "Cannot connect to Redis",
	}
}

type HealthHandler struct {
	checks    []Checker
	startTime time.Time
	version   string
}

// NewHealthHandler builds the probes. Only the dependencies of the
// configured backend are passed in, so a memory deployment is ready with
// no checks at all.
func NewHealthHandler(version string, checks ...Checker) *HealthHandler {
	if version == "" {
		version = "unknown"
	}
	return &HealthHandler{
		checks:    checks,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse follows Kubernetes/OpenShift health check conventions
type HealthResponse struct {
	Status    string           `json:"status"`
	Service   string           `json:"service"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health is a simple liveness check - just confirms the Go process is running
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	OK(w, r, h.response("UP", map[string]Check{"process": {Status: "UP"}}))
}

// Ready checks every configured dependency (readiness probe).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]Check, len(h.checks))
	status := "UP"
	httpStatus := http.StatusOK

	for _, c := range h.runChecks(r.Context()) {
		checks[c.name] = c.result
		if c.result.Status != "UP" {
			status = "DOWN"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	JSON(w, r, httpStatus, h.response(status, checks))
}

// Live is an alias for Health - simple liveness check
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	h.Health(w, r)
}

type namedCheck struct {
	name   string
	result Check
}

func (h *HealthHandler) runChecks(ctx context.Context) []namedCheck {
	results := make([]namedCheck, 0, len(h.checks))
	for _, c := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()

		result := Check{Status: "UP"}
		if err != nil {
			result = Check{Status: "DOWN", Message: c.Message}
		}
		results = append(results, namedCheck{name: c.Name, result: result})
	}
	return results
}

func (h *HealthHandler) response(status string, checks map[string]Check) HealthResponse {
	return HealthResponse{
		Status:    status,
		Service:   serviceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Checks:    checks,
	}
}
