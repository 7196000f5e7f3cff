package http

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is satisfied by pgxpool.Pool.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports how many realtime connections are registered.
type ConnectionCounter interface {
	Len() int
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db          HealthChecker
	connections ConnectionCounter
	startTime   time.Time
	version     string
}

func NewHealthHandler(db HealthChecker, connections ConnectionCounter, version string) *HealthHandler {
	return &HealthHandler{
		db:          db,
		connections: connections,
		startTime:   time.Now(),
		version:     version,
	}
}

// HealthResponse is the JSON body for both probe endpoints.
type HealthResponse struct {
	Status      string           `json:"status"`
	Timestamp   string           `json:"timestamp"`
	Version     string           `json:"version,omitempty"`
	Uptime      string           `json:"uptime,omitempty"`
	Connections *int             `json:"connections,omitempty"`
	Checks      map[string]Check `json:"checks,omitempty"`
}

// Check is the result of probing a single dependency.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HandleLiveness reports that the process is up. It never touches
// dependencies so a struggling database cannot get the process restarted.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness reports whether the service can take traffic. The database
// is probed with a short timeout; failures return 503.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbCheck := h.checkDatabase(ctx)

	response := HealthResponse{
		Status:    dbCheck.Status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    map[string]Check{"database": dbCheck},
	}
	if h.connections != nil {
		count := h.connections.Len()
		response.Connections = &count
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	WriteJSON(w, statusCode, response)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	if h.db == nil {
		return Check{Status: "unhealthy", Message: "Database not configured"}
	}

	start := time.Now()
	err := h.db.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{
			Status:  "unhealthy",
			Message: err.Error(),
			Latency: latency.String(),
		}
	}
	return Check{Status: "healthy", Latency: latency.String()}
}
