// internal/handlers/health/health_handler.go
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medconnect-service/internal/pkg/response"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]Check
	clients func() int
}

// NewHealthHandler takes named dependency checks and an optional live
// connection counter.
func NewHealthHandler(checks map[string]Check, clients func() int) *HealthHandler {
	return &HealthHandler{checks: checks, clients: clients}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	data := gin.H{"dependencies": status, "timestamp": time.Now().UTC()}
	if h.clients != nil {
		data["websocketClients"] = h.clients()
	}

	if !healthy {
		response.Error(c, http.StatusServiceUnavailable, "service degraded", nil, data)
		return
	}
	response.Success(c, http.StatusOK, "service healthy", data)
}
