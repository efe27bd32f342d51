package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wardenauth/warden/internal/infrastructure/crypto"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	keys *crypto.KeyManager
}

// NewHealthHandler creates the handler.
func NewHealthHandler(keys *crypto.KeyManager) *HealthHandler {
	return &HealthHandler{keys: keys}
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready. The service is ready once a signing
// key is active; degraded persistence is reported but does not fail
// the probe, since the service still validates and signs from memory.
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, err := h.keys.CurrentKeyID(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no_active_key"})
		return
	}
	status := "ok"
	if h.keys.Degraded() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
