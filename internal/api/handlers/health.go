package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/pkg/utils"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/version"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

const healthCheckTimeout = 2 * time.Second

// Health returns the health status of the service. The status is 503 when
// the database cannot be reached.
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK

	database := gin.H{"connected": true}
	if err := h.db.PingContext(ctx); err != nil {
		h.log.WithError(err).Warn("Health check: database ping failed")
		status = "unhealthy"
		code = http.StatusServiceUnavailable
		database = gin.H{"connected": false, "error": err.Error()}
	}

	health := gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "telemetry-backend-go",
		"version":   version.GetBuildInfo(),
		"database":  database,
	}

	if h.wsHub != nil {
		health["websocket_clients"] = h.wsHub.GetClientCount()
	}

	system := gin.H{}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		system["memory_used_percent"] = vm.UsedPercent
		system["memory_total_bytes"] = vm.Total
		if h.metrics != nil {
			h.metrics.RecordSystemMemory(vm.UsedPercent)
		}
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		system["load1"] = avg.Load1
		system["load5"] = avg.Load5
	}
	health["system"] = system

	if code != http.StatusOK {
		c.JSON(code, utils.Response{
			Success:   false,
			Data:      health,
			Error:     "database unavailable",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	utils.SendSuccess(c, health)
}
