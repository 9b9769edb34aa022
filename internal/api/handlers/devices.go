package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/frostdev-ops/telemetry-backend-go/internal/api/middleware"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/devices"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
)

const maxSampleBody = 4 << 10

type createDeviceRequest struct {
	ID int64 `json:"id"`
}

type sampleRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// CreateDevice registers a device owned by the caller
func (h *Handlers) CreateDevice(c *gin.Context) {
	var req createDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	var owner *int64
	if userID, ok := middleware.CurrentUserID(c); ok {
		owner = &userID
	}

	device, err := h.devices.Register(c.Request.Context(), req.ID, owner)
	switch {
	case errors.Is(err, devices.ErrInvalidDeviceID):
		utils.SendError(c, http.StatusBadRequest, "Device id must be a positive integer")
		return
	case errors.Is(err, devices.ErrDeviceExists):
		utils.SendError(c, http.StatusConflict, fmt.Sprintf("Device with id = %d already exists!", req.ID))
		return
	case err != nil:
		utils.SendAppError(c, err)
		return
	}

	utils.SendCreated(c, device)
}

// ListDevices returns the registered device ids, optionally for one user
func (h *Handlers) ListDevices(c *gin.Context) {
	var owner *int64
	if raw := c.Query("user_id"); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			utils.SendError(c, http.StatusBadRequest, "user_id must be a positive integer")
			return
		}
		owner = &id
	}

	ids, err := h.devices.ListIDs(c.Request.Context(), owner)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	if len(ids) == 0 {
		utils.SendError(c, http.StatusNotFound, "No devices found.")
		return
	}

	utils.SendSuccess(c, gin.H{"device_ids": ids})
}

// GetDevice returns one device
func (h *Handlers) GetDevice(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Device id must be a positive integer")
		return
	}

	device, err := h.devices.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, devices.ErrDeviceNotFound) {
			utils.SendError(c, http.StatusNotFound, fmt.Sprintf("Device with id = %d not found!", id))
			return
		}
		utils.SendAppError(c, err)
		return
	}

	utils.SendSuccess(c, device)
}

// RecentSamples returns the newest samples of a device
func (h *Handlers) RecentSamples(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Device id must be a positive integer")
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, ok := parseID(raw)
		if !ok || n > 1000 {
			utils.SendError(c, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = int(n)
	}

	samples, err := h.devices.Recent(c.Request.Context(), id, limit)
	if err != nil {
		if errors.Is(err, devices.ErrDeviceNotFound) {
			utils.SendError(c, http.StatusNotFound, fmt.Sprintf("Device with id = %d not found!", id))
			return
		}
		utils.SendAppError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{"samples": samples})
}

// IngestSample stores a reading for a device. An empty body stores a
// simulated reading.
func (h *Handlers) IngestSample(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Device id must be a positive integer")
		return
	}

	var reading *devices.Reading
	if c.Request.Body != nil {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSampleBody+1))
		if err != nil || len(body) > maxSampleBody {
			utils.SendError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		if len(bytes.TrimSpace(body)) > 0 {
			var req sampleRequest
			if err := json.Unmarshal(body, &req); err != nil || req.X == nil || req.Y == nil || req.Z == nil {
				utils.SendError(c, http.StatusBadRequest, "Body must be {\"x\": number, \"y\": number, \"z\": number}")
				return
			}
			reading = &devices.Reading{X: *req.X, Y: *req.Y, Z: *req.Z}
		}
	}

	h.ingest(c, id, reading, http.StatusCreated)
}

// SimulateSample makes a device report a simulated reading
func (h *Handlers) SimulateSample(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Device id must be a positive integer")
		return
	}
	h.ingest(c, id, nil, http.StatusOK)
}

func (h *Handlers) ingest(c *gin.Context, id int64, reading *devices.Reading, status int) {
	sample, err := h.devices.Ingest(c.Request.Context(), id, reading, models.SourceAPI)
	if err != nil {
		if errors.Is(err, devices.ErrDeviceNotFound) {
			utils.SendError(c, http.StatusBadRequest, fmt.Sprintf("Device with id = %d not found!", id))
			return
		}
		utils.SendAppError(c, err)
		return
	}

	utils.SendStatus(c, status, sample)
}
