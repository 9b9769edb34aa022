package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/core/analysis"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
)

// Layouts accepted for begin and end. Values without an offset are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// columnReport is the per-column entry of an analysis response
type columnReport struct {
	BeginDate time.Time `json:"begin_date"`
	EndDate   time.Time `json:"end_date"`
	MinValue  *float64  `json:"min_value"`
	MaxValue  *float64  `json:"max_value"`
	Count     uint64    `json:"count"`
	Sum       *float64  `json:"sum"`
	Median    *float64  `json:"median"`
}

// Analyze computes column statistics for a device, for all devices of a
// user, or for every device
func (h *Handlers) Analyze(c *gin.Context) {
	scope, ok := h.analysisScope(c)
	if !ok {
		return
	}

	columns, err := analysis.ParseColumns(c.QueryArray("column")...)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	window, err := parseWindow(c.Query("begin"), c.Query("end"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.analysis.Analyze(c.Request.Context(), scope, columns, window)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	if result == nil {
		utils.SendSuccess(c, gin.H{"message": "No data yet."})
		return
	}

	report := make(map[string]columnReport, len(result.Stats))
	for _, stat := range result.Stats {
		report[stat.Column.String()] = columnReport{
			BeginDate: stat.Window.Begin,
			EndDate:   stat.Window.End,
			MinValue:  stat.Min,
			MaxValue:  stat.Max,
			Count:     stat.Count,
			Sum:       stat.Sum,
			Median:    stat.Median,
		}
	}

	utils.SendSuccess(c, map[string]interface{}{
		result.Scope.Key(): report,
	})
}

// analysisScope picks the scope from the query: device_id wins over
// user_id, and neither means every device
func (h *Handlers) analysisScope(c *gin.Context) (analysis.Scope, bool) {
	if raw := c.Query("device_id"); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			utils.SendError(c, http.StatusBadRequest, "device_id must be a positive integer")
			return nil, false
		}
		return analysis.SingleDevice{DeviceID: id}, true
	}
	if raw := c.Query("user_id"); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			utils.SendError(c, http.StatusBadRequest, "user_id must be a positive integer")
			return nil, false
		}
		return analysis.UserDevices{UserID: id}, true
	}
	return analysis.AllDevices{}, true
}

func parseWindow(begin, end string) (analysis.Window, error) {
	var w analysis.Window
	if begin != "" {
		t, err := parseTime(begin)
		if err != nil {
			return w, fmt.Errorf("invalid begin: %w", err)
		}
		w.Begin = &t
	}
	if end != "" {
		t, err := parseTime(end)
		if err != nil {
			return w, fmt.Errorf("invalid end: %w", err)
		}
		w.End = &t
	}
	return w, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an RFC3339 or YYYY-MM-DDTHH:MM:SS timestamp", raw)
}
