package utils

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/frostdev-ops/telemetry-backend-go/pkg/errors"
	"github.com/gin-gonic/gin"
)

// Response represents a standard API response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
	Meta      interface{} `json:"meta,omitempty"`
}

// ErrorResponse represents an enhanced error response with additional context
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     string      `json:"error"`
	Code      int         `json:"code"`
	Timestamp string      `json:"timestamp"`
	Request   RequestInfo `json:"request"`
	Details   interface{} `json:"details,omitempty"`
}

// RequestInfo provides context about the failed request
type RequestInfo struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Query     string `json:"query,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// SendSuccess sends a successful response
func SendSuccess(c *gin.Context, data interface{}) {
	SendStatus(c, http.StatusOK, data)
}

// SendCreated sends a 201 response
func SendCreated(c *gin.Context, data interface{}) {
	SendStatus(c, http.StatusCreated, data)
}

// SendStatus sends a successful response with an explicit status code
func SendStatus(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SendError sends an error response with enhanced context
func SendError(c *gin.Context, statusCode int, message string) {
	sendError(c, statusCode, message, nil)
}

// SendAppError sends the response described by err. Non-AppErrors are
// mapped with apperrors.FromError first.
func SendAppError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)

	var details interface{}
	if appErr.Details != "" || appErr.Retriable {
		d := map[string]interface{}{}
		if appErr.Details != "" {
			d["message"] = appErr.Details
		}
		if appErr.Retriable {
			d["retriable"] = true
			c.Header("Retry-After", "1")
		}
		details = d
	}

	sendError(c, appErr.Code, appErr.Message, details)
}

func sendError(c *gin.Context, statusCode int, message string, details interface{}) {
	errorResponse := ErrorResponse{
		Success:   false,
		Error:     message,
		Code:      statusCode,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Request: RequestInfo{
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Query:     c.Request.URL.RawQuery,
			RequestID: c.GetString("request_id"),
		},
		Details: details,
	}

	if details == nil {
		switch statusCode {
		case http.StatusNotFound:
			if suggestions := generateNotFoundSuggestions(c.Request.URL.Path); len(suggestions) > 0 {
				errorResponse.Details = map[string]interface{}{
					"suggestions": suggestions,
					"message":     "The requested endpoint does not exist. Check the suggestions below for similar endpoints.",
				}
			}
		case http.StatusMethodNotAllowed:
			errorResponse.Details = map[string]interface{}{
				"message": "The HTTP method is not supported for this endpoint.",
			}
		}
	}

	c.JSON(statusCode, errorResponse)
}

// generateNotFoundSuggestions provides helpful endpoint suggestions for 404 errors
func generateNotFoundSuggestions(path string) []string {
	groups := []struct {
		keywords  []string
		endpoints []string
	}{
		{[]string{"auth", "login", "register"}, []string{"/api/v1/auth/login", "/api/v1/auth/register"}},
		{[]string{"user", "me"}, []string{"/api/v1/users/me"}},
		{[]string{"device", "sample", "data"}, []string{"/api/v1/devices", "/api/v1/devices/:id/samples"}},
		{[]string{"analy", "stat"}, []string{"/api/v1/analysis"}},
		{[]string{"health", "status", "metric"}, []string{"/health", "/metrics"}},
	}

	pathLower := strings.ToLower(path)
	seen := make(map[string]bool)
	var suggestions []string

	for _, g := range groups {
		for _, kw := range g.keywords {
			if !strings.Contains(pathLower, kw) {
				continue
			}
			for _, ep := range g.endpoints {
				if !seen[ep] && len(suggestions) < 5 {
					seen[ep] = true
					suggestions = append(suggestions, ep)
				}
			}
			break
		}
	}

	return suggestions
}
