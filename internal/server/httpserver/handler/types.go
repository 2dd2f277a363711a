package handler

import "time"

// Response is the standard API response envelope.
// All JSON responses use this format except /metrics.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// ModuleResponse is the body of GET /api/v1/modules.
type ModuleResponse struct {
	Specified string `json:"specified"`
	Found     string `json:"found"`
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	Size      int    `json:"size"`
	Code      string `json:"code,omitempty"`
}

// CacheStatusResponse is the body of GET /api/v1/cache.
type CacheStatusResponse struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
	Entries int    `json:"entries"`
}

// CacheKeysResponse is the body of GET /api/v1/cache/keys.
type CacheKeysResponse struct {
	Keys  []string `json:"keys"`
	Total int      `json:"total"`
}

// MergeConfigRequest is the body of POST /api/v1/config.
type MergeConfigRequest struct {
	// Config is a partial configuration keyed like the YAML file.
	Config map[string]any `json:"config"`
	// Persist writes the merged result to the auto config file.
	Persist bool `json:"persist"`
}
