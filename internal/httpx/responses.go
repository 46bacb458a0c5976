package httpx

import (
	"encoding/json"
	"net/http"
)

// ListResponse wraps a page of results.
type ListResponse struct {
	Data any `json:"data"`
	Meta any `json:"meta,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// JSON writes v as the response body with the given status.
func JSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func JSONList(w http.ResponseWriter, data any, meta any) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Meta: meta})
}

// JSONError writes a {status, message} body. The request id, when present,
// is echoed in the X-Request-Id header set by RequestIDMiddleware.
func JSONError(w http.ResponseWriter, statusCode int, message string) {
	JSON(w, statusCode, ErrorResponse{Status: statusCode, Message: message})
}
