// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every response, success or failure, uses the same envelope:
//
//	{ "success": true, "message": "Student created successfully", "data": {...} }
//	{ "success": false, "message": "Validation error", "errors": ["Age cannot exceed 120"] }
//
// Consistent response shapes make life easier for API consumers: they
// always know where to find the payload and the error details.
package response

import (
	"encoding/json"
	"net/http"
)

// Response is the standard envelope.
//
// Count and TotalCount are pointers so that a list response can report
// zero while every other response leaves them out entirely.
type Response struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Count      *int     `json:"count,omitempty"`
	TotalCount *int64   `json:"totalCount,omitempty"`
	Data       any      `json:"data,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Common client-facing messages.
const (
	MsgRouteNotFound  = "Route not found"
	MsgInternalError  = "Internal server error"
	MsgValidation     = "Validation error"
	MsgInvalidRequest = "Invalid request body"
)

// ─────────────────────────────────────────────────────────────────────────────
// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
// ─────────────────────────────────────────────────────────────────────────────
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Success wraps a payload in a successful envelope.
func Success(message string, data any) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// List wraps one page of records together with the page size and the
// size of the whole collection.
func List(message string, data any, count int, totalCount int64) Response {
	return Response{
		Success:    true,
		Message:    message,
		Count:      &count,
		TotalCount: &totalCount,
		Data:       data,
	}
}

// Error builds a failed envelope. errs, when given, lists individual
// problems (one per violated field).
func Error(message string, errs ...string) Response {
	return Response{
		Success: false,
		Message: message,
		Errors:  errs,
	}
}

// NotFound writes the 404 envelope for unmatched routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusNotFound, Error(MsgRouteNotFound))
}

// InternalError writes a 500 envelope. The cause is never sent to the
// client; callers log it.
func InternalError(w http.ResponseWriter) {
	WriteJSON(w, http.StatusInternalServerError, Error(MsgInternalError))
}
