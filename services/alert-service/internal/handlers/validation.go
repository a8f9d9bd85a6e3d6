package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// requireMethod validates that the request method matches the expected method.
// Returns true if valid, false otherwise (and writes error response).
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// writeJSON writes the value as JSON with appropriate headers.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// MaxLimit caps the page size a caller can request.
const MaxLimit = 200

// DefaultPagination contains the default pagination values.
var DefaultPagination = Pagination{Limit: 50, Offset: 0}

// parsePagination extracts limit and offset from query parameters.
// Malformed values are rejected; a limit above MaxLimit is clamped.
func parsePagination(r *http.Request) (Pagination, error) {
	p := DefaultPagination

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			return p, errInvalidParam("limit", "must be a positive integer")
		}
		p.Limit = min(l, MaxLimit)
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		o, err := strconv.Atoi(offsetStr)
		if err != nil || o < 0 {
			return p, errInvalidParam("offset", "must be a non-negative integer")
		}
		p.Offset = o
	}

	return p, nil
}

type paramError struct {
	name   string
	reason string
}

func (e *paramError) Error() string {
	return e.name + " " + e.reason
}

func errInvalidParam(name, reason string) error {
	return &paramError{name: name, reason: reason}
}
