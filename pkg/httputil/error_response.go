// Package httputil provides shared HTTP response helpers.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the externally visible error payload. The detail text varies
// by failure kind but never contains the raw credential or internal error
// text.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteUnauthorized writes a 401 response with a {"detail": ...} body and a
// WWW-Authenticate challenge. Every authentication failure, whatever its
// internal cause, goes out through this single shape.
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteJSON(w, http.StatusUnauthorized, ErrorBody{Detail: detail})
}

// WriteError writes a JSON error response with an arbitrary status code.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, ErrorBody{Detail: detail})
}
