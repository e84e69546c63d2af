package web

import (
	"encoding/json"
	"net/http"
)

// jsonError is the body shape of every error response.
type jsonError struct {
	Error string `json:"error"`
}

// RenderJSON sets the JSON content type and writes v to the response.
func RenderJSON(w http.ResponseWriter, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// RenderError writes a JSON error document with the given status code.
func RenderError(w http.ResponseWriter, code int, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(jsonError{Error: message})
}
