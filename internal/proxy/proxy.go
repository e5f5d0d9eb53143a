// Package proxy serves cover images and catalog API responses on behalf of clients that cannot
// reach the upstream hosts directly.
package proxy

import (
	"encoding/json"
	"net/http"
)

const (
	allowMethods = "GET, OPTIONS"
	allowHeaders = "Content-Type, Authorization"
)

// setCORS allows any origin to read the proxied response.
func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
}

// preflight answers OPTIONS and rejects anything but GET. It reports whether the request was handled.
func preflight(w http.ResponseWriter, r *http.Request) bool {
	setCORS(w.Header())
	switch r.Method {
	case http.MethodGet:
		return false
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", allowMethods)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
	return true
}

// errorBody is the JSON body of a failed proxy request.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code, Message: message})
}
