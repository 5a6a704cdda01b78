package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/subtrackd/subtrackd/internal/logger"
)

// handleRunScan is the scheduled trigger: an external scheduler (or an
// operator) calls it with the shared secret to execute one expiration scan
// and receives the full batch result. With ?id=<subscription_id> it
// re-sends a single subscription's prompt instead, due date ignored.
func (s *Server) handleRunScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.authorized(r) {
		logger.Warn("Scan trigger rejected: bad or missing bearer token", map[string]interface{}{
			"remote": r.RemoteAddr,
		})
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		res, err := s.runner.NotifyOne(r.Context(), id)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if res == nil {
			respondJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found or not active"})
			return
		}
		respondJSON(w, http.StatusOK, res)
		return
	}

	result, err := s.runner.Run(r.Context(), s.runner.Today())
	if err != nil {
		logger.Error("Expiration scan failed", map[string]interface{}{
			"error": err.Error(),
		})
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "scan failed"})
		return
	}

	if result.DueCount == 0 {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message": "no subscriptions due today",
			"result":  result,
		})
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// authorized compares the request's bearer token against the configured
// shared secret in constant time.
func (s *Server) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.scanSecret)) == 1
}
