package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

type storePinger interface {
	Ping() error
}

type tokenHolder interface {
	HasToken() bool
}

type HealthHandler struct {
	store storePinger
	creds tokenHolder
}

func NewHealthHandler(store storePinger, creds tokenHolder) *HealthHandler {
	return &HealthHandler{store: store, creds: creds}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := h.store.Ping(); err != nil {
		checks["decision_store"] = "unhealthy: " + err.Error()
	} else {
		checks["decision_store"] = "healthy"
	}

	// A missing token degrades the service (every decision fail-safes to
	// the worst tier) but the process itself is still serving.
	if h.creds.HasToken() {
		checks["procore_credentials"] = "healthy"
	} else {
		checks["procore_credentials"] = "unhealthy: no access token held"
	}

	status := "healthy"
	for _, check := range checks {
		if len(check) >= 9 && check[:9] == "unhealthy" {
			status = "degraded"
			break
		}
	}

	response := struct {
		Status    string            `json:"status"`
		Timestamp int64             `json:"timestamp"`
		Checks    map[string]string `json:"checks"`
	}{
		Status:    status,
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
