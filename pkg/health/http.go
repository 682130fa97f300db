package health

import (
	"encoding/json"
	"net/http"

	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// HealthResponse is the JSON body of the health endpoints.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Checks  map[string]CheckStatus `json:"checks,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// CheckStatus is one check in a HealthResponse. Status is "ok" or "error".
type CheckStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// LivenessHandler serves liveness: 200 when alive, 503 otherwise.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.CheckLiveness(r.Context())
		h.writeHealthResponse(w, status, err)
	}
}

// ReadinessHandler serves readiness: 200 when ready for traffic, 503 otherwise.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.CheckReadiness(r.Context())
		h.writeHealthResponse(w, status, err)
	}
}

func (h *HealthChecker) writeHealthResponse(w http.ResponseWriter, status *HealthStatus, err error) {
	response := HealthResponse{
		Status: "healthy",
		Checks: make(map[string]CheckStatus, len(status.Checks)),
	}
	code := http.StatusOK
	if !status.Healthy {
		response.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		if err != nil {
			response.Message = err.Error()
		}
	}

	for _, result := range status.Checks {
		cs := CheckStatus{Status: "ok", Latency: result.Latency.String()}
		if !result.Healthy {
			cs.Status = "error"
			cs.Error = result.Error
		}
		response.Checks[result.Name] = cs
	}

	body, mErr := json.Marshal(response)
	if mErr != nil {
		h.logger.Error("Failed to encode health response", logger.ErrorField(mErr))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
