package httpx

import (
	"net/http"
)

type healthResponse struct {
	Status  string `json:"status"`
	Session string `json:"session"`
}

// healthHandler answers liveness checks with the session store state.
// A loading session is still healthy: providers may be restoring.
func healthHandler(sessions SnapshotSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}
		WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Session: string(sessions.State().State),
		})
	}
}
