package main

import (
	"encoding/json"
	"net/http"

	"github.com/imagec/engine/internal/job"
)

// controlStateHandler reports the running Controller's lifecycle state,
// progress and any recorded errors as JSON.
func controlStateHandler(ctrl *job.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"runId":    ctrl.RunId(),
			"state":    ctrl.State(),
			"progress": ctrl.Progress(),
			"errors":   ctrl.Errors(),
		})
	}
}

// controlStopHandler requests cooperative cancellation of the running
// Controller. Workers stop at their next WorkUnit or command boundary;
// the image being processed is not committed, and the run transitions
// to STOPPED.
func controlStopHandler(ctrl *job.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctrl.Stop()
		w.WriteHeader(http.StatusAccepted)
	}
}
