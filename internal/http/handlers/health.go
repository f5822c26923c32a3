package handlers

import (
	"net/http"
)

// Health answers load balancer liveness probes.
func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "service": "tryonserver"})
}
