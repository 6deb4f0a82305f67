package httpapi

import (
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 5*time.Second)
	defer cancel()

	esHealth := map[string]interface{}{"connected": false}
	if cluster, err := s.gateway.ClusterHealth(ctx, "", "", 3); err == nil {
		esHealth["connected"] = true
		esHealth["cluster"] = cluster
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api":           "ok",
		"elasticsearch": esHealth,
	})
}
