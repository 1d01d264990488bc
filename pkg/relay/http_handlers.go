package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HealthHandler serves relay status as JSON
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":          "healthy",
		"uptime_seconds":  int64(time.Since(s.startTime).Seconds()),
		"active_sessions": s.sessions.Count(),
		"upstream":        s.config.UpstreamAddr,
		"variants":        len(s.registry.Entries()),
		"websocket":       s.wsAddr != nil,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Debug().Err(err).Msg("error encoding health JSON")
	}
}
