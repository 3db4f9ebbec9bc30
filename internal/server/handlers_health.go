package server

import (
	"context"
	"net/http"
	"time"
)

// handleHealth godoc
// @Title Health check
// @Description Returns service health, uptime and database reachability.
// @Resource System
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Route /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := HealthResponse{
		Status:   "ok",
		Env:      s.cfg.Env,
		Uptime:   time.Since(s.startedAt).String(),
		Database: "ok",
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("health check: database unreachable")
		payload.Status = "degraded"
		payload.Database = "unreachable"
		s.writeJSON(w, http.StatusServiceUnavailable, payload)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}
