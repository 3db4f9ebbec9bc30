package server

import (
	"net/http"
	"time"
)

// handleSync godoc
// @Title Sync state
// @Description Returns the player's full game state: profile, stations, vehicles, active missions and routes of moving vehicles. Clients call it on (re)connect and then apply realtime changes with a higher version.
// @Resource Common
// @Produce json
// @Success 200 {object} SyncResponse
// @Failure 500 {object} APIError
// @Route /v1/sync [get]
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := s.game.Snapshot(ctx, userID(r))
	if err != nil {
		s.writeServiceError(w, r, "failed to load state", err)
		return
	}
	costs, err := s.blueprintCosts(ctx)
	if err != nil {
		s.writeServiceError(w, r, "failed to load state", err)
		return
	}

	now := time.Now().UTC()
	resp := SyncResponse{
		Profile:    s.mapProfile(snap.Profile),
		Stations:   make([]StationResponse, 0, len(snap.Stations)),
		Vehicles:   mapVehicles(snap.Vehicles),
		Missions:   mapMissions(snap.Missions),
		Routes:     make([]RouteResponse, 0, len(snap.Routes)),
		ServerTime: now,
	}
	for _, st := range snap.Stations {
		resp.Stations = append(resp.Stations, mapStation(st, costs))
	}
	for _, route := range snap.Routes {
		resp.Routes = append(resp.Routes, mapRoute(route, now))
	}

	s.writeJSON(w, http.StatusOK, resp)
}
