package server

import (
	"time"

	"leitstelle/api/internal/game"
	"leitstelle/api/internal/model"
	"leitstelle/api/internal/routing"

	"github.com/google/uuid"
)

func (s *Server) mapProfile(p model.Profile) ProfileResponse {
	resp := ProfileResponse{
		Profile:      p,
		MissionLimit: s.game.MissionLimit(p.HQLevel),
		MaxHQLevel:   game.MaxHQLevel,
	}
	if p.HQLevel < game.MaxHQLevel {
		cost := game.HQUpgradeCost(p.HQLevel)
		resp.HQUpgradeCost = &cost
	}
	return resp
}

// mapStation needs the blueprint costs to quote the next upgrade.
func mapStation(st model.Station, blueprintCosts map[uuid.UUID]int64) StationResponse {
	resp := StationResponse{Station: st}
	if cost, ok := blueprintCosts[st.BlueprintID]; ok && st.Level < game.MaxStationLevel {
		upgrade := game.StationUpgradeCost(cost, st.Level)
		resp.UpgradeCost = &upgrade
	}
	return resp
}

func mapVehicle(v model.Vehicle) VehicleResponse {
	return VehicleResponse{
		Vehicle:     v,
		FMS:         v.Status.FMSCode(),
		StatusLabel: v.Status.Label(),
	}
}

func mapVehicles(vs []model.Vehicle) []VehicleResponse {
	out := make([]VehicleResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, mapVehicle(v))
	}
	return out
}

func mapMission(m model.Mission) MissionResponse {
	resp := MissionResponse{Mission: m}
	if deadline, ok := m.ProcessingDeadline(); ok {
		resp.ProcessingEndsAt = &deadline
	}
	return resp
}

func mapMissions(ms []model.Mission) []MissionResponse {
	out := make([]MissionResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, mapMission(m))
	}
	return out
}

func mapRoute(r model.VehicleRoute, now time.Time) RouteResponse {
	progress := r.Progress(now)
	plan := routing.Plan(routing.Point{Lat: r.FromLat, Lon: r.FromLon}, routing.Point{Lat: r.ToLat, Lon: r.ToLon}, 0)
	pos := plan.PositionAt(progress)
	return RouteResponse{
		VehicleRoute: r,
		ArrivesAt:    r.ArrivesAt(),
		Progress:     progress,
		Position:     GeoPoint{Latitude: pos.Lat, Longitude: pos.Lon},
	}
}

func mapRouteView(v game.RouteView) RouteResponse {
	return RouteResponse{
		VehicleRoute: v.Route,
		ArrivesAt:    v.Route.ArrivesAt(),
		Progress:     v.Progress,
		Position:     GeoPoint{Latitude: v.Position.Lat, Longitude: v.Position.Lon},
	}
}

func mapCandidate(c game.Candidate) CandidateResponse {
	return CandidateResponse{
		Vehicle:        mapVehicle(c.Vehicle),
		TypeName:       c.TypeName,
		DistanceMeters: c.DistanceMeters,
		ETASeconds:     c.ETASeconds,
		Covers:         c.Covers,
	}
}

func mapDispatch(res game.DispatchResult) DispatchResponse {
	return DispatchResponse{
		Mission:  mapMission(res.Mission),
		Vehicles: mapVehicles(res.Vehicles),
	}
}
