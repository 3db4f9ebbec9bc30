package server

import (
	"net/http"
)

// handleCatalog godoc
// @Title Catalog
// @Description Returns every purchasable station, vehicle type and mission archetype.
// @Resource Catalog
// @Produce json
// @Success 200 {object} CatalogResponse
// @Failure 500 {object} APIError
// @Route /v1/catalog [get]
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	blueprints, err := s.store.ListStationBlueprints(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "failed to list station blueprints", err)
		return
	}
	types, err := s.store.ListVehicleTypes(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "failed to list vehicle types", err)
		return
	}
	s.writeJSON(w, http.StatusOK, CatalogResponse{
		StationBlueprints: blueprints,
		VehicleTypes:      types,
		Archetypes:        s.game.Archetypes(),
	})
}

// handleListStationBlueprints godoc
// @Title List station blueprints
// @Description Returns the station sites players can buy.
// @Resource Catalog
// @Produce json
// @Success 200 {array} model.StationBlueprint
// @Failure 500 {object} APIError
// @Route /v1/station-blueprints [get]
func (s *Server) handleListStationBlueprints(w http.ResponseWriter, r *http.Request) {
	blueprints, err := s.store.ListStationBlueprints(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "failed to list station blueprints", err)
		return
	}
	s.writeJSON(w, http.StatusOK, blueprints)
}

// handleListVehicleTypes godoc
// @Title List vehicle types
// @Description Returns the vehicle types with cost, speed, capabilities and configuration options.
// @Resource Catalog
// @Produce json
// @Success 200 {array} model.VehicleType
// @Failure 500 {object} APIError
// @Route /v1/vehicle-types [get]
func (s *Server) handleListVehicleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.store.ListVehicleTypes(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "failed to list vehicle types", err)
		return
	}
	s.writeJSON(w, http.StatusOK, types)
}
