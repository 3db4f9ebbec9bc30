package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

func (s *Server) blueprintCosts(ctx context.Context) (map[uuid.UUID]int64, error) {
	blueprints, err := s.store.ListStationBlueprints(ctx)
	if err != nil {
		return nil, err
	}
	costs := make(map[uuid.UUID]int64, len(blueprints))
	for _, bp := range blueprints {
		costs[bp.ID] = bp.Cost
	}
	return costs, nil
}

// handleListStations godoc
// @Title List stations
// @Description Returns the player's stations with the cost of their next upgrade.
// @Resource Stations
// @Produce json
// @Success 200 {array} StationResponse
// @Failure 500 {object} APIError
// @Route /v1/stations [get]
func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stations, err := s.store.ListStations(ctx, userID(r))
	if err != nil {
		s.writeServiceError(w, r, "failed to list stations", err)
		return
	}
	costs, err := s.blueprintCosts(ctx)
	if err != nil {
		s.writeServiceError(w, r, "failed to list stations", err)
		return
	}

	resp := make([]StationResponse, 0, len(stations))
	for _, st := range stations {
		resp = append(resp, mapStation(st, costs))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handlePurchaseStation godoc
// @Title Purchase station
// @Description Buys a station blueprint. Each blueprint can be owned once.
// @Resource Stations
// @Accept json
// @Produce json
// @Param request body PurchaseStationRequest true "Blueprint to buy"
// @Success 201 {object} StationResponse
// @Failure 400 {object} APIError
// @Failure 402 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/stations [post]
func (s *Server) handlePurchaseStation(w http.ResponseWriter, r *http.Request) {
	var req PurchaseStationRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}
	blueprintID, err := uuid.Parse(req.BlueprintID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid blueprint id", err.Error())
		return
	}

	ctx := r.Context()
	station, err := s.game.PurchaseStation(ctx, userID(r), blueprintID)
	if err != nil {
		s.writeServiceError(w, r, "failed to purchase station", err)
		return
	}
	costs, err := s.blueprintCosts(ctx)
	if err != nil {
		s.writeServiceError(w, r, "failed to purchase station", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, mapStation(station, costs))
}

// handleUpgradeStation godoc
// @Title Upgrade station
// @Description Raises the station level, adding personnel capacity.
// @Resource Stations
// @Produce json
// @Param stationID path string true "Station ID"
// @Success 200 {object} StationResponse
// @Failure 400 {object} APIError
// @Failure 402 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/stations/{stationID}/upgrade [post]
func (s *Server) handleUpgradeStation(w http.ResponseWriter, r *http.Request) {
	stationID, err := s.parseUUIDParam(r, "stationID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidStationID, err.Error())
		return
	}

	ctx := r.Context()
	station, err := s.game.UpgradeStation(ctx, userID(r), stationID)
	if err != nil {
		s.writeServiceError(w, r, "failed to upgrade station", err)
		return
	}
	costs, err := s.blueprintCosts(ctx)
	if err != nil {
		s.writeServiceError(w, r, "failed to upgrade station", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapStation(station, costs))
}
