package server

import (
	"net/http"

	"github.com/google/uuid"
)

// handleListVehicles godoc
// @Title List vehicles
// @Description Returns every vehicle of the player with its FMS status.
// @Resource Vehicles
// @Produce json
// @Success 200 {array} VehicleResponse
// @Failure 500 {object} APIError
// @Route /v1/vehicles [get]
func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.store.ListVehicles(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, "failed to list vehicles", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapVehicles(vehicles))
}

// handlePurchaseVehicle godoc
// @Title Purchase vehicle
// @Description Buys a vehicle into a free slot of a matching station. The call sign is generated when omitted.
// @Resource Vehicles
// @Accept json
// @Produce json
// @Param request body PurchaseVehicleRequest true "Vehicle to buy"
// @Success 201 {object} VehicleResponse
// @Failure 400 {object} APIError
// @Failure 402 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Failure 422 {object} APIError
// @Route /v1/vehicles [post]
func (s *Server) handlePurchaseVehicle(w http.ResponseWriter, r *http.Request) {
	var req PurchaseVehicleRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}
	stationID, err := uuid.Parse(req.StationID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidStationID, err.Error())
		return
	}

	vehicle, err := s.game.PurchaseVehicle(r.Context(), userID(r), stationID, req.TypeID, req.CallSign)
	if err != nil {
		s.writeServiceError(w, r, "failed to purchase vehicle", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, mapVehicle(vehicle))
}

// handleSellVehicle godoc
// @Title Sell vehicle
// @Description Sells an idle vehicle. The refund depends on its condition.
// @Resource Vehicles
// @Produce json
// @Param vehicleID path string true "Vehicle ID"
// @Success 200 {object} SellResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/vehicles/{vehicleID} [delete]
func (s *Server) handleSellVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := s.parseUUIDParam(r, "vehicleID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidVehicleID, err.Error())
		return
	}

	refund, err := s.game.SellVehicle(r.Context(), userID(r), vehicleID)
	if err != nil {
		s.writeServiceError(w, r, "failed to sell vehicle", err)
		return
	}
	s.writeJSON(w, http.StatusOK, SellResponse{Refund: refund})
}

// handleConfigureVehicle godoc
// @Title Configure vehicle
// @Description Changes equipment options of an idle vehicle.
// @Resource Vehicles
// @Accept json
// @Produce json
// @Param vehicleID path string true "Vehicle ID"
// @Param request body ConfigureVehicleRequest true "Option values"
// @Success 200 {object} VehicleResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Failure 422 {object} APIError
// @Route /v1/vehicles/{vehicleID}/config [patch]
func (s *Server) handleConfigureVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := s.parseUUIDParam(r, "vehicleID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidVehicleID, err.Error())
		return
	}
	var req ConfigureVehicleRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	vehicle, err := s.game.ConfigureVehicle(r.Context(), userID(r), vehicleID, req.Config)
	if err != nil {
		s.writeServiceError(w, r, "failed to configure vehicle", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapVehicle(vehicle))
}

// handleGetVehicleRoute godoc
// @Title Get vehicle route
// @Description Returns the leg a moving vehicle is driving with its current interpolated position.
// @Resource Vehicles
// @Produce json
// @Param vehicleID path string true "Vehicle ID"
// @Success 200 {object} RouteResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/vehicles/{vehicleID}/route [get]
func (s *Server) handleGetVehicleRoute(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := s.parseUUIDParam(r, "vehicleID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidVehicleID, err.Error())
		return
	}

	view, err := s.game.VehicleRoute(r.Context(), userID(r), vehicleID)
	if err != nil {
		s.writeServiceError(w, r, "failed to load vehicle route", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapRouteView(view))
}

// handleReportArrival godoc
// @Title Report arrival
// @Description Marks an en-route vehicle as on scene. Stale reports return applied=false without changes.
// @Resource Vehicles
// @Produce json
// @Param vehicleID path string true "Vehicle ID"
// @Success 200 {object} ArrivalResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/vehicles/{vehicleID}/arrival [post]
func (s *Server) handleReportArrival(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := s.parseUUIDParam(r, "vehicleID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidVehicleID, err.Error())
		return
	}

	res, err := s.game.ReportArrival(r.Context(), userID(r), vehicleID)
	if err != nil {
		s.writeServiceError(w, r, "failed to report arrival", err)
		return
	}
	resp := ArrivalResponse{Applied: res.Applied, Vehicle: mapVehicle(res.Vehicle)}
	if res.Mission != nil {
		m := mapMission(*res.Mission)
		resp.Mission = &m
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleReturnToStation godoc
// @Title Return to station
// @Description Parks a returning vehicle once its route has elapsed.
// @Resource Vehicles
// @Produce json
// @Param vehicleID path string true "Vehicle ID"
// @Success 200 {object} VehicleResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/vehicles/{vehicleID}/return [post]
func (s *Server) handleReturnToStation(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := s.parseUUIDParam(r, "vehicleID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidVehicleID, err.Error())
		return
	}

	vehicle, err := s.game.ReturnToStation(r.Context(), userID(r), vehicleID)
	if err != nil {
		s.writeServiceError(w, r, "failed to return vehicle", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapVehicle(vehicle))
}
