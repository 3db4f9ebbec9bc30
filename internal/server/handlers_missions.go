package server

import (
	"net/http"
)

// handleListMissions godoc
// @Title List missions
// @Description Returns open missions and those completed within the retention window.
// @Resource Missions
// @Produce json
// @Success 200 {array} MissionResponse
// @Failure 500 {object} APIError
// @Route /v1/missions [get]
func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := s.game.ActiveMissions(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, "failed to list missions", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapMissions(missions))
}

// handleGetMission godoc
// @Title Get mission
// @Description Returns a single mission.
// @Resource Missions
// @Produce json
// @Param missionID path string true "Mission ID"
// @Success 200 {object} MissionResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/missions/{missionID} [get]
func (s *Server) handleGetMission(w http.ResponseWriter, r *http.Request) {
	missionID, err := s.parseUUIDParam(r, "missionID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidMissionID, err.Error())
		return
	}

	mission, err := s.store.GetMission(r.Context(), userID(r), missionID)
	if err != nil {
		s.writeServiceError(w, r, "failed to load mission", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapMission(mission))
}

// handleGenerateMission godoc
// @Title Generate mission
// @Description Creates a random mission near the player's home or stations.
// @Resource Missions
// @Produce json
// @Success 201 {object} MissionResponse
// @Failure 409 {object} APIError
// @Route /v1/missions/generate [post]
func (s *Server) handleGenerateMission(w http.ResponseWriter, r *http.Request) {
	mission, err := s.game.Generate(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, "failed to generate mission", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, mapMission(mission))
}

// handleListCandidates godoc
// @Title List dispatch candidates
// @Description Returns dispatchable vehicles ordered by estimated arrival time with the required capabilities each one covers.
// @Resource Missions
// @Produce json
// @Param missionID path string true "Mission ID"
// @Success 200 {array} CandidateResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/missions/{missionID}/candidates [get]
func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	missionID, err := s.parseUUIDParam(r, "missionID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidMissionID, err.Error())
		return
	}

	candidates, err := s.game.Candidates(r.Context(), userID(r), missionID)
	if err != nil {
		s.writeServiceError(w, r, "failed to list candidates", err)
		return
	}
	resp := make([]CandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		resp = append(resp, mapCandidate(c))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleDispatch godoc
// @Title Dispatch vehicles
// @Description Sends vehicles to the mission. Vehicles already assigned are skipped.
// @Resource Missions
// @Accept json
// @Produce json
// @Param missionID path string true "Mission ID"
// @Param request body VehicleIDsRequest true "Vehicles to send"
// @Success 200 {object} DispatchResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/missions/{missionID}/dispatch [post]
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	missionID, err := s.parseUUIDParam(r, "missionID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidMissionID, err.Error())
		return
	}
	var req VehicleIDsRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}
	vehicleIDs, err := parseUUIDs(req.VehicleIDs)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidVehicleID, err.Error())
		return
	}

	res, err := s.game.Dispatch(r.Context(), userID(r), missionID, vehicleIDs)
	if err != nil {
		s.writeServiceError(w, r, "failed to dispatch vehicles", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapDispatch(res))
}

// handleRecall godoc
// @Title Recall vehicles
// @Description Sends assigned vehicles back to their station and re-derives the mission status.
// @Resource Missions
// @Accept json
// @Produce json
// @Param missionID path string true "Mission ID"
// @Param request body VehicleIDsRequest true "Vehicles to recall"
// @Success 200 {object} DispatchResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/missions/{missionID}/recall [post]
func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	missionID, err := s.parseUUIDParam(r, "missionID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidMissionID, err.Error())
		return
	}
	var req VehicleIDsRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}
	vehicleIDs, err := parseUUIDs(req.VehicleIDs)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidVehicleID, err.Error())
		return
	}

	res, err := s.game.Recall(r.Context(), userID(r), missionID, vehicleIDs)
	if err != nil {
		s.writeServiceError(w, r, "failed to recall vehicles", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapDispatch(res))
}

// handleCompleteMission godoc
// @Title Complete mission
// @Description Finishes an on-scene mission whose processing time has elapsed, pays out and sends the vehicles home.
// @Resource Missions
// @Produce json
// @Param missionID path string true "Mission ID"
// @Success 200 {object} MissionResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/missions/{missionID}/complete [post]
func (s *Server) handleCompleteMission(w http.ResponseWriter, r *http.Request) {
	missionID, err := s.parseUUIDParam(r, "missionID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidMissionID, err.Error())
		return
	}

	mission, err := s.game.CompleteMission(r.Context(), userID(r), missionID)
	if err != nil {
		s.writeServiceError(w, r, "failed to complete mission", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapMission(mission))
}
