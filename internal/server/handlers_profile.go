package server

import (
	"net/http"

	"leitstelle/api/internal/game"
)

// handleGetProfile godoc
// @Title Get profile
// @Description Returns the player's profile with credits, HQ level and mission limit.
// @Resource Profile
// @Produce json
// @Success 200 {object} ProfileResponse
// @Failure 500 {object} APIError
// @Route /v1/profile [get]
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.GetProfile(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, "failed to load profile", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.mapProfile(profile))
}

// handleUpdateProfile godoc
// @Title Update profile
// @Description Changes username and home location. A new home city without coordinates is geocoded.
// @Resource Profile
// @Accept json
// @Produce json
// @Param request body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} APIError
// @Failure 422 {object} APIError
// @Route /v1/profile [patch]
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	profile, err := s.game.UpdateProfile(r.Context(), userID(r), game.ProfileUpdate{
		Username: req.Username,
		HomeCity: req.HomeCity,
		HomeLat:  req.HomeLat,
		HomeLon:  req.HomeLon,
	})
	if err != nil {
		s.writeServiceError(w, r, "failed to update profile", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.mapProfile(profile))
}

// handleUpgradeHeadquarters godoc
// @Title Upgrade headquarters
// @Description Pays for the next HQ level, which raises the mission limit and unlocks archetypes.
// @Resource Profile
// @Produce json
// @Success 200 {object} ProfileResponse
// @Failure 402 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/profile/hq/upgrade [post]
func (s *Server) handleUpgradeHeadquarters(w http.ResponseWriter, r *http.Request) {
	profile, err := s.game.UpgradeHeadquarters(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, "failed to upgrade headquarters", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.mapProfile(profile))
}
