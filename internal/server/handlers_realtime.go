package server

import "net/http"

// handleRealtime godoc
// @Title Realtime changes
// @Description Upgrades to a websocket that streams the player's row changes as JSON records. Browsers pass the token as the access_token query parameter.
// @Resource Realtime
// @Param access_token query string false "JWT when no Authorization header can be sent"
// @Success 101
// @Failure 401
// @Route /v1/realtime [get]
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, userID(r))
}
