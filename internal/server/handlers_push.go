package server

import (
	"net/http"
	"time"

	"leitstelle/api/internal/model"
)

// handlePushPublicKey godoc
// @Title Push public key
// @Description Returns the VAPID public key browsers need to subscribe to mission alerts.
// @Resource Push
// @Produce json
// @Success 200 {object} PushPublicKeyResponse
// @Route /v1/push/public-key [get]
func (s *Server) handlePushPublicKey(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Push.Enabled() {
		s.writeJSON(w, http.StatusOK, PushPublicKeyResponse{Enabled: false})
		return
	}
	s.writeJSON(w, http.StatusOK, PushPublicKeyResponse{Enabled: true, PublicKey: s.cfg.Push.PublicKey})
}

// handleSavePushSubscription godoc
// @Title Register push subscription
// @Description Stores a browser push endpoint for new-mission alerts. Registering an endpoint again replaces its keys.
// @Resource Push
// @Accept json
// @Param request body PushSubscriptionRequest true "Browser subscription"
// @Success 204
// @Failure 400 {object} APIError
// @Route /v1/push/subscriptions [post]
func (s *Server) handleSavePushSubscription(w http.ResponseWriter, r *http.Request) {
	var req PushSubscriptionRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	sub := model.PushSubscription{
		Endpoint:  req.Endpoint,
		UserID:    userID(r),
		P256DH:    req.Keys.P256DH,
		Auth:      req.Keys.Auth,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SavePushSubscription(r.Context(), sub); err != nil {
		s.writeServiceError(w, r, "failed to save push subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeletePushSubscription godoc
// @Title Remove push subscription
// @Description Deletes one of the player's push endpoints.
// @Resource Push
// @Accept json
// @Param request body DeletePushSubscriptionRequest true "Endpoint to remove"
// @Success 204
// @Failure 400 {object} APIError
// @Route /v1/push/subscriptions [delete]
func (s *Server) handleDeletePushSubscription(w http.ResponseWriter, r *http.Request) {
	var req DeletePushSubscriptionRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}
	if err := s.store.DeletePushSubscription(r.Context(), userID(r), req.Endpoint); err != nil {
		s.writeServiceError(w, r, "failed to delete push subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
