package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"leitstelle/api/internal/game"
	"leitstelle/api/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type APIError struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

const (
	errInvalidPayload   = "invalid payload"
	errInvalidMissionID = "invalid mission id"
	errInvalidVehicleID = "invalid vehicle id"
	errInvalidStationID = "invalid station id"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, details interface{}) {
	s.writeJSON(w, status, APIError{Error: message, Details: details})
}

// writeServiceError maps domain and store errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrVehicleBusy),
		errors.Is(err, game.ErrVehicleNotIdle),
		errors.Is(err, game.ErrNoFreeSlot),
		errors.Is(err, game.ErrMissionLimit),
		errors.Is(err, game.ErrMaxLevel),
		errors.Is(err, game.ErrNoOrigin):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInsufficientCredits):
		status = http.StatusPaymentRequired
	case errors.Is(err, game.ErrWrongStationType),
		errors.Is(err, game.ErrInvalidConfig),
		errors.Is(err, game.ErrInvalidInput):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg(message)
		s.writeError(w, status, message, nil)
		return
	}
	s.writeError(w, status, message, err.Error())
}

func (s *Server) decodeAndValidate(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := s.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, errors.New("missing id")
	}
	return uuid.Parse(raw)
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
