package game

import (
	"context"
	"errors"

	"leitstelle/api/internal/model"
	"leitstelle/api/internal/store"

	"github.com/google/uuid"
)

// Snapshot is everything a client needs to render the game after (re)connecting.
type Snapshot struct {
	Profile  model.Profile
	Stations []model.Station
	Vehicles []model.Vehicle
	Missions []model.Mission
	Routes   []model.VehicleRoute
}

// ActiveMissions returns unfinished missions plus those completed within the
// retention window.
func (s *Service) ActiveMissions(ctx context.Context, userID uuid.UUID) ([]model.Mission, error) {
	return s.store.ListActiveMissions(ctx, userID, s.now().Add(-s.cfg.CompletedRetention))
}

// Snapshot loads the player's full state.
func (s *Service) Snapshot(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Profile, err = s.store.GetProfile(ctx, userID); err != nil {
		return Snapshot{}, err
	}
	if snap.Stations, err = s.store.ListStations(ctx, userID); err != nil {
		return Snapshot{}, err
	}
	if snap.Vehicles, err = s.store.ListVehicles(ctx, userID); err != nil {
		return Snapshot{}, err
	}
	if snap.Missions, err = s.ActiveMissions(ctx, userID); err != nil {
		return Snapshot{}, err
	}
	snap.Routes = make([]model.VehicleRoute, 0)
	for _, v := range snap.Vehicles {
		if v.Status != model.VehicleStatusEnRoute && v.Status != model.VehicleStatusReturning {
			continue
		}
		r, err := s.store.GetVehicleRoute(ctx, v.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return Snapshot{}, err
		}
		snap.Routes = append(snap.Routes, r)
	}
	return snap, nil
}
