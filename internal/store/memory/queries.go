package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"leitstelle/api/internal/model"
	"leitstelle/api/internal/store"

	"github.com/google/uuid"
)

// tx operates on one state without locking; callers hold Store.mu.
type tx struct {
	st  *state
	now func() time.Time
}

var _ store.Queries = (*tx)(nil)

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, store.ErrNotFound)
}

func (t *tx) GetProfile(_ context.Context, id uuid.UUID) (model.Profile, error) {
	p, ok := t.st.profiles[id]
	if !ok {
		return model.Profile{}, notFound("get profile")
	}
	return cloneProfile(p), nil
}

func (t *tx) CreateProfile(_ context.Context, p model.Profile) (model.Profile, error) {
	if _, ok := t.st.profiles[p.ID]; ok {
		return model.Profile{}, fmt.Errorf("create profile: %w", store.ErrConflict)
	}
	now := t.now()
	p.CreatedAt, p.UpdatedAt = now, now
	t.st.profiles[p.ID] = cloneProfile(p)
	return cloneProfile(p), nil
}

func (t *tx) UpdateProfile(_ context.Context, p model.Profile) (model.Profile, error) {
	cur, ok := t.st.profiles[p.ID]
	if !ok {
		return model.Profile{}, notFound("update profile")
	}
	cur.Username = p.Username
	cur.HomeCity = p.HomeCity
	cur.HomeLat = clonePtr(p.HomeLat)
	cur.HomeLon = clonePtr(p.HomeLon)
	cur.HQLevel = p.HQLevel
	cur.UpdatedAt = t.now()
	t.st.profiles[p.ID] = cur
	return cloneProfile(cur), nil
}

func (t *tx) AdjustCredits(_ context.Context, userID uuid.UUID, delta int64) (model.Profile, error) {
	cur, ok := t.st.profiles[userID]
	if !ok {
		return model.Profile{}, notFound("adjust credits")
	}
	if cur.Credits+delta < 0 {
		return model.Profile{}, fmt.Errorf("adjust credits: %w", store.ErrInsufficientCredits)
	}
	cur.Credits += delta
	cur.UpdatedAt = t.now()
	t.st.profiles[userID] = cur
	return cloneProfile(cur), nil
}

func (t *tx) ListProfiles(_ context.Context) ([]model.Profile, error) {
	out := make([]model.Profile, 0, len(t.st.profiles))
	for _, p := range t.st.profiles {
		out = append(out, cloneProfile(p))
	}
	slices.SortFunc(out, func(a, b model.Profile) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (t *tx) ListStationBlueprints(_ context.Context) ([]model.StationBlueprint, error) {
	out := make([]model.StationBlueprint, 0, len(t.st.blueprints))
	for _, b := range t.st.blueprints {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b model.StationBlueprint) int {
		return cmp.Or(cmp.Compare(a.City, b.City), cmp.Compare(a.Name, b.Name))
	})
	return out, nil
}

func (t *tx) GetStationBlueprint(_ context.Context, id uuid.UUID) (model.StationBlueprint, error) {
	b, ok := t.st.blueprints[id]
	if !ok {
		return model.StationBlueprint{}, notFound("get station blueprint")
	}
	return b, nil
}

func (t *tx) ListVehicleTypes(_ context.Context) ([]model.VehicleType, error) {
	out := make([]model.VehicleType, 0, len(t.st.vehicleTypes))
	for _, vt := range t.st.vehicleTypes {
		out = append(out, cloneVehicleType(vt))
	}
	slices.SortFunc(out, func(a, b model.VehicleType) int {
		return cmp.Or(cmp.Compare(a.StationType, b.StationType), cmp.Compare(a.Cost, b.Cost), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (t *tx) GetVehicleType(_ context.Context, id string) (model.VehicleType, error) {
	vt, ok := t.st.vehicleTypes[id]
	if !ok {
		return model.VehicleType{}, notFound("get vehicle type")
	}
	return cloneVehicleType(vt), nil
}

func (t *tx) ListStations(_ context.Context, userID uuid.UUID) ([]model.Station, error) {
	out := make([]model.Station, 0)
	for _, st := range t.st.stations {
		if st.UserID == userID {
			out = append(out, cloneStation(st))
		}
	}
	slices.SortFunc(out, func(a, b model.Station) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (t *tx) GetStation(_ context.Context, userID, id uuid.UUID) (model.Station, error) {
	st, ok := t.st.stations[id]
	if !ok || st.UserID != userID {
		return model.Station{}, notFound("get station")
	}
	return cloneStation(st), nil
}

func (t *tx) CreateStation(_ context.Context, st model.Station) (model.Station, error) {
	if _, ok := t.st.profiles[st.UserID]; !ok {
		return model.Station{}, notFound("create station")
	}
	if _, ok := t.st.blueprints[st.BlueprintID]; !ok {
		return model.Station{}, notFound("create station")
	}
	for _, existing := range t.st.stations {
		if existing.ID == st.ID || (existing.UserID == st.UserID && existing.BlueprintID == st.BlueprintID) {
			return model.Station{}, fmt.Errorf("create station: %w", store.ErrConflict)
		}
	}
	now := t.now()
	st.CreatedAt, st.UpdatedAt = now, now
	st = cloneStation(st)
	t.st.stations[st.ID] = st
	return cloneStation(st), nil
}

func (t *tx) UpdateStation(_ context.Context, st model.Station) (model.Station, error) {
	cur, ok := t.st.stations[st.ID]
	if !ok || cur.UserID != st.UserID {
		return model.Station{}, notFound("update station")
	}
	cur.Name = st.Name
	cur.Level = st.Level
	cur.VehicleSlots = st.VehicleSlots
	cur.PersonnelCapacity = st.PersonnelCapacity
	cur.Extensions = st.Extensions
	cur.UpdatedAt = t.now()
	cur = cloneStation(cur)
	t.st.stations[cur.ID] = cur
	return cloneStation(cur), nil
}

func (t *tx) ListVehicles(_ context.Context, userID uuid.UUID) ([]model.Vehicle, error) {
	out := make([]model.Vehicle, 0)
	for _, v := range t.st.vehicles {
		if v.UserID == userID {
			out = append(out, cloneVehicle(v))
		}
	}
	slices.SortFunc(out, func(a, b model.Vehicle) int {
		return cmp.Or(cmp.Compare(a.CallSign, b.CallSign), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (t *tx) CountStationVehicles(_ context.Context, stationID uuid.UUID) (int, error) {
	n := 0
	for _, v := range t.st.vehicles {
		if v.StationID == stationID {
			n++
		}
	}
	return n, nil
}

func (t *tx) GetVehicle(_ context.Context, userID, id uuid.UUID) (model.Vehicle, error) {
	v, ok := t.st.vehicles[id]
	if !ok || v.UserID != userID {
		return model.Vehicle{}, notFound("get vehicle")
	}
	return cloneVehicle(v), nil
}

func (t *tx) CreateVehicle(_ context.Context, v model.Vehicle) (model.Vehicle, error) {
	if _, ok := t.st.vehicles[v.ID]; ok {
		return model.Vehicle{}, fmt.Errorf("create vehicle: %w", store.ErrConflict)
	}
	if st, ok := t.st.stations[v.StationID]; !ok || st.UserID != v.UserID {
		return model.Vehicle{}, notFound("create vehicle")
	}
	if _, ok := t.st.vehicleTypes[v.TypeID]; !ok {
		return model.Vehicle{}, notFound("create vehicle")
	}
	now := t.now()
	v.Version = 1
	v.CreatedAt, v.UpdatedAt = now, now
	v = cloneVehicle(v)
	t.st.vehicles[v.ID] = v
	return cloneVehicle(v), nil
}

func (t *tx) UpdateVehicle(_ context.Context, v model.Vehicle) (model.Vehicle, error) {
	cur, ok := t.st.vehicles[v.ID]
	if !ok || cur.UserID != v.UserID {
		return model.Vehicle{}, notFound("update vehicle")
	}
	cur.CallSign = v.CallSign
	cur.Status = v.Status
	cur.Lat, cur.Lon = v.Lat, v.Lon
	cur.Condition = v.Condition
	cur.OdometerKM = v.OdometerKM
	cur.Config = v.Config
	cur.MissionID = v.MissionID
	cur.Version++
	cur.UpdatedAt = t.now()
	cur = cloneVehicle(cur)
	t.st.vehicles[cur.ID] = cur
	return cloneVehicle(cur), nil
}

func (t *tx) DeleteVehicle(_ context.Context, userID, id uuid.UUID) error {
	v, ok := t.st.vehicles[id]
	if !ok || v.UserID != userID {
		return notFound("delete vehicle")
	}
	delete(t.st.vehicles, id)
	delete(t.st.routes, id)
	return nil
}

func sortMissions(ms []model.Mission) {
	slices.SortFunc(ms, func(a, b model.Mission) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
}

func (t *tx) ListActiveMissions(_ context.Context, userID uuid.UUID, completedSince time.Time) ([]model.Mission, error) {
	out := make([]model.Mission, 0)
	for _, m := range t.st.missions {
		if m.UserID != userID {
			continue
		}
		if m.Status == model.MissionStatusCompleted && (m.CompletedAt == nil || m.CompletedAt.Before(completedSince)) {
			continue
		}
		out = append(out, cloneMission(m))
	}
	sortMissions(out)
	return out, nil
}

func (t *tx) CountActiveMissions(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for _, m := range t.st.missions {
		if m.UserID == userID && m.Status != model.MissionStatusCompleted {
			n++
		}
	}
	return n, nil
}

func (t *tx) GetMission(_ context.Context, userID, id uuid.UUID) (model.Mission, error) {
	m, ok := t.st.missions[id]
	if !ok || m.UserID != userID {
		return model.Mission{}, notFound("get mission")
	}
	return cloneMission(m), nil
}

func (t *tx) CreateMission(_ context.Context, m model.Mission) (model.Mission, error) {
	if _, ok := t.st.missions[m.ID]; ok {
		return model.Mission{}, fmt.Errorf("create mission: %w", store.ErrConflict)
	}
	if _, ok := t.st.profiles[m.UserID]; !ok {
		return model.Mission{}, notFound("create mission")
	}
	now := t.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	m.Version = 1
	m = cloneMission(m)
	t.st.missions[m.ID] = m
	return cloneMission(m), nil
}

func (t *tx) UpdateMission(_ context.Context, m model.Mission) (model.Mission, error) {
	cur, ok := t.st.missions[m.ID]
	if !ok || cur.UserID != m.UserID {
		return model.Mission{}, notFound("update mission")
	}
	cur.Status = m.Status
	cur.AssignedVehicleIDs = m.AssignedVehicleIDs
	cur.ProcessingStartedAt = m.ProcessingStartedAt
	cur.ProcessingSeconds = m.ProcessingSeconds
	cur.CompletedAt = m.CompletedAt
	cur.Address = m.Address
	cur.Version++
	cur.UpdatedAt = t.now()
	cur = cloneMission(cur)
	t.st.missions[cur.ID] = cur
	return cloneMission(cur), nil
}

func (t *tx) ListDueMissions(_ context.Context, now time.Time) ([]model.Mission, error) {
	out := make([]model.Mission, 0)
	for _, m := range t.st.missions {
		if m.Status != model.MissionStatusOnScene {
			continue
		}
		deadline, ok := m.ProcessingDeadline()
		if !ok || deadline.After(now) {
			continue
		}
		out = append(out, cloneMission(m))
	}
	slices.SortFunc(out, func(a, b model.Mission) int {
		return cmp.Or(a.ProcessingStartedAt.Compare(*b.ProcessingStartedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (t *tx) GetVehicleRoute(_ context.Context, vehicleID uuid.UUID) (model.VehicleRoute, error) {
	r, ok := t.st.routes[vehicleID]
	if !ok {
		return model.VehicleRoute{}, notFound("get vehicle route")
	}
	return cloneRoute(r), nil
}

func (t *tx) SaveVehicleRoute(_ context.Context, r model.VehicleRoute) error {
	if _, ok := t.st.vehicles[r.VehicleID]; !ok {
		return notFound("save vehicle route")
	}
	t.st.routes[r.VehicleID] = cloneRoute(r)
	return nil
}

func (t *tx) DeleteVehicleRoute(_ context.Context, vehicleID uuid.UUID) error {
	delete(t.st.routes, vehicleID)
	return nil
}

func (t *tx) ListDueRoutes(_ context.Context, now time.Time) ([]model.VehicleRoute, error) {
	out := make([]model.VehicleRoute, 0)
	for _, r := range t.st.routes {
		if !r.ArrivesAt().After(now) {
			out = append(out, cloneRoute(r))
		}
	}
	slices.SortFunc(out, func(a, b model.VehicleRoute) int {
		return cmp.Or(a.StartedAt.Compare(b.StartedAt), cmp.Compare(a.VehicleID.String(), b.VehicleID.String()))
	})
	return out, nil
}

func (t *tx) SavePushSubscription(_ context.Context, sub model.PushSubscription) error {
	if _, ok := t.st.profiles[sub.UserID]; !ok {
		return notFound("save push subscription")
	}
	if existing, ok := t.st.push[sub.Endpoint]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.CreatedAt = t.now()
	}
	t.st.push[sub.Endpoint] = sub
	return nil
}

func (t *tx) ListPushSubscriptions(_ context.Context, userID uuid.UUID) ([]model.PushSubscription, error) {
	out := make([]model.PushSubscription, 0)
	for _, sub := range t.st.push {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b model.PushSubscription) int { return cmp.Compare(a.Endpoint, b.Endpoint) })
	return out, nil
}

func (t *tx) DeletePushSubscription(_ context.Context, userID uuid.UUID, endpoint string) error {
	if sub, ok := t.st.push[endpoint]; ok && sub.UserID == userID {
		delete(t.st.push, endpoint)
	}
	return nil
}
