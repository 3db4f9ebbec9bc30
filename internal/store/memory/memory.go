// Package memory provides an in-process transactional store.
//
// Transactions run against a deep copy of the state which replaces the live
// state only when the callback succeeds. A single mutex serialises writers,
// so rows read inside InTx are effectively locked until it returns.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"leitstelle/api/internal/model"
	"leitstelle/api/internal/store"

	"github.com/google/uuid"
)

type state struct {
	profiles     map[uuid.UUID]model.Profile
	blueprints   map[uuid.UUID]model.StationBlueprint
	vehicleTypes map[string]model.VehicleType
	stations     map[uuid.UUID]model.Station
	vehicles     map[uuid.UUID]model.Vehicle
	missions     map[uuid.UUID]model.Mission
	routes       map[uuid.UUID]model.VehicleRoute
	push         map[string]model.PushSubscription
}

func newState() *state {
	return &state{
		profiles:     map[uuid.UUID]model.Profile{},
		blueprints:   map[uuid.UUID]model.StationBlueprint{},
		vehicleTypes: map[string]model.VehicleType{},
		stations:     map[uuid.UUID]model.Station{},
		vehicles:     map[uuid.UUID]model.Vehicle{},
		missions:     map[uuid.UUID]model.Mission{},
		routes:       map[uuid.UUID]model.VehicleRoute{},
		push:         map[string]model.PushSubscription{},
	}
}

func (s *state) clone() *state {
	c := &state{
		profiles:     make(map[uuid.UUID]model.Profile, len(s.profiles)),
		blueprints:   maps.Clone(s.blueprints),
		vehicleTypes: make(map[string]model.VehicleType, len(s.vehicleTypes)),
		stations:     make(map[uuid.UUID]model.Station, len(s.stations)),
		vehicles:     make(map[uuid.UUID]model.Vehicle, len(s.vehicles)),
		missions:     make(map[uuid.UUID]model.Mission, len(s.missions)),
		routes:       make(map[uuid.UUID]model.VehicleRoute, len(s.routes)),
		push:         maps.Clone(s.push),
	}
	for k, v := range s.profiles {
		c.profiles[k] = cloneProfile(v)
	}
	for k, v := range s.vehicleTypes {
		c.vehicleTypes[k] = cloneVehicleType(v)
	}
	for k, v := range s.stations {
		c.stations[k] = cloneStation(v)
	}
	for k, v := range s.vehicles {
		c.vehicles[k] = cloneVehicle(v)
	}
	for k, v := range s.missions {
		c.missions[k] = cloneMission(v)
	}
	for k, v := range s.routes {
		c.routes[k] = cloneRoute(v)
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneProfile(p model.Profile) model.Profile {
	p.HomeLat = clonePtr(p.HomeLat)
	p.HomeLon = clonePtr(p.HomeLon)
	return p
}

func cloneVehicleType(t model.VehicleType) model.VehicleType {
	t.Capabilities = maps.Clone(t.Capabilities)
	opts := make(map[string][]string, len(t.ConfigOptions))
	for k, v := range t.ConfigOptions {
		opts[k] = slices.Clone(v)
	}
	t.ConfigOptions = opts
	return t
}

func cloneStation(st model.Station) model.Station {
	st.Extensions = maps.Clone(st.Extensions)
	if st.Extensions == nil {
		st.Extensions = map[string]any{}
	}
	return st
}

func cloneVehicle(v model.Vehicle) model.Vehicle {
	v.Config = maps.Clone(v.Config)
	if v.Config == nil {
		v.Config = map[string]string{}
	}
	v.MissionID = clonePtr(v.MissionID)
	return v
}

func cloneMission(m model.Mission) model.Mission {
	m.AssignedVehicleIDs = slices.Clone(m.AssignedVehicleIDs)
	if m.AssignedVehicleIDs == nil {
		m.AssignedVehicleIDs = []uuid.UUID{}
	}
	m.RequiredCapabilities = slices.Clone(m.RequiredCapabilities)
	if m.RequiredCapabilities == nil {
		m.RequiredCapabilities = []string{}
	}
	m.ProcessingStartedAt = clonePtr(m.ProcessingStartedAt)
	m.CompletedAt = clonePtr(m.CompletedAt)
	return m
}

func cloneRoute(r model.VehicleRoute) model.VehicleRoute {
	r.MissionID = clonePtr(r.MissionID)
	return r
}

// Store keeps every row in process memory.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the timestamp source for created_at / updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithoutCatalog starts with empty blueprint and vehicle type tables.
func WithoutCatalog() Option {
	return func(s *Store) { s.state = newState() }
}

// New returns a store seeded with the default catalog.
func New(opts ...Option) *Store {
	st := newState()
	for _, b := range DefaultBlueprints() {
		st.blueprints[b.ID] = b
	}
	for _, t := range DefaultVehicleTypes() {
		st.vehicleTypes[t.ID] = t
	}
	s := &Store{state: st, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddBlueprint inserts a catalog row. Used to seed tests and local setups.
func (s *Store) AddBlueprint(b model.StationBlueprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.blueprints[b.ID] = b
}

// AddVehicleType inserts a catalog row.
func (s *Store) AddVehicleType(t model.VehicleType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.vehicleTypes[t.ID] = cloneVehicleType(t)
}

func (s *Store) InTx(ctx context.Context, fn func(q store.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() {}

func locked[T any](s *Store, fn func(t *tx) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&tx{st: s.state, now: s.now})
}

func lockedErr(s *Store, fn func(t *tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&tx{st: s.state, now: s.now})
}

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (model.Profile, error) {
	return locked(s, func(t *tx) (model.Profile, error) { return t.GetProfile(ctx, id) })
}

func (s *Store) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	return locked(s, func(t *tx) (model.Profile, error) { return t.CreateProfile(ctx, p) })
}

func (s *Store) UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	return locked(s, func(t *tx) (model.Profile, error) { return t.UpdateProfile(ctx, p) })
}

func (s *Store) AdjustCredits(ctx context.Context, userID uuid.UUID, delta int64) (model.Profile, error) {
	return locked(s, func(t *tx) (model.Profile, error) { return t.AdjustCredits(ctx, userID, delta) })
}

func (s *Store) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	return locked(s, func(t *tx) ([]model.Profile, error) { return t.ListProfiles(ctx) })
}

func (s *Store) ListStationBlueprints(ctx context.Context) ([]model.StationBlueprint, error) {
	return locked(s, func(t *tx) ([]model.StationBlueprint, error) { return t.ListStationBlueprints(ctx) })
}

func (s *Store) GetStationBlueprint(ctx context.Context, id uuid.UUID) (model.StationBlueprint, error) {
	return locked(s, func(t *tx) (model.StationBlueprint, error) { return t.GetStationBlueprint(ctx, id) })
}

func (s *Store) ListVehicleTypes(ctx context.Context) ([]model.VehicleType, error) {
	return locked(s, func(t *tx) ([]model.VehicleType, error) { return t.ListVehicleTypes(ctx) })
}

func (s *Store) GetVehicleType(ctx context.Context, id string) (model.VehicleType, error) {
	return locked(s, func(t *tx) (model.VehicleType, error) { return t.GetVehicleType(ctx, id) })
}

func (s *Store) ListStations(ctx context.Context, userID uuid.UUID) ([]model.Station, error) {
	return locked(s, func(t *tx) ([]model.Station, error) { return t.ListStations(ctx, userID) })
}

func (s *Store) GetStation(ctx context.Context, userID, id uuid.UUID) (model.Station, error) {
	return locked(s, func(t *tx) (model.Station, error) { return t.GetStation(ctx, userID, id) })
}

func (s *Store) CreateStation(ctx context.Context, st model.Station) (model.Station, error) {
	return locked(s, func(t *tx) (model.Station, error) { return t.CreateStation(ctx, st) })
}

func (s *Store) UpdateStation(ctx context.Context, st model.Station) (model.Station, error) {
	return locked(s, func(t *tx) (model.Station, error) { return t.UpdateStation(ctx, st) })
}

func (s *Store) ListVehicles(ctx context.Context, userID uuid.UUID) ([]model.Vehicle, error) {
	return locked(s, func(t *tx) ([]model.Vehicle, error) { return t.ListVehicles(ctx, userID) })
}

func (s *Store) CountStationVehicles(ctx context.Context, stationID uuid.UUID) (int, error) {
	return locked(s, func(t *tx) (int, error) { return t.CountStationVehicles(ctx, stationID) })
}

func (s *Store) GetVehicle(ctx context.Context, userID, id uuid.UUID) (model.Vehicle, error) {
	return locked(s, func(t *tx) (model.Vehicle, error) { return t.GetVehicle(ctx, userID, id) })
}

func (s *Store) CreateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	return locked(s, func(t *tx) (model.Vehicle, error) { return t.CreateVehicle(ctx, v) })
}

func (s *Store) UpdateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	return locked(s, func(t *tx) (model.Vehicle, error) { return t.UpdateVehicle(ctx, v) })
}

func (s *Store) DeleteVehicle(ctx context.Context, userID, id uuid.UUID) error {
	return lockedErr(s, func(t *tx) error { return t.DeleteVehicle(ctx, userID, id) })
}

func (s *Store) ListActiveMissions(ctx context.Context, userID uuid.UUID, completedSince time.Time) ([]model.Mission, error) {
	return locked(s, func(t *tx) ([]model.Mission, error) { return t.ListActiveMissions(ctx, userID, completedSince) })
}

func (s *Store) CountActiveMissions(ctx context.Context, userID uuid.UUID) (int, error) {
	return locked(s, func(t *tx) (int, error) { return t.CountActiveMissions(ctx, userID) })
}

func (s *Store) GetMission(ctx context.Context, userID, id uuid.UUID) (model.Mission, error) {
	return locked(s, func(t *tx) (model.Mission, error) { return t.GetMission(ctx, userID, id) })
}

func (s *Store) CreateMission(ctx context.Context, m model.Mission) (model.Mission, error) {
	return locked(s, func(t *tx) (model.Mission, error) { return t.CreateMission(ctx, m) })
}

func (s *Store) UpdateMission(ctx context.Context, m model.Mission) (model.Mission, error) {
	return locked(s, func(t *tx) (model.Mission, error) { return t.UpdateMission(ctx, m) })
}

func (s *Store) ListDueMissions(ctx context.Context, now time.Time) ([]model.Mission, error) {
	return locked(s, func(t *tx) ([]model.Mission, error) { return t.ListDueMissions(ctx, now) })
}

func (s *Store) GetVehicleRoute(ctx context.Context, vehicleID uuid.UUID) (model.VehicleRoute, error) {
	return locked(s, func(t *tx) (model.VehicleRoute, error) { return t.GetVehicleRoute(ctx, vehicleID) })
}

func (s *Store) SaveVehicleRoute(ctx context.Context, r model.VehicleRoute) error {
	return lockedErr(s, func(t *tx) error { return t.SaveVehicleRoute(ctx, r) })
}

func (s *Store) DeleteVehicleRoute(ctx context.Context, vehicleID uuid.UUID) error {
	return lockedErr(s, func(t *tx) error { return t.DeleteVehicleRoute(ctx, vehicleID) })
}

func (s *Store) ListDueRoutes(ctx context.Context, now time.Time) ([]model.VehicleRoute, error) {
	return locked(s, func(t *tx) ([]model.VehicleRoute, error) { return t.ListDueRoutes(ctx, now) })
}

func (s *Store) SavePushSubscription(ctx context.Context, sub model.PushSubscription) error {
	return lockedErr(s, func(t *tx) error { return t.SavePushSubscription(ctx, sub) })
}

func (s *Store) ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]model.PushSubscription, error) {
	return locked(s, func(t *tx) ([]model.PushSubscription, error) { return t.ListPushSubscriptions(ctx, userID) })
}

func (s *Store) DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error {
	return lockedErr(s, func(t *tx) error { return t.DeletePushSubscription(ctx, userID, endpoint) })
}
