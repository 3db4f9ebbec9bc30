package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"leitstelle/api/internal/config"
	"leitstelle/api/internal/model"
	"leitstelle/api/internal/realtime"
	"leitstelle/api/internal/store"
	"leitstelle/api/internal/store/memory"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var altonaBlueprint = uuid.MustParse("00000000-0000-4000-8000-000000000101")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	ctx    context.Context
	svc    *Service
	store  *memory.Store
	broker *realtime.LocalBroker
	clock  *fakeClock
	user   uuid.UUID
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		StartingCredits:    200_000,
		TickInterval:       time.Second,
		CompletedRetention: 10 * time.Second,
		MissionRadiusKM:    2,
		MaxActiveMissions:  2,
		LocationAttempts:   3,
		SellRatio:          0.5,
	}
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	st := memory.New(memory.WithClock(clock.now))
	broker := realtime.NewLocalBroker(zerolog.Nop())
	deps := Deps{Store: st, Broker: broker, Config: testGameConfig(), Logger: zerolog.Nop()}
	for _, m := range mutate {
		m(&deps)
	}
	svc, err := NewService(deps, WithClock(clock.now), WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)

	f := &fixture{ctx: context.Background(), svc: svc, store: st, broker: broker, clock: clock, user: uuid.New()}
	_, err = svc.EnsureProfile(f.ctx, f.user, "tester")
	require.NoError(t, err)
	return f
}

// fireStation buys the Altona station with n HLF vehicles.
func (f *fixture) fireStation(t *testing.T, n int) (model.Station, []model.Vehicle) {
	t.Helper()
	st, err := f.svc.PurchaseStation(f.ctx, f.user, altonaBlueprint)
	require.NoError(t, err)
	vehicles := make([]model.Vehicle, 0, n)
	for i := 0; i < n; i++ {
		v, err := f.svc.PurchaseVehicle(f.ctx, f.user, st.ID, "hlf", "")
		require.NoError(t, err)
		vehicles = append(vehicles, v)
	}
	return st, vehicles
}

func (f *fixture) mission(t *testing.T, processing int32, capabilities ...string) model.Mission {
	t.Helper()
	m, err := f.store.CreateMission(f.ctx, model.Mission{
		ID:                   uuid.New(),
		UserID:               f.user,
		Archetype:            "apartment_fire",
		Title:                "Wohnungsbrand",
		Lat:                  53.5611,
		Lon:                  9.9610,
		Address:              "Schulterblatt 1",
		Payout:               2500,
		Status:               model.MissionStatusNew,
		AssignedVehicleIDs:   []uuid.UUID{},
		RequiredCapabilities: capabilities,
		ProcessingSeconds:    processing,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) route(t *testing.T, vehicleID uuid.UUID) model.VehicleRoute {
	t.Helper()
	r, err := f.store.GetVehicleRoute(f.ctx, vehicleID)
	require.NoError(t, err)
	return r
}

func (f *fixture) vehicle(t *testing.T, id uuid.UUID) model.Vehicle {
	t.Helper()
	v, err := f.store.GetVehicle(f.ctx, f.user, id)
	require.NoError(t, err)
	return v
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) model.Mission {
	t.Helper()
	m, err := f.store.GetMission(f.ctx, f.user, id)
	require.NoError(t, err)
	return m
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.MissionStatus
		want     bool
	}{
		{model.MissionStatusNew, model.MissionStatusDispatched, true},
		{model.MissionStatusNew, model.MissionStatusOnScene, false},
		{model.MissionStatusDispatched, model.MissionStatusOnScene, true},
		{model.MissionStatusDispatched, model.MissionStatusNew, true},
		{model.MissionStatusDispatched, model.MissionStatusCompleted, false},
		{model.MissionStatusOnScene, model.MissionStatusCompleted, true},
		{model.MissionStatusOnScene, model.MissionStatusDispatched, true},
		{model.MissionStatusOnScene, model.MissionStatusNew, true},
		{model.MissionStatusCompleted, model.MissionStatusNew, false},
		{model.MissionStatusCompleted, model.MissionStatusOnScene, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, model.MissionStatusNew, deriveStatus(nil))
	assert.Equal(t, model.MissionStatusDispatched, deriveStatus([]model.Vehicle{{Status: model.VehicleStatusEnRoute}}))
	assert.Equal(t, model.MissionStatusOnScene, deriveStatus([]model.Vehicle{
		{Status: model.VehicleStatusEnRoute},
		{Status: model.VehicleStatusOnScene},
	}))
}

func TestMoveMissionClearsTimerWhenLeavingScene(t *testing.T) {
	started := time.Now()
	m := model.Mission{Status: model.MissionStatusOnScene, ProcessingStartedAt: &started}
	require.NoError(t, moveMission(&m, model.MissionStatusDispatched))
	assert.Nil(t, m.ProcessingStartedAt)

	done := model.Mission{Status: model.MissionStatusCompleted}
	err := moveMission(&done, model.MissionStatusNew)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDispatchAssignsVehicle(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 1)
	m := f.mission(t, 60)

	res, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{vehicles[0].ID})
	require.NoError(t, err)
	assert.Equal(t, model.MissionStatusDispatched, res.Mission.Status)
	assert.Equal(t, []uuid.UUID{vehicles[0].ID}, res.Mission.AssignedVehicleIDs)
	require.Len(t, res.Vehicles, 1)
	assert.Equal(t, model.VehicleStatusEnRoute, res.Vehicles[0].Status)
	require.NotNil(t, res.Vehicles[0].MissionID)
	assert.Equal(t, m.ID, *res.Vehicles[0].MissionID)

	r := f.route(t, vehicles[0].ID)
	assert.Equal(t, model.RouteKindToScene, r.Kind)
	assert.Equal(t, m.Lat, r.ToLat)
	assert.Greater(t, r.DurationSeconds, 0.0)
	assert.Contains(t, r.GeoJSON, "LineString")

	// Repeating the dispatch changes nothing.
	again, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{vehicles[0].ID})
	require.NoError(t, err)
	assert.Empty(t, again.Vehicles)
	assert.Equal(t, res.Mission.Version, again.Mission.Version)
	assert.Len(t, again.Mission.AssignedVehicleIDs, 1)
}

func TestDispatchEmptyListIsNoop(t *testing.T) {
	f := newFixture(t)
	m := f.mission(t, 60)

	res, err := f.svc.Dispatch(f.ctx, f.user, m.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, m.Version, res.Mission.Version)
	assert.Equal(t, model.MissionStatusNew, res.Mission.Status)
}

func TestDispatchRejectsBusyVehicleAtomically(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 2)
	first := f.mission(t, 60)
	second := f.mission(t, 60)

	_, err := f.svc.Dispatch(f.ctx, f.user, first.ID, []uuid.UUID{vehicles[0].ID})
	require.NoError(t, err)

	_, err = f.svc.Dispatch(f.ctx, f.user, second.ID, []uuid.UUID{vehicles[0].ID, vehicles[1].ID})
	require.ErrorIs(t, err, ErrVehicleBusy)

	assert.Equal(t, model.MissionStatusNew, f.reload(t, second.ID).Status)
	assert.Equal(t, model.VehicleStatusAtStation, f.vehicle(t, vehicles[1].ID).Status)
}

func TestDispatchRejectsForeignVehicle(t *testing.T) {
	f := newFixture(t)
	m := f.mission(t, 60)

	_, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestArrivalAndCompletion(t *testing.T) {
	f := newFixture(t)
	st, vehicles := f.fireStation(t, 1)
	v := vehicles[0]
	m := f.mission(t, 60)
	before, err := f.store.GetProfile(f.ctx, f.user)
	require.NoError(t, err)

	_, err = f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{v.ID})
	require.NoError(t, err)
	toScene := f.route(t, v.ID)
	f.clock.advance(toScene.ArrivesAt().Sub(f.clock.now()))

	arrival, err := f.svc.ReportArrival(f.ctx, f.user, v.ID)
	require.NoError(t, err)
	require.True(t, arrival.Applied)
	assert.Equal(t, model.VehicleStatusOnScene, arrival.Vehicle.Status)
	assert.Equal(t, m.Lat, arrival.Vehicle.Lat)
	assert.InDelta(t, toScene.LengthMeters/1000, arrival.Vehicle.OdometerKM, 1e-9)
	require.NotNil(t, arrival.Mission)
	assert.Equal(t, model.MissionStatusOnScene, arrival.Mission.Status)
	require.NotNil(t, arrival.Mission.ProcessingStartedAt)
	assert.Equal(t, f.clock.now(), *arrival.Mission.ProcessingStartedAt)
	_, err = f.store.GetVehicleRoute(f.ctx, v.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.CompleteMission(f.ctx, f.user, m.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	f.clock.advance(60 * time.Second)
	done, err := f.svc.CompleteMission(f.ctx, f.user, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MissionStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.AssignedVehicleIDs)

	after, err := f.store.GetProfile(f.ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, before.Credits+m.Payout, after.Credits)

	_, err = f.svc.CompleteMission(f.ctx, f.user, m.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	returning := f.vehicle(t, v.ID)
	assert.Equal(t, model.VehicleStatusReturning, returning.Status)
	assert.Nil(t, returning.MissionID)
	home := f.route(t, v.ID)
	assert.Equal(t, model.RouteKindReturn, home.Kind)
	assert.Equal(t, st.Lat, home.ToLat)

	_, err = f.svc.ReturnToStation(f.ctx, f.user, v.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	f.clock.advance(home.ArrivesAt().Sub(f.clock.now()))
	parked, err := f.svc.ReturnToStation(f.ctx, f.user, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VehicleStatusAtStation, parked.Status)
	assert.Equal(t, st.Lat, parked.Lat)
	assert.Equal(t, int32(99), parked.Condition)
	assert.InDelta(t, (toScene.LengthMeters+home.LengthMeters)/1000, parked.OdometerKM, 1e-9)
}

func TestArrivalIgnoredAfterRecall(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 1)
	v := vehicles[0]
	m := f.mission(t, 60)

	_, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{v.ID})
	require.NoError(t, err)
	f.clock.advance(5 * time.Second)

	res, err := f.svc.Recall(f.ctx, f.user, m.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.MissionStatusNew, res.Mission.Status)
	assert.Empty(t, res.Mission.AssignedVehicleIDs)
	require.Len(t, res.Vehicles, 1)
	assert.Equal(t, model.VehicleStatusReturning, res.Vehicles[0].Status)
	assert.Nil(t, res.Vehicles[0].MissionID)

	arrival, err := f.svc.ReportArrival(f.ctx, f.user, v.ID)
	require.NoError(t, err)
	assert.False(t, arrival.Applied)
	assert.Equal(t, model.RouteKindReturn, f.route(t, v.ID).Kind)

	// A returning vehicle can be sent out again straight away.
	again, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{v.ID})
	require.NoError(t, err)
	assert.Equal(t, model.MissionStatusDispatched, again.Mission.Status)
	assert.Equal(t, model.RouteKindToScene, f.route(t, v.ID).Kind)
}

func TestPartialRecallRederivesStatus(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 2)
	a, b := vehicles[0], vehicles[1]
	m := f.mission(t, 120)

	_, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	_, err = f.svc.ReportArrival(f.ctx, f.user, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.MissionStatusOnScene, f.reload(t, m.ID).Status)

	res, err := f.svc.Recall(f.ctx, f.user, m.ID, []uuid.UUID{a.ID})
	require.NoError(t, err)
	assert.Equal(t, model.MissionStatusDispatched, res.Mission.Status)
	assert.Nil(t, res.Mission.ProcessingStartedAt)
	assert.Equal(t, []uuid.UUID{b.ID}, res.Mission.AssignedVehicleIDs)

	res, err = f.svc.Recall(f.ctx, f.user, m.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.MissionStatusNew, res.Mission.Status)
	assert.Equal(t, model.VehicleStatusReturning, f.vehicle(t, b.ID).Status)
}

func TestRecallCompletedMissionRejected(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 1)
	m := f.mission(t, 1)

	_, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{vehicles[0].ID})
	require.NoError(t, err)
	_, err = f.svc.ReportArrival(f.ctx, f.user, vehicles[0].ID)
	require.NoError(t, err)
	f.clock.advance(time.Second)
	_, err = f.svc.CompleteMission(f.ctx, f.user, m.ID)
	require.NoError(t, err)

	_, err = f.svc.Recall(f.ctx, f.user, m.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{vehicles[0].ID})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTickRunsLifecycle(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 1)
	v := vehicles[0]
	m := f.mission(t, 30)

	_, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{v.ID})
	require.NoError(t, err)

	stats, err := f.svc.Tick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, TickStats{}, stats)

	f.clock.advance(f.route(t, v.ID).ArrivesAt().Sub(f.clock.now()))
	stats, err = f.svc.Tick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Arrivals)
	assert.Equal(t, model.MissionStatusOnScene, f.reload(t, m.ID).Status)

	f.clock.advance(30 * time.Second)
	stats, err = f.svc.Tick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, model.MissionStatusCompleted, f.reload(t, m.ID).Status)

	// Completed missions stay visible for the retention window only.
	active, err := f.svc.ActiveMissions(f.ctx, f.user)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	f.clock.advance(f.route(t, v.ID).ArrivesAt().Sub(f.clock.now()))
	stats, err = f.svc.Tick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Returns)
	assert.Equal(t, model.VehicleStatusAtStation, f.vehicle(t, v.ID).Status)

	f.clock.advance(time.Minute)
	active, err = f.svc.ActiveMissions(f.ctx, f.user)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCandidatesRankedByETA(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 2)
	m := f.mission(t, 60, "fire_fighting", "medical")

	_, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{vehicles[0].ID})
	require.NoError(t, err)

	candidates, err := f.svc.Candidates(f.ctx, f.user, m.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, vehicles[1].ID, candidates[0].Vehicle.ID)
	assert.Equal(t, "HLF 20", candidates[0].TypeName)
	assert.Equal(t, []string{"fire_fighting"}, candidates[0].Covers)
	assert.Greater(t, candidates[0].ETASeconds, 0.0)
}

func TestVehicleRouteView(t *testing.T) {
	f := newFixture(t)
	st, vehicles := f.fireStation(t, 1)
	m := f.mission(t, 60)

	_, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{vehicles[0].ID})
	require.NoError(t, err)
	r := f.route(t, vehicles[0].ID)
	f.clock.advance(time.Duration(r.DurationSeconds/2*float64(time.Second)))

	view, err := f.svc.VehicleRoute(f.ctx, f.user, vehicles[0].ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, view.Progress, 0.01)
	assert.InDelta(t, (st.Lat+m.Lat)/2, view.Position.Lat, 0.001)

	_, err = f.svc.VehicleRoute(f.ctx, uuid.New(), vehicles[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestChangesPublishedAfterCommit(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 1)
	m := f.mission(t, 60)

	ch, cancel, err := f.broker.Subscribe(f.ctx, f.user)
	require.NoError(t, err)
	defer cancel()

	_, err = f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{vehicles[0].ID})
	require.NoError(t, err)

	got := map[string]realtime.Change{}
	for i := 0; i < 2; i++ {
		select {
		case c := <-ch:
			got[c.Table] = c
		case <-time.After(time.Second):
			t.Fatal("expected change")
		}
	}
	assert.Equal(t, realtime.ChangeUpdate, got[realtime.TableVehicles].Type)
	assert.Equal(t, m.ID.String(), got[realtime.TableMissions].ID)
	assert.Equal(t, m.Version+1, got[realtime.TableMissions].Version)

	// A rejected dispatch publishes nothing.
	other := f.mission(t, 60)
	_, err = f.svc.Dispatch(f.ctx, f.user, other.ID, []uuid.UUID{vehicles[0].ID})
	require.ErrorIs(t, err, ErrVehicleBusy)
	select {
	case c := <-ch:
		t.Fatalf("unexpected change %+v", c)
	default:
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 2)
	m := f.mission(t, 60)
	_, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{vehicles[0].ID})
	require.NoError(t, err)

	snap, err := f.svc.Snapshot(f.ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, f.user, snap.Profile.ID)
	assert.Len(t, snap.Stations, 1)
	assert.Len(t, snap.Vehicles, 2)
	assert.Len(t, snap.Missions, 1)
	require.Len(t, snap.Routes, 1)
	assert.Equal(t, vehicles[0].ID, snap.Routes[0].VehicleID)
}
