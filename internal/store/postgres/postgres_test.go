package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"leitstelle/api/internal/config"
	"leitstelle/api/internal/database"
	"leitstelle/api/internal/model"
	"leitstelle/api/internal/store"
	"leitstelle/api/internal/store/postgres"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to LEITSTELLE_TEST_DATABASE_URL and skips when it is unset.
func openTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	url := os.Getenv("LEITSTELLE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEITSTELLE_TEST_DATABASE_URL not set")
	}

	cfg := config.Config{AppName: "leitstelle-test"}
	cfg.Database.URL = url
	cfg.Database.RunMigrations = true
	cfg.Database.MigrationsDir = "../../../migrations"
	cfg.Database.MaxConns = 4
	cfg.Database.MaxConnIdleTime = time.Minute
	cfg.Database.MaxConnLifetime = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := database.Connect(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)

	s := postgres.New(pool)
	t.Cleanup(s.Close)
	return s
}

func TestProfileCreditsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProfile(ctx, model.Profile{ID: uuid.New(), Username: "pg", Credits: 100, HQLevel: 1})
	require.NoError(t, err)

	_, err = s.AdjustCredits(ctx, p.ID, -101)
	assert.ErrorIs(t, err, store.ErrInsufficientCredits)

	_, err = s.AdjustCredits(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	boom := errors.New("boom")
	err = s.InTx(ctx, func(q store.Queries) error {
		if _, err := q.AdjustCredits(ctx, p.ID, -50); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Credits)
}

func TestMissionAndVehicleLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProfile(ctx, model.Profile{ID: uuid.New(), Credits: 0, HQLevel: 1})
	require.NoError(t, err)

	bps, err := s.ListStationBlueprints(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, bps)

	st, err := s.CreateStation(ctx, model.Station{
		ID: uuid.New(), UserID: p.ID, BlueprintID: bps[0].ID, Name: bps[0].Name, Type: bps[0].Type,
		Lat: bps[0].Lat, Lon: bps[0].Lon, Level: 1, VehicleSlots: 2, PersonnelCapacity: 9,
	})
	require.NoError(t, err)

	_, err = s.CreateStation(ctx, model.Station{ID: uuid.New(), UserID: p.ID, BlueprintID: bps[0].ID, Level: 1})
	assert.ErrorIs(t, err, store.ErrConflict)

	v, err := s.CreateVehicle(ctx, model.Vehicle{
		ID: uuid.New(), UserID: p.ID, StationID: st.ID, TypeID: "hlf", CallSign: "Florian 1",
		Status: model.VehicleStatusAtStation, Lat: st.Lat, Lon: st.Lon, Condition: 100,
	})
	require.NoError(t, err)

	m, err := s.CreateMission(ctx, model.Mission{
		ID: uuid.New(), UserID: p.ID, Archetype: "fire_small", Title: "Kleinbrand", Status: model.MissionStatusNew,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Empty(t, m.AssignedVehicleIDs)

	m.Status = model.MissionStatusDispatched
	m.AssignedVehicleIDs = []uuid.UUID{v.ID}
	updated, err := s.UpdateMission(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, m.Version+1, updated.Version)
	assert.Equal(t, []uuid.UUID{v.ID}, updated.AssignedVehicleIDs)

	v.MissionID = &m.ID
	v.Status = model.VehicleStatusEnRoute
	vu, err := s.UpdateVehicle(ctx, v)
	require.NoError(t, err)
	require.NotNil(t, vu.MissionID)
	assert.Equal(t, m.ID, *vu.MissionID)
}
