package game

import (
	"errors"
	"testing"

	"leitstelle/api/internal/game/mocks"
	"leitstelle/api/internal/model"
	"leitstelle/api/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var eppendorfBlueprint = uuid.MustParse("00000000-0000-4000-8000-000000000103")

func credits(t *testing.T, f *fixture) int64 {
	t.Helper()
	p, err := f.store.GetProfile(f.ctx, f.user)
	require.NoError(t, err)
	return p.Credits
}

func TestEnsureProfileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.EnsureProfile(f.ctx, f.user, "someone else")
	require.NoError(t, err)
	assert.Equal(t, "tester", p.Username)
	assert.Equal(t, int64(200_000), p.Credits)
	assert.Equal(t, int32(1), p.HQLevel)
}

func TestPurchaseStationAndVehicles(t *testing.T) {
	f := newFixture(t)

	st, err := f.svc.PurchaseStation(f.ctx, f.user, altonaBlueprint)
	require.NoError(t, err)
	assert.Equal(t, model.StationTypeFire, st.Type)
	assert.Equal(t, int32(1), st.Level)
	assert.Equal(t, int32(2), st.VehicleSlots)
	assert.Equal(t, int32(9), st.PersonnelCapacity)
	assert.Equal(t, int64(150_000), credits(t, f))

	_, err = f.svc.PurchaseStation(f.ctx, f.user, altonaBlueprint)
	require.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, int64(150_000), credits(t, f))

	v, err := f.svc.PurchaseVehicle(f.ctx, f.user, st.ID, "hlf", "Florian Altona 1")
	require.NoError(t, err)
	assert.Equal(t, "Florian Altona 1", v.CallSign)
	assert.Equal(t, model.VehicleStatusAtStation, v.Status)
	assert.Equal(t, int32(100), v.Condition)
	assert.Equal(t, map[string]string{"equipment": "standard"}, v.Config)
	assert.Equal(t, st.Lat, v.Lat)

	_, err = f.svc.PurchaseVehicle(f.ctx, f.user, st.ID, "rtw", "")
	require.ErrorIs(t, err, ErrWrongStationType)

	second, err := f.svc.PurchaseVehicle(f.ctx, f.user, st.ID, "tlf", "")
	require.NoError(t, err)
	assert.Contains(t, second.CallSign, "TLF 2")

	_, err = f.svc.PurchaseVehicle(f.ctx, f.user, st.ID, "elw", "")
	require.ErrorIs(t, err, ErrNoFreeSlot)
	assert.Equal(t, int64(150_000-25_000-20_000), credits(t, f))
}

func TestRescueStationLayout(t *testing.T) {
	f := newFixture(t)
	st, err := f.svc.PurchaseStation(f.ctx, f.user, eppendorfBlueprint)
	require.NoError(t, err)
	assert.Equal(t, int32(1), st.VehicleSlots)
	assert.Equal(t, int32(4), st.PersonnelCapacity)
}

func TestPurchaseRequiresCredits(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Config.StartingCredits = 10_000 })

	_, err := f.svc.PurchaseStation(f.ctx, f.user, altonaBlueprint)
	require.ErrorIs(t, err, store.ErrInsufficientCredits)

	stations, err := f.store.ListStations(f.ctx, f.user)
	require.NoError(t, err)
	assert.Empty(t, stations)
	assert.Equal(t, int64(10_000), credits(t, f))
}

func TestUpgradeHeadquarters(t *testing.T) {
	f := newFixture(t)
	spent := int64(0)
	for level := int32(1); level < MaxHQLevel; level++ {
		p, err := f.svc.UpgradeHeadquarters(f.ctx, f.user)
		require.NoError(t, err)
		assert.Equal(t, level+1, p.HQLevel)
		spent += HQUpgradeCost(level)
	}
	_, err := f.svc.UpgradeHeadquarters(f.ctx, f.user)
	require.ErrorIs(t, err, ErrMaxLevel)
	assert.Equal(t, int64(25_000+50_000+75_000+100_000), spent)
	assert.Equal(t, 200_000-spent, credits(t, f))
	assert.Equal(t, 6, f.svc.MissionLimit(MaxHQLevel))
}

func TestUpgradeStation(t *testing.T) {
	f := newFixture(t)
	st, err := f.svc.PurchaseStation(f.ctx, f.user, altonaBlueprint)
	require.NoError(t, err)

	up, err := f.svc.UpgradeStation(f.ctx, f.user, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), up.Level)
	assert.Equal(t, int32(3), up.VehicleSlots)
	assert.Equal(t, int32(15), up.PersonnelCapacity)
	assert.Equal(t, int64(150_000-25_000), credits(t, f))

	_, err = f.svc.UpgradeStation(f.ctx, uuid.New(), st.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSellVehicle(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 2)
	m := f.mission(t, 60)
	_, err := f.svc.Dispatch(f.ctx, f.user, m.ID, []uuid.UUID{vehicles[1].ID})
	require.NoError(t, err)
	before := credits(t, f)

	_, err = f.svc.SellVehicle(f.ctx, f.user, vehicles[1].ID)
	require.ErrorIs(t, err, ErrVehicleNotIdle)

	refund, err := f.svc.SellVehicle(f.ctx, f.user, vehicles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12_500), refund)
	assert.Equal(t, before+refund, credits(t, f))
	_, err = f.store.GetVehicle(f.ctx, f.user, vehicles[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSellValue(t *testing.T) {
	assert.Equal(t, int64(12_500), SellValue(25_000, 100, 0.5))
	assert.Equal(t, int64(6_000), SellValue(20_000, 60, 0.5))
	assert.Equal(t, int64(0), SellValue(20_000, 0, 0.5))
}

func TestConfigureVehicle(t *testing.T) {
	f := newFixture(t)
	_, vehicles := f.fireStation(t, 1)

	v, err := f.svc.ConfigureVehicle(f.ctx, f.user, vehicles[0].ID, map[string]string{"equipment": "hazmat"})
	require.NoError(t, err)
	assert.Equal(t, "hazmat", v.Config["equipment"])
	assert.Equal(t, vehicles[0].Version+1, v.Version)

	_, err = f.svc.ConfigureVehicle(f.ctx, f.user, vehicles[0].ID, map[string]string{"equipment": "submarine"})
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = f.svc.ConfigureVehicle(f.ctx, f.user, vehicles[0].ID, map[string]string{"color": "red"})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, "hazmat", f.vehicle(t, vehicles[0].ID).Config["equipment"])
}

func TestUpdateProfileGeocodesHomeCity(t *testing.T) {
	ctrl := gomock.NewController(t)
	geo := mocks.NewMockGeocoder(ctrl)
	f := newFixture(t, func(d *Deps) { d.Geocoder = geo })

	geo.EXPECT().Search(gomock.Any(), "Hamburg").Return(53.55, 9.99, nil).Times(1)
	city := "Hamburg"
	name := " Leitstelle Nord "
	p, err := f.svc.UpdateProfile(f.ctx, f.user, ProfileUpdate{Username: &name, HomeCity: &city})
	require.NoError(t, err)
	assert.Equal(t, "Leitstelle Nord", p.Username)
	assert.Equal(t, "Hamburg", p.HomeCity)
	require.True(t, p.HasHome())
	assert.Equal(t, 53.55, *p.HomeLat)

	geo.EXPECT().Search(gomock.Any(), "Atlantis").Return(0.0, 0.0, errors.New("no result")).Times(1)
	lost := "Atlantis"
	p, err = f.svc.UpdateProfile(f.ctx, f.user, ProfileUpdate{HomeCity: &lost})
	require.NoError(t, err)
	assert.Equal(t, "Atlantis", p.HomeCity)
	assert.False(t, p.HasHome())
}

func TestUpdateProfileExplicitCoordinates(t *testing.T) {
	f := newFixture(t)
	lat := 52.52
	_, err := f.svc.UpdateProfile(f.ctx, f.user, ProfileUpdate{HomeLat: &lat})
	require.ErrorIs(t, err, ErrInvalidInput)

	lon := 13.40
	city := "Berlin"
	p, err := f.svc.UpdateProfile(f.ctx, f.user, ProfileUpdate{HomeCity: &city, HomeLat: &lat, HomeLon: &lon})
	require.NoError(t, err)
	assert.Equal(t, 13.40, *p.HomeLon)
}
