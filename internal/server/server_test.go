package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leitstelle/api/internal/config"
	"leitstelle/api/internal/game"
	"leitstelle/api/internal/model"
	"leitstelle/api/internal/realtime"
	"leitstelle/api/internal/store/memory"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy"

var (
	altonaBlueprint    = "00000000-0000-4000-8000-000000000101"
	eppendorfBlueprint = "00000000-0000-4000-8000-000000000103"
)

type testEnv struct {
	ts    *httptest.Server
	store *memory.Store
	user  uuid.UUID
	token string
}

func testConfig() config.Config {
	return config.Config{
		Env: "test",
		HTTP: config.HTTPConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Auth: config.AuthConfig{Secret: testSecret},
		Game: config.GameConfig{
			StartingCredits:    200_000,
			TickInterval:       time.Second,
			CompletedRetention: time.Minute,
			MissionRadiusKM:    2,
			MaxActiveMissions:  3,
			LocationAttempts:   3,
			SellRatio:          0.5,
		},
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	st := memory.New()
	broker := realtime.NewLocalBroker(zerolog.Nop())
	t.Cleanup(func() { _ = broker.Close() })

	svc, err := game.NewService(game.Deps{
		Store:  st,
		Broker: broker,
		Config: cfg.Game,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	srv, err := New(context.Background(), cfg, zerolog.Nop(), Deps{
		Store: st,
		Game:  svc,
		Hub:   realtime.NewHub(broker, cfg.HTTP.AllowedOrigins, zerolog.Nop()),
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	user := uuid.New()
	return &testEnv{ts: ts, store: st, user: user, token: signToken(t, user, time.Hour)}
}

func signToken(t *testing.T, user uuid.UUID, ttl time.Duration) string {
	t.Helper()
	claims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Email: "disponent@example.org",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) buyFireStation(t *testing.T) StationResponse {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/v1/stations", PurchaseStationRequest{BlueprintID: altonaBlueprint})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[StationResponse](t, resp)
}

func (e *testEnv) buyVehicle(t *testing.T, stationID uuid.UUID, typeID string) VehicleResponse {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/v1/vehicles", PurchaseVehicleRequest{StationID: stationID.String(), TypeID: typeID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[VehicleResponse](t, resp)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	resp, err := e.ts.Client().Get(e.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Database)
	assert.Equal(t, "test", health.Env)
}

func TestAuthentication(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing token", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"expired token", "Bearer " + signToken(t, uuid.New(), -time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, e.ts.URL+"/v1/profile", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := e.ts.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestProfileCreatedOnFirstRequest(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/v1/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[ProfileResponse](t, resp)

	assert.Equal(t, e.user, profile.ID)
	assert.Equal(t, "disponent", profile.Username)
	assert.Equal(t, int64(200_000), profile.Credits)
	assert.Equal(t, int32(1), profile.HQLevel)
	assert.Equal(t, 3, profile.MissionLimit)
	require.NotNil(t, profile.HQUpgradeCost)
}

func TestUpdateProfile(t *testing.T) {
	e := newTestEnv(t)

	lat, lon := 53.55, 9.99
	resp := e.do(t, http.MethodPatch, "/v1/profile", UpdateProfileRequest{HomeLat: &lat, HomeLon: &lon})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[ProfileResponse](t, resp)
	require.True(t, profile.HasHome())
	assert.InDelta(t, lat, *profile.HomeLat, 1e-9)

	bad := 120.0
	resp = e.do(t, http.MethodPatch, "/v1/profile", UpdateProfileRequest{HomeLat: &bad, HomeLon: &lon})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPatch, "/v1/profile", UpdateProfileRequest{HomeLat: &lat})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUnknownFieldsRejected(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v1/stations", map[string]string{"blueprint_id": altonaBlueprint, "extra": "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	apiErr := decode[APIError](t, resp)
	assert.Equal(t, errInvalidPayload, apiErr.Error)
}

func TestStationAndVehiclePurchase(t *testing.T) {
	e := newTestEnv(t)

	station := e.buyFireStation(t)
	assert.Equal(t, model.StationTypeFire, station.Type)
	require.NotNil(t, station.UpgradeCost)

	resp := e.do(t, http.MethodPost, "/v1/stations", PurchaseStationRequest{BlueprintID: altonaBlueprint})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	vehicle := e.buyVehicle(t, station.ID, "hlf")
	assert.Equal(t, station.ID, vehicle.StationID)
	assert.Equal(t, 2, vehicle.FMS)
	assert.NotEmpty(t, vehicle.CallSign)

	resp = e.do(t, http.MethodPost, "/v1/vehicles", PurchaseVehicleRequest{StationID: station.ID.String(), TypeID: "rtw"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/v1/profile", nil)
	profile := decode[ProfileResponse](t, resp)
	assert.Equal(t, int64(200_000-50_000-25_000), profile.Credits)

	resp = e.do(t, http.MethodGet, "/v1/vehicles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]VehicleResponse](t, resp), 1)
}

func TestPurchaseWithoutCredits(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.Game.StartingCredits = 1000 })

	resp := e.do(t, http.MethodPost, "/v1/stations", PurchaseStationRequest{BlueprintID: eppendorfBlueprint})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/v1/stations", nil)
	assert.Empty(t, decode[[]StationResponse](t, resp))
}

func TestSellAndConfigureVehicle(t *testing.T) {
	e := newTestEnv(t)
	station := e.buyFireStation(t)
	vehicle := e.buyVehicle(t, station.ID, "hlf")

	resp := e.do(t, http.MethodPatch, "/v1/vehicles/"+vehicle.ID.String()+"/config", ConfigureVehicleRequest{Config: map[string]string{"equipment": "hazmat"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hazmat", decode[VehicleResponse](t, resp).Config["equipment"])

	resp = e.do(t, http.MethodPatch, "/v1/vehicles/"+vehicle.ID.String()+"/config", ConfigureVehicleRequest{Config: map[string]string{"equipment": "submarine"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/v1/vehicles/"+vehicle.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(12_500), decode[SellResponse](t, resp).Refund)

	resp = e.do(t, http.MethodDelete, "/v1/vehicles/"+vehicle.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/v1/vehicles/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMissionFlow(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v1/missions/generate", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no home and no station")

	station := e.buyFireStation(t)
	vehicle := e.buyVehicle(t, station.ID, "hlf")

	resp = e.do(t, http.MethodPost, "/v1/missions/generate", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	mission := decode[MissionResponse](t, resp)
	assert.Equal(t, model.MissionStatusNew, mission.Status)
	assert.NotEmpty(t, mission.Address)

	resp = e.do(t, http.MethodGet, "/v1/missions/"+mission.ID.String()+"/candidates", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	candidates := decode[[]CandidateResponse](t, resp)
	require.Len(t, candidates, 1)
	assert.Equal(t, vehicle.ID, candidates[0].Vehicle.ID)

	resp = e.do(t, http.MethodPost, "/v1/missions/"+mission.ID.String()+"/dispatch", VehicleIDsRequest{VehicleIDs: []string{vehicle.ID.String()}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dispatched := decode[DispatchResponse](t, resp)
	assert.Equal(t, model.MissionStatusDispatched, dispatched.Mission.Status)
	require.Len(t, dispatched.Vehicles, 1)
	assert.Equal(t, 3, dispatched.Vehicles[0].FMS)

	resp = e.do(t, http.MethodGet, "/v1/vehicles/"+vehicle.ID.String()+"/route", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	route := decode[RouteResponse](t, resp)
	assert.Equal(t, model.RouteKindToScene, route.Kind)
	assert.Greater(t, route.DurationSeconds, 0.0)

	resp = e.do(t, http.MethodPost, "/v1/vehicles/"+vehicle.ID.String()+"/arrival", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	arrival := decode[ArrivalResponse](t, resp)
	assert.True(t, arrival.Applied)
	require.NotNil(t, arrival.Mission)
	assert.Equal(t, model.MissionStatusOnScene, arrival.Mission.Status)
	assert.NotNil(t, arrival.Mission.ProcessingEndsAt)

	resp = e.do(t, http.MethodPost, "/v1/vehicles/"+vehicle.ID.String()+"/arrival", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[ArrivalResponse](t, resp).Applied, "second report is stale")

	resp = e.do(t, http.MethodPost, "/v1/missions/"+mission.ID.String()+"/complete", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "processing still running")

	resp = e.do(t, http.MethodGet, "/v1/missions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]MissionResponse](t, resp), 1)
}

func TestRecall(t *testing.T) {
	e := newTestEnv(t)
	station := e.buyFireStation(t)
	vehicle := e.buyVehicle(t, station.ID, "hlf")

	resp := e.do(t, http.MethodPost, "/v1/missions/generate", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	mission := decode[MissionResponse](t, resp)

	body := VehicleIDsRequest{VehicleIDs: []string{vehicle.ID.String()}}
	resp = e.do(t, http.MethodPost, "/v1/missions/"+mission.ID.String()+"/dispatch", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/missions/"+mission.ID.String()+"/recall", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recalled := decode[DispatchResponse](t, resp)
	assert.Equal(t, model.MissionStatusNew, recalled.Mission.Status)
	assert.Empty(t, recalled.Mission.AssignedVehicleIDs)
	require.Len(t, recalled.Vehicles, 1)
	assert.Equal(t, 1, recalled.Vehicles[0].FMS)
}

func TestDispatchValidation(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v1/missions/"+uuid.NewString()+"/dispatch", VehicleIDsRequest{VehicleIDs: []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/missions/"+uuid.NewString()+"/dispatch", VehicleIDsRequest{VehicleIDs: make([]string, 33)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/v1/missions/"+uuid.NewString()+"/dispatch", VehicleIDsRequest{VehicleIDs: []string{uuid.NewString()}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/v1/missions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSync(t *testing.T) {
	e := newTestEnv(t)
	station := e.buyFireStation(t)
	vehicle := e.buyVehicle(t, station.ID, "hlf")

	resp := e.do(t, http.MethodPost, "/v1/missions/generate", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	mission := decode[MissionResponse](t, resp)
	resp = e.do(t, http.MethodPost, "/v1/missions/"+mission.ID.String()+"/dispatch", VehicleIDsRequest{VehicleIDs: []string{vehicle.ID.String()}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/v1/sync", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sync := decode[SyncResponse](t, resp)

	assert.Equal(t, e.user, sync.Profile.ID)
	assert.Len(t, sync.Stations, 1)
	assert.Len(t, sync.Vehicles, 1)
	assert.Len(t, sync.Missions, 1)
	require.Len(t, sync.Routes, 1)
	assert.Equal(t, vehicle.ID, sync.Routes[0].VehicleID)
	assert.False(t, sync.ServerTime.IsZero())
}

func TestCatalogIsCached(t *testing.T) {
	e := newTestEnv(t)

	first := e.do(t, http.MethodGet, "/v1/catalog", nil)
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Empty(t, first.Header.Get("X-Cache"))
	catalog := decode[CatalogResponse](t, first)
	assert.NotEmpty(t, catalog.StationBlueprints)
	assert.NotEmpty(t, catalog.VehicleTypes)
	assert.NotEmpty(t, catalog.Archetypes)

	second := e.do(t, http.MethodGet, "/v1/catalog", nil)
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, "HIT", second.Header.Get("X-Cache"))
	assert.Equal(t, catalog, decode[CatalogResponse](t, second))
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 2}
	})

	for i := 0; i < 2; i++ {
		resp, err := e.ts.Client().Get(e.ts.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := e.ts.Client().Get(e.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestPushSubscriptions(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/v1/push/public-key", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[PushPublicKeyResponse](t, resp).Enabled)

	var req PushSubscriptionRequest
	req.Endpoint = "https://push.example.org/sub/1"
	req.Keys.P256DH = "BNcR"
	req.Keys.Auth = "tBHI"
	resp = e.do(t, http.MethodPost, "/v1/push/subscriptions", req)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	subs, err := e.store.ListPushSubscriptions(context.Background(), e.user)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "BNcR", subs[0].P256DH)

	resp = e.do(t, http.MethodDelete, "/v1/push/subscriptions", DeletePushSubscriptionRequest{Endpoint: req.Endpoint})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	subs, err = e.store.ListPushSubscriptions(context.Background(), e.user)
	require.NoError(t, err)
	assert.Empty(t, subs)

	req.Keys.Auth = ""
	resp = e.do(t, http.MethodPost, "/v1/push/subscriptions", req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRealtimeStreamsChanges(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/v1/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/v1/realtime?access_token=" + e.token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription is registered before the upgrade completes.
	resp = e.do(t, http.MethodPost, "/v1/profile/hq/upgrade", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	upgraded := decode[ProfileResponse](t, resp)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var change realtime.Change
	require.NoError(t, conn.ReadJSON(&change))

	assert.Equal(t, realtime.TableProfiles, change.Table)
	assert.Equal(t, realtime.ChangeUpdate, change.Type)
	assert.Equal(t, e.user, change.UserID)

	var record model.Profile
	require.NoError(t, json.Unmarshal(change.Record, &record))
	assert.Equal(t, upgraded.HQLevel, record.HQLevel)
}

func TestRealtimeRequiresToken(t *testing.T) {
	e := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/v1/realtime"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
