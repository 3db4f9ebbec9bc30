// Package model holds the rows the game persists. JSON tags follow the column
// names so a row can be shipped as-is in realtime change payloads.
package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Profile is the per-player account state.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	HomeCity  string    `json:"home_city"`
	HomeLat   *float64  `json:"home_lat"`
	HomeLon   *float64  `json:"home_lon"`
	Credits   int64     `json:"credits"`
	HQLevel   int32     `json:"hq_level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasHome reports whether the home coordinates are set.
func (p Profile) HasHome() bool {
	return p.HomeLat != nil && p.HomeLon != nil
}

// StationBlueprint is a purchasable station site.
type StationBlueprint struct {
	ID   uuid.UUID   `json:"id"`
	Name string      `json:"name"`
	City string      `json:"city"`
	Type StationType `json:"type"`
	Lat  float64     `json:"lat"`
	Lon  float64     `json:"lon"`
	Cost int64       `json:"cost"`
}

// Station is a blueprint owned by a player.
type Station struct {
	ID                uuid.UUID      `json:"id"`
	UserID            uuid.UUID      `json:"user_id"`
	BlueprintID       uuid.UUID      `json:"blueprint_id"`
	Name              string         `json:"name"`
	Type              StationType    `json:"type"`
	Lat               float64        `json:"lat"`
	Lon               float64        `json:"lon"`
	Level             int32          `json:"level"`
	VehicleSlots      int32          `json:"vehicle_slots"`
	PersonnelCapacity int32          `json:"personnel_capacity"`
	Extensions        map[string]any `json:"extensions"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// VehicleType is a purchasable vehicle archetype.
type VehicleType struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	StationType   StationType         `json:"station_type"`
	Cost          int64               `json:"cost"`
	SpeedKMH      float64             `json:"speed_kmh"`
	Crew          int32               `json:"crew"`
	Capabilities  map[string]int      `json:"capabilities"`
	ConfigOptions map[string][]string `json:"config_options"`
}

// DefaultConfig picks the first allowed value of every option.
func (t VehicleType) DefaultConfig() map[string]string {
	cfg := make(map[string]string, len(t.ConfigOptions))
	for key, values := range t.ConfigOptions {
		if len(values) > 0 {
			cfg[key] = values[0]
		}
	}
	return cfg
}

// Vehicle is a purchased vehicle.
type Vehicle struct {
	ID         uuid.UUID         `json:"id"`
	UserID     uuid.UUID         `json:"user_id"`
	StationID  uuid.UUID         `json:"station_id"`
	TypeID     string            `json:"type_id"`
	CallSign   string            `json:"call_sign"`
	Status     VehicleStatus     `json:"status"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Condition  int32             `json:"condition"`
	OdometerKM float64           `json:"odometer_km"`
	Config     map[string]string `json:"config"`
	MissionID  *uuid.UUID        `json:"mission_id"`
	Version    int64             `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Dispatchable reports whether the vehicle may be sent to a mission.
func (v Vehicle) Dispatchable() bool {
	if v.MissionID != nil {
		return false
	}
	return v.Status == VehicleStatusAtStation || v.Status == VehicleStatusReturning
}

// Mission is a generated incident.
type Mission struct {
	ID                   uuid.UUID     `json:"id"`
	UserID               uuid.UUID     `json:"user_id"`
	Archetype            string        `json:"archetype"`
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	Lat                  float64       `json:"lat"`
	Lon                  float64       `json:"lon"`
	Address              string        `json:"address"`
	CallerName           string        `json:"caller_name"`
	CallerText           string        `json:"caller_text"`
	Payout               int64         `json:"payout"`
	Status               MissionStatus `json:"status"`
	AssignedVehicleIDs   []uuid.UUID   `json:"assigned_vehicle_ids"`
	RequiredCapabilities []string      `json:"required_capabilities"`
	ProcessingStartedAt  *time.Time    `json:"processing_started_at"`
	ProcessingSeconds    int32         `json:"processing_seconds"`
	CompletedAt          *time.Time    `json:"completed_at"`
	Version              int64         `json:"version"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// HasVehicle reports whether id is in the assigned-vehicle array.
func (m Mission) HasVehicle(id uuid.UUID) bool {
	return slices.Contains(m.AssignedVehicleIDs, id)
}

// ProcessingDeadline returns when on-scene work finishes, if it has started.
func (m Mission) ProcessingDeadline() (time.Time, bool) {
	if m.ProcessingStartedAt == nil {
		return time.Time{}, false
	}
	return m.ProcessingStartedAt.Add(time.Duration(m.ProcessingSeconds) * time.Second), true
}

// VehicleRoute is the leg a moving vehicle is currently driving.
type VehicleRoute struct {
	VehicleID       uuid.UUID  `json:"vehicle_id"`
	UserID          uuid.UUID  `json:"user_id"`
	MissionID       *uuid.UUID `json:"mission_id"`
	Kind            RouteKind  `json:"kind"`
	FromLat         float64    `json:"from_lat"`
	FromLon         float64    `json:"from_lon"`
	ToLat           float64    `json:"to_lat"`
	ToLon           float64    `json:"to_lon"`
	LengthMeters    float64    `json:"length_m"`
	DurationSeconds float64    `json:"duration_s"`
	GeoJSON         string     `json:"geojson"`
	StartedAt       time.Time  `json:"started_at"`
}

// ArrivesAt is the moment the vehicle reaches the end of the route.
func (r VehicleRoute) ArrivesAt() time.Time {
	return r.StartedAt.Add(time.Duration(r.DurationSeconds * float64(time.Second)))
}

// Progress returns the travelled fraction of the route at now, clamped to [0,1].
func (r VehicleRoute) Progress(now time.Time) float64 {
	if r.DurationSeconds <= 0 {
		return 1
	}
	p := now.Sub(r.StartedAt).Seconds() / r.DurationSeconds
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// PushSubscription is a browser web-push endpoint registered by a player.
type PushSubscription struct {
	Endpoint  string    `json:"endpoint"`
	UserID    uuid.UUID `json:"user_id"`
	P256DH    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
