package server

import (
	"time"

	"leitstelle/api/internal/game"
	"leitstelle/api/internal/model"
)

// Responses embed the stored row so they share their shape with realtime
// change records, and add fields derived for the client.

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Env      string `json:"env"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
}

type ProfileResponse struct {
	model.Profile
	MissionLimit  int    `json:"mission_limit"`
	MaxHQLevel    int32  `json:"max_hq_level"`
	HQUpgradeCost *int64 `json:"hq_upgrade_cost"`
}

type StationResponse struct {
	model.Station
	UpgradeCost *int64 `json:"upgrade_cost"`
}

type VehicleResponse struct {
	model.Vehicle
	FMS         int    `json:"fms"`
	StatusLabel string `json:"status_label"`
}

type MissionResponse struct {
	model.Mission
	ProcessingEndsAt *time.Time `json:"processing_ends_at,omitempty"`
}

type RouteResponse struct {
	model.VehicleRoute
	ArrivesAt time.Time `json:"arrives_at"`
	Progress  float64   `json:"progress"`
	Position  GeoPoint  `json:"position"`
}

type CandidateResponse struct {
	Vehicle        VehicleResponse `json:"vehicle"`
	TypeName       string          `json:"type_name"`
	DistanceMeters float64         `json:"distance_m"`
	ETASeconds     float64         `json:"eta_s"`
	Covers         []string        `json:"covers"`
}

type DispatchResponse struct {
	Mission  MissionResponse   `json:"mission"`
	Vehicles []VehicleResponse `json:"vehicles"`
}

type ArrivalResponse struct {
	Applied bool             `json:"applied"`
	Vehicle VehicleResponse  `json:"vehicle"`
	Mission *MissionResponse `json:"mission,omitempty"`
}

type SellResponse struct {
	Refund int64 `json:"refund"`
}

type CatalogResponse struct {
	StationBlueprints []model.StationBlueprint `json:"station_blueprints"`
	VehicleTypes      []model.VehicleType      `json:"vehicle_types"`
	Archetypes        []game.Archetype         `json:"archetypes"`
}

type SyncResponse struct {
	Profile    ProfileResponse   `json:"profile"`
	Stations   []StationResponse `json:"stations"`
	Vehicles   []VehicleResponse `json:"vehicles"`
	Missions   []MissionResponse `json:"missions"`
	Routes     []RouteResponse   `json:"routes"`
	ServerTime time.Time         `json:"server_time"`
}
