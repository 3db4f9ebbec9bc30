// Package store defines the persistence boundary shared by the postgres and memory drivers.
package store

import (
	"context"
	"errors"
	"time"

	"leitstelle/api/internal/model"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Store is the entry point of a storage driver.
type Store interface {
	Queries
	// InTx runs fn inside a transaction. Rows read through q are locked until fn returns.
	// Returning an error rolls every write back.
	InTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close()
}

// Queries is the set of row operations. Implementations are scoped either to the whole store or to one transaction.
type Queries interface {
	GetProfile(ctx context.Context, id uuid.UUID) (model.Profile, error)
	CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	// AdjustCredits adds delta to the balance and fails with ErrInsufficientCredits when it would drop below zero.
	AdjustCredits(ctx context.Context, userID uuid.UUID, delta int64) (model.Profile, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)

	ListStationBlueprints(ctx context.Context) ([]model.StationBlueprint, error)
	GetStationBlueprint(ctx context.Context, id uuid.UUID) (model.StationBlueprint, error)
	ListVehicleTypes(ctx context.Context) ([]model.VehicleType, error)
	GetVehicleType(ctx context.Context, id string) (model.VehicleType, error)

	ListStations(ctx context.Context, userID uuid.UUID) ([]model.Station, error)
	GetStation(ctx context.Context, userID, id uuid.UUID) (model.Station, error)
	CreateStation(ctx context.Context, st model.Station) (model.Station, error)
	UpdateStation(ctx context.Context, st model.Station) (model.Station, error)

	ListVehicles(ctx context.Context, userID uuid.UUID) ([]model.Vehicle, error)
	CountStationVehicles(ctx context.Context, stationID uuid.UUID) (int, error)
	GetVehicle(ctx context.Context, userID, id uuid.UUID) (model.Vehicle, error)
	CreateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error)
	// UpdateVehicle bumps version and updated_at.
	UpdateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error)
	DeleteVehicle(ctx context.Context, userID, id uuid.UUID) error

	// ListActiveMissions returns unfinished missions and those completed after completedSince.
	ListActiveMissions(ctx context.Context, userID uuid.UUID, completedSince time.Time) ([]model.Mission, error)
	CountActiveMissions(ctx context.Context, userID uuid.UUID) (int, error)
	GetMission(ctx context.Context, userID, id uuid.UUID) (model.Mission, error)
	CreateMission(ctx context.Context, m model.Mission) (model.Mission, error)
	// UpdateMission bumps version and updated_at.
	UpdateMission(ctx context.Context, m model.Mission) (model.Mission, error)
	// ListDueMissions returns on-scene missions whose processing timer ran out by now.
	ListDueMissions(ctx context.Context, now time.Time) ([]model.Mission, error)

	GetVehicleRoute(ctx context.Context, vehicleID uuid.UUID) (model.VehicleRoute, error)
	SaveVehicleRoute(ctx context.Context, r model.VehicleRoute) error
	DeleteVehicleRoute(ctx context.Context, vehicleID uuid.UUID) error
	// ListDueRoutes returns routes whose arrival time is not after now.
	ListDueRoutes(ctx context.Context, now time.Time) ([]model.VehicleRoute, error)

	SavePushSubscription(ctx context.Context, sub model.PushSubscription) error
	ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error
}
