package postgres

import (
	"context"

	"leitstelle/api/internal/model"

	"github.com/google/uuid"
)

const blueprintColumns = `id, name, city, type, lat, lon, cost`

func scanBlueprint(row rowScanner) (model.StationBlueprint, error) {
	var b model.StationBlueprint
	err := row.Scan(&b.ID, &b.Name, &b.City, &b.Type, &b.Lat, &b.Lon, &b.Cost)
	return b, err
}

func (q *Queries) ListStationBlueprints(ctx context.Context) ([]model.StationBlueprint, error) {
	rows, err := q.db.Query(ctx, `SELECT `+blueprintColumns+` FROM station_blueprints ORDER BY city, name`)
	if err != nil {
		return nil, mapErr("list station blueprints", err)
	}
	out, err := collect(rows, scanBlueprint)
	return out, mapErr("list station blueprints", err)
}

func (q *Queries) GetStationBlueprint(ctx context.Context, id uuid.UUID) (model.StationBlueprint, error) {
	b, err := scanBlueprint(q.db.QueryRow(ctx, `SELECT `+blueprintColumns+` FROM station_blueprints WHERE id = $1`, id))
	return b, mapErr("get station blueprint", err)
}

const vehicleTypeColumns = `id, name, station_type, cost, speed_kmh, crew, capabilities, config_options`

func scanVehicleType(row rowScanner) (model.VehicleType, error) {
	var t model.VehicleType
	err := row.Scan(&t.ID, &t.Name, &t.StationType, &t.Cost, &t.SpeedKMH, &t.Crew, &t.Capabilities, &t.ConfigOptions)
	return t, err
}

func (q *Queries) ListVehicleTypes(ctx context.Context) ([]model.VehicleType, error) {
	rows, err := q.db.Query(ctx, `SELECT `+vehicleTypeColumns+` FROM vehicle_types ORDER BY station_type, cost`)
	if err != nil {
		return nil, mapErr("list vehicle types", err)
	}
	out, err := collect(rows, scanVehicleType)
	return out, mapErr("list vehicle types", err)
}

func (q *Queries) GetVehicleType(ctx context.Context, id string) (model.VehicleType, error) {
	t, err := scanVehicleType(q.db.QueryRow(ctx, `SELECT `+vehicleTypeColumns+` FROM vehicle_types WHERE id = $1`, id))
	return t, mapErr("get vehicle type", err)
}
