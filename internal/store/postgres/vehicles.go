package postgres

import (
	"context"
	"fmt"

	"leitstelle/api/internal/model"
	"leitstelle/api/internal/store"

	"github.com/google/uuid"
)

const vehicleColumns = `id, user_id, station_id, type_id, call_sign, status, lat, lon, condition, odometer_km, config, mission_id, version, created_at, updated_at`

func scanVehicle(row rowScanner) (model.Vehicle, error) {
	var v model.Vehicle
	err := row.Scan(&v.ID, &v.UserID, &v.StationID, &v.TypeID, &v.CallSign, &v.Status, &v.Lat, &v.Lon,
		&v.Condition, &v.OdometerKM, &v.Config, &v.MissionID, &v.Version, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func configOrEmpty(cfg map[string]string) map[string]string {
	if cfg == nil {
		return map[string]string{}
	}
	return cfg
}

func (q *Queries) ListVehicles(ctx context.Context, userID uuid.UUID) ([]model.Vehicle, error) {
	rows, err := q.db.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE user_id = $1 ORDER BY call_sign, id`, userID)
	if err != nil {
		return nil, mapErr("list vehicles", err)
	}
	out, err := collect(rows, scanVehicle)
	return out, mapErr("list vehicles", err)
}

func (q *Queries) CountStationVehicles(ctx context.Context, stationID uuid.UUID) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM vehicles WHERE station_id = $1`, stationID).Scan(&n)
	return n, mapErr("count station vehicles", err)
}

func (q *Queries) GetVehicle(ctx context.Context, userID, id uuid.UUID) (model.Vehicle, error) {
	row := q.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE user_id = $1 AND id = $2`+q.forUpdate(), userID, id)
	v, err := scanVehicle(row)
	return v, mapErr("get vehicle", err)
}

func (q *Queries) CreateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO vehicles (id, user_id, station_id, type_id, call_sign, status, lat, lon, condition, odometer_km, config, mission_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+vehicleColumns,
		v.ID, v.UserID, v.StationID, v.TypeID, v.CallSign, v.Status, v.Lat, v.Lon,
		v.Condition, v.OdometerKM, configOrEmpty(v.Config), v.MissionID)
	created, err := scanVehicle(row)
	return created, mapErr("create vehicle", err)
}

func (q *Queries) UpdateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE vehicles
		SET call_sign = $3, status = $4, lat = $5, lon = $6, condition = $7, odometer_km = $8,
		    config = $9, mission_id = $10, version = version + 1, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING `+vehicleColumns,
		v.UserID, v.ID, v.CallSign, v.Status, v.Lat, v.Lon, v.Condition, v.OdometerKM,
		configOrEmpty(v.Config), v.MissionID)
	updated, err := scanVehicle(row)
	return updated, mapErr("update vehicle", err)
}

func (q *Queries) DeleteVehicle(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM vehicles WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return mapErr("delete vehicle", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete vehicle: %w", store.ErrNotFound)
	}
	return nil
}
