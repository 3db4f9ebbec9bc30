package postgres

import (
	"context"

	"leitstelle/api/internal/model"

	"github.com/google/uuid"
)

const stationColumns = `id, user_id, blueprint_id, name, type, lat, lon, level, vehicle_slots, personnel_capacity, extensions, created_at, updated_at`

func scanStation(row rowScanner) (model.Station, error) {
	var st model.Station
	err := row.Scan(&st.ID, &st.UserID, &st.BlueprintID, &st.Name, &st.Type, &st.Lat, &st.Lon,
		&st.Level, &st.VehicleSlots, &st.PersonnelCapacity, &st.Extensions, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

func extensionsOrEmpty(ext map[string]any) map[string]any {
	if ext == nil {
		return map[string]any{}
	}
	return ext
}

func (q *Queries) ListStations(ctx context.Context, userID uuid.UUID) ([]model.Station, error) {
	rows, err := q.db.Query(ctx, `SELECT `+stationColumns+` FROM stations WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, mapErr("list stations", err)
	}
	out, err := collect(rows, scanStation)
	return out, mapErr("list stations", err)
}

func (q *Queries) GetStation(ctx context.Context, userID, id uuid.UUID) (model.Station, error) {
	row := q.db.QueryRow(ctx, `SELECT `+stationColumns+` FROM stations WHERE user_id = $1 AND id = $2`+q.forUpdate(), userID, id)
	st, err := scanStation(row)
	return st, mapErr("get station", err)
}

func (q *Queries) CreateStation(ctx context.Context, st model.Station) (model.Station, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO stations (id, user_id, blueprint_id, name, type, lat, lon, level, vehicle_slots, personnel_capacity, extensions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+stationColumns,
		st.ID, st.UserID, st.BlueprintID, st.Name, st.Type, st.Lat, st.Lon,
		st.Level, st.VehicleSlots, st.PersonnelCapacity, extensionsOrEmpty(st.Extensions))
	created, err := scanStation(row)
	return created, mapErr("create station", err)
}

func (q *Queries) UpdateStation(ctx context.Context, st model.Station) (model.Station, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE stations
		SET name = $3, level = $4, vehicle_slots = $5, personnel_capacity = $6, extensions = $7, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING `+stationColumns,
		st.UserID, st.ID, st.Name, st.Level, st.VehicleSlots, st.PersonnelCapacity, extensionsOrEmpty(st.Extensions))
	updated, err := scanStation(row)
	return updated, mapErr("update station", err)
}
