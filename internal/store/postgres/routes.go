package postgres

import (
	"context"
	"time"

	"leitstelle/api/internal/model"

	"github.com/google/uuid"
)

const routeColumns = `vehicle_id, user_id, mission_id, kind, from_lat, from_lon, to_lat, to_lon, length_m, duration_s, geojson, started_at`

func scanRoute(row rowScanner) (model.VehicleRoute, error) {
	var r model.VehicleRoute
	err := row.Scan(&r.VehicleID, &r.UserID, &r.MissionID, &r.Kind, &r.FromLat, &r.FromLon, &r.ToLat, &r.ToLon,
		&r.LengthMeters, &r.DurationSeconds, &r.GeoJSON, &r.StartedAt)
	return r, err
}

func (q *Queries) GetVehicleRoute(ctx context.Context, vehicleID uuid.UUID) (model.VehicleRoute, error) {
	r, err := scanRoute(q.db.QueryRow(ctx, `SELECT `+routeColumns+` FROM vehicle_routes WHERE vehicle_id = $1`, vehicleID))
	return r, mapErr("get vehicle route", err)
}

func (q *Queries) SaveVehicleRoute(ctx context.Context, r model.VehicleRoute) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO vehicle_routes (`+routeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (vehicle_id) DO UPDATE SET
			mission_id = EXCLUDED.mission_id,
			kind = EXCLUDED.kind,
			from_lat = EXCLUDED.from_lat,
			from_lon = EXCLUDED.from_lon,
			to_lat = EXCLUDED.to_lat,
			to_lon = EXCLUDED.to_lon,
			length_m = EXCLUDED.length_m,
			duration_s = EXCLUDED.duration_s,
			geojson = EXCLUDED.geojson,
			started_at = EXCLUDED.started_at`,
		r.VehicleID, r.UserID, r.MissionID, r.Kind, r.FromLat, r.FromLon, r.ToLat, r.ToLon,
		r.LengthMeters, r.DurationSeconds, r.GeoJSON, r.StartedAt)
	return mapErr("save vehicle route", err)
}

func (q *Queries) DeleteVehicleRoute(ctx context.Context, vehicleID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM vehicle_routes WHERE vehicle_id = $1`, vehicleID)
	return mapErr("delete vehicle route", err)
}

func (q *Queries) ListDueRoutes(ctx context.Context, now time.Time) ([]model.VehicleRoute, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+routeColumns+`
		FROM vehicle_routes
		WHERE started_at + make_interval(secs => duration_s) <= $1
		ORDER BY started_at`, now)
	if err != nil {
		return nil, mapErr("list due routes", err)
	}
	out, err := collect(rows, scanRoute)
	return out, mapErr("list due routes", err)
}
