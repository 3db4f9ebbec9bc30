package postgres

import (
	"context"
	"time"

	"leitstelle/api/internal/model"

	"github.com/google/uuid"
)

const missionColumns = `id, user_id, archetype, title, description, lat, lon, address, caller_name, caller_text, payout,
	status, assigned_vehicle_ids, required_capabilities, processing_started_at, processing_seconds, completed_at,
	version, created_at, updated_at`

func scanMission(row rowScanner) (model.Mission, error) {
	var m model.Mission
	err := row.Scan(&m.ID, &m.UserID, &m.Archetype, &m.Title, &m.Description, &m.Lat, &m.Lon, &m.Address,
		&m.CallerName, &m.CallerText, &m.Payout, &m.Status, &m.AssignedVehicleIDs, &m.RequiredCapabilities,
		&m.ProcessingStartedAt, &m.ProcessingSeconds, &m.CompletedAt, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func uuidsOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func stringsOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (q *Queries) ListActiveMissions(ctx context.Context, userID uuid.UUID, completedSince time.Time) ([]model.Mission, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+missionColumns+`
		FROM missions
		WHERE user_id = $1 AND (status <> 'completed' OR completed_at >= $2)
		ORDER BY created_at`, userID, completedSince)
	if err != nil {
		return nil, mapErr("list active missions", err)
	}
	out, err := collect(rows, scanMission)
	return out, mapErr("list active missions", err)
}

func (q *Queries) CountActiveMissions(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM missions WHERE user_id = $1 AND status <> 'completed'`, userID).Scan(&n)
	return n, mapErr("count active missions", err)
}

func (q *Queries) GetMission(ctx context.Context, userID, id uuid.UUID) (model.Mission, error) {
	row := q.db.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE user_id = $1 AND id = $2`+q.forUpdate(), userID, id)
	m, err := scanMission(row)
	return m, mapErr("get mission", err)
}

func (q *Queries) CreateMission(ctx context.Context, m model.Mission) (model.Mission, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO missions (id, user_id, archetype, title, description, lat, lon, address, caller_name, caller_text,
			payout, status, assigned_vehicle_ids, required_capabilities, processing_started_at, processing_seconds,
			completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING `+missionColumns,
		m.ID, m.UserID, m.Archetype, m.Title, m.Description, m.Lat, m.Lon, m.Address, m.CallerName, m.CallerText,
		m.Payout, m.Status, uuidsOrEmpty(m.AssignedVehicleIDs), stringsOrEmpty(m.RequiredCapabilities),
		m.ProcessingStartedAt, m.ProcessingSeconds, m.CompletedAt, m.CreatedAt)
	created, err := scanMission(row)
	return created, mapErr("create mission", err)
}

func (q *Queries) UpdateMission(ctx context.Context, m model.Mission) (model.Mission, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE missions
		SET status = $3, assigned_vehicle_ids = $4, processing_started_at = $5, processing_seconds = $6,
		    completed_at = $7, address = $8, version = version + 1, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING `+missionColumns,
		m.UserID, m.ID, m.Status, uuidsOrEmpty(m.AssignedVehicleIDs), m.ProcessingStartedAt, m.ProcessingSeconds,
		m.CompletedAt, m.Address)
	updated, err := scanMission(row)
	return updated, mapErr("update mission", err)
}

func (q *Queries) ListDueMissions(ctx context.Context, now time.Time) ([]model.Mission, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+missionColumns+`
		FROM missions
		WHERE status = 'on_scene'
		  AND processing_started_at IS NOT NULL
		  AND processing_started_at + make_interval(secs => processing_seconds) <= $1
		ORDER BY processing_started_at`, now)
	if err != nil {
		return nil, mapErr("list due missions", err)
	}
	out, err := collect(rows, scanMission)
	return out, mapErr("list due missions", err)
}
