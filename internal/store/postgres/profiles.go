package postgres

import (
	"context"
	"errors"
	"fmt"

	"leitstelle/api/internal/model"
	"leitstelle/api/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const profileColumns = `id, username, home_city, home_lat, home_lon, credits, hq_level, created_at, updated_at`

func scanProfile(row rowScanner) (model.Profile, error) {
	var p model.Profile
	err := row.Scan(&p.ID, &p.Username, &p.HomeCity, &p.HomeLat, &p.HomeLon, &p.Credits, &p.HQLevel, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *Queries) GetProfile(ctx context.Context, id uuid.UUID) (model.Profile, error) {
	row := q.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`+q.forUpdate(), id)
	p, err := scanProfile(row)
	return p, mapErr("get profile", err)
}

func (q *Queries) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO profiles (id, username, home_city, home_lat, home_lon, credits, hq_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+profileColumns,
		p.ID, p.Username, p.HomeCity, p.HomeLat, p.HomeLon, p.Credits, p.HQLevel)
	created, err := scanProfile(row)
	return created, mapErr("create profile", err)
}

func (q *Queries) UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE profiles
		SET username = $2, home_city = $3, home_lat = $4, home_lon = $5, hq_level = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns,
		p.ID, p.Username, p.HomeCity, p.HomeLat, p.HomeLon, p.HQLevel)
	updated, err := scanProfile(row)
	return updated, mapErr("update profile", err)
}

func (q *Queries) AdjustCredits(ctx context.Context, userID uuid.UUID, delta int64) (model.Profile, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE profiles
		SET credits = credits + $2, updated_at = now()
		WHERE id = $1 AND credits + $2 >= 0
		RETURNING `+profileColumns,
		userID, delta)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return model.Profile{}, mapErr("adjust credits", err)
		}
		if exists {
			return model.Profile{}, fmt.Errorf("adjust credits: %w", store.ErrInsufficientCredits)
		}
	}
	return p, mapErr("adjust credits", err)
}

func (q *Queries) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := q.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at`)
	if err != nil {
		return nil, mapErr("list profiles", err)
	}
	out, err := collect(rows, scanProfile)
	return out, mapErr("list profiles", err)
}
