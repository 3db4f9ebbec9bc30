package postgres

import (
	"context"

	"leitstelle/api/internal/model"

	"github.com/google/uuid"
)

func (q *Queries) SavePushSubscription(ctx context.Context, sub model.PushSubscription) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO push_subscriptions (endpoint, user_id, p256dh, auth)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint) DO UPDATE SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`,
		sub.Endpoint, sub.UserID, sub.P256DH, sub.Auth)
	return mapErr("save push subscription", err)
}

func (q *Queries) ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]model.PushSubscription, error) {
	rows, err := q.db.Query(ctx, `SELECT endpoint, user_id, p256dh, auth, created_at FROM push_subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, mapErr("list push subscriptions", err)
	}
	out, err := collect(rows, func(row rowScanner) (model.PushSubscription, error) {
		var s model.PushSubscription
		err := row.Scan(&s.Endpoint, &s.UserID, &s.P256DH, &s.Auth, &s.CreatedAt)
		return s, err
	})
	return out, mapErr("list push subscriptions", err)
}

func (q *Queries) DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint)
	return mapErr("delete push subscription", err)
}
