// Package realtime fans row changes out to connected clients.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChangeType mirrors the SQL statement that produced a change.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

const (
	TableProfiles = "profiles"
	TableStations = "stations"
	TableVehicles = "vehicles"
	TableMissions = "missions"
)

// Change is one row-level event for a single user. Clients drop events whose
// Version is not newer than the row they already hold.
type Change struct {
	Table    string          `json:"table"`
	Type     ChangeType      `json:"type"`
	UserID   uuid.UUID       `json:"user_id"`
	ID       string          `json:"id"`
	Version  int64           `json:"version"`
	Record   json.RawMessage `json:"record,omitempty"`
	CommitTS time.Time       `json:"commit_timestamp"`
}

// NewChange encodes record as the change payload. A nil record is allowed for deletes.
func NewChange(table string, typ ChangeType, userID uuid.UUID, id string, version int64, record any) (Change, error) {
	c := Change{
		Table:    table,
		Type:     typ,
		UserID:   userID,
		ID:       id,
		Version:  version,
		CommitTS: time.Now().UTC(),
	}
	if record != nil {
		raw, err := json.Marshal(record)
		if err != nil {
			return Change{}, fmt.Errorf("encode %s record: %w", table, err)
		}
		c.Record = raw
	}
	return c, nil
}

// Broker distributes changes to subscribers of the same user.
type Broker interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe returns a channel of the user's changes and a function that ends the subscription.
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan Change, func(), error)
	Close() error
}

const subscriberBuffer = 64
