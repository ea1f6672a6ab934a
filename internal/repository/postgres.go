package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/compass/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveState upserts the latest tracker snapshot for a session.
func (r *Repository) SaveState(
	ctx context.Context,
	sessionID uuid.UUID,
	deviceID string,
	state models.TrackerState,
) error {
	query := `
		INSERT INTO tracker_states
			(session_id, device_id, status, attempt, error_kind, error_message, generation, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (session_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempt = EXCLUDED.attempt,
			error_kind = EXCLUDED.error_kind,
			error_message = EXCLUDED.error_message,
			generation = EXCLUDED.generation,
			updated_at = now();
	`

	var errKind, errMsg *string
	if state.LastError != nil {
		kind := state.LastError.Kind.String()
		errKind, errMsg = &kind, &state.LastError.Message
	}

	_, err := r.db.Exec(ctx, query,
		sessionID.String(), deviceID, string(state.Status), state.Attempt, errKind, errMsg, int64(state.Generation))
	if err != nil {
		return fmt.Errorf("failed to save tracker state: %w", err)
	}

	return nil
}

// SavePosition appends an accepted position to the device history. An empty address is stored as NULL.
func (r *Repository) SavePosition(
	ctx context.Context,
	sessionID uuid.UUID,
	deviceID string,
	pos models.Position,
	address string,
) error {
	query := `
		INSERT INTO positions
			(session_id, device_id, latitude, longitude, accuracy, observed_at, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`

	var addr *string
	if address != "" {
		addr = &address
	}

	_, err := r.db.Exec(ctx, query,
		sessionID.String(), deviceID, pos.Latitude, pos.Longitude, pos.Accuracy, pos.ObservedAt, addr)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}

	r.log.DebugContext(ctx, "Position stored", "session", sessionID, "device", deviceID)

	return nil
}

// LastPosition returns the most recent stored position of a device.
func (r *Repository) LastPosition(ctx context.Context, deviceID string) (*models.Position, error) {
	query := `
		SELECT latitude, longitude, accuracy, observed_at
		FROM positions
		WHERE device_id = $1
		ORDER BY observed_at DESC
		LIMIT 1;
	`

	var pos models.Position
	err := r.db.QueryRow(ctx, query, deviceID).
		Scan(&pos.Latitude, &pos.Longitude, &pos.Accuracy, &pos.ObservedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last position: %w", err)
	}

	return &pos, nil
}
