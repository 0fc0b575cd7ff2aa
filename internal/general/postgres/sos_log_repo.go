package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ride-tracker/internal/domain/emergency"
	"ride-tracker/internal/ports"
)

// SOSLogRepo persists raised SOS alerts.
type SOSLogRepo struct{}

// NewSOSLogRepo constructs a new SOSLogRepo.
func NewSOSLogRepo() ports.SOSLogRepository {
	return &SOSLogRepo{}
}

const sosLogColumns = `id, ride_id, COALESCE(user_id, ''), latitude, longitude, geohash, triggered_at`

// Create inserts log, assigning it a fresh id when it has none.
func (repo *SOSLogRepo) Create(ctx context.Context, log *emergency.SOSLog) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	if log.RideID == "" {
		return emergency.ErrRideIDRequired
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}

	var userID *string
	if log.UserID != "" {
		userID = &log.UserID
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sos_logs (id, ride_id, user_id, latitude, longitude, geohash, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		log.ID,
		log.RideID,
		userID,
		log.Latitude,
		log.Longitude,
		log.Geohash,
		log.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("insert sos log: %w", err)
	}
	return nil
}

// GetByID returns one log or emergency.ErrNotFound.
func (repo *SOSLogRepo) GetByID(ctx context.Context, id string) (*emergency.SOSLog, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, emergency.ErrNotFound
	}

	var out emergency.SOSLog
	err = tx.QueryRow(ctx, `SELECT `+sosLogColumns+` FROM sos_logs WHERE id = $1`, id).Scan(
		&out.ID, &out.RideID, &out.UserID, &out.Latitude, &out.Longitude, &out.Geohash, &out.TriggeredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, emergency.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByRide returns the logs of a ride, newest first.
func (repo *SOSLogRepo) ListByRide(ctx context.Context, rideID string) ([]*emergency.SOSLog, error) {
	return repo.list(ctx, `WHERE ride_id = $1`, rideID)
}

// ListByUser returns the logs raised by a user, newest first.
func (repo *SOSLogRepo) ListByUser(ctx context.Context, userID string) ([]*emergency.SOSLog, error) {
	return repo.list(ctx, `WHERE user_id = $1`, userID)
}

// CountBetween counts the logs triggered in [from, to).
func (repo *SOSLogRepo) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM sos_logs WHERE triggered_at >= $1 AND triggered_at < $2`, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sos logs: %w", err)
	}
	return n, nil
}

func (repo *SOSLogRepo) list(ctx context.Context, where string, arg any) ([]*emergency.SOSLog, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT `+sosLogColumns+` FROM sos_logs `+where+` ORDER BY triggered_at DESC LIMIT 100`, arg)
	if err != nil {
		return nil, fmt.Errorf("query sos logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*emergency.SOSLog, 0)
	for rows.Next() {
		var log emergency.SOSLog
		if err := rows.Scan(&log.ID, &log.RideID, &log.UserID, &log.Latitude, &log.Longitude, &log.Geohash, &log.TriggeredAt); err != nil {
			return nil, fmt.Errorf("scan sos log: %w", err)
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return logs, nil
}
