package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"ride-tracker/internal/domain/ride"
	"ride-tracker/internal/ports"
)

// RideSnapshotRepo keeps the latest snapshot of each tracked ride.
type RideSnapshotRepo struct{}

// NewRideSnapshotRepo constructs a new RideSnapshotRepo.
func NewRideSnapshotRepo() ports.RideSnapshotRepository {
	return &RideSnapshotRepo{}
}

// Upsert writes snapshot, replacing the stored copy of the same ride.
func (repo *RideSnapshotRepo) Upsert(ctx context.Context, snapshot ride.Snapshot) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ride_snapshots (
			id, driver_name, driver_phone, car_model, car_number,
			departure, destination, ride_date, ride_time, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			driver_name  = EXCLUDED.driver_name,
			driver_phone = EXCLUDED.driver_phone,
			car_model    = EXCLUDED.car_model,
			car_number   = EXCLUDED.car_number,
			departure    = EXCLUDED.departure,
			destination  = EXCLUDED.destination,
			ride_date    = EXCLUDED.ride_date,
			ride_time    = EXCLUDED.ride_time,
			status       = EXCLUDED.status,
			updated_at   = now()
	`,
		snapshot.ID,
		snapshot.DriverName,
		snapshot.DriverPhone,
		snapshot.CarModel,
		snapshot.CarNumber,
		snapshot.Departure,
		snapshot.Destination,
		snapshot.Date,
		snapshot.Time,
		snapshot.Status.String(),
	)
	return err
}

// GetByID returns the stored snapshot or ride.ErrNotFound.
func (repo *RideSnapshotRepo) GetByID(ctx context.Context, id string) (*ride.Snapshot, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out ride.Snapshot
	var status string
	err = tx.QueryRow(ctx, `
		SELECT id, driver_name, driver_phone, car_model, car_number,
		       departure, destination, ride_date, ride_time, status
		FROM ride_snapshots
		WHERE id = $1
	`, id).Scan(
		&out.ID, &out.DriverName, &out.DriverPhone, &out.CarModel, &out.CarNumber,
		&out.Departure, &out.Destination, &out.Date, &out.Time, &status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ride.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Status = ride.Status(status)

	return &out, nil
}
