// Package repo contains all database access for the tripwatch engine.
// Each resource has its own file with an interface and a Postgres
// implementation. No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hopoff/tripwatch/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and
// pgx.Tx. Accepting this interface instead of *pgxpool.Pool directly allows
// integration tests to pass a transaction that is rolled back after each
// test, giving free per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TripRepo defines the persistence operations for the trip snapshot and its
// tracking flag. The service layer depends on this interface, not the
// concrete Postgres implementation, so it can be unit-tested with a mock.
type TripRepo interface {
	// Create inserts a new trip and returns the persisted record with
	// DB-generated id and timestamps populated.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip by its UUID primary key.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// GetActive returns the trip currently flagged as tracking.
	// Returns domain.ErrNotFound when no trip is active.
	GetActive(ctx context.Context) (domain.Trip, error)

	// UpdateLocation overwrites the current location of a trip. It is called
	// on every position tick, so it touches only the snapshot columns and
	// never grows the table. Returns domain.ErrNotFound for unknown trips.
	UpdateLocation(ctx context.Context, id uuid.UUID, loc domain.Coordinate) error

	// Clear deletes a trip. Trigger claims and recorded positions go with it
	// via ON DELETE CASCADE, so from the caller's perspective trip, flag,
	// and ledger disappear atomically. Clearing an unknown trip is a no-op.
	Clear(ctx context.Context, id uuid.UUID) error
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback
// isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, owner_number, dest_name, dest_address, dest_lat, dest_lng,
	curr_lat, curr_lng, distance_km, trip_message, reminders,
	pickup_name, pickup_number, pickup_message, pickup_distance_km,
	arrival_name, arrival_number, arrival_message,
	tracking, created_at, updated_at`

// Create inserts a new trip row and returns the full persisted record.
func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	q := `
		INSERT INTO trips (owner_number, dest_name, dest_address, dest_lat, dest_lng,
			curr_lat, curr_lng, distance_km, trip_message, reminders,
			pickup_name, pickup_number, pickup_message, pickup_distance_km,
			arrival_name, arrival_number, arrival_message, tracking)
		VALUES (@owner_number, @dest_name, @dest_address, @dest_lat, @dest_lng,
			@curr_lat, @curr_lng, @distance_km, @trip_message, @reminders,
			@pickup_name, @pickup_number, @pickup_message, @pickup_distance_km,
			@arrival_name, @arrival_number, @arrival_message, @tracking)
		RETURNING ` + tripColumns

	args := pgx.NamedArgs{
		"owner_number": trip.OwnerNumber,
		"dest_name":    trip.Destination.Name,
		"dest_address": trip.Destination.Address,
		"dest_lat":     trip.Destination.Latitude,
		"dest_lng":     trip.Destination.Longitude,
		"curr_lat":     trip.CurrentLocation.Latitude,
		"curr_lng":     trip.CurrentLocation.Longitude,
		"distance_km":  trip.DistanceKm,
		"trip_message": trip.TripMessage,
		"reminders":    trip.Reminders,
		"tracking":     trip.Tracking,
	}
	applyTriggerArgs(args, "pickup", trip.Pickup)
	applyTriggerArgs(args, "arrival", trip.Arrival)

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetActive returns the single trip with the tracking flag set.
func (r *pgTripRepo) GetActive(ctx context.Context) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE tracking ORDER BY created_at DESC LIMIT 1`

	row := r.db.QueryRow(ctx, q)
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetActive: %w", err)
	}
	return result, nil
}

// UpdateLocation overwrites the current-location snapshot columns.
func (r *pgTripRepo) UpdateLocation(ctx context.Context, id uuid.UUID, loc domain.Coordinate) error {
	const q = `
		UPDATE trips
		SET curr_lat   = @curr_lat,
		    curr_lng   = @curr_lng,
		    updated_at = now()
		WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"id":       id,
		"curr_lat": loc.Latitude,
		"curr_lng": loc.Longitude,
	})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.UpdateLocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.UpdateLocation: %w", domain.ErrNotFound)
	}
	return nil
}

// Clear deletes the trip row; dependent rows cascade.
func (r *pgTripRepo) Clear(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM trips WHERE id = @id`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id}); err != nil {
		return fmt.Errorf("repo.TripRepo.Clear: %w", err)
	}
	return nil
}

// applyTriggerArgs fills the four nullable columns of an optional contact
// trigger. A nil trigger stores NULL in all four.
func applyTriggerArgs(args pgx.NamedArgs, prefix string, t *domain.ContactTrigger) {
	if t == nil {
		args[prefix+"_name"] = nil
		args[prefix+"_number"] = nil
		args[prefix+"_message"] = nil
		args[prefix+"_distance_km"] = nil
		return
	}
	args[prefix+"_name"] = t.Name
	args[prefix+"_number"] = t.Number
	args[prefix+"_message"] = t.Message
	args[prefix+"_distance_km"] = t.DistanceKm
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanTrip to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a single database row into a domain.Trip.
// It handles the UUID conversion and folds the nullable trigger columns back
// into the optional ContactTrigger structs. A row that fails to scan is a
// persistence error at this boundary; it never propagates as a parse fault.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t  domain.Trip
		id pgtype.UUID

		pickupName, pickupNumber, pickupMessage    pgtype.Text
		arrivalName, arrivalNumber, arrivalMessage pgtype.Text
		pickupDistance                             pgtype.Float8
	)

	err := s.Scan(
		&id, &t.OwnerNumber,
		&t.Destination.Name, &t.Destination.Address,
		&t.Destination.Latitude, &t.Destination.Longitude,
		&t.CurrentLocation.Latitude, &t.CurrentLocation.Longitude,
		&t.DistanceKm, &t.TripMessage, &t.Reminders,
		&pickupName, &pickupNumber, &pickupMessage, &pickupDistance,
		&arrivalName, &arrivalNumber, &arrivalMessage,
		&t.Tracking, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	if pickupNumber.Valid {
		t.Pickup = &domain.ContactTrigger{
			Name:       pickupName.String,
			Number:     pickupNumber.String,
			Message:    pickupMessage.String,
			DistanceKm: pickupDistance.Float64,
		}
	}
	if arrivalNumber.Valid {
		t.Arrival = &domain.ContactTrigger{
			Name:    arrivalName.String,
			Number:  arrivalNumber.String,
			Message: arrivalMessage.String,
		}
	}

	return t, nil
}
