package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hopoff/tripwatch/internal/domain"
)

// historyKeep is how many recorded positions are retained per trip. Record
// prunes anything older on every insert, so per-tick writes never grow the
// table without bound.
const historyKeep = 500

// PositionRepo stores the bounded position history of a trip. The current
// location on the trip snapshot is authoritative; this log only serves
// display and debugging.
type PositionRepo interface {
	// Record appends a position for the trip and prunes history beyond the
	// retention window.
	Record(ctx context.Context, tripID uuid.UUID, loc domain.Coordinate) error

	// ListByTripPaged returns recorded positions for a trip, newest first,
	// along with the total count for pagination.
	ListByTripPaged(ctx context.Context, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Position, int64, error)
}

// pgPositionRepo is the Postgres implementation of PositionRepo.
type pgPositionRepo struct {
	db db
}

// NewPositionRepo constructs a PositionRepo backed by the provided db connection.
func NewPositionRepo(db db) PositionRepo {
	return &pgPositionRepo{db: db}
}

// Record inserts the new point, then deletes rows that fell out of the
// retention window for this trip.
func (r *pgPositionRepo) Record(ctx context.Context, tripID uuid.UUID, loc domain.Coordinate) error {
	const insert = `
		INSERT INTO positions (trip_id, lat, lng)
		VALUES (@trip_id, @lat, @lng)`

	args := pgx.NamedArgs{"trip_id": tripID, "lat": loc.Latitude, "lng": loc.Longitude}
	if _, err := r.db.Exec(ctx, insert, args); err != nil {
		return fmt.Errorf("repo.PositionRepo.Record: %w", err)
	}

	const prune = `
		DELETE FROM positions
		WHERE trip_id = @trip_id
		  AND id NOT IN (
			SELECT id FROM positions
			WHERE trip_id = @trip_id
			ORDER BY recorded_at DESC
			LIMIT @keep
		  )`

	if _, err := r.db.Exec(ctx, prune, pgx.NamedArgs{"trip_id": tripID, "keep": historyKeep}); err != nil {
		return fmt.Errorf("repo.PositionRepo.Record: prune: %w", err)
	}
	return nil
}

// ListByTripPaged returns one page of position history, newest first.
func (r *pgPositionRepo) ListByTripPaged(ctx context.Context, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Position, int64, error) {
	const countQ = `SELECT count(*) FROM positions WHERE trip_id = @trip_id`

	var total int64
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"trip_id": tripID}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.PositionRepo.ListByTripPaged: count: %w", err)
	}

	const q = `
		SELECT id, trip_id, lat, lng, recorded_at
		FROM positions
		WHERE trip_id = @trip_id
		ORDER BY recorded_at DESC
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{
		"trip_id": tripID,
		"limit":   p.Limit,
		"offset":  p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.PositionRepo.ListByTripPaged: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.PositionRepo.ListByTripPaged: scan: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.PositionRepo.ListByTripPaged: rows: %w", err)
	}

	return positions, total, nil
}

// scanPosition maps a single database row into a domain.Position.
func scanPosition(s scanner) (domain.Position, error) {
	var (
		p      domain.Position
		id     pgtype.UUID
		tripID pgtype.UUID
	)

	err := s.Scan(&id, &tripID, &p.Coordinate.Latitude, &p.Coordinate.Longitude, &p.RecordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, err
	}

	p.ID = uuid.UUID(id.Bytes)
	p.TripID = uuid.UUID(tripID.Bytes)
	return p, nil
}
