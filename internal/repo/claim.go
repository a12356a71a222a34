package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hopoff/tripwatch/internal/domain"
)

// ClaimRepo is the durable trigger ledger: one row per (trip, trigger key)
// that has already fired. Rows are write-once per trip and removed only by
// Reset or by the trip being cleared.
type ClaimRepo interface {
	// TryClaim atomically records that the given trigger fired. It returns
	// true when this call inserted the row (the caller may proceed) and
	// false when the key was already claimed. The check-and-set is a single
	// statement, so two concurrent callers can never both observe "absent".
	TryClaim(ctx context.Context, tripID uuid.UUID, key domain.TriggerKey) (bool, error)

	// Claimed returns the keys already claimed for a trip, in the fixed
	// trigger evaluation order (main, pickup, arrival).
	Claimed(ctx context.Context, tripID uuid.UUID) ([]domain.TriggerKey, error)

	// Reset removes all ledger entries for a trip.
	Reset(ctx context.Context, tripID uuid.UUID) error
}

// pgClaimRepo is the Postgres implementation of ClaimRepo.
type pgClaimRepo struct {
	db db
}

// NewClaimRepo constructs a ClaimRepo backed by the provided db connection.
func NewClaimRepo(db db) ClaimRepo {
	return &pgClaimRepo{db: db}
}

// TryClaim inserts the ledger row; ON CONFLICT DO NOTHING makes the insert
// the atomic check-and-set. RowsAffected tells us whether we won the claim.
func (r *pgClaimRepo) TryClaim(ctx context.Context, tripID uuid.UUID, key domain.TriggerKey) (bool, error) {
	const q = `
		INSERT INTO trigger_claims (trip_id, trigger_key)
		VALUES (@trip_id, @trigger_key)
		ON CONFLICT (trip_id, trigger_key) DO NOTHING`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"trip_id":     tripID,
		"trigger_key": string(key),
	})
	if err != nil {
		return false, fmt.Errorf("repo.ClaimRepo.TryClaim: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Claimed lists the claimed keys for a trip in trigger evaluation order.
func (r *pgClaimRepo) Claimed(ctx context.Context, tripID uuid.UUID) ([]domain.TriggerKey, error) {
	const q = `
		SELECT trigger_key
		FROM trigger_claims
		WHERE trip_id = @trip_id
		ORDER BY array_position(ARRAY['call_made', 'pickup_done', 'arrival_done'], trigger_key)`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.ClaimRepo.Claimed: %w", err)
	}
	defer rows.Close()

	var keys []domain.TriggerKey
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("repo.ClaimRepo.Claimed: scan: %w", err)
		}
		keys = append(keys, domain.TriggerKey(k))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.ClaimRepo.Claimed: rows: %w", err)
	}

	return keys, nil
}

// Reset removes every ledger entry for the trip.
func (r *pgClaimRepo) Reset(ctx context.Context, tripID uuid.UUID) error {
	const q = `DELETE FROM trigger_claims WHERE trip_id = @trip_id`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"trip_id": tripID}); err != nil {
		return fmt.Errorf("repo.ClaimRepo.Reset: %w", err)
	}
	return nil
}
