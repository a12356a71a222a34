package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopoff/tripwatch/internal/domain"
	"github.com/hopoff/tripwatch/internal/repo"
)

func TestClaimRepo_TryClaim_FirstWins(t *testing.T) {
	tx := newTestTx(t)
	trips := repo.NewTripRepo(tx)
	claims := repo.NewClaimRepo(tx)
	ctx := context.Background()

	trip, err := trips.Create(ctx, tripFixture())
	require.NoError(t, err)

	won, err := claims.TryClaim(ctx, trip.ID, domain.TriggerMain)
	require.NoError(t, err)
	assert.True(t, won, "first claim should win")

	won, err = claims.TryClaim(ctx, trip.ID, domain.TriggerMain)
	require.NoError(t, err)
	assert.False(t, won, "second claim for the same key should lose")
}

func TestClaimRepo_TryClaim_KeysIndependent(t *testing.T) {
	tx := newTestTx(t)
	trips := repo.NewTripRepo(tx)
	claims := repo.NewClaimRepo(tx)
	ctx := context.Background()

	trip, err := trips.Create(ctx, tripFixture())
	require.NoError(t, err)

	for _, key := range []domain.TriggerKey{domain.TriggerMain, domain.TriggerPickup, domain.TriggerArrival} {
		won, err := claims.TryClaim(ctx, trip.ID, key)
		require.NoError(t, err)
		assert.True(t, won, "key %s should claim independently", key)
	}
}

func TestClaimRepo_Claimed_EvaluationOrder(t *testing.T) {
	tx := newTestTx(t)
	trips := repo.NewTripRepo(tx)
	claims := repo.NewClaimRepo(tx)
	ctx := context.Background()

	trip, err := trips.Create(ctx, tripFixture())
	require.NoError(t, err)

	// Claim out of order; Claimed must return the fixed evaluation order.
	for _, key := range []domain.TriggerKey{domain.TriggerArrival, domain.TriggerMain, domain.TriggerPickup} {
		_, err := claims.TryClaim(ctx, trip.ID, key)
		require.NoError(t, err)
	}

	keys, err := claims.Claimed(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.TriggerKey{domain.TriggerMain, domain.TriggerPickup, domain.TriggerArrival}, keys)
}

func TestClaimRepo_Claimed_EmptyForFreshTrip(t *testing.T) {
	tx := newTestTx(t)
	trips := repo.NewTripRepo(tx)
	claims := repo.NewClaimRepo(tx)
	ctx := context.Background()

	trip, err := trips.Create(ctx, tripFixture())
	require.NoError(t, err)

	keys, err := claims.Claimed(ctx, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestClaimRepo_Reset(t *testing.T) {
	tx := newTestTx(t)
	trips := repo.NewTripRepo(tx)
	claims := repo.NewClaimRepo(tx)
	ctx := context.Background()

	trip, err := trips.Create(ctx, tripFixture())
	require.NoError(t, err)

	_, err = claims.TryClaim(ctx, trip.ID, domain.TriggerMain)
	require.NoError(t, err)

	require.NoError(t, claims.Reset(ctx, trip.ID))

	// After a reset the key is claimable again.
	won, err := claims.TryClaim(ctx, trip.ID, domain.TriggerMain)
	require.NoError(t, err)
	assert.True(t, won)
}
