package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopoff/tripwatch/internal/domain"
	"github.com/hopoff/tripwatch/internal/service"
)

func TestNotificationGate_ClaimOnceThenDenied(t *testing.T) {
	gate := service.NewNotificationGate(newMemClaimRepo(), testLogger)
	tripID := uuid.New()
	ctx := context.Background()

	assert.True(t, gate.TryClaim(ctx, tripID, domain.TriggerMain), "first claim must win")
	assert.False(t, gate.TryClaim(ctx, tripID, domain.TriggerMain), "second claim must be denied")
	assert.False(t, gate.TryClaim(ctx, tripID, domain.TriggerMain))
}

func TestNotificationGate_KeysAreIndependent(t *testing.T) {
	gate := service.NewNotificationGate(newMemClaimRepo(), testLogger)
	tripID := uuid.New()
	ctx := context.Background()

	assert.True(t, gate.TryClaim(ctx, tripID, domain.TriggerMain))
	assert.True(t, gate.TryClaim(ctx, tripID, domain.TriggerPickup))
	assert.True(t, gate.TryClaim(ctx, tripID, domain.TriggerArrival))
}

func TestNotificationGate_TripsAreIndependent(t *testing.T) {
	gate := service.NewNotificationGate(newMemClaimRepo(), testLogger)
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	assert.True(t, gate.TryClaim(ctx, a, domain.TriggerMain))
	assert.True(t, gate.TryClaim(ctx, b, domain.TriggerMain))
}

func TestNotificationGate_ResetReopensClaims(t *testing.T) {
	gate := service.NewNotificationGate(newMemClaimRepo(), testLogger)
	tripID := uuid.New()
	ctx := context.Background()

	require.True(t, gate.TryClaim(ctx, tripID, domain.TriggerMain))
	require.False(t, gate.TryClaim(ctx, tripID, domain.TriggerMain))

	require.NoError(t, gate.Reset(ctx, tripID))
	assert.True(t, gate.TryClaim(ctx, tripID, domain.TriggerMain), "reset must reopen the key")
}

func TestNotificationGate_StorageFailureDeniesClaim(t *testing.T) {
	claims := newMemClaimRepo()
	claims.failAll = true
	gate := service.NewNotificationGate(claims, testLogger)

	assert.False(t, gate.TryClaim(context.Background(), uuid.New(), domain.TriggerMain),
		"a ledger failure must never grant a claim")
}

func TestNotificationGate_FiredIsBestEffort(t *testing.T) {
	claims := newMemClaimRepo()
	gate := service.NewNotificationGate(claims, testLogger)
	tripID := uuid.New()
	ctx := context.Background()

	require.True(t, gate.TryClaim(ctx, tripID, domain.TriggerPickup))
	assert.Equal(t, []domain.TriggerKey{domain.TriggerPickup}, gate.Fired(ctx, tripID))
	assert.Empty(t, gate.Fired(ctx, uuid.New()), "an unknown trip has no fired triggers")
}
