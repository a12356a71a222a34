// Package service contains the business logic of the tripwatch engine: the
// tracking state machine, the at-most-once notification gate, and the event
// fan-out to display clients. Services depend on repo interfaces, not
// implementations, and no SQL lives here.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hopoff/tripwatch/internal/domain"
	"github.com/hopoff/tripwatch/internal/repo"
)

// NotificationGate guarantees at-most-once execution per (trip, trigger key)
// pair, across process restarts and duplicate position deliveries. It is a
// thin policy layer over the durable claim ledger.
//
// Storage failure on claim counts as claim denied: the engine prefers a
// missed notification over a duplicate one.
type NotificationGate struct {
	claims repo.ClaimRepo
	log    *slog.Logger
}

// NewNotificationGate constructs a NotificationGate over the given ledger.
func NewNotificationGate(claims repo.ClaimRepo, log *slog.Logger) *NotificationGate {
	return &NotificationGate{claims: claims, log: log}
}

// TryClaim reports whether the caller won the right to fire the trigger.
// The first call per (trip, key) returns true; every later call returns
// false until Reset. Ledger I/O failure is logged and denied.
func (g *NotificationGate) TryClaim(ctx context.Context, tripID uuid.UUID, key domain.TriggerKey) bool {
	claimed, err := g.claims.TryClaim(ctx, tripID, key)
	if err != nil {
		g.log.Error("trigger claim failed, denying",
			"trip_id", tripID, "trigger", string(key), "error", err)
		return false
	}
	return claimed
}

// Reset clears all ledger entries for a trip. Called on cancellation and on
// new-trip start.
func (g *NotificationGate) Reset(ctx context.Context, tripID uuid.UUID) error {
	if err := g.claims.Reset(ctx, tripID); err != nil {
		return fmt.Errorf("service.NotificationGate.Reset: %w", err)
	}
	return nil
}

// Fired returns the trigger keys already claimed for a trip, best-effort:
// a ledger read failure yields an empty list and a log line, never an error,
// because the result only feeds status display.
func (g *NotificationGate) Fired(ctx context.Context, tripID uuid.UUID) []domain.TriggerKey {
	keys, err := g.claims.Claimed(ctx, tripID)
	if err != nil {
		g.log.Warn("reading fired triggers failed", "trip_id", tripID, "error", err)
		return nil
	}
	return keys
}
