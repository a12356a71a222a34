package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hopoff/tripwatch/internal/domain"
	"github.com/hopoff/tripwatch/internal/geo"
	"github.com/hopoff/tripwatch/internal/repo"
)

// closingLine ends every main arrival call.
const closingLine = "Thanks for choosing HopOFF!"

// Dispatcher is the outbound carrier the tracker notifies through. Defined
// here, in the consumer package, so the tracker can be unit-tested with a
// mock; notify.Client is the production implementation.
type Dispatcher interface {
	// Call places a voice call speaking message to the recipient.
	Call(ctx context.Context, settings domain.Settings, to, message string) (string, error)
	// SendSMS texts message to the recipient.
	SendSMS(ctx context.Context, settings domain.Settings, to, message string) (string, error)
}

// SettingsProvider returns the current configuration snapshot. The tracker
// re-reads it at every trip start, never mid-trip.
type SettingsProvider func() domain.Settings

// Tracker is the trip-tracking state machine. It is Idle when no session is
// installed and Active while one is; cancellation always returns it to Idle.
// There is no completed state: firing the arrival trigger does not stop
// tracking, only an explicit Cancel does.
//
// Position updates are processed strictly serially: the tracker mutex spans
// persistence, trigger evaluation, and dispatch for each update, so no two
// evaluations for the same trip can interleave and the claim-then-dispatch
// sequence cannot race. After Cancel returns, an update already in flight
// finds the session gone (or a stale generation) and is discarded without
// touching storage.
type Tracker struct {
	trips      repo.TripRepo
	positions  repo.PositionRepo
	gate       *NotificationGate
	dispatcher Dispatcher
	settings   SettingsProvider
	hub        *EventHub
	log        *slog.Logger
	smsEcho    bool

	mu      sync.Mutex
	gen     uint64
	session *session
}

// session is the in-memory state of the active trip. fired caches the
// ledger so status snapshots need no DB read per tick; the ledger stays
// authoritative.
type session struct {
	trip     domain.Trip
	settings domain.Settings
	gen      uint64
	lastDist *float64
	fired    map[domain.TriggerKey]bool
}

// TrackerOpts carries the dependencies of a Tracker. All fields are
// required except SMSEcho.
type TrackerOpts struct {
	Trips      repo.TripRepo
	Positions  repo.PositionRepo
	Gate       *NotificationGate
	Dispatcher Dispatcher
	Settings   SettingsProvider
	Hub        *EventHub
	Log        *slog.Logger

	// SMSEcho mirrors every voice notification with an SMS to the same
	// recipient. Both sends are gated by the same single claim.
	SMSEcho bool
}

// NewTracker constructs an idle Tracker.
func NewTracker(opts TrackerOpts) *Tracker {
	return &Tracker{
		trips:      opts.Trips,
		positions:  opts.Positions,
		gate:       opts.Gate,
		dispatcher: opts.Dispatcher,
		settings:   opts.Settings,
		hub:        opts.Hub,
		log:        opts.Log,
		smsEcho:    opts.SMSEcho,
	}
}

// Start validates and persists a new trip, resets the trigger ledger, and
// enters the Active state. The configuration check runs before any
// persistence: missing carrier credentials reject the start with
// domain.ErrConfiguration and leave no trace.
func (t *Tracker) Start(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	settings := t.settings()
	if !settings.HasCarrier() {
		return domain.Trip{}, fmt.Errorf("service.Tracker.Start: %w: carrier credentials missing", domain.ErrConfiguration)
	}

	if trip.DistanceKm <= 0 {
		trip.DistanceKm = settings.DefaultDistanceKm
	}
	if err := validateTrip(trip); err != nil {
		return domain.Trip{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		return domain.Trip{}, fmt.Errorf("service.Tracker.Start: %w", domain.ErrTripActive)
	}

	trip.Tracking = true
	created, err := t.trips.Create(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.Tracker.Start: %w", err)
	}

	if err := t.gate.Reset(ctx, created.ID); err != nil {
		// The trip row is new, so the ledger is already empty; a failed
		// reset only matters if an old row survived a partial clear.
		t.log.Warn("ledger reset on start failed", "trip_id", created.ID, "error", err)
	}

	t.gen++
	t.session = &session{
		trip:     created,
		settings: settings,
		gen:      t.gen,
		fired:    make(map[domain.TriggerKey]bool),
	}

	t.log.Info("trip started", "trip_id", created.ID, "threshold_km", created.DistanceKm)
	t.publishStatusLocked()
	return created, nil
}

// Resume reinstalls the session for a trip that was tracking when the
// process stopped. Call once at bootstrap; a missing active trip is not an
// error. The fired cache is rebuilt from the durable ledger, so triggers
// that already went out are not re-fired.
func (t *Tracker) Resume(ctx context.Context) error {
	trip, err := t.trips.GetActive(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("service.Tracker.Resume: %w", err)
	}

	fired := make(map[domain.TriggerKey]bool)
	for _, key := range t.gate.Fired(ctx, trip.ID) {
		fired[key] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		return nil
	}
	t.gen++
	t.session = &session{
		trip:     trip,
		settings: t.settings(),
		gen:      t.gen,
		fired:    fired,
	}

	t.log.Info("trip resumed", "trip_id", trip.ID)
	return nil
}

// OnPosition processes one position update for the given trip. Updates for
// an unknown, cancelled, or stale trip return domain.ErrNotFound and touch
// nothing.
func (t *Tracker) OnPosition(ctx context.Context, tripID uuid.UUID, loc domain.Coordinate) error {
	if err := loc.Validate(); err != nil {
		return fmt.Errorf("service.Tracker.OnPosition: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session
	if s == nil || s.trip.ID != tripID || s.gen != t.gen {
		return fmt.Errorf("service.Tracker.OnPosition: %w", domain.ErrNotFound)
	}

	// Persist the snapshot before evaluating triggers, so a crash after this
	// point does not lose the latest position. Both writes are best-effort:
	// a storage hiccup must not block notification delivery.
	s.trip.CurrentLocation = loc
	if err := t.trips.UpdateLocation(ctx, s.trip.ID, loc); err != nil {
		t.log.Warn("position persist failed", "trip_id", s.trip.ID, "error", err)
	}
	if err := t.positions.Record(ctx, s.trip.ID, loc); err != nil {
		t.log.Warn("position history write failed", "trip_id", s.trip.ID, "error", err)
	}

	// No destination: degrade to location logging only.
	if !s.trip.HasDestination() {
		t.publishStatusLocked()
		return nil
	}

	dist := geo.HaversineKm(loc, s.trip.Destination.Coordinate)
	s.lastDist = &dist

	t.evaluateTriggersLocked(ctx, s, dist)
	t.publishStatusLocked()
	return nil
}

// Cancel stops tracking and clears trip, flag, and ledger. It is idempotent:
// cancelling while Idle is a no-op.
func (t *Tracker) Cancel(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return nil
	}

	tripID := t.session.trip.ID
	t.gen++
	t.session = nil

	if err := t.trips.Clear(ctx, tripID); err != nil {
		return fmt.Errorf("service.Tracker.Cancel: %w", err)
	}

	t.log.Info("trip cancelled", "trip_id", tripID)
	t.hub.Publish(domain.Event{Alert: &domain.Alert{
		Title:   "Trip Cancelled",
		Message: "Your ongoing trip has been cancelled.",
	}})
	return nil
}

// Status returns the display snapshot of the active trip, or
// domain.ErrNotFound when the tracker is Idle.
func (t *Tracker) Status(ctx context.Context) (domain.TripStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return domain.TripStatus{}, fmt.Errorf("service.Tracker.Status: %w", domain.ErrNotFound)
	}
	return t.statusLocked(), nil
}

// ActiveTripID returns the ID of the tracking trip, or false when Idle.
func (t *Tracker) ActiveTripID() (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return uuid.UUID{}, false
	}
	return t.session.trip.ID, true
}

// evaluateTriggersLocked applies the three trigger rules in their fixed
// order. Each trigger is independent; several may fire on the same update.
func (t *Tracker) evaluateTriggersLocked(ctx context.Context, s *session, dist float64) {
	// Main arrival: the call to the trip owner at the trip threshold.
	if dist <= s.trip.DistanceKm {
		t.fireLocked(ctx, s, domain.TriggerMain, s.trip.OwnerNumber, mainMessage(s.trip, s.settings, dist))
	}

	// Pickup: the heads-up to the pickup contact at its own threshold.
	if p := s.trip.Pickup; p != nil && dist <= p.DistanceKm {
		t.fireLocked(ctx, s, domain.TriggerPickup, p.Number, p.Message)
	}

	// Arrival: fires only at (or past) the destination itself.
	if a := s.trip.Arrival; a != nil && dist <= 0 {
		t.fireLocked(ctx, s, domain.TriggerArrival, a.Number, a.Message)
	}
}

// fireLocked claims the trigger and, having won the claim, dispatches the
// notification. The claim precedes the dispatch and a failed dispatch keeps
// it: a transient carrier failure costs the notification rather than
// risking a duplicate call on the next tick.
func (t *Tracker) fireLocked(ctx context.Context, s *session, key domain.TriggerKey, to, message string) {
	if s.fired[key] {
		return
	}
	if to == "" || message == "" {
		t.alertLocked("Notification Skipped",
			fmt.Sprintf("No recipient or message configured for the %s notification.", triggerLabel(key)))
		s.fired[key] = true // do not re-alert on every tick
		return
	}

	// A denied claim is simply skipped; the rule re-evaluates on the next
	// tick. That is safe in both denial cases: an already-present ledger row
	// keeps denying, and a ledger I/O failure sent nothing, so the eventual
	// successful claim is still the first and only send.
	if !t.gate.TryClaim(ctx, s.trip.ID, key) {
		return
	}
	s.fired[key] = true

	callSID, err := t.dispatcher.Call(ctx, s.settings, to, message)
	if err != nil {
		t.log.Error("voice dispatch failed",
			"trip_id", s.trip.ID, "trigger", string(key), "error", err)
		t.alertLocked("Call Failed",
			fmt.Sprintf("The %s call could not be placed.", triggerLabel(key)))
		return
	}
	t.log.Info("voice alert dispatched",
		"trip_id", s.trip.ID, "trigger", string(key), "call_sid", callSID)

	if t.smsEcho {
		smsSID, err := t.dispatcher.SendSMS(ctx, s.settings, to, message)
		if err != nil {
			t.log.Warn("sms echo failed",
				"trip_id", s.trip.ID, "trigger", string(key), "error", err)
			return
		}
		t.log.Info("sms echo dispatched",
			"trip_id", s.trip.ID, "trigger", string(key), "message_sid", smsSID)
	}
}

// alertLocked logs the failure and publishes it on the uniform alert channel.
func (t *Tracker) alertLocked(title, message string) {
	t.log.Warn("alert", "title", title, "message", message)
	t.hub.Publish(domain.Event{Alert: &domain.Alert{Title: title, Message: message}})
}

// publishStatusLocked pushes the current snapshot to display subscribers.
func (t *Tracker) publishStatusLocked() {
	status := t.statusLocked()
	t.hub.Publish(domain.Event{Status: &status})
}

// statusLocked assembles the display snapshot from the session.
func (t *Tracker) statusLocked() domain.TripStatus {
	s := t.session
	status := domain.TripStatus{Trip: s.trip}
	if s.lastDist != nil {
		d := *s.lastDist
		status.DistanceLeftKm = &d
	}
	for _, key := range []domain.TriggerKey{domain.TriggerMain, domain.TriggerPickup, domain.TriggerArrival} {
		if s.fired[key] {
			status.Fired = append(status.Fired, key)
		}
	}
	return status
}

// validateTrip enforces the start preconditions that are the trip's own
// fault rather than configuration: a destination, a valid current location,
// a recipient, and a positive threshold.
func validateTrip(trip domain.Trip) error {
	if !trip.HasDestination() {
		return fmt.Errorf("service.Tracker.Start: %w: destination is required", domain.ErrValidation)
	}
	if err := trip.Destination.Validate(); err != nil {
		return fmt.Errorf("service.Tracker.Start: destination: %w", err)
	}
	if err := trip.CurrentLocation.Validate(); err != nil {
		return fmt.Errorf("service.Tracker.Start: current location: %w", err)
	}
	if trip.OwnerNumber == "" {
		return fmt.Errorf("service.Tracker.Start: %w: owner number is required", domain.ErrValidation)
	}
	if trip.DistanceKm <= 0 {
		return fmt.Errorf("service.Tracker.Start: %w: distance threshold must be positive", domain.ErrValidation)
	}
	if p := trip.Pickup; p != nil && p.DistanceKm <= 0 {
		return fmt.Errorf("service.Tracker.Start: %w: pickup distance threshold must be positive", domain.ErrValidation)
	}
	return nil
}

// mainMessage composes the spoken text of the main arrival call: the trip
// message (or the configured default), the remaining distance, the reminder
// list, and the fixed closing line.
func mainMessage(trip domain.Trip, settings domain.Settings, dist float64) string {
	base := strings.TrimSpace(trip.TripMessage)
	if base == "" {
		base = settings.DefaultCallMessage
	}

	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "You are just %.2f km from your destination.", dist)
	if len(trip.Reminders) > 0 {
		fmt.Fprintf(&b, " Don't forget to take: %s.", strings.Join(trip.Reminders, ", "))
	}
	b.WriteString(" ")
	b.WriteString(closingLine)
	return b.String()
}

// triggerLabel names a trigger for human-readable alerts.
func triggerLabel(key domain.TriggerKey) string {
	switch key {
	case domain.TriggerMain:
		return "arrival reminder"
	case domain.TriggerPickup:
		return "pickup"
	case domain.TriggerArrival:
		return "arrival"
	default:
		return string(key)
	}
}
