// Package domain contains the core data types for the tripwatch engine.
// This package has no dependencies beyond uuid and is imported by every
// other internal package (geo, repo, service, handler).
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Coordinate is a WGS84 position. Latitude must be in [-90, 90] and
// longitude in [-180, 180]; Validate enforces both.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that the coordinate lies inside the valid WGS84 ranges.
func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrValidation, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrValidation, c.Longitude)
	}
	return nil
}

// Place is a coordinate plus the human-readable identity of a destination.
type Place struct {
	Coordinate
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// ContactTrigger is an optional sub-trigger attached to a trip: when the
// traveller comes within DistanceKm of the destination, Message is delivered
// to Number. The arrival trigger ignores DistanceKm and fires at distance
// zero or below.
type ContactTrigger struct {
	Name       string  `json:"name,omitempty"`
	Number     string  `json:"number"`
	Message    string  `json:"message"`
	DistanceKm float64 `json:"distance_km,omitempty"`
}

// Trip is the aggregate root of a tracking session. Destination is immutable
// once the trip starts; CurrentLocation is overwritten on every position tick.
type Trip struct {
	ID              uuid.UUID       `json:"id"`
	OwnerNumber     string          `json:"owner_number"`
	Destination     Place           `json:"destination"`
	CurrentLocation Coordinate      `json:"current_location"`
	DistanceKm      float64         `json:"distance_km"`
	TripMessage     string          `json:"trip_message,omitempty"`
	Reminders       []string        `json:"reminders,omitempty"`
	Pickup          *ContactTrigger `json:"pickup,omitempty"`
	Arrival         *ContactTrigger `json:"arrival,omitempty"`
	Tracking        bool            `json:"tracking"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasDestination reports whether the trip carries a usable destination.
// A trip without one degrades to location logging: positions are persisted
// but no trigger is ever evaluated.
func (t Trip) HasDestination() bool {
	return t.Destination.Latitude != 0 || t.Destination.Longitude != 0 ||
		t.Destination.Name != "" || t.Destination.Address != ""
}

// TriggerKey identifies one of the three at-most-once notifications a trip
// can fire. The string values double as the persisted ledger keys.
type TriggerKey string

const (
	// TriggerMain is the main arrival call to the trip owner, fired when the
	// remaining distance drops to the trip threshold.
	TriggerMain TriggerKey = "call_made"
	// TriggerPickup notifies the pickup contact at the pickup threshold.
	TriggerPickup TriggerKey = "pickup_done"
	// TriggerArrival notifies the arrival contact at distance zero.
	TriggerArrival TriggerKey = "arrival_done"
)

// TripStatus is the display snapshot of an active trip. DistanceLeftKm is
// nil until the first position tick has been processed. Fired lists the
// trigger keys already claimed, ordered main, pickup, arrival.
type TripStatus struct {
	Trip           Trip         `json:"trip"`
	DistanceLeftKm *float64     `json:"distance_left_km,omitempty"`
	Fired          []TriggerKey `json:"fired,omitempty"`
}
