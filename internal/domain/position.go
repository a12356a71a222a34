package domain

import (
	"time"

	"github.com/google/uuid"
)

// Position is one recorded point on the track of a trip. The engine keeps a
// bounded history of recent positions per trip for display and debugging;
// the authoritative current location lives on the Trip snapshot itself.
type Position struct {
	ID         uuid.UUID  `json:"id"`
	TripID     uuid.UUID  `json:"trip_id"`
	Coordinate Coordinate `json:"coordinate"`
	RecordedAt time.Time  `json:"recorded_at"`
}
