package domain

// Alert is the uniform core-to-UI failure signal: a title and a
// human-readable message, decoupled from Go errors. Every caught failure
// path in the engine produces either an Alert or a logged no-op, never an
// unhandled fault.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Event is one message on the trip event stream consumed by display
// clients. Exactly one of Status or Alert is set.
type Event struct {
	Status *TripStatus `json:"status,omitempty"`
	Alert  *Alert      `json:"alert,omitempty"`
}
