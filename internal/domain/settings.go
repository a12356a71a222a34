package domain

// Settings is the configuration snapshot the engine reads at trip start:
// carrier credentials for outbound calls plus the fallback values used when
// a trip omits its own message or threshold. The core never writes it.
type Settings struct {
	// AccountSID, AuthToken, and FromNumber are the Twilio credential triple.
	// All three must be present for a trip to start.
	AccountSID string
	AuthToken  string
	FromNumber string

	// DefaultDistanceKm is used when a trip is planned without an explicit
	// main threshold.
	DefaultDistanceKm float64

	// DefaultCallMessage is spoken when the trip has no message of its own.
	DefaultCallMessage string
}

// HasCarrier reports whether the full credential triple is present.
func (s Settings) HasCarrier() bool {
	return s.AccountSID != "" && s.AuthToken != "" && s.FromNumber != ""
}
