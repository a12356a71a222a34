// Package config loads and validates application configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hopoff/tripwatch/internal/domain"
)

// Config holds all configuration values for the tripwatch server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:19006"] (Expo web dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// TwilioAccountSID, TwilioAuthToken, and TwilioFromNumber are the
	// carrier credentials. They may be absent at boot; trips simply cannot
	// start until all three are configured.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// DefaultDistanceKm is the main trigger threshold applied to trips
	// planned without one. Defaults to 3.
	DefaultDistanceKm float64

	// DefaultCallMessage is spoken when a trip carries no message.
	DefaultCallMessage string

	// SMSEcho mirrors every voice notification with an SMS.
	// Set NOTIFY_SMS_ECHO=true to enable.
	SMSEcho bool

	// MapsAPIKey authenticates the Google Maps proxy endpoints. Optional;
	// without it those endpoints report upstream query failures.
	MapsAPIKey string

	// MQTTBrokerURL enables the MQTT position stream when set
	// (e.g. "tcp://broker:1883"). Empty disables it.
	MQTTBrokerURL string

	// MQTTClientID identifies this server to the broker.
	// Defaults to "tripwatch-api".
	MQTTClientID string
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or
// naming the first variable that fails to parse.
func Load() (Config, error) {
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "http://localhost:19006")),
		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:   os.Getenv("TWILIO_FROM_NUMBER"),
		DefaultCallMessage: getEnv("DEFAULT_CALL_MESSAGE", "You are approaching your destination."),
		MapsAPIKey:         os.Getenv("MAPS_API_KEY"),
		MQTTBrokerURL:      os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:       getEnv("MQTT_CLIENT_ID", "tripwatch-api"),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.DefaultDistanceKm, err = parseFloat("DEFAULT_DISTANCE_KM", 3); err != nil {
		return Config{}, err
	}
	if cfg.DefaultDistanceKm <= 0 {
		return Config{}, fmt.Errorf("DEFAULT_DISTANCE_KM must be positive, got %v", cfg.DefaultDistanceKm)
	}
	if cfg.SMSEcho, err = parseBool("NOTIFY_SMS_ECHO", false); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Settings returns the configuration snapshot the tracking engine reads at
// trip start.
func (c Config) Settings() domain.Settings {
	return domain.Settings{
		AccountSID:         c.TwilioAccountSID,
		AuthToken:          c.TwilioAuthToken,
		FromNumber:         c.TwilioFromNumber,
		DefaultDistanceKm:  c.DefaultDistanceKm,
		DefaultCallMessage: c.DefaultCallMessage,
	}
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseFloat reads an optional float environment variable.
func parseFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s is not a number: %q", key, v)
	}
	return f, nil
}

// parseBool reads an optional boolean environment variable.
func parseBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s is not a boolean: %q", key, v)
	}
	return b, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring
// empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
