// Package stream ingests position updates published by the mobile client
// over MQTT and feeds them to the tracking engine. The broker is optional:
// the HTTP position endpoint covers deployments without one.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/hopoff/tripwatch/internal/domain"
)

// positionTopicFilter matches one position topic per trip:
// tripwatch/trips/<trip-id>/position.
const positionTopicFilter = "tripwatch/trips/+/position"

// connectTimeout bounds the initial broker handshake.
const connectTimeout = 10 * time.Second

// PositionSink consumes decoded position updates. The tracker implements it.
type PositionSink interface {
	OnPosition(ctx context.Context, tripID uuid.UUID, loc domain.Coordinate) error
}

// positionPayload is the JSON body the mobile client publishes.
type positionPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Subscriber bridges the MQTT position topic to a PositionSink.
type Subscriber struct {
	client mqtt.Client
	sink   PositionSink
	log    *slog.Logger
}

// NewSubscriber configures an MQTT client for the given broker. Connection
// does not happen until Start.
func NewSubscriber(brokerURL, clientID string, sink PositionSink, log *slog.Logger) *Subscriber {
	s := &Subscriber{sink: sink, log: log}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOrderMatters(true)
	opts.OnConnect = func(c mqtt.Client) {
		// Re-subscribe on every (re)connect; subscriptions do not survive a
		// clean-session reconnect.
		if token := c.Subscribe(positionTopicFilter, 1, s.handleMessage); token.Wait() && token.Error() != nil {
			log.Error("mqtt subscribe failed", "topic", positionTopicFilter, "error", token.Error())
			return
		}
		log.Info("mqtt position stream subscribed", "topic", positionTopicFilter)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	}

	s.client = mqtt.NewClient(opts)
	return s
}

// Start connects to the broker. Subscription happens in the OnConnect hook.
func (s *Subscriber) Start() error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("stream.Subscriber.Start: broker connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("stream.Subscriber.Start: %w", err)
	}
	return nil
}

// Stop disconnects from the broker, allowing in-flight handlers a short
// grace period.
func (s *Subscriber) Stop() {
	s.client.Disconnect(250)
}

// handleMessage decodes one published position and hands it to the sink.
// Bad topics and bad payloads are logged and dropped; a stale trip (already
// cancelled) is expected noise and logged at debug only.
func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	tripID, err := TripIDFromTopic(msg.Topic())
	if err != nil {
		s.log.Warn("dropping mqtt message with bad topic", "topic", msg.Topic(), "error", err)
		return
	}

	var payload positionPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		s.log.Warn("dropping undecodable position payload", "trip_id", tripID, "error", err)
		return
	}

	loc := domain.Coordinate{Latitude: payload.Latitude, Longitude: payload.Longitude}
	if err := s.sink.OnPosition(context.Background(), tripID, loc); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Debug("position for inactive trip discarded", "trip_id", tripID)
			return
		}
		s.log.Error("position update failed", "trip_id", tripID, "error", err)
	}
}

// TripIDFromTopic extracts the trip UUID from a position topic of the form
// tripwatch/trips/<trip-id>/position.
func TripIDFromTopic(topic string) (uuid.UUID, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "tripwatch" || parts[1] != "trips" || parts[3] != "position" {
		return uuid.UUID{}, fmt.Errorf("unexpected topic shape %q", topic)
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("topic trip id: %w", err)
	}
	return id, nil
}
