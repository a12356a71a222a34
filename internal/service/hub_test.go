package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopoff/tripwatch/internal/domain"
	"github.com/hopoff/tripwatch/internal/service"
)

func TestEventHub_DeliversToAllSubscribers(t *testing.T) {
	hub := service.NewEventHub()

	a, cancelA := hub.Subscribe()
	defer cancelA()
	b, cancelB := hub.Subscribe()
	defer cancelB()

	hub.Publish(domain.Event{Alert: &domain.Alert{Title: "Trip Cancelled"}})

	for _, ch := range []<-chan domain.Event{a, b} {
		select {
		case ev := <-ch:
			require.NotNil(t, ev.Alert)
			assert.Equal(t, "Trip Cancelled", ev.Alert.Title)
		default:
			t.Fatal("expected a buffered event")
		}
	}
}

func TestEventHub_CancelStopsDeliveryAndClosesChannel(t *testing.T) {
	hub := service.NewEventHub()

	ch, cancel := hub.Subscribe()
	cancel()
	cancel() // cancelling twice is safe

	hub.Publish(domain.Event{Alert: &domain.Alert{Title: "ignored"}})

	_, open := <-ch
	assert.False(t, open, "the channel must be closed after cancel")
}

func TestEventHub_SlowConsumerDoesNotBlockPublish(t *testing.T) {
	hub := service.NewEventHub()

	_, cancel := hub.Subscribe()
	defer cancel()

	// Publish far beyond the subscriber buffer; Publish must never block.
	for i := 0; i < 100; i++ {
		hub.Publish(domain.Event{Status: &domain.TripStatus{}})
	}
}
