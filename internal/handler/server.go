// Package handler implements the HTTP surface of the tripwatch server.
// All handlers are methods on Server; they decode requests, call the
// service layer, and map sentinel errors to HTTP responses. No business
// logic lives here.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hopoff/tripwatch/internal/domain"
	"github.com/hopoff/tripwatch/internal/maps"
	"github.com/hopoff/tripwatch/internal/repo"
	"github.com/hopoff/tripwatch/internal/service"
)

// TripTracker defines the tracking operations the handlers depend on.
// Defining the interface here, in the consumer package, follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or the carrier.
type TripTracker interface {
	Start(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	Cancel(ctx context.Context) error
	Status(ctx context.Context) (domain.TripStatus, error)
	OnPosition(ctx context.Context, tripID uuid.UUID, loc domain.Coordinate) error
}

// GeoQuerier is the read-only maps collaborator the proxy endpoints use.
type GeoQuerier interface {
	ReverseGeocode(ctx context.Context, loc domain.Coordinate) (string, error)
	Autocomplete(ctx context.Context, query string, bias *domain.Coordinate) ([]maps.Prediction, error)
	PlaceDetails(ctx context.Context, placeID string) (domain.Place, error)
	Directions(ctx context.Context, origin, dest domain.Coordinate) (maps.Route, error)
}

// Server holds the dependencies of all HTTP handlers.
type Server struct {
	tracker   TripTracker
	positions repo.PositionRepo
	geo       GeoQuerier
	hub       *service.EventHub
}

// NewServer constructs the Server with all its dependencies.
func NewServer(tracker TripTracker, positions repo.PositionRepo, geo GeoQuerier, hub *service.EventHub) *Server {
	return &Server{tracker: tracker, positions: positions, geo: geo, hub: hub}
}

// Routes returns the chi router for the full API surface.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/trips", s.StartTrip)
		r.Route("/trips/active", func(r chi.Router) {
			r.Get("/", s.GetActiveTrip)
			r.Delete("/", s.CancelTrip)
			r.Get("/events", s.TripEvents)
		})
		r.Route("/trips/{tripID}/positions", func(r chi.Router) {
			r.Post("/", s.PostPosition)
			r.Get("/", s.ListPositions)
		})

		r.Get("/geocode/reverse", s.ReverseGeocode)
		r.Get("/places/search", s.SearchPlaces)
		r.Get("/places/{placeID}", s.GetPlaceDetails)
		r.Get("/routes", s.GetRoute)
	})

	return r
}
