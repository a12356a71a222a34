package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hopoff/tripwatch/internal/domain"
)

// startTripRequest is the JSON body of POST /api/trips.
type startTripRequest struct {
	OwnerNumber     string                 `json:"owner_number"`
	Destination     domain.Place           `json:"destination"`
	CurrentLocation domain.Coordinate      `json:"current_location"`
	DistanceKm      float64                `json:"distance_km"`
	TripMessage     string                 `json:"trip_message"`
	Reminders       []string               `json:"reminders"`
	Pickup          *domain.ContactTrigger `json:"pickup"`
	Arrival         *domain.ContactTrigger `json:"arrival"`
}

// positionRequest is the JSON body of POST /api/trips/{tripID}/positions.
type positionRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// positionPage is the response of GET /api/trips/{tripID}/positions.
type positionPage struct {
	Data       []domain.Position `json:"data"`
	Pagination pagination        `json:"pagination"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// StartTrip handles POST /api/trips: plan and immediately start tracking.
func (s *Server) StartTrip(w http.ResponseWriter, r *http.Request) {
	var req startTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	trip := domain.Trip{
		OwnerNumber:     req.OwnerNumber,
		Destination:     req.Destination,
		CurrentLocation: req.CurrentLocation,
		DistanceKm:      req.DistanceKm,
		TripMessage:     req.TripMessage,
		Reminders:       req.Reminders,
		Pickup:          req.Pickup,
		Arrival:         req.Arrival,
	}

	created, err := s.tracker.Start(r.Context(), trip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetActiveTrip handles GET /api/trips/active.
func (s *Server) GetActiveTrip(w http.ResponseWriter, r *http.Request) {
	status, err := s.tracker.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// CancelTrip handles DELETE /api/trips/active. Cancelling with no active
// trip is a success: the end state is the same.
func (s *Server) CancelTrip(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Cancel(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostPosition handles POST /api/trips/{tripID}/positions: one position
// tick from the mobile client.
func (s *Server) PostPosition(w http.ResponseWriter, r *http.Request) {
	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		badRequest(w, "invalid trip id")
		return
	}

	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	loc := domain.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := s.tracker.OnPosition(r.Context(), tripID, loc); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListPositions handles GET /api/trips/{tripID}/positions.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20,
// max=100).
func (s *Server) ListPositions(w http.ResponseWriter, r *http.Request) {
	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		badRequest(w, "invalid trip id")
		return
	}

	params := domain.NewPaginationParams(queryInt(r, "page"), queryInt(r, "limit"))
	positions, total, err := s.positions.ListByTripPaged(r.Context(), tripID, params)
	if err != nil {
		writeError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, positionPage{
		Data: positions,
		Pagination: pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// queryInt parses an optional integer query parameter, returning nil when
// absent or unparseable.
func queryInt(r *http.Request, key string) *int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
