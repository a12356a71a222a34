package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hopoff/tripwatch/internal/domain"
)

// ReverseGeocode handles GET /api/geocode/reverse?lat=..&lng=..
func (s *Server) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	loc, ok := coordFromQuery(r, "lat", "lng")
	if !ok {
		badRequest(w, "lat and lng query parameters are required")
		return
	}

	address, err := s.geo.ReverseGeocode(r.Context(), loc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": address})
}

// SearchPlaces handles GET /api/places/search?q=..&lat=..&lng=..
// lat/lng are an optional location bias.
func (s *Server) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		badRequest(w, "q query parameter is required")
		return
	}

	var bias *domain.Coordinate
	if loc, ok := coordFromQuery(r, "lat", "lng"); ok {
		bias = &loc
	}

	predictions, err := s.geo.Autocomplete(r.Context(), query, bias)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": predictions})
}

// GetPlaceDetails handles GET /api/places/{placeID}.
func (s *Server) GetPlaceDetails(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")
	if placeID == "" {
		badRequest(w, "place id is required")
		return
	}

	place, err := s.geo.PlaceDetails(r.Context(), placeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, place)
}

// GetRoute handles GET /api/routes?origin=lat,lng&destination=lat,lng.
func (s *Server) GetRoute(w http.ResponseWriter, r *http.Request) {
	origin, ok := coordFromParam(r.URL.Query().Get("origin"))
	if !ok {
		badRequest(w, "origin must be of the form lat,lng")
		return
	}
	dest, ok := coordFromParam(r.URL.Query().Get("destination"))
	if !ok {
		badRequest(w, "destination must be of the form lat,lng")
		return
	}

	route, err := s.geo.Directions(r.Context(), origin, dest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// coordFromQuery reads a coordinate from two separate query parameters.
func coordFromQuery(r *http.Request, latKey, lngKey string) (domain.Coordinate, bool) {
	latStr := r.URL.Query().Get(latKey)
	lngStr := r.URL.Query().Get(lngKey)
	if latStr == "" || lngStr == "" {
		return domain.Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	loc := domain.Coordinate{Latitude: lat, Longitude: lng}
	if err := loc.Validate(); err != nil {
		return domain.Coordinate{}, false
	}
	return loc, true
}

// coordFromParam parses a "lat,lng" pair.
func coordFromParam(v string) (domain.Coordinate, bool) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return domain.Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	loc := domain.Coordinate{Latitude: lat, Longitude: lng}
	if err := loc.Validate(); err != nil {
		return domain.Coordinate{}, false
	}
	return loc, true
}
