// Package maps is the read-only Google Maps Web Services collaborator:
// reverse geocoding, place autocomplete, place details, and directions.
// The engine itself never depends on it; the HTTP layer proxies it for the
// mobile shell, and directions feed the polyline decoder in geo.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hopoff/tripwatch/internal/domain"
	"github.com/hopoff/tripwatch/internal/geo"
)

// ErrQuery is the wrapped sentinel for any upstream maps failure: transport
// errors, non-OK provider statuses, and unparseable payloads. Callers map it
// to a user-visible alert; it never crashes anything.
var ErrQuery = errors.New("geo query failed")

// autocompleteBiasRadiusMeters is the search bias radius applied around the
// caller's position.
const autocompleteBiasRadiusMeters = 50000

// Client calls the Google Maps Web Service endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL overrides the provider origin. Tests point this at an
// httptest server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient constructs a maps client authenticated by apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://maps.googleapis.com",
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prediction is one autocomplete suggestion.
type Prediction struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

// Route is a directions result: the decoded overview polyline plus the
// provider's summary line.
type Route struct {
	Points  []domain.Coordinate `json:"points"`
	Summary string              `json:"summary,omitempty"`
}

// ReverseGeocode resolves a coordinate to its formatted address. An empty
// string with nil error means the provider knows no address for the point.
func (c *Client) ReverseGeocode(ctx context.Context, loc domain.Coordinate) (string, error) {
	q := url.Values{
		"latlng": {fmt.Sprintf("%f,%f", loc.Latitude, loc.Longitude)},
		"key":    {c.apiKey},
	}

	var body struct {
		Status  string `json:"status"`
		Results []struct {
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/maps/api/geocode/json", q, &body); err != nil {
		return "", fmt.Errorf("maps.Client.ReverseGeocode: %w", err)
	}

	switch body.Status {
	case "OK":
		if len(body.Results) == 0 {
			return "", nil
		}
		return body.Results[0].FormattedAddress, nil
	case "ZERO_RESULTS":
		return "", nil
	default:
		return "", fmt.Errorf("maps.Client.ReverseGeocode: %w: status %s", ErrQuery, body.Status)
	}
}

// Autocomplete returns place predictions for a partial query, biased around
// bias when it is non-nil. A short query (under 3 characters) yields no
// predictions without a network call, matching the client-side behaviour
// the mobile shell expects.
func (c *Client) Autocomplete(ctx context.Context, query string, bias *domain.Coordinate) ([]Prediction, error) {
	if len(query) < 3 {
		return nil, nil
	}

	q := url.Values{
		"input": {query},
		"key":   {c.apiKey},
	}
	if bias != nil {
		q.Set("location", fmt.Sprintf("%f,%f", bias.Latitude, bias.Longitude))
		q.Set("radius", fmt.Sprintf("%d", autocompleteBiasRadiusMeters))
	}

	var body struct {
		Status      string       `json:"status"`
		Predictions []Prediction `json:"predictions"`
	}
	if err := c.get(ctx, "/maps/api/place/autocomplete/json", q, &body); err != nil {
		return nil, fmt.Errorf("maps.Client.Autocomplete: %w", err)
	}

	switch body.Status {
	case "OK":
		return body.Predictions, nil
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("maps.Client.Autocomplete: %w: status %s", ErrQuery, body.Status)
	}
}

// PlaceDetails resolves a place ID to a named, addressed coordinate.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (domain.Place, error) {
	q := url.Values{
		"place_id": {placeID},
		"fields":   {"name,formatted_address,geometry"},
		"key":      {c.apiKey},
	}

	var body struct {
		Status string `json:"status"`
		Result struct {
			Name             string `json:"name"`
			FormattedAddress string `json:"formatted_address"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"result"`
	}
	if err := c.get(ctx, "/maps/api/place/details/json", q, &body); err != nil {
		return domain.Place{}, fmt.Errorf("maps.Client.PlaceDetails: %w", err)
	}

	if body.Status != "OK" {
		return domain.Place{}, fmt.Errorf("maps.Client.PlaceDetails: %w: status %s", ErrQuery, body.Status)
	}

	return domain.Place{
		Coordinate: domain.Coordinate{
			Latitude:  body.Result.Geometry.Location.Lat,
			Longitude: body.Result.Geometry.Location.Lng,
		},
		Name:    body.Result.Name,
		Address: body.Result.FormattedAddress,
	}, nil
}

// Directions fetches a driving route between two points and decodes its
// overview polyline. Returns domain.ErrNotFound when the provider finds no
// route.
func (c *Client) Directions(ctx context.Context, origin, dest domain.Coordinate) (Route, error) {
	q := url.Values{
		"origin":      {fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude)},
		"destination": {fmt.Sprintf("%f,%f", dest.Latitude, dest.Longitude)},
		"key":         {c.apiKey},
	}

	var body struct {
		Status string `json:"status"`
		Routes []struct {
			Summary          string `json:"summary"`
			OverviewPolyline struct {
				Points string `json:"points"`
			} `json:"overview_polyline"`
		} `json:"routes"`
	}
	if err := c.get(ctx, "/maps/api/directions/json", q, &body); err != nil {
		return Route{}, fmt.Errorf("maps.Client.Directions: %w", err)
	}

	switch body.Status {
	case "OK":
		if len(body.Routes) == 0 {
			return Route{}, fmt.Errorf("maps.Client.Directions: %w", domain.ErrNotFound)
		}
		r := body.Routes[0]
		return Route{
			Points:  geo.DecodePolyline(r.OverviewPolyline.Points),
			Summary: r.Summary,
		}, nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return Route{}, fmt.Errorf("maps.Client.Directions: %w", domain.ErrNotFound)
	default:
		return Route{}, fmt.Errorf("maps.Client.Directions: %w: status %s", ErrQuery, body.Status)
	}
}

// get issues one GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQuery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: http status %d", ErrQuery, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrQuery, err)
	}
	return nil
}
