package geo

import "github.com/hopoff/tripwatch/internal/domain"

// DecodePolyline decodes a Google encoded polyline (the format returned by
// the Directions API): 5-bit chunks offset by 63, zigzag-signed deltas,
// coordinates scaled by 1e5.
//
// Decoding is deliberately lenient: malformed or truncated input yields an
// empty slice rather than an error, so a bad route response degrades to "no
// route drawn" instead of failing the caller.
func DecodePolyline(encoded string) []domain.Coordinate {
	if encoded == "" {
		return nil
	}

	var points []domain.Coordinate
	var lat, lng int64

	for i := 0; i < len(encoded); {
		dLat, next, ok := decodeChunk(encoded, i)
		if !ok {
			return nil
		}
		lat += dLat

		dLng, next2, ok := decodeChunk(encoded, next)
		if !ok {
			return nil
		}
		lng += dLng
		i = next2

		points = append(points, domain.Coordinate{
			Latitude:  float64(lat) / 1e5,
			Longitude: float64(lng) / 1e5,
		})
	}

	return points
}

// decodeChunk reads one varint-encoded signed delta starting at index i.
// It returns the delta, the index of the next unread byte, and whether the
// chunk was well-formed (in range and not truncated).
func decodeChunk(encoded string, i int) (delta int64, next int, ok bool) {
	var result int64
	var shift uint

	for {
		if i >= len(encoded) {
			return 0, 0, false
		}
		b := int64(encoded[i]) - 63
		if b < 0 {
			return 0, 0, false
		}
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	// Zigzag: the low bit carries the sign.
	if result&1 != 0 {
		return ^(result >> 1), i, true
	}
	return result >> 1, i, true
}
