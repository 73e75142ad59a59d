// Package polyline encodes and decodes route geometry in the encoded polyline
// format used by Google Directions and OpenRouteService (precision 5).
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"
)

// precision is the scale factor for 5 decimal places.
const precision = 1e5

var (
	// ErrTruncated is returned when the input ends inside a value or between
	// the latitude and longitude of a point.
	ErrTruncated = errors.New("polyline: truncated input")
	// ErrInvalidChar is returned for bytes outside the encoding alphabet.
	ErrInvalidChar = errors.New("polyline: invalid character")
)

// Coordinate represents a geographic point with latitude and longitude.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Decode decodes an encoded polyline into coordinates. An empty string
// decodes to nil.
func Decode(encoded string) ([]Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	coords := make([]Coordinate, 0, len(encoded)/4)
	var lat, lon int
	for index := 0; index < len(encoded); {
		latDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		lonDelta, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += latDelta
		lon += lonDelta
		coords = append(coords, Coordinate{
			Lat: float64(lat) / precision,
			Lon: float64(lon) / precision,
		})
	}

	return coords, nil
}

// decodeValue reads one zigzag-encoded delta starting at index and returns it
// with the index of the following byte.
func decodeValue(encoded string, index int) (int, int, error) {
	var result, shift int
	for {
		if index >= len(encoded) {
			return 0, index, ErrTruncated
		}
		b := int(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, index, ErrInvalidChar
		}
		index++

		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes coordinates as a polyline, rounding to 5 decimal places.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(coords)*8)
	var prevLat, prevLon int
	for _, c := range coords {
		lat := int(math.Round(c.Lat * precision))
		lon := int(math.Round(c.Lon * precision))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)

		prevLat, prevLon = lat, lon
	}

	return string(encoded)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// Bounds returns the south-west and north-east corners enclosing coords.
// ok is false when coords is empty.
func Bounds(coords []Coordinate) (sw, ne Coordinate, ok bool) {
	if len(coords) == 0 {
		return Coordinate{}, Coordinate{}, false
	}

	sw, ne = coords[0], coords[0]
	for _, c := range coords[1:] {
		sw.Lat = math.Min(sw.Lat, c.Lat)
		sw.Lon = math.Min(sw.Lon, c.Lon)
		ne.Lat = math.Max(ne.Lat, c.Lat)
		ne.Lon = math.Max(ne.Lon, c.Lon)
	}
	return sw, ne, true
}
