// Package polyline implements Google's Encoded Polyline Algorithm Format.
//
// Coordinates are delta-coded against the previous point, zig-zag signed,
// split into 5-bit chunks and offset by 63 so every chunk is printable ASCII.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultPrecision is the number of decimal places used by Google Directions.
const DefaultPrecision = 5

const (
	chunkBits        = 5
	chunkMask        = 0x1f
	continuationFlag = 0x20
	asciiOffset      = 63
	maxChunkChar     = asciiOffset + continuationFlag + chunkMask // '~'
	// 12 chunks carry 60 bits. A full-circle delta at precision 9 needs 8,
	// so anything longer cannot come from a real coordinate.
	maxShift = 55
)

var (
	// ErrTruncated is returned when the input ends in the middle of a value or
	// a latitude is not followed by a longitude.
	ErrTruncated = errors.New("polyline: truncated input")
	// ErrInvalidCharacter is returned for bytes outside the encoding alphabet.
	ErrInvalidCharacter = errors.New("polyline: invalid character")
	// ErrOverflow is returned when a value spans more chunks than the 64-bit
	// accumulator can hold.
	ErrOverflow = errors.New("polyline: value overflow")
)

// DecodeError reports where decoding failed.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Err.Error(), e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Coordinate is a point in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Decode decodes a polyline encoded with 5 decimal places of precision.
// The empty string yields an empty slice. Malformed input returns a
// *DecodeError and no points.
func Decode(encoded string) ([]Coordinate, error) {
	return DecodeWithPrecision(encoded, DefaultPrecision)
}

// DecodeWithPrecision decodes a polyline whose integers are degrees scaled by
// 10^precision. Some routing engines (OSRM, Valhalla) use precision 6.
func DecodeWithPrecision(encoded string, precision int) ([]Coordinate, error) {
	factor := math.Pow10(-precision)
	coords := make([]Coordinate, 0, len(encoded)/4)

	var lat, lng int64
	index := 0
	for index < len(encoded) {
		dLat, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			return nil, &DecodeError{Offset: next, Err: ErrTruncated}
		}

		dLng, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += dLat
		lng += dLng
		coords = append(coords, Coordinate{
			Latitude:  float64(lat) * factor,
			Longitude: float64(lng) * factor,
		})
	}

	return coords, nil
}

// decodeValue reads one signed delta starting at index and returns it with
// the index of the next unread byte.
func decodeValue(encoded string, index int) (int64, int, error) {
	var result int64
	shift := 0
	for {
		if index >= len(encoded) {
			return 0, index, &DecodeError{Offset: index, Err: ErrTruncated}
		}
		c := encoded[index]
		if c < asciiOffset || c > maxChunkChar {
			return 0, index, &DecodeError{Offset: index, Err: ErrInvalidCharacter}
		}
		if shift > maxShift {
			return 0, index, &DecodeError{Offset: index, Err: ErrOverflow}
		}

		b := int64(c) - asciiOffset
		index++
		result |= (b & chunkMask) << shift
		shift += chunkBits
		if b < continuationFlag {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes coordinates with 5 decimal places of precision.
func Encode(coords []Coordinate) string {
	return EncodeWithPrecision(coords, DefaultPrecision)
}

// EncodeWithPrecision encodes coordinates scaled by 10^precision.
func EncodeWithPrecision(coords []Coordinate, precision int) string {
	if len(coords) == 0 {
		return ""
	}

	factor := math.Pow10(precision)
	var sb strings.Builder
	sb.Grow(len(coords) * 8)

	var prevLat, prevLng int64
	for _, c := range coords {
		lat := int64(math.Round(c.Latitude * factor))
		lng := int64(math.Round(c.Longitude * factor))

		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)

		prevLat, prevLng = lat, lng
	}

	return sb.String()
}

func encodeValue(sb *strings.Builder, value int64) {
	v := value << 1
	if value < 0 {
		v = ^v
	}

	for v >= continuationFlag {
		sb.WriteByte(byte((v&chunkMask)|continuationFlag) + asciiOffset)
		v >>= chunkBits
	}
	sb.WriteByte(byte(v) + asciiOffset)
}
