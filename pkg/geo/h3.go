package geo

import (
	"math"

	"github.com/uber/h3-go/v4"
)

// H3 resolutions used by the gateway.
// See: https://h3geo.org/docs/core-library/restable
const (
	// H3ResolutionStores buckets store locations (~1.4 km edge).
	H3ResolutionStores = 7

	// maxDiskRings bounds a proximity lookup; wider searches scan everything.
	maxDiskRings = 60
)

// average hexagon edge length in km per resolution
var h3EdgeKm = map[int]float64{
	5: 9.854,
	6: 3.725,
	7: 1.406,
	8: 0.531,
	9: 0.201,
}

// Cell returns the H3 cell containing a coordinate, or 0 for out-of-range input.
func Cell(lat, lng float64, resolution int) h3.Cell {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), resolution)
	if err != nil {
		return 0
	}
	return cell
}

// CellsWithin returns cells whose union covers every point within radiusKm
// of the coordinate. ok is false when the radius is too large to enumerate
// and the caller should fall back to a full scan.
func CellsWithin(lat, lng, radiusKm float64, resolution int) (cells []h3.Cell, ok bool) {
	edge, known := h3EdgeKm[resolution]
	if !known || radiusKm <= 0 {
		return nil, false
	}

	// one extra ring covers points near the edge of the origin cell
	k := int(math.Ceil(radiusKm/(1.5*edge))) + 1
	if k > maxDiskRings {
		return nil, false
	}

	origin := Cell(lat, lng, resolution)
	if origin == 0 {
		return nil, false
	}
	cells, err := origin.GridDisk(k)
	if err != nil {
		return nil, false
	}
	return cells, true
}
