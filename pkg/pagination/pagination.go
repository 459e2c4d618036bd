package pagination

import (
	"math"

	"github.com/pal-ai/gateway/pkg/common"
)

const (
	// DefaultLimit is the default number of items per page
	DefaultLimit = 20
	// MaxLimit is the maximum number of items per page
	MaxLimit = 100
)

// Params is a normalized limit/offset window
type Params struct {
	Limit  int
	Offset int
}

// Normalize applies defaults and bounds to client supplied values.
func Normalize(limit, offset int) Params {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// Window returns the slice bounds of the page within total items.
func (p Params) Window(total int) (start, end int) {
	start = p.Offset
	if start > total {
		start = total
	}
	end = start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// BuildMeta creates pagination metadata for responses
func BuildMeta(p Params, total int) *common.Meta {
	meta := &common.Meta{
		Limit:   p.Limit,
		Offset:  p.Offset,
		Total:   total,
		HasMore: HasMore(p.Offset, p.Limit, total),
	}
	if p.Limit > 0 {
		meta.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return meta
}

// HasMore checks if there are more items available
func HasMore(offset, limit, total int) bool {
	return offset+limit < total
}
