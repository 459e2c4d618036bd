package stores

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pal-ai/gateway/pkg/geo"
	"github.com/pal-ai/gateway/pkg/pagination"
	"github.com/pal-ai/gateway/pkg/validation"
	"github.com/uber/h3-go/v4"
)

var (
	ErrStoreNotFound = errors.New("store not found")
	ErrDuplicateID   = errors.New("duplicate store id")
)

// Catalog is an immutable in-memory store list
type Catalog struct {
	stores []Store
	byID   map[string]int
	byCell map[h3.Cell][]int
}

// LoadFile reads a JSON array of stores
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read store catalog: %w", err)
	}

	var list []Store
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse store catalog %s: %w", path, err)
	}
	return NewCatalog(list)
}

// NewCatalog validates and indexes stores
func NewCatalog(list []Store) (*Catalog, error) {
	c := &Catalog{
		stores: make([]Store, 0, len(list)),
		byID:   make(map[string]int, len(list)),
		byCell: make(map[h3.Cell][]int),
	}

	for i := range list {
		s := list[i]
		if err := validation.ValidateStruct(&s); err != nil {
			return nil, fmt.Errorf("store %d (%s): %w", i, s.ID, err)
		}
		if err := validation.ValidateCoordinates(s.Location.Latitude, s.Location.Longitude); err != nil {
			return nil, fmt.Errorf("store %s: %w", s.ID, err)
		}
		if _, ok := c.byID[s.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, s.ID)
		}
		idx := len(c.stores)
		c.byID[s.ID] = idx
		cell := geo.Cell(s.Location.Latitude, s.Location.Longitude, geo.H3ResolutionStores)
		c.byCell[cell] = append(c.byCell[cell], idx)
		c.stores = append(c.stores, s)
	}

	return c, nil
}

// Len returns the number of stores
func (c *Catalog) Len() int {
	return len(c.stores)
}

// Get returns a store by ID
func (c *Catalog) Get(id string) (*Store, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, ErrStoreNotFound
	}
	s := c.stores[i]
	return &s, nil
}

// Search filters, measures and sorts the catalog, returning one page
func (c *Catalog) Search(q Query) []Result {
	results, _ := c.SearchPage(q)
	return results
}

// SearchPage is Search that also reports how many stores matched in total
func (c *Catalog) SearchPage(q Query) ([]Result, int) {
	text := normalize(q.Text)
	product := normalize(q.Product)

	results := make([]Result, 0)
	for _, i := range c.candidates(q) {
		s := c.stores[i]
		if text != "" && !strings.Contains(normalize(s.Name), text) && !strings.Contains(normalize(s.Address), text) {
			continue
		}
		if !matchesRegion(s, q.Province, q.Municipality, q.Barangay) {
			continue
		}
		if product != "" && !hasProduct(s, product) {
			continue
		}

		r := Result{Store: s}
		if q.Near != nil {
			meters := geo.DistanceMeters(*q.Near, s.Location)
			if q.RadiusKm > 0 && meters > q.RadiusKm*1000 {
				continue
			}
			r.DistanceMeters = &meters
			r.DistanceText = geo.FormatDistance(meters)
		}
		results = append(results, r)
	}

	sortResults(results, q.SortBy, q.Near != nil)

	start, end := pagination.Normalize(q.Limit, q.Offset).Window(len(results))
	return results[start:end], len(results)
}

// candidates narrows a radius search to stores in nearby H3 cells, in
// catalog order. Every other query considers the whole catalog.
func (c *Catalog) candidates(q Query) []int {
	if q.Near != nil && q.RadiusKm > 0 {
		if cells, ok := geo.CellsWithin(q.Near.Latitude, q.Near.Longitude, q.RadiusKm, geo.H3ResolutionStores); ok {
			var idx []int
			for _, cell := range cells {
				idx = append(idx, c.byCell[cell]...)
			}
			sort.Ints(idx)
			return idx
		}
	}

	idx := make([]int, len(c.stores))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Provinces lists the distinct provinces
func (c *Catalog) Provinces() []string {
	return c.distinct(func(s Store) (string, bool) {
		return s.Province, true
	})
}

// Municipalities lists the distinct municipalities of a province
func (c *Catalog) Municipalities(province string) []string {
	return c.distinct(func(s Store) (string, bool) {
		return s.Municipality, strings.EqualFold(s.Province, province)
	})
}

// Barangays lists the distinct barangays of a municipality
func (c *Catalog) Barangays(province, municipality string) []string {
	return c.distinct(func(s Store) (string, bool) {
		return s.Barangay, strings.EqualFold(s.Province, province) && strings.EqualFold(s.Municipality, municipality)
	})
}

func (c *Catalog) distinct(pick func(Store) (string, bool)) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, s := range c.stores {
		v, ok := pick(s)
		if !ok || v == "" {
			continue
		}
		key := normalize(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return normalize(out[i]) < normalize(out[j])
	})
	return out
}

// A lower cascade level only narrows the result when its parents are set.
func matchesRegion(s Store, province, municipality, barangay string) bool {
	if province == "" {
		return true
	}
	if !strings.EqualFold(s.Province, province) {
		return false
	}
	if municipality == "" {
		return true
	}
	if !strings.EqualFold(s.Municipality, municipality) {
		return false
	}
	return barangay == "" || strings.EqualFold(s.Barangay, barangay)
}

func hasProduct(s Store, product string) bool {
	for _, p := range s.Products {
		if strings.Contains(normalize(p), product) {
			return true
		}
	}
	return false
}

func sortResults(results []Result, sortBy string, haveDistance bool) {
	if sortBy == "" && haveDistance {
		sortBy = SortByDistance
	}

	switch sortBy {
	case SortByDistance:
		if !haveDistance {
			sortResults(results, SortByName, false)
			return
		}
		sort.SliceStable(results, func(i, j int) bool {
			return *results[i].DistanceMeters < *results[j].DistanceMeters
		})
	case SortByRating:
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].Rating != results[j].Rating {
				return results[i].Rating > results[j].Rating
			}
			return normalize(results[i].Name) < normalize(results[j].Name)
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			return normalize(results[i].Name) < normalize(results[j].Name)
		})
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
