package catalog

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// ErrPreparing signals that no snapshot exists yet but a refresh run is in
// progress. Callers should poll and back off rather than treat it as a
// failure.
var ErrPreparing = errors.New("catalog snapshot still downloading")

// Order selects the sort key for catalog listings.
type Order string

const (
	OrderPopularity Order = "popular"
	OrderName       Order = "name"
	OrderDate       Order = "date"
)

// DefaultPageSize is the listing page size when the caller does not choose.
const DefaultPageSize = 60

// ListParams are the filter/sort/paginate arguments of a catalog listing.
type ListParams struct {
	Text      string // whitespace-separated terms, all must match the name
	Genre     *int64
	Platform  *int64
	Publisher *int64

	// IncludeAdult disables the default adult-content exclusion. Only
	// honored by the HTTP layer for authenticated callers.
	IncludeAdult bool

	Order Order
	Asc   bool

	Page     int
	PageSize int
}

// ListResult is one page of a filtered catalog listing.
type ListResult struct {
	Items           []Item `json:"items"`
	Total           int    `json:"total"`
	TotalUnfiltered int    `json:"total_unfiltered"`
	Hidden          int    `json:"hidden"`
	Page            int    `json:"page"`
	Pages           int    `json:"pages"`
}

// Stats summarizes the snapshot for a welcome screen: totals plus a popular
// and a random selection of visible items.
type Stats struct {
	TotalItems   int    `json:"total_items"`
	TotalVisible int    `json:"total_visible"`
	TopPopular   []Item `json:"top_popular"`
	RandomSample []Item `json:"random_sample"`
}

// Query is the read path over the last published snapshot. It never blocks
// on a running refresh: the snapshot it loads is immutable, so concurrent
// refreshes are invisible until they publish.
type Query struct {
	snapshots *Snapshots
	states    *StateStore
}

// NewQuery creates a query service.
func NewQuery(snapshots *Snapshots, states *StateStore) *Query {
	return &Query{snapshots: snapshots, states: states}
}

// List applies the filter/sort/paginate pipeline to the current snapshot.
//
// With no snapshot published: returns ErrPreparing while a run is in
// progress, and an empty result otherwise — triggering a refresh is the
// scheduler's job, never the read path's.
func (q *Query) List(params ListParams) (*ListResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	items, ok, err := q.snapshots.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		if q.states.Load().Status == StatusInProgress {
			return nil, ErrPreparing
		}
		return &ListResult{Items: []Item{}, Page: page, Pages: 0}, nil
	}

	totalUnfiltered := len(items)
	filtered := filterItems(items, params)
	sortItems(filtered, params.Order, params.Asc)

	total := len(filtered)
	pages := 0
	if total > 0 {
		pages = int(math.Ceil(float64(total) / float64(pageSize)))
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &ListResult{
		Items:           filtered[start:end],
		Total:           total,
		TotalUnfiltered: totalUnfiltered,
		Hidden:          totalUnfiltered - total,
		Page:            page,
		Pages:           pages,
	}, nil
}

// Stats computes welcome-screen statistics over the visible snapshot
// (cover present, adult content excluded). Cold cache yields zero stats.
func (q *Query) Stats(sampleSize int) (*Stats, error) {
	if sampleSize < 1 {
		sampleSize = 10
	}

	items, ok, err := q.snapshots.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Stats{TopPopular: []Item{}, RandomSample: []Item{}}, nil
	}

	visible := make([]Item, 0, len(items))
	for _, item := range items {
		if item.CoverURL != "" && !item.HasTheme(AdultThemeID) {
			visible = append(visible, item)
		}
	}

	ranked := make([]Item, 0, len(visible))
	for _, item := range visible {
		if item.Popularity != nil {
			ranked = append(ranked, item)
		}
	}
	SortByPopularity(ranked, false)
	if len(ranked) > sampleSize {
		ranked = ranked[:sampleSize]
	}

	sample := make([]Item, len(visible))
	copy(sample, visible)
	rand.Shuffle(len(sample), func(i, j int) {
		sample[i], sample[j] = sample[j], sample[i]
	})
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	return &Stats{
		TotalItems:   len(items),
		TotalVisible: len(visible),
		TopPopular:   ranked,
		RandomSample: sample,
	}, nil
}

func filterItems(items []Item, params ListParams) []Item {
	filtered := make([]Item, 0, len(items))

	terms := strings.Fields(strings.ToLower(params.Text))

	for _, item := range items {
		if len(terms) > 0 && !matchesAllTerms(item.Name, terms) {
			continue
		}
		if params.Genre != nil && !containsID(item.Genres, *params.Genre) {
			continue
		}
		if params.Platform != nil && !containsID(item.Platforms, *params.Platform) {
			continue
		}
		if params.Publisher != nil && !containsID(item.Publishers, *params.Publisher) {
			continue
		}
		if !params.IncludeAdult && item.HasTheme(AdultThemeID) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// matchesAllTerms implements AND semantics over whitespace-separated terms:
// every term must appear somewhere in the name, case-insensitively.
func matchesAllTerms(name string, terms []string) bool {
	lower := strings.ToLower(name)
	for _, term := range terms {
		if !strings.Contains(lower, term) {
			return false
		}
	}
	return true
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func sortItems(items []Item, order Order, asc bool) {
	switch order {
	case OrderName:
		sort.SliceStable(items, func(i, j int) bool {
			ni, nj := strings.ToLower(items[i].Name), strings.ToLower(items[j].Name)
			if asc {
				return ni < nj
			}
			return ni > nj
		})
	case OrderDate:
		// Missing release dates read as the epoch and sort earliest.
		sort.SliceStable(items, func(i, j int) bool {
			if asc {
				return items[i].FirstReleaseDate < items[j].FirstReleaseDate
			}
			return items[i].FirstReleaseDate > items[j].FirstReleaseDate
		})
	default:
		SortByPopularity(items, asc)
	}
}
