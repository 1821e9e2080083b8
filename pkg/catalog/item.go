// Package catalog implements the game-catalog refresh engine and its
// cache/lookup protocol: the crawl of the remote catalog, the popularity
// join, the published snapshot, and the read-side query service.
package catalog

import "gametrack/pkg/igdb"

// AdultThemeID is the theme id that marks adult-only content. Items carrying
// it are excluded by the default catalog filter.
const AdultThemeID = 42

// Item is the canonical catalog record stored in a snapshot. Heterogeneous
// reference fields from the remote API (bare ids vs {id, name} objects) are
// normalized to bare ids at ingestion so every snapshot has one shape.
//
// Popularity is a pointer: nil means no popularity record matched this item
// and sorts after every present value. Zero is a valid low popularity and is
// never conflated with absence.
type Item struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Summary          string   `json:"summary,omitempty"`
	CoverURL         string   `json:"cover_url,omitempty"`
	FirstReleaseDate int64    `json:"first_release_date,omitempty"`
	AggregatedRating *float64 `json:"aggregated_rating,omitempty"`
	RatingCount      int      `json:"rating_count,omitempty"`
	Genres           []int64  `json:"genres,omitempty"`
	Platforms        []int64  `json:"platforms,omitempty"`
	Themes           []int64  `json:"themes,omitempty"`
	Publishers       []int64  `json:"publishers,omitempty"`
	Popularity       *float64 `json:"popularity"`
}

// FromGame normalizes a raw API record into the canonical item shape.
func FromGame(game igdb.Game) Item {
	item := Item{
		ID:               game.ID,
		Name:             game.Name,
		Summary:          game.Summary,
		FirstReleaseDate: game.FirstReleaseDate,
		AggregatedRating: game.AggregatedRating,
		RatingCount:      game.RatingCount,
		Genres:           refIDs(game.Genres),
		Platforms:        refIDs(game.Platforms),
		Themes:           refIDs(game.Themes),
	}

	if game.Cover != nil {
		item.CoverURL = game.Cover.URL
	}

	for _, ic := range game.InvolvedCompanies {
		if ic.Publisher {
			item.Publishers = append(item.Publishers, ic.Company.ID)
		}
	}

	return item
}

func refIDs(refs []igdb.Ref) []int64 {
	if len(refs) == 0 {
		return nil
	}
	ids := make([]int64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return ids
}

// HasTheme reports whether the item carries the given theme id.
func (it Item) HasTheme(themeID int64) bool {
	for _, id := range it.Themes {
		if id == themeID {
			return true
		}
	}
	return false
}
