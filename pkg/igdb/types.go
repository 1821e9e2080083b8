package igdb

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Ref is a reference to another IGDB resource. Depending on the field
// selection the API returns these either as bare numeric ids or as expanded
// {id, name} objects; both decode to the same struct.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON accepts both a bare id and an expanded object.
func (r *Ref) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] != '{' {
		var id int64
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("ref: %w", err)
		}
		r.ID = id
		r.Name = ""
		return nil
	}

	type refAlias Ref
	var alias refAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("ref: %w", err)
	}
	*r = Ref(alias)
	return nil
}

// Cover is a game cover image reference.
type Cover struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// InvolvedCompany links a game to a company with its role flags.
type InvolvedCompany struct {
	ID        int64 `json:"id"`
	Company   Ref   `json:"company"`
	Publisher bool  `json:"publisher"`
	Developer bool  `json:"developer"`
}

// Game is one record from the /games endpoint with the crawl field set.
type Game struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Summary           string            `json:"summary,omitempty"`
	Cover             *Cover            `json:"cover,omitempty"`
	FirstReleaseDate  int64             `json:"first_release_date,omitempty"`
	AggregatedRating  *float64          `json:"aggregated_rating,omitempty"`
	RatingCount       int               `json:"rating_count,omitempty"`
	Genres            []Ref             `json:"genres,omitempty"`
	Platforms         []Ref             `json:"platforms,omitempty"`
	Themes            []Ref             `json:"themes,omitempty"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies,omitempty"`
}

// PopularityPrimitive is one record from the /popularity_primitives endpoint.
type PopularityPrimitive struct {
	GameID         int64   `json:"game_id"`
	Value          float64 `json:"value"`
	PopularityType int     `json:"popularity_type"`
}

// FilterOption is an {id, name} entry from the genres/platforms/companies
// endpoints, used to populate filter dropdowns.
type FilterOption struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FilterOptions bundles the available catalog filter values.
type FilterOptions struct {
	Genres     []FilterOption `json:"genres"`
	Platforms  []FilterOption `json:"platforms"`
	Publishers []FilterOption `json:"publishers"`
}

type countResponse struct {
	Count int `json:"count"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
