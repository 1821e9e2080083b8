package catalog

import (
	"testing"

	"gametrack/pkg/igdb"
)

func TestFromGame_NormalizesRefsToBareIDs(t *testing.T) {
	rating := 87.5
	game := igdb.Game{
		ID:               1942,
		Name:             "Halo Wars",
		Summary:          "RTS spin-off",
		Cover:            &igdb.Cover{ID: 10, URL: "//images/co1.jpg"},
		FirstReleaseDate: 1235520000,
		AggregatedRating: &rating,
		RatingCount:      44,
		Genres:           []igdb.Ref{{ID: 11}, {ID: 15, Name: "Strategy"}},
		Platforms:        []igdb.Ref{{ID: 12}},
		Themes:           []igdb.Ref{{ID: 1}},
		InvolvedCompanies: []igdb.InvolvedCompany{
			{Company: igdb.Ref{ID: 51}, Publisher: true},
			{Company: igdb.Ref{ID: 52}, Publisher: false},
			{Company: igdb.Ref{ID: 53, Name: "Microsoft"}, Publisher: true},
		},
	}

	item := FromGame(game)

	if item.ID != 1942 || item.Name != "Halo Wars" {
		t.Errorf("identity fields = %d/%q", item.ID, item.Name)
	}
	if item.CoverURL != "//images/co1.jpg" {
		t.Errorf("CoverURL = %q", item.CoverURL)
	}
	if len(item.Genres) != 2 || item.Genres[0] != 11 || item.Genres[1] != 15 {
		t.Errorf("Genres = %v, want bare ids [11 15]", item.Genres)
	}
	if len(item.Publishers) != 2 || item.Publishers[0] != 51 || item.Publishers[1] != 53 {
		t.Errorf("Publishers = %v, want publisher-flagged company ids [51 53]", item.Publishers)
	}
	if item.AggregatedRating == nil || *item.AggregatedRating != rating {
		t.Errorf("AggregatedRating = %v, want %v", item.AggregatedRating, rating)
	}
	if item.Popularity != nil {
		t.Errorf("Popularity = %v, want nil before the join", item.Popularity)
	}
}

func TestFromGame_EmptyOptionalFields(t *testing.T) {
	item := FromGame(igdb.Game{ID: 7, Name: "Bare"})

	if item.CoverURL != "" {
		t.Errorf("CoverURL = %q, want empty", item.CoverURL)
	}
	if item.Genres != nil || item.Platforms != nil || item.Themes != nil || item.Publishers != nil {
		t.Errorf("reference lists should stay nil when absent: %+v", item)
	}
	if item.AggregatedRating != nil {
		t.Errorf("AggregatedRating = %v, want nil", item.AggregatedRating)
	}
}

func TestHasTheme(t *testing.T) {
	item := Item{Themes: []int64{17, AdultThemeID}}

	if !item.HasTheme(AdultThemeID) {
		t.Error("HasTheme(AdultThemeID) = false, want true")
	}
	if item.HasTheme(99) {
		t.Error("HasTheme(99) = true, want false")
	}
}
