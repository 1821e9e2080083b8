package igdb

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestRef_UnmarshalBareID(t *testing.T) {
	var game Game
	data := []byte(`{"id": 1, "name": "Doom", "genres": [5, 12], "themes": [42]}`)

	if err := json.Unmarshal(data, &game); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(game.Genres) != 2 || game.Genres[0].ID != 5 || game.Genres[1].ID != 12 {
		t.Errorf("Genres = %+v, want ids [5 12]", game.Genres)
	}
	if len(game.Themes) != 1 || game.Themes[0].ID != 42 {
		t.Errorf("Themes = %+v, want ids [42]", game.Themes)
	}
}

func TestRef_UnmarshalExpandedObject(t *testing.T) {
	var game Game
	data := []byte(`{"id": 1, "name": "Doom", "genres": [{"id": 5, "name": "Shooter"}]}`)

	if err := json.Unmarshal(data, &game); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(game.Genres) != 1 {
		t.Fatalf("Genres len = %d, want 1", len(game.Genres))
	}
	if game.Genres[0].ID != 5 || game.Genres[0].Name != "Shooter" {
		t.Errorf("Genres[0] = %+v, want {5 Shooter}", game.Genres[0])
	}
}

func TestGame_UnmarshalInvolvedCompanies(t *testing.T) {
	var game Game
	data := []byte(`{
		"id": 7,
		"name": "Halo Wars",
		"involved_companies": [
			{"id": 100, "company": 55, "publisher": true},
			{"id": 101, "company": {"id": 66, "name": "Ensemble"}, "publisher": false}
		]
	}`)

	if err := json.Unmarshal(data, &game); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(game.InvolvedCompanies) != 2 {
		t.Fatalf("InvolvedCompanies len = %d, want 2", len(game.InvolvedCompanies))
	}
	if game.InvolvedCompanies[0].Company.ID != 55 || !game.InvolvedCompanies[0].Publisher {
		t.Errorf("first company = %+v, want publisher with company id 55", game.InvolvedCompanies[0])
	}
	if game.InvolvedCompanies[1].Company.ID != 66 || game.InvolvedCompanies[1].Publisher {
		t.Errorf("second company = %+v, want non-publisher with company id 66", game.InvolvedCompanies[1])
	}
}

func TestGame_UnmarshalOptionalRating(t *testing.T) {
	var game Game
	data := []byte(`{"id": 1, "name": "Doom", "aggregated_rating": 0}`)

	if err := json.Unmarshal(data, &game); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if game.AggregatedRating == nil || *game.AggregatedRating != 0 {
		t.Errorf("AggregatedRating = %v, want explicit zero", game.AggregatedRating)
	}

	var absent Game
	if err := json.Unmarshal([]byte(`{"id": 2, "name": "Quake"}`), &absent); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if absent.AggregatedRating != nil {
		t.Errorf("AggregatedRating = %v, want nil when absent", absent.AggregatedRating)
	}
}
