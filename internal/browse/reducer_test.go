package browse

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/larder/internal/models"
)

func TestReduceRefetchKey(t *testing.T) {
	start := Initial(models.KindRecipe)
	start.Status = StatusReady

	tests := []struct {
		name    string
		action  Action
		refetch bool
	}{
		{"kind", SetItemKind{Kind: models.KindDrink}, true},
		{"same kind", SetItemKind{Kind: models.KindRecipe}, false},
		{"invalid kind", SetItemKind{Kind: "pizza"}, false},
		{"table name kind", SetItemKind{Kind: "sauces"}, true},
		{"search", SetSearchText{Text: "soup"}, true},
		{"difficulty", SetDifficulty{Difficulty: "easy"}, true},
		{"time label", SetTimeRange{Range: "> 60 mins"}, true},
		{"time unknown", SetTimeRange{Range: "forever"}, false},
		{"category on", ToggleCategory{Category: "Dinner", On: true}, true},
		{"category off absent", ToggleCategory{Category: "Dinner"}, false},
		{"dietary", ToggleDietaryRestriction{Restriction: "Vegan", On: true}, true},
		{"clear empty", ClearFilters{}, false},
		{"sort", SetSortKey{Sort: models.SortOldest}, true},
		{"view mode", SetViewMode{Mode: models.ViewList}, false},
		{"collection", SetCollection{Collection: "healthy"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, refetch := Reduce(start, tt.action)
			if refetch != tt.refetch {
				t.Fatalf("refetch = %v, want %v", refetch, tt.refetch)
			}
			wantStatus := StatusReady
			if tt.refetch {
				wantStatus = StatusLoading
			}
			if next.Status != wantStatus {
				t.Errorf("status = %s, want %s", next.Status, wantStatus)
			}
		})
	}
}

func TestReduceViewModeKeepsItems(t *testing.T) {
	s := Initial(models.KindRecipe)
	s, _ = Reduce(s, Loaded{Items: []models.CulinaryItem{{ID: 1, Title: "a"}}})
	next, refetch := Reduce(s, SetViewMode{Mode: models.ViewList})
	if refetch || next.ViewMode != models.ViewList || len(next.Items) != 1 {
		t.Fatalf("next = %+v refetch = %v", next, refetch)
	}
}

func TestReduceClearFilters(t *testing.T) {
	s := Initial(models.KindRecipe)
	s, _ = Reduce(s, ToggleCategory{Category: "Lunch", On: true})
	s, _ = Reduce(s, SetDifficulty{Difficulty: "hard"})
	next, refetch := Reduce(s, ClearFilters{})
	if !refetch || !next.Filters.IsZero() {
		t.Fatalf("filters = %+v refetch = %v", next.Filters, refetch)
	}
}

func TestReduceToggleDoesNotAlias(t *testing.T) {
	s := Initial(models.KindRecipe)
	s, _ = Reduce(s, ToggleCategory{Category: "Lunch", On: true})
	before := s
	after, _ := Reduce(s, ToggleCategory{Category: "Breakfast", On: true})
	if diff := cmp.Diff([]string{"Lunch"}, before.Filters.Categories); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Breakfast", "Lunch"}, after.Filters.Categories); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}
}

func TestReduceSettle(t *testing.T) {
	s := Initial(models.KindSauce)

	empty, _ := Reduce(s, Loaded{})
	if empty.Status != StatusEmpty || empty.Items == nil {
		t.Errorf("empty = %+v", empty)
	}
	ready, _ := Reduce(s, Loaded{Items: []models.CulinaryItem{{ID: 2}}})
	if ready.Status != StatusReady {
		t.Errorf("ready status = %s", ready.Status)
	}
	failed, _ := Reduce(ready, Failed{Err: errors.New("boom")})
	if failed.Status != StatusError || failed.Err != "boom" || len(failed.Items) != 1 {
		t.Errorf("failed = %+v", failed)
	}
	unauth, _ := Reduce(ready, Failed{Err: errors.New("JWT expired"), Auth: true})
	if unauth.Status != StatusUnauthenticated {
		t.Errorf("unauth status = %s", unauth.Status)
	}
}

func TestStateParams(t *testing.T) {
	s := Initial("")
	if s.Kind != models.KindRecipe {
		t.Fatalf("default kind = %s", s.Kind)
	}
	s, _ = Reduce(s, SetSearchText{Text: "pie"})
	s, _ = Reduce(s, SetCollection{Collection: "holiday"})
	p := s.Params()
	if p.Search != "pie" || p.Collection != "holiday" || p.Kind != models.KindRecipe {
		t.Errorf("params = %+v", p)
	}
}

func TestKindAcceptsTableName(t *testing.T) {
	if got := Initial("drinks").Kind; got != models.KindDrink {
		t.Errorf("Initial kind = %q, want drink", got)
	}
	if got := Initial("").Kind; got != models.KindRecipe {
		t.Errorf("Initial default = %q, want recipe", got)
	}
	next, _ := Reduce(Initial(models.KindRecipe), SetItemKind{Kind: "seasoning_blends"})
	if next.Kind != models.KindSeasoningBlend {
		t.Errorf("kind = %q, want seasoning_blend", next.Kind)
	}
	if p := next.Params(); p.Kind != models.KindSeasoningBlend {
		t.Errorf("params kind = %q", p.Kind)
	}
}
