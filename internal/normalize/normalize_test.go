package normalize

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/larder/internal/models"
)

func intPtr(n int) *int { return &n }

func TestNormalize_UntitledNeverFails(t *testing.T) {
	for _, raw := range []models.RawRecord{
		{},
		{"id": 1},
		{"title": nil, "name": nil},
		{"title": "", "name": ""},
		{"title": 42},
	} {
		item := Normalize(raw, models.KindRecipe)
		if item.Title != UntitledTitle {
			t.Errorf("Normalize(%v).Title = %q, want %q", raw, item.Title, UntitledTitle)
		}
	}
}

func TestNormalize_TitleThenName(t *testing.T) {
	item := Normalize(models.RawRecord{"title": "Soup", "name": "ignored"}, models.KindRecipe)
	if item.Title != "Soup" {
		t.Errorf("title = %q, want Soup", item.Title)
	}
	item = Normalize(models.RawRecord{"name": "Lemonade"}, models.KindDrink)
	if item.Title != "Lemonade" {
		t.Errorf("title = %q, want Lemonade", item.Title)
	}
}

func TestNormalize_ShapeForEveryKind(t *testing.T) {
	raw := models.RawRecord{"id": float64(7)}
	for _, kind := range models.Kinds {
		item := Normalize(raw, kind)
		if item.Kind != kind {
			t.Errorf("kind = %q, want %q", item.Kind, kind)
		}
		if item.ID != 7 {
			t.Errorf("%s: id = %d, want 7", kind, item.ID)
		}
		if item.Title == "" || item.ImageURL == "" || item.Time == "" || item.Difficulty == "" {
			t.Errorf("%s: required field empty: %+v", kind, item)
		}
		if item.Categories == nil {
			t.Errorf("%s: categories is nil", kind)
		}
	}
}

func TestNormalize_Defaults(t *testing.T) {
	item := Normalize(models.RawRecord{"name": "Salsa", "image": nil, "difficulty": nil}, models.KindSauce)
	want := models.CulinaryItem{
		Kind:       models.KindSauce,
		Title:      "Salsa",
		ImageURL:   FallbackImage,
		Time:       NoTime,
		Difficulty: DefaultDifficulty,
		Categories: []string{},
	}
	if diff := cmp.Diff(want, item); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_TimeResolutionOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawRecord
		want string
	}{
		{"total wins", models.RawRecord{"total_time": 50, "prep_time": 10}, "50 mins"},
		{"preparation before cooking", models.RawRecord{"preparation_time": 5, "cooking_time": 20}, "5 mins"},
		{"null skipped", models.RawRecord{"total_time": nil, "cooking_time": 20}, "20 mins"},
		{"prep last", models.RawRecord{"prep_time": float64(15)}, "15 mins"},
		{"none", models.RawRecord{}, NoTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := Normalize(tt.raw, models.KindRecipe)
			if item.Time != tt.want {
				t.Errorf("Time = %q, want %q", item.Time, tt.want)
			}
			if tt.want == NoTime && item.TimeMinutes != nil {
				t.Errorf("TimeMinutes = %d, want nil", *item.TimeMinutes)
			}
		})
	}
}

func TestNormalize_Categories(t *testing.T) {
	var fromJSON models.RawRecord
	if err := json.Unmarshal([]byte(`{"categories":{"b":"Dinner","a":"Quick"}}`), &fromJSON); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Quick", "Dinner"}, Normalize(fromJSON, models.KindRecipe).Categories); diff != "" {
		t.Errorf("object categories (-want +got):\n%s", diff)
	}

	arr := Normalize(models.RawRecord{"categories": []any{"Dinner", "Spicy"}}, models.KindRecipe)
	if diff := cmp.Diff([]string{"Dinner", "Spicy"}, arr.Categories); diff != "" {
		t.Errorf("array categories (-want +got):\n%s", diff)
	}

	bad := Normalize(models.RawRecord{"categories": "Dinner"}, models.KindRecipe)
	if len(bad.Categories) != 0 {
		t.Errorf("scalar categories = %v, want empty", bad.Categories)
	}
}

func TestNormalize_Servings(t *testing.T) {
	if got := Normalize(models.RawRecord{}, models.KindRecipe).Servings; got != nil {
		t.Errorf("missing key: servings = %v, want nil", *got)
	}
	if got := Normalize(models.RawRecord{"servings": nil}, models.KindRecipe).Servings; got != nil {
		t.Errorf("null: servings = %v, want nil", *got)
	}
	got := Normalize(models.RawRecord{"servings": float64(4)}, models.KindRecipe).Servings
	if diff := cmp.Diff(intPtr(4), got); diff != "" {
		t.Errorf("servings (-want +got):\n%s", diff)
	}
}

func TestNormalizeAll(t *testing.T) {
	items := NormalizeAll([]models.RawRecord{{"name": "a"}, {"name": "b"}}, models.KindSide)
	if len(items) != 2 || items[1].Title != "b" || items[0].Kind != models.KindSide {
		t.Errorf("NormalizeAll = %+v", items)
	}
	if got := NormalizeAll(nil, models.KindSide); got == nil || len(got) != 0 {
		t.Errorf("NormalizeAll(nil) = %v, want empty non-nil", got)
	}
}
