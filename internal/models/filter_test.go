package models

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFilterSetsStaySortedAndUnique(t *testing.T) {
	f := FilterState{}.
		WithCategory("dinner", true).
		WithCategory("breakfast", true).
		WithCategory("dinner", true).
		WithCategory("", true)
	if diff := cmp.Diff([]string{"breakfast", "dinner"}, f.Categories); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}

	f = f.WithCategory("breakfast", false).WithCategory("lunch", false)
	if diff := cmp.Diff([]string{"dinner"}, f.Categories); diff != "" {
		t.Errorf("after removal (-want +got):\n%s", diff)
	}

	f = f.WithCategory("dinner", false)
	if f.Categories != nil || !f.IsZero() {
		t.Errorf("empty set should be nil and zero: %+v", f)
	}
}

func TestFilterWithDoesNotAlias(t *testing.T) {
	a := FilterState{DietaryRestrictions: NewSet("vegan", "gluten-free")}
	b := a.WithDietaryRestriction("keto", true)
	if len(a.DietaryRestrictions) != 2 {
		t.Fatalf("original changed: %v", a.DietaryRestrictions)
	}
	if a.Equal(b) {
		t.Error("copies should differ")
	}
	if !a.Equal(FilterState{DietaryRestrictions: []string{"gluten-free", "vegan"}}) {
		t.Error("equal sets compare unequal")
	}
}

func TestParseKindAcceptsTableNames(t *testing.T) {
	for in, want := range map[string]ItemKind{
		"recipe":           KindRecipe,
		"seasoning_blends": KindSeasoningBlend,
		"drinks":           KindDrink,
	} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("desserts"); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestShoppingItemValidate(t *testing.T) {
	ok := ShoppingItem{Name: "Milk", Category: "dairy", Quantity: 1, Unit: "liters"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid item rejected: %v", err)
	}
	bad := ok
	bad.Quantity = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero quantity accepted")
	}
}

func TestOrRecipe(t *testing.T) {
	for in, want := range map[ItemKind]ItemKind{
		"sauces": KindSauce,
		"side":   KindSide,
		"pizza":  KindRecipe,
		"":       KindRecipe,
	} {
		if got := in.OrRecipe(); got != want {
			t.Errorf("%q.OrRecipe() = %q, want %q", in, got, want)
		}
	}
}
