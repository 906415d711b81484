// Package models defines the domain types for larder.
package models

import "fmt"

// ItemKind tags which catalog table an item came from.
type ItemKind string

const (
	KindRecipe         ItemKind = "recipe"
	KindSide           ItemKind = "side"
	KindDrink          ItemKind = "drink"
	KindSauce          ItemKind = "sauce"
	KindSeasoningBlend ItemKind = "seasoning_blend"
)

// Kinds lists every catalog kind in tab order.
var Kinds = []ItemKind{KindRecipe, KindSide, KindDrink, KindSauce, KindSeasoningBlend}

var kindTables = map[ItemKind]string{
	KindRecipe:         "recipes",
	KindSide:           "sides",
	KindDrink:          "drinks",
	KindSauce:          "sauces",
	KindSeasoningBlend: "seasoning_blends",
}

// Table returns the store table backing the kind.
func (k ItemKind) Table() string {
	return kindTables[k]
}

// Valid reports whether k is one of the known kinds.
func (k ItemKind) Valid() bool {
	_, ok := kindTables[k]
	return ok
}

// ParseKind accepts either a kind ("drink") or its table name ("drinks").
func ParseKind(s string) (ItemKind, error) {
	if k := ItemKind(s); k.Valid() {
		return k, nil
	}
	for k, table := range kindTables {
		if table == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown item kind %q", s)
}

// OrRecipe resolves k, given as a kind or a table name, to a known kind.
// Anything unrecognized becomes KindRecipe.
func (k ItemKind) OrRecipe() ItemKind {
	if parsed, err := ParseKind(string(k)); err == nil {
		return parsed
	}
	return KindRecipe
}

// CulinaryItem is the normalized display record shared by every catalog kind.
type CulinaryItem struct {
	ID          int64    `json:"id"`
	Kind        ItemKind `json:"kind"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url"`
	TimeMinutes *int     `json:"time_minutes,omitempty"`
	Time        string   `json:"time"`
	Difficulty  string   `json:"difficulty"`
	Categories  []string `json:"categories"`
	Servings    *int     `json:"servings,omitempty"`
}

// RecipeDetail is a recipe joined with its ingredient and instruction rows.
type RecipeDetail struct {
	CulinaryItem
	Ingredients  []RawRecord `json:"ingredients"`
	Instructions []RawRecord `json:"instructions"`
	Raw          RawRecord   `json:"raw"`
}
