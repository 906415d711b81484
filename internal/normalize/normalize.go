// Package normalize maps raw catalog rows of every kind onto models.CulinaryItem.
package normalize

import (
	"fmt"
	"sort"

	"github.com/starford/larder/internal/models"
)

// Defaults applied when a row lacks the field.
const (
	FallbackImage     = "https://images.unsplash.com/photo-1546069901-ba9599a7e63c"
	DefaultDifficulty = "medium"
	UntitledTitle     = "Untitled"
	NoTime            = "N/A"
)

// timeKeys is the resolution order for the display time.
var timeKeys = []string{"total_time", "preparation_time", "cooking_time", "prep_time"}

type normalizer func(raw models.RawRecord) models.CulinaryItem

var normalizers = map[models.ItemKind]normalizer{
	models.KindRecipe:         tagged(models.KindRecipe),
	models.KindSide:           tagged(models.KindSide),
	models.KindDrink:          tagged(models.KindDrink),
	models.KindSauce:          tagged(models.KindSauce),
	models.KindSeasoningBlend: tagged(models.KindSeasoningBlend),
}

// Normalize converts one raw row into a CulinaryItem tagged with kind.
// It never fails: absent or malformed fields fall back to their defaults.
func Normalize(raw models.RawRecord, kind models.ItemKind) models.CulinaryItem {
	if fn, ok := normalizers[kind]; ok {
		return fn(raw)
	}
	item := base(raw)
	item.Kind = kind
	return item
}

// NormalizeAll converts a fetch response.
func NormalizeAll(rows []models.RawRecord, kind models.ItemKind) []models.CulinaryItem {
	out := make([]models.CulinaryItem, 0, len(rows))
	for _, raw := range rows {
		out = append(out, Normalize(raw, kind))
	}
	return out
}

// tagged builds the normalizer for one kind. Recipes carry "title" and the other
// tables carry "name"; resolution order is shared so either column works.
func tagged(kind models.ItemKind) normalizer {
	return func(raw models.RawRecord) models.CulinaryItem {
		item := base(raw)
		item.Kind = kind
		return item
	}
}

func base(raw models.RawRecord) models.CulinaryItem {
	description, _ := raw.String("description")
	item := models.CulinaryItem{
		ID:          raw.ID(),
		Title:       title(raw),
		Description: description,
		ImageURL:    FallbackImage,
		Time:        NoTime,
		Difficulty:  DefaultDifficulty,
		Categories:  categories(raw["categories"]),
	}
	if image, ok := raw.String("image"); ok {
		item.ImageURL = image
	}
	if difficulty, ok := raw.String("difficulty"); ok {
		item.Difficulty = difficulty
	}
	for _, key := range timeKeys {
		if minutes, ok := raw.Int(key); ok {
			item.TimeMinutes = &minutes
			item.Time = fmt.Sprintf("%d mins", minutes)
			break
		}
	}
	if raw.Has("servings") {
		if servings, ok := raw.Int("servings"); ok {
			item.Servings = &servings
		}
	}
	return item
}

func title(raw models.RawRecord) string {
	if t, ok := raw.String("title"); ok {
		return t
	}
	if n, ok := raw.String("name"); ok {
		return n
	}
	return UntitledTitle
}

// categories accepts a JSON array, or an object whose values are taken in key order.
func categories(v any) []string {
	out := []string{}
	switch c := v.(type) {
	case []string:
		out = append(out, c...)
	case []any:
		for _, e := range c {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := c[k].(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
