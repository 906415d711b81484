package models

import "slices"

// TimeRange buckets recipes by total cooking time.
type TimeRange string

const (
	TimeAny     TimeRange = ""
	TimeUnder30 TimeRange = "under30"
	Time30To60  TimeRange = "30to60"
	TimeOver60  TimeRange = "over60"
)

// SortKey selects the catalog ordering.
type SortKey string

const (
	SortDefault SortKey = ""
	SortNewest  SortKey = "newest"
	SortOldest  SortKey = "oldest"
	SortPopular SortKey = "popular"
	SortRating  SortKey = "rating"
)

// ViewMode is the grid/list presentation toggle.
type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

// FilterState holds the recipe-only filters of the browsing session.
// Categories and DietaryRestrictions are sets kept sorted and without duplicates.
type FilterState struct {
	Difficulty          string    `json:"difficulty,omitempty"`
	TimeRange           TimeRange `json:"time_range,omitempty"`
	Categories          []string  `json:"categories,omitempty"`
	DietaryRestrictions []string  `json:"dietary_restrictions,omitempty"`
}

// IsZero reports whether no filter is active.
func (f FilterState) IsZero() bool {
	return f.Difficulty == "" && f.TimeRange == TimeAny && len(f.Categories) == 0 && len(f.DietaryRestrictions) == 0
}

// Equal compares two filter states as values.
func (f FilterState) Equal(o FilterState) bool {
	return f.Difficulty == o.Difficulty &&
		f.TimeRange == o.TimeRange &&
		slices.Equal(f.Categories, o.Categories) &&
		slices.Equal(f.DietaryRestrictions, o.DietaryRestrictions)
}

// WithCategory returns a copy with category added (on=true) or removed.
func (f FilterState) WithCategory(category string, on bool) FilterState {
	f.Categories = toggleSet(f.Categories, category, on)
	return f
}

// WithDietaryRestriction returns a copy with restriction added (on=true) or removed.
func (f FilterState) WithDietaryRestriction(restriction string, on bool) FilterState {
	f.DietaryRestrictions = toggleSet(f.DietaryRestrictions, restriction, on)
	return f
}

// NewSet sorts and de-duplicates values into a filter set.
func NewSet(values ...string) []string {
	var out []string
	for _, v := range values {
		out = toggleSet(out, v, true)
	}
	return out
}

func toggleSet(set []string, v string, on bool) []string {
	out := slices.Clone(set)
	i, found := slices.BinarySearch(out, v)
	switch {
	case on && !found && v != "":
		out = slices.Insert(out, i, v)
	case !on && found:
		out = slices.Delete(out, i, i+1)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
