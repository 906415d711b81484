package query

import (
	"strings"

	"github.com/starford/larder/internal/models"
)

// Params is the browse state that drives a catalog query.
type Params struct {
	Kind       models.ItemKind
	Search     string
	Filters    models.FilterState
	Sort       models.SortKey
	Collection string
}

// Column names used by the catalog tables.
const (
	fieldTitle      = "title"
	fieldName       = "name"
	fieldCategories = "categories"
	fieldDietary    = "dietary_restrictions"
	fieldDifficulty = "difficulty"
	fieldTotalTime  = "total_time"
	fieldCreatedAt  = "created_at"
	fieldRating     = "rating"
)

var sortOrders = map[models.SortKey]Ordering{
	models.SortNewest:  {Field: fieldCreatedAt, Ascending: false},
	models.SortOldest:  {Field: fieldCreatedAt, Ascending: true},
	models.SortPopular: {Field: fieldTotalTime, Ascending: false},
	models.SortRating:  {Field: fieldRating, Ascending: false},
}

// Build translates browse state into a descriptor. It never fails: anything it
// cannot express is dropped rather than reported.
//
// Recipe-only clauses (collection, difficulty, time, categories, dietary, sort)
// are skipped for the other kinds because their tables lack those columns. An
// active collection is therefore ignored outside the recipes tab.
func Build(p Params) Descriptor {
	kind := p.Kind.OrRecipe()
	d := From(kind.Table())
	isRecipe := kind == models.KindRecipe

	if p.Search != "" {
		field := fieldName
		if isRecipe {
			field = fieldTitle
		}
		d = d.Where(field, OpILike, "%"+EscapeLike(p.Search)+"%")
	}

	if !isRecipe {
		return d
	}

	if p.Collection != "" {
		d = d.Where(fieldCategories, OpContains, []string{p.Collection})
	}
	if p.Filters.Difficulty != "" {
		d = d.Eq(fieldDifficulty, p.Filters.Difficulty)
	}
	lower, upper := TimeRangeValues(string(p.Filters.TimeRange))
	if lower != nil {
		d = d.Where(fieldTotalTime, OpGte, *lower)
	}
	if upper != nil {
		d = d.Where(fieldTotalTime, OpLte, *upper)
	}
	if len(p.Filters.Categories) > 0 {
		d = d.Where(fieldCategories, OpContains, append([]string(nil), p.Filters.Categories...))
	}
	if len(p.Filters.DietaryRestrictions) > 0 {
		d = d.Where(fieldDietary, OpContains, append([]string(nil), p.Filters.DietaryRestrictions...))
	}

	order, ok := sortOrders[p.Sort]
	if !ok {
		order = sortOrders[models.SortNewest]
	}
	return d.OrderBy(order.Field, order.Ascending)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike backslash-escapes the LIKE metacharacters in s so it matches
// literally inside an OpILike pattern. Backends treat \ as the escape.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
