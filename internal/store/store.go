// Package store is the remote item store: the durable owner of catalog rows,
// meal plans, shopping lists and engagement edges.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

// Store is the operation set the core needs from a backend.
type Store interface {
	// Select returns the rows matching d, in d's order.
	Select(ctx context.Context, d query.Descriptor) ([]models.RawRecord, error)
	// Upsert inserts rec or replaces the row with the same key.
	Upsert(ctx context.Context, table string, rec models.RawRecord) (models.RawRecord, error)
	// Insert adds a new row and returns it with its assigned id.
	Insert(ctx context.Context, table string, rec models.RawRecord) (models.RawRecord, error)
	Close() error
}

// Table names beyond the five catalog tables.
const (
	TableMealPlans     = "meal_plans"
	TableShoppingLists = "shopping_lists"
	TableBookmarks     = "user_bookmarks"
	TableRatings       = "user_ratings"
	TableIngredients   = "ingredients"
	TableInstructions  = "instructions"
)

// tableKeys lists each table's upsert key. Single "id" keys use the row id.
var tableKeys = map[string][]string{
	"recipes":          {"id"},
	"sides":            {"id"},
	"drinks":           {"id"},
	"sauces":           {"id"},
	"seasoning_blends": {"id"},
	TableMealPlans:     {"id"},
	TableShoppingLists: {"id"},
	TableBookmarks:     {"user_id", "recipe_id"},
	TableRatings:       {"user_id", "recipe_id", "vote_type"},
	TableIngredients:   {"id"},
	TableInstructions:  {"id"},
}

// Tables returns every known table name.
func Tables() []string {
	out := make([]string, 0, len(tableKeys))
	for t := range tableKeys {
		out = append(out, t)
	}
	return out
}

func keysFor(table string) ([]string, error) {
	keys, ok := tableKeys[table]
	if !ok {
		return nil, fmt.Errorf("store: unknown table %q", table)
	}
	return keys, nil
}

// compositeKey reports whether the table is keyed by record fields rather than id.
func compositeKey(keys []string) bool {
	return len(keys) > 1 || (len(keys) == 1 && keys[0] != "id")
}

// naturalKey joins the key field values of rec.
func naturalKey(keys []string, rec models.RawRecord) (string, error) {
	parts := make([]string, len(keys))
	for i, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			return "", fmt.Errorf("store: missing key field %q", k)
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\x1f"), nil
}

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkField(field string) error {
	if !fieldRe.MatchString(field) {
		return fmt.Errorf("store: invalid field name %q", field)
	}
	return nil
}
