package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

func testDB(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "larder-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := OpenSQLite(f.Name())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *SQLite, table string, recs ...models.RawRecord) []models.RawRecord {
	t.Helper()
	out := make([]models.RawRecord, 0, len(recs))
	for _, r := range recs {
		got, err := db.Insert(context.Background(), table, r)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		out = append(out, got)
	}
	return out
}

func titles(recs []models.RawRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i], _ = r.String("title")
	}
	return out
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range Tables() {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestInsertAssignsID(t *testing.T) {
	db := testDB(t)
	got := seed(t, db, "recipes", models.RawRecord{"title": "Soup"})
	if got[0].ID() <= 0 {
		t.Fatalf("id = %v, want positive", got[0]["id"])
	}
	if _, ok := got[0].String("created_at"); !ok {
		t.Error("created_at not stamped")
	}
}

func TestSelectFilters(t *testing.T) {
	db := testDB(t)
	seed(t, db, "recipes",
		models.RawRecord{"title": "Tomato Soup", "difficulty": "easy", "total_time": 20, "categories": []string{"Lunch"}},
		models.RawRecord{"title": "Beef Stew", "difficulty": "hard", "total_time": 90, "categories": []string{"Dinner"}},
		models.RawRecord{"title": "Onion soup", "difficulty": "medium", "total_time": 45, "categories": []string{"Dinner", "Lunch"}},
	)
	ctx := context.Background()

	tests := []struct {
		name string
		d    query.Descriptor
		want []string
	}{
		{"ilike", query.From("recipes").Where("title", query.OpILike, "%SOUP%"), []string{"Tomato Soup", "Onion soup"}},
		{"eq", query.From("recipes").Eq("difficulty", "hard"), []string{"Beef Stew"}},
		{"range", query.From("recipes").Where("total_time", query.OpGte, 30).Where("total_time", query.OpLte, 60), []string{"Onion soup"}},
		{"contains", query.From("recipes").Where("categories", query.OpContains, []string{"Dinner", "Lunch"}), []string{"Onion soup"}},
		{"order", query.From("recipes").OrderBy("total_time", true), []string{"Tomato Soup", "Onion soup", "Beef Stew"}},
		{"limit", query.From("recipes").OrderBy("total_time", false).WithLimit(1), []string{"Beef Stew"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Select(ctx, tt.d)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			gt := titles(got)
			if len(gt) != len(tt.want) {
				t.Fatalf("got %v, want %v", gt, tt.want)
			}
			for i := range gt {
				if gt[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", gt, tt.want)
				}
			}
		})
	}
}

func TestSelectILikeEscapes(t *testing.T) {
	db := testDB(t)
	seed(t, db, "recipes",
		models.RawRecord{"title": "100% Rye"},
		models.RawRecord{"title": "Rye Loaf"},
		models.RawRecord{"title": "snake_case stew"},
		models.RawRecord{"title": "snakeXcase stew"},
	)
	ctx := context.Background()

	for text, want := range map[string]string{"%": "100% Rye", "e_c": "snake_case stew"} {
		got, err := db.Select(ctx, query.From("recipes").Where("title", query.OpILike, "%"+query.EscapeLike(text)+"%"))
		if err != nil {
			t.Fatalf("Select %q: %v", text, err)
		}
		if gt := titles(got); len(gt) != 1 || gt[0] != want {
			t.Errorf("search %q = %v, want [%s]", text, gt, want)
		}
	}
}

func TestSelectNewestFirstTieBreak(t *testing.T) {
	db := testDB(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	db.now = func() time.Time { return fixed }
	seed(t, db, "recipes", models.RawRecord{"title": "first"}, models.RawRecord{"title": "second"})

	got, err := db.Select(context.Background(), query.From("recipes").OrderBy("created_at", false))
	if err != nil {
		t.Fatal(err)
	}
	if titles(got)[0] != "second" {
		t.Errorf("order = %v, want second first", titles(got))
	}
}

func TestSelectByID(t *testing.T) {
	db := testDB(t)
	recs := seed(t, db, "drinks", models.RawRecord{"name": "Lemonade"}, models.RawRecord{"name": "Tea"})

	got, err := db.Select(context.Background(), query.From("drinks").Eq("id", recs[1].ID()))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0]["name"] != "Tea" {
		t.Fatalf("got %v", got)
	}
}

func TestUpsertCompositeKey(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	edge := models.RawRecord{"user_id": "u1", "recipe_id": int64(7)}

	first, err := db.Upsert(ctx, TableBookmarks, edge)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second, err := db.Upsert(ctx, TableBookmarks, edge)
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if first.ID() != second.ID() {
		t.Errorf("ids differ: %d vs %d", first.ID(), second.ID())
	}
	rows, _ := db.Select(ctx, query.From(TableBookmarks).Eq("user_id", "u1"))
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}

func TestUpsertKeepsCreatedAt(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	rec := seed(t, db, TableShoppingLists, models.RawRecord{"user_id": "u1", "items": []any{}})[0]
	created, _ := rec.String("created_at")

	rec["items"] = []any{map[string]any{"name": "milk"}}
	delete(rec, "created_at")
	got, err := db.Upsert(ctx, TableShoppingLists, rec)
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := got.String("created_at"); c != created {
		t.Errorf("created_at = %q, want %q", c, created)
	}
	if _, ok := got.String("updated_at"); !ok {
		t.Error("updated_at not stamped")
	}
}

func TestInsertDuplicateKey(t *testing.T) {
	db := testDB(t)
	edge := models.RawRecord{"user_id": "u1", "recipe_id": 1, "vote_type": "like"}
	seed(t, db, TableRatings, edge)
	_, err := db.Insert(context.Background(), TableRatings, edge)
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestRejectsUnknownTableAndField(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, err := db.Select(ctx, query.From("notes")); err == nil {
		t.Error("expected unknown table error")
	}
	if _, err := db.Select(ctx, query.From("recipes").Eq("title'--", "x")); err == nil {
		t.Error("expected invalid field error")
	}
}
