package engagement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
	"github.com/starford/larder/internal/store"
	"github.com/starford/larder/internal/testutil"
)

type recordingStore struct {
	store.Store
	upserts int
	err     error
}

func (r *recordingStore) Upsert(ctx context.Context, table string, rec models.RawRecord) (models.RawRecord, error) {
	r.upserts++
	if r.err != nil {
		return nil, r.err
	}
	return r.Store.Upsert(ctx, table, rec)
}

func TestToggleWithoutUserWritesNothing(t *testing.T) {
	rs := &recordingStore{Store: testutil.TestStore(t)}
	a := New(rs)
	on, err := a.Toggle(context.Background(), models.Bookmark, 5, "")
	if !errors.Is(err, apperr.ErrAuthRequired) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
	if on || rs.upserts != 0 {
		t.Errorf("on = %v upserts = %d", on, rs.upserts)
	}
}

func TestToggleBookmarkFlips(t *testing.T) {
	st := testutil.TestStore(t)
	a := New(st)
	ctx := context.Background()

	if a.State(models.Bookmark, 5, "u1") {
		t.Fatal("fresh state should be false")
	}
	on, err := a.Toggle(ctx, models.Bookmark, 5, "u1")
	if err != nil || !on {
		t.Fatalf("first toggle = %v, %v", on, err)
	}
	off, err := a.Toggle(ctx, models.Bookmark, 5, "u1")
	if err != nil || off {
		t.Fatalf("second toggle = %v, %v", off, err)
	}

	rows, err := st.Select(ctx, query.From(store.TableBookmarks).Eq("user_id", "u1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("bookmark rows = %d, want 1", len(rows))
	}
	if id, _ := rows[0].Int64("recipe_id"); id != 5 {
		t.Errorf("recipe_id = %v", rows[0]["recipe_id"])
	}
}

func TestToggleLikeWritesRating(t *testing.T) {
	st := testutil.TestStore(t)
	a := New(st)
	a.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	if _, err := a.Toggle(context.Background(), models.Like, 9, "u2"); err != nil {
		t.Fatal(err)
	}
	rows, _ := st.Select(context.Background(), query.From(store.TableRatings).Eq("vote_type", "like"))
	if len(rows) != 1 {
		t.Fatalf("rating rows = %d", len(rows))
	}
	data, _ := rows[0]["vote_data"].(map[string]any)
	if data["timestamp"] != "2026-05-01T12:00:00Z" {
		t.Errorf("vote_data = %v", rows[0]["vote_data"])
	}
	if a.State(models.Bookmark, 9, "u2") {
		t.Error("like leaked into bookmark state")
	}
}

func TestToggleFailureKeepsState(t *testing.T) {
	rs := &recordingStore{Store: testutil.TestStore(t), err: errors.New("offline")}
	a := New(rs)
	if _, err := a.Toggle(context.Background(), models.Like, 1, "u1"); err == nil {
		t.Fatal("expected error")
	}
	if a.State(models.Like, 1, "u1") {
		t.Error("state flipped despite failed write")
	}
}

func TestToggleUnknownKind(t *testing.T) {
	_, err := New(testutil.TestStore(t)).Toggle(context.Background(), "share", 1, "u1")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}
