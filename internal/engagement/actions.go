// Package engagement records bookmarks and likes.
package engagement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/store"
)

type stateKey struct {
	kind   models.EngagementKind
	itemID int64
	userID string
}

// Actions writes engagement edges and tracks the toggle state it has seen.
// The state is never read back from the store: a new Actions reports false
// for every item.
type Actions struct {
	st  store.Store
	now func() time.Time

	mu    sync.Mutex
	state map[stateKey]bool
}

// New creates engagement actions backed by st.
func New(st store.Store) *Actions {
	return &Actions{st: st, now: time.Now, state: make(map[stateKey]bool)}
}

// Toggle writes the edge for recipe itemID and flips the tracked state,
// returning the new value.
// Without a user it fails with apperr.ErrAuthRequired and writes nothing.
// Both directions upsert the same edge; un-toggling does not delete it.
func (a *Actions) Toggle(ctx context.Context, kind models.EngagementKind, itemID int64, userID string) (bool, error) {
	if userID == "" {
		return false, apperr.ErrAuthRequired
	}
	edge := models.EngagementEdge{UserID: userID, ItemID: itemID, Kind: kind, Timestamp: a.now().UTC()}
	table, rec, err := record(edge)
	if err != nil {
		return false, err
	}
	if _, err := a.st.Upsert(ctx, table, rec); err != nil {
		return false, fmt.Errorf("engagement: %s %d: %w", kind, itemID, err)
	}

	k := stateKey{kind: kind, itemID: itemID, userID: userID}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state[k] = !a.state[k]
	return a.state[k], nil
}

// State returns the tracked toggle state.
func (a *Actions) State(kind models.EngagementKind, itemID int64, userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state[stateKey{kind: kind, itemID: itemID, userID: userID}]
}

func record(e models.EngagementEdge) (string, models.RawRecord, error) {
	switch e.Kind {
	case models.Bookmark:
		return store.TableBookmarks, models.RawRecord{
			"user_id":   e.UserID,
			"recipe_id": e.ItemID,
		}, nil
	case models.Like:
		return store.TableRatings, models.RawRecord{
			"user_id":   e.UserID,
			"recipe_id": e.ItemID,
			"vote_type": "like",
			"vote_data": map[string]string{"timestamp": e.Timestamp.Format(time.RFC3339Nano)},
		}, nil
	}
	return "", nil, fmt.Errorf("%w: unknown engagement kind %q", apperr.ErrValidation, e.Kind)
}
