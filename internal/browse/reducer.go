// Package browse holds the item collection browsing session: a pure reducer
// over the browse state and a ViewModel that debounces, fetches and applies
// results in issue order.
package browse

import (
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

// Status is the presentation state of the collection.
type Status string

const (
	StatusLoading         Status = "loading"
	StatusReady           Status = "ready"
	StatusEmpty           Status = "empty"
	StatusError           Status = "error"
	StatusUnauthenticated Status = "unauthenticated"
)

// State is one browsing session.
type State struct {
	Kind       models.ItemKind       `json:"kind"`
	Search     string                `json:"search"`
	Filters    models.FilterState    `json:"filters"`
	Sort       models.SortKey        `json:"sort,omitempty"`
	ViewMode   models.ViewMode       `json:"view_mode"`
	Collection string                `json:"collection,omitempty"`
	Status     Status                `json:"status"`
	Items      []models.CulinaryItem `json:"items"`
	Err        string                `json:"error,omitempty"`
}

// Initial is the state before the first fetch settles.
func Initial(kind models.ItemKind) State {
	return State{
		Kind:     kind.OrRecipe(),
		ViewMode: models.ViewGrid,
		Status:   StatusLoading,
		Items:    []models.CulinaryItem{},
	}
}

// Params is the refetch key of s as query parameters.
func (s State) Params() query.Params {
	return query.Params{
		Kind:       s.Kind,
		Search:     s.Search,
		Filters:    s.Filters,
		Sort:       s.Sort,
		Collection: s.Collection,
	}
}

func sameKey(a, b State) bool {
	return a.Kind == b.Kind &&
		a.Search == b.Search &&
		a.Sort == b.Sort &&
		a.Collection == b.Collection &&
		a.Filters.Equal(b.Filters)
}

// Action is a browse state transition.
type Action interface {
	apply(State) State
}

type (
	SetItemKind   struct{ Kind models.ItemKind }
	SetSearchText struct{ Text string }
	SetDifficulty struct{ Difficulty string }
	SetTimeRange  struct{ Range models.TimeRange }
	// ToggleCategory adds (On) or removes a category filter.
	ToggleCategory struct {
		Category string
		On       bool
	}
	// ToggleDietaryRestriction adds (On) or removes a dietary filter.
	ToggleDietaryRestriction struct {
		Restriction string
		On          bool
	}
	ClearFilters  struct{}
	SetSortKey    struct{ Sort models.SortKey }
	SetViewMode   struct{ Mode models.ViewMode }
	SetCollection struct{ Collection string }

	// Loaded settles a fetch with its items.
	Loaded struct{ Items []models.CulinaryItem }
	// Failed settles a fetch with an error. Auth marks a rejected session.
	Failed struct {
		Err  error
		Auth bool
	}
)

func (a SetItemKind) apply(s State) State {
	if kind, err := models.ParseKind(string(a.Kind)); err == nil {
		s.Kind = kind
	}
	return s
}

func (a SetSearchText) apply(s State) State { s.Search = a.Text; return s }

func (a SetDifficulty) apply(s State) State { s.Filters.Difficulty = a.Difficulty; return s }

func (a SetTimeRange) apply(s State) State {
	if r, ok := query.ParseTimeRange(string(a.Range)); ok {
		s.Filters.TimeRange = r
	}
	return s
}

func (a ToggleCategory) apply(s State) State {
	s.Filters = s.Filters.WithCategory(a.Category, a.On)
	return s
}

func (a ToggleDietaryRestriction) apply(s State) State {
	s.Filters = s.Filters.WithDietaryRestriction(a.Restriction, a.On)
	return s
}

func (ClearFilters) apply(s State) State { s.Filters = models.FilterState{}; return s }

func (a SetSortKey) apply(s State) State { s.Sort = a.Sort; return s }

func (a SetViewMode) apply(s State) State {
	if a.Mode == models.ViewGrid || a.Mode == models.ViewList {
		s.ViewMode = a.Mode
	}
	return s
}

func (a SetCollection) apply(s State) State { s.Collection = a.Collection; return s }

func (a Loaded) apply(s State) State {
	s.Err = ""
	s.Items = a.Items
	if s.Items == nil {
		s.Items = []models.CulinaryItem{}
	}
	s.Status = StatusReady
	if len(s.Items) == 0 {
		s.Status = StatusEmpty
	}
	return s
}

func (a Failed) apply(s State) State {
	s.Status = StatusError
	if a.Auth {
		s.Status = StatusUnauthenticated
	}
	if a.Err != nil {
		s.Err = a.Err.Error()
	}
	return s
}

// Reduce applies a to s. The boolean reports whether the refetch key changed;
// when it did the returned state is loading. View mode and settle actions
// never request a fetch.
func Reduce(s State, a Action) (State, bool) {
	next := a.apply(s)
	if sameKey(s, next) {
		return next, false
	}
	next.Status = StatusLoading
	next.Err = ""
	return next, true
}
