// Package documents manages the per-user meal plan and shopping list: one
// JSON document per user, fetched or created on first use, changed by pure
// mutations and written back whole.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
	"github.com/starford/larder/internal/store"
)

// Mutation is a pure transform of a document of type D.
type Mutation[D any] interface {
	// Validate rejects malformed input before any store call.
	Validate() error
	// Apply returns the changed document; its input is left untouched.
	Apply(D) D
}

// Notifier is told about every persisted document.
type Notifier func(table, userID string, id int64)

// Option configures ShoppingLists and MealPlans.
type Option func(*options)

type options struct {
	now    func() time.Time
	notify Notifier
	newID  func() string
	intn   func(n int) int
}

// WithClock overrides time.Now for default schedules.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithNotifier registers a callback run after each successful persist.
func WithNotifier(fn Notifier) Option {
	return func(o *options) { o.notify = fn }
}

// WithIDGenerator overrides the shopping item id source.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithRandom overrides the slot sampler; fn(n) must return a value in [0, n).
func WithRandom(fn func(n int) int) Option {
	return func(o *options) { o.intn = fn }
}

// codec describes how one document type maps onto its table.
type codec[D any] struct {
	table string
	// active narrows the newest-document lookup beyond user_id.
	active     func(query.Descriptor) query.Descriptor
	newDefault func(userID string, now time.Time) D
	encode     func(D) models.RawRecord
	ident      func(D) (id int64, userID string)
	revision   func(D) (string, error)
	finish     func(*D, string)
}

type docStore[D any] struct {
	st   store.Store
	c    codec[D]
	opts options
}

func (s *docStore[D]) fetch(ctx context.Context, userID string) (D, bool, error) {
	var zero D
	d := query.From(s.c.table).Eq("user_id", userID)
	if s.c.active != nil {
		d = s.c.active(d)
	}
	rows, err := s.st.Select(ctx, d.OrderBy("created_at", false).WithLimit(1))
	if err != nil {
		return zero, false, fmt.Errorf("documents: select %s: %w", s.c.table, err)
	}
	if len(rows) == 0 {
		return zero, false, nil
	}
	doc, err := s.decode(rows[0])
	return doc, err == nil, err
}

func (s *docStore[D]) fetchOrCreate(ctx context.Context, userID string) (D, error) {
	var zero D
	if userID == "" {
		return zero, apperr.ErrAuthRequired
	}
	doc, ok, err := s.fetch(ctx, userID)
	if err != nil || ok {
		return doc, err
	}
	rec, err := s.st.Insert(ctx, s.c.table, s.c.encode(s.c.newDefault(userID, s.opts.now())))
	if err != nil {
		return zero, fmt.Errorf("documents: create %s: %w", s.c.table, err)
	}
	return s.decode(rec)
}

// persist upserts doc whole. A non-empty ifMatch must equal the stored
// document's revision. The check and the write are separate store calls.
func (s *docStore[D]) persist(ctx context.Context, doc D, ifMatch string) (D, error) {
	var zero D
	id, userID := s.c.ident(doc)
	if userID == "" {
		return zero, apperr.ErrAuthRequired
	}
	if ifMatch != "" {
		if id == 0 {
			return zero, apperr.ErrNotFound
		}
		rows, err := s.st.Select(ctx, query.From(s.c.table).Eq("id", id).Eq("user_id", userID).WithLimit(1))
		if err != nil {
			return zero, fmt.Errorf("documents: select %s/%d: %w", s.c.table, id, err)
		}
		if len(rows) == 0 {
			return zero, apperr.ErrNotFound
		}
		current, err := s.decode(rows[0])
		if err != nil {
			return zero, err
		}
		rev, err := s.c.revision(current)
		if err != nil {
			return zero, err
		}
		if rev != ifMatch {
			return zero, apperr.ErrConflict
		}
	}

	rec, err := s.st.Upsert(ctx, s.c.table, s.c.encode(doc))
	if err != nil {
		return zero, fmt.Errorf("documents: persist %s: %w", s.c.table, err)
	}
	saved, err := s.decode(rec)
	if err != nil {
		return zero, err
	}
	if s.opts.notify != nil {
		savedID, _ := s.c.ident(saved)
		s.opts.notify(s.c.table, userID, savedID)
	}
	return saved, nil
}

// mutate validates m, loads the user's document, applies m and persists the result.
// A failed persist leaves nothing to roll back: the caller still holds its own copy.
func (s *docStore[D]) mutate(ctx context.Context, userID string, m Mutation[D], ifMatch string) (D, error) {
	var zero D
	if err := m.Validate(); err != nil {
		return zero, err
	}
	doc, err := s.fetchOrCreate(ctx, userID)
	if err != nil {
		return zero, err
	}
	if ifMatch != "" {
		rev, err := s.c.revision(doc)
		if err != nil {
			return zero, err
		}
		if rev != ifMatch {
			return zero, apperr.ErrConflict
		}
	}
	return s.persist(ctx, m.Apply(doc), "")
}

func (s *docStore[D]) decode(rec models.RawRecord) (D, error) {
	var doc D
	data, err := json.Marshal(rec)
	if err != nil {
		return doc, fmt.Errorf("documents: encode %s row: %w", s.c.table, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("documents: decode %s row: %w", s.c.table, err)
	}
	rev, err := s.c.revision(doc)
	if err != nil {
		return doc, err
	}
	s.c.finish(&doc, rev)
	return doc, nil
}

func validationError(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
}

func defaults(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
