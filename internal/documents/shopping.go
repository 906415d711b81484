package documents

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/larder/internal/checksum"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
	"github.com/starford/larder/internal/store"
)

// Shopping item categories and units offered by the add-item form.
var (
	ItemCategories = []string{"produce", "dairy", "meat", "pantry", "frozen"}
	ItemUnits      = []string{"pieces", "grams", "kg", "ml", "liters"}
)

// ShoppingMutation changes a shopping list.
type ShoppingMutation = Mutation[models.ShoppingList]

// ToggleItemCompleted flips the completed flag of the item with ID.
type ToggleItemCompleted struct{ ID string }

func (m ToggleItemCompleted) Validate() error {
	if m.ID == "" {
		return validationError(errors.New("item id is required"))
	}
	return nil
}

func (m ToggleItemCompleted) Apply(l models.ShoppingList) models.ShoppingList {
	l.Items = slices.Clone(l.Items)
	for i := range l.Items {
		if l.Items[i].ID == m.ID {
			l.Items[i].Completed = !l.Items[i].Completed
		}
	}
	return l
}

// AddItem appends Item. An empty Item.ID is filled in by ShoppingLists.Mutate.
type AddItem struct{ Item models.ShoppingItem }

func (m AddItem) Validate() error {
	if err := m.Item.Validate(); err != nil {
		return validationError(err)
	}
	return nil
}

func (m AddItem) Apply(l models.ShoppingList) models.ShoppingList {
	l.Items = append(slices.Clone(l.Items), m.Item)
	return l
}

// RemoveCompletedItems drops every completed item.
type RemoveCompletedItems struct{}

func (RemoveCompletedItems) Validate() error { return nil }

func (RemoveCompletedItems) Apply(l models.ShoppingList) models.ShoppingList {
	kept := make([]models.ShoppingItem, 0, len(l.Items))
	for _, it := range l.Items {
		if !it.Completed {
			kept = append(kept, it)
		}
	}
	l.Items = kept
	return l
}

// ReplaceAllItems swaps the whole item list.
type ReplaceAllItems struct{ Items []models.ShoppingItem }

func (m ReplaceAllItems) Validate() error {
	errs := validation.Errors{}
	for i, it := range m.Items {
		if it.ID == "" {
			errs[strconv.Itoa(i)] = errors.New("id: cannot be blank")
			continue
		}
		if err := it.Validate(); err != nil {
			errs[strconv.Itoa(i)] = err
		}
	}
	if len(errs) > 0 {
		return validationError(errs)
	}
	return nil
}

func (m ReplaceAllItems) Apply(l models.ShoppingList) models.ShoppingList {
	l.Items = slices.Clone(m.Items)
	if l.Items == nil {
		l.Items = []models.ShoppingItem{}
	}
	return l
}

// ShoppingLists is the document store for shopping lists.
type ShoppingLists struct {
	docs *docStore[models.ShoppingList]
}

// NewShoppingLists creates the shopping list store.
func NewShoppingLists(st store.Store, opts ...Option) *ShoppingLists {
	o := defaults(opts)
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return &ShoppingLists{docs: &docStore[models.ShoppingList]{st: st, opts: o, c: codec[models.ShoppingList]{
		table: store.TableShoppingLists,
		active: func(d query.Descriptor) query.Descriptor {
			return d.Eq("status", models.StatusActive)
		},
		newDefault: func(userID string, _ time.Time) models.ShoppingList {
			return models.ShoppingList{UserID: userID, Status: models.StatusActive, Items: []models.ShoppingItem{}}
		},
		encode: func(l models.ShoppingList) models.RawRecord {
			rec := models.RawRecord{
				"user_id": l.UserID,
				"status":  l.Status,
				"items":   nonNilItems(l.Items),
			}
			if l.ID > 0 {
				rec["id"] = l.ID
			}
			return rec
		},
		ident:    func(l models.ShoppingList) (int64, string) { return l.ID, l.UserID },
		revision: ShoppingRevision,
		finish: func(l *models.ShoppingList, rev string) {
			l.Items = nonNilItems(l.Items)
			l.Revision = rev
		},
	}}}
}

// FetchOrCreate returns the user's newest active list, creating an empty one if none exists.
// Two concurrent first loads may both create a list.
func (s *ShoppingLists) FetchOrCreate(ctx context.Context, userID string) (models.ShoppingList, error) {
	return s.docs.fetchOrCreate(ctx, userID)
}

// Persist writes l whole. See Mutate for ifMatch.
func (s *ShoppingLists) Persist(ctx context.Context, l models.ShoppingList, ifMatch string) (models.ShoppingList, error) {
	return s.docs.persist(ctx, l, ifMatch)
}

// Mutate applies m to the user's list and persists it. A non-empty ifMatch must
// equal the current revision or the call fails with apperr.ErrConflict.
func (s *ShoppingLists) Mutate(ctx context.Context, userID string, m ShoppingMutation, ifMatch string) (models.ShoppingList, error) {
	if add, ok := m.(AddItem); ok && add.Item.ID == "" {
		add.Item.ID = s.docs.opts.newID()
		m = add
	}
	return s.docs.mutate(ctx, userID, m, ifMatch)
}

// Generate replaces the list with the demo item set.
func (s *ShoppingLists) Generate(ctx context.Context, userID, ifMatch string) (models.ShoppingList, error) {
	items := make([]models.ShoppingItem, len(demoItems))
	for i, it := range demoItems {
		it.ID = s.docs.opts.newID()
		items[i] = it
	}
	return s.Mutate(ctx, userID, ReplaceAllItems{Items: items}, ifMatch)
}

// demoItems stands in for a list derived from the meal plan.
var demoItems = []models.ShoppingItem{
	{Name: "Tomatoes", Category: "produce", Quantity: 6, Unit: "pieces"},
	{Name: "Spinach", Category: "produce", Quantity: 200, Unit: "grams"},
	{Name: "Milk", Category: "dairy", Quantity: 1, Unit: "liters"},
	{Name: "Chicken breast", Category: "meat", Quantity: 500, Unit: "grams"},
	{Name: "Rice", Category: "pantry", Quantity: 1, Unit: "kg"},
	{Name: "Frozen peas", Category: "frozen", Quantity: 400, Unit: "grams"},
}

// ShoppingRevision is the content revision of a list's items.
func ShoppingRevision(l models.ShoppingList) (string, error) {
	return checksum.JSON(nonNilItems(l.Items))
}

func nonNilItems(items []models.ShoppingItem) []models.ShoppingItem {
	if items == nil {
		return []models.ShoppingItem{}
	}
	return items
}
