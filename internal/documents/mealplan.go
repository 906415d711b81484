package documents

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"time"

	"github.com/starford/larder/internal/checksum"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/store"
)

// DateLayout formats schedule dates.
const DateLayout = "2006-01-02"

// MealPlanMutation changes a meal plan.
type MealPlanMutation = Mutation[models.MealPlan]

// SetSlot plans RecipeID for one (day, meal).
type SetSlot struct {
	Day      models.DayOfWeek
	Meal     models.MealType
	RecipeID int64
}

func (m SetSlot) Validate() error {
	if err := validSlot(m.Day, m.Meal); err != nil {
		return err
	}
	if m.RecipeID <= 0 {
		return validationError(errors.New("recipe_id must be positive"))
	}
	return nil
}

func (m SetSlot) Apply(p models.MealPlan) models.MealPlan {
	p.Recipes = cloneSlots(p.Recipes)
	day := maps.Clone(p.Recipes[m.Day])
	if day == nil {
		day = map[models.MealType]int64{}
	}
	day[m.Meal] = m.RecipeID
	p.Recipes[m.Day] = day
	return p
}

// ClearSlot unplans one (day, meal).
type ClearSlot struct {
	Day  models.DayOfWeek
	Meal models.MealType
}

func (m ClearSlot) Validate() error { return validSlot(m.Day, m.Meal) }

func (m ClearSlot) Apply(p models.MealPlan) models.MealPlan {
	p.Recipes = cloneSlots(p.Recipes)
	day := maps.Clone(p.Recipes[m.Day])
	delete(day, m.Meal)
	if len(day) == 0 {
		delete(p.Recipes, m.Day)
	} else {
		p.Recipes[m.Day] = day
	}
	return p
}

// ReplaceAllSlots swaps the whole day/meal mapping.
type ReplaceAllSlots struct{ Slots models.Slots }

func (m ReplaceAllSlots) Validate() error {
	for day, meals := range m.Slots {
		for meal, id := range meals {
			if err := (SetSlot{Day: day, Meal: meal, RecipeID: id}).Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m ReplaceAllSlots) Apply(p models.MealPlan) models.MealPlan {
	p.Recipes = cloneSlots(m.Slots)
	return p
}

func validSlot(day models.DayOfWeek, meal models.MealType) error {
	if !day.Valid() {
		return validationError(fmt.Errorf("unknown day %q", day))
	}
	if !meal.Valid() {
		return validationError(fmt.Errorf("unknown meal %q", meal))
	}
	return nil
}

func cloneSlots(s models.Slots) models.Slots {
	out := make(models.Slots, len(s))
	for day, meals := range s {
		out[day] = maps.Clone(meals)
	}
	return out
}

// MealPlans is the document store for meal plans.
type MealPlans struct {
	docs *docStore[models.MealPlan]
}

// NewMealPlans creates the meal plan store.
func NewMealPlans(st store.Store, opts ...Option) *MealPlans {
	o := defaults(opts)
	if o.intn == nil {
		o.intn = rand.IntN
	}
	return &MealPlans{docs: &docStore[models.MealPlan]{st: st, opts: o, c: codec[models.MealPlan]{
		table:      store.TableMealPlans,
		newDefault: defaultMealPlan,
		encode: func(p models.MealPlan) models.RawRecord {
			rec := models.RawRecord{
				"user_id":  p.UserID,
				"schedule": p.Schedule,
				"recipes":  nonNilSlots(p.Recipes),
			}
			if p.ID > 0 {
				rec["id"] = p.ID
			}
			return rec
		},
		ident:    func(p models.MealPlan) (int64, string) { return p.ID, p.UserID },
		revision: MealPlanRevision,
		finish: func(p *models.MealPlan, rev string) {
			p.Recipes = nonNilSlots(p.Recipes)
			p.Revision = rev
		},
	}}}
}

func defaultMealPlan(userID string, now time.Time) models.MealPlan {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return models.MealPlan{
		UserID: userID,
		Schedule: models.Schedule{
			StartDate: start.Format(DateLayout),
			EndDate:   start.AddDate(0, 0, 6).Format(DateLayout),
		},
		Recipes: models.Slots{},
	}
}

// FetchOrCreate returns the user's newest plan, creating an empty week starting today if none exists.
func (s *MealPlans) FetchOrCreate(ctx context.Context, userID string) (models.MealPlan, error) {
	return s.docs.fetchOrCreate(ctx, userID)
}

// Persist writes p whole.
func (s *MealPlans) Persist(ctx context.Context, p models.MealPlan, ifMatch string) (models.MealPlan, error) {
	return s.docs.persist(ctx, p, ifMatch)
}

// Mutate applies m to the user's plan and persists it.
func (s *MealPlans) Mutate(ctx context.Context, userID string, m MealPlanMutation, ifMatch string) (models.MealPlan, error) {
	return s.docs.mutate(ctx, userID, m, ifMatch)
}

// Generate fills every (day, meal) with a recipe sampled from recipeIDs.
func (s *MealPlans) Generate(ctx context.Context, userID string, recipeIDs []int64, ifMatch string) (models.MealPlan, error) {
	if len(recipeIDs) == 0 {
		return models.MealPlan{}, validationError(errors.New("no recipes to plan"))
	}
	slots := make(models.Slots, len(models.Week))
	for _, day := range models.Week {
		meals := make(map[models.MealType]int64, len(models.Meals))
		for _, meal := range models.Meals {
			meals[meal] = recipeIDs[s.docs.opts.intn(len(recipeIDs))]
		}
		slots[day] = meals
	}
	return s.Mutate(ctx, userID, ReplaceAllSlots{Slots: slots}, ifMatch)
}

// MealPlanRevision is the content revision of a plan's slots.
func MealPlanRevision(p models.MealPlan) (string, error) {
	return checksum.JSON(nonNilSlots(p.Recipes))
}

func nonNilSlots(s models.Slots) models.Slots {
	if s == nil {
		return models.Slots{}
	}
	return s
}
