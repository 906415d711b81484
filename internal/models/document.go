package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Document statuses.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// ShoppingItem is one line of a shopping list.
type ShoppingItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
	Unit      string `json:"unit"`
	Completed bool   `json:"completed"`
}

// Validate checks the fields the add-item form requires.
func (i ShoppingItem) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Name, validation.Required),
		validation.Field(&i.Category, validation.Required),
		validation.Field(&i.Unit, validation.Required),
		validation.Field(&i.Quantity, validation.Required, validation.Min(1)),
	)
}

// ShoppingList is the per-user shopping list document. Items are replaced
// wholesale on every write.
type ShoppingList struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id"`
	Status    string         `json:"status"`
	Items     []ShoppingItem `json:"items"`
	Revision  string         `json:"revision"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DayOfWeek names a meal plan column.
type DayOfWeek string

const (
	Monday    DayOfWeek = "Monday"
	Tuesday   DayOfWeek = "Tuesday"
	Wednesday DayOfWeek = "Wednesday"
	Thursday  DayOfWeek = "Thursday"
	Friday    DayOfWeek = "Friday"
	Saturday  DayOfWeek = "Saturday"
	Sunday    DayOfWeek = "Sunday"
)

// Week lists the days in plan order.
var Week = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Valid reports whether d is a day of the week.
func (d DayOfWeek) Valid() bool {
	for _, w := range Week {
		if w == d {
			return true
		}
	}
	return false
}

// MealType names a meal plan row.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
)

// Meals lists the meal slots of a day in order.
var Meals = []MealType{Breakfast, Lunch, Dinner}

// Valid reports whether m is a known meal.
func (m MealType) Valid() bool {
	return m == Breakfast || m == Lunch || m == Dinner
}

// Slots maps each planned (day, meal) to a recipe id. A missing entry is unplanned.
type Slots map[DayOfWeek]map[MealType]int64

// Schedule is the date span a meal plan covers, as YYYY-MM-DD strings.
type Schedule struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// MealPlan is the per-user meal plan document.
type MealPlan struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Schedule  Schedule  `json:"schedule"`
	Recipes   Slots     `json:"recipes"`
	Revision  string    `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
